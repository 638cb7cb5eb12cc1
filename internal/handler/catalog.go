package handler

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/library-circulation/internal/cache"
	"github.com/iliyamo/library-circulation/internal/middleware"
	"github.com/iliyamo/library-circulation/internal/service"
)

// CatalogHandler serves the book catalog: staff curation endpoints plus
// the public availability lookup. Availability responses come from the
// shared redis cache because that endpoint takes the most traffic; the
// circulation services invalidate entries as copies are claimed and
// released, and a missing redis client disables caching entirely.
type CatalogHandler struct {
	Inventory *service.InventoryService
	Avail     *cache.Availability
}

func NewCatalogHandler(inv *service.InventoryService, avail *cache.Availability) *CatalogHandler {
	return &CatalogHandler{Inventory: inv, Avail: avail}
}

type addBookReq struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	ISBN   string `json:"isbn"`
	Price  string `json:"price"`
}

type addCopyReq struct {
	Barcode string `json:"barcode"`
}

type conditionReq struct {
	Note string `json:"note"`
}

type availabilityView struct {
	BookID          uint64 `json:"book_id"`
	TotalCopies     uint32 `json:"total_copies"`
	AvailableCopies uint32 `json:"available_copies"`
}

// CreateBook registers a new title (staff).
func (h *CatalogHandler) CreateBook(c echo.Context) error {
	actor, _ := middleware.CurrentActor(c)
	var req addBookReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "price must be a decimal string"})
	}
	b, err := h.Inventory.AddBook(c.Request().Context(), actor, service.AddBookRequest{
		Title:  req.Title,
		Author: req.Author,
		ISBN:   req.ISBN,
		Price:  price,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toBookView(b))
}

// ListBooks returns the whole catalog.
func (h *CatalogHandler) ListBooks(c echo.Context) error {
	books, err := h.Inventory.ListBooks(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	out := make([]bookView, 0, len(books))
	for i := range books {
		out = append(out, toBookView(&books[i]))
	}
	return c.JSON(http.StatusOK, out)
}

// GetBook returns one title.
func (h *CatalogHandler) GetBook(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	b, err := h.Inventory.GetBook(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toBookView(b))
}

// Availability returns the copy counters for one title, served from the
// redis cache when fresh.
func (h *CatalogHandler) Availability(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	ctx := c.Request().Context()

	if bs, ok := h.Avail.Get(ctx, id); ok {
		var v availabilityView
		if json.Unmarshal(bs, &v) == nil {
			c.Response().Header().Set("X-Cache", "HIT")
			return c.JSON(http.StatusOK, v)
		}
	}

	b, err := h.Inventory.GetBook(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	v := availabilityView{BookID: b.ID, TotalCopies: b.TotalCopies, AvailableCopies: b.AvailableCopies}
	if bs, err := json.Marshal(v); err == nil {
		h.Avail.Set(ctx, id, bs)
	}
	c.Response().Header().Set("X-Cache", "MISS")
	return c.JSON(http.StatusOK, v)
}

// CreateCopy registers a physical copy (staff).
func (h *CatalogHandler) CreateCopy(c echo.Context) error {
	actor, _ := middleware.CurrentActor(c)
	bookID, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	var req addCopyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	cp, err := h.Inventory.AddCopy(c.Request().Context(), actor, bookID, req.Barcode)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toCopyView(cp))
}

// ListCopies returns all copies of a title (staff).
func (h *CatalogHandler) ListCopies(c echo.Context) error {
	bookID, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	copies, err := h.Inventory.ListCopies(c.Request().Context(), bookID)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]copyView, 0, len(copies))
	for i := range copies {
		out = append(out, toCopyView(&copies[i]))
	}
	return c.JSON(http.StatusOK, out)
}

// WithdrawCopy pulls a copy out of circulation permanently (staff).
func (h *CatalogHandler) WithdrawCopy(c echo.Context) error {
	actor, _ := middleware.CurrentActor(c)
	copyID, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	cp, err := h.Inventory.WithdrawCopy(c.Request().Context(), actor, copyID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toCopyView(cp))
}

// MarkCondition records a condition remark on a copy (staff).
func (h *CatalogHandler) MarkCondition(c echo.Context) error {
	actor, _ := middleware.CurrentActor(c)
	copyID, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	var req conditionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.Inventory.MarkCondition(c.Request().Context(), actor, copyID, req.Note); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
