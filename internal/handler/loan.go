package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-circulation/internal/middleware"
	"github.com/iliyamo/library-circulation/internal/model"
	"github.com/iliyamo/library-circulation/internal/repository"
	"github.com/iliyamo/library-circulation/internal/service"
)

// LoanHandler serves loan endpoints. Opening and returning loans are
// front-desk (staff) operations; patrons can read their own history.
type LoanHandler struct {
	Loans   *service.LoanService
	Patrons *repository.PatronRepo
}

func NewLoanHandler(s *service.LoanService, p *repository.PatronRepo) *LoanHandler {
	return &LoanHandler{Loans: s, Patrons: p}
}

type openLoanReq struct {
	BookID   uint64     `json:"book_id"`
	PatronID uint64     `json:"patron_id"`
	DueDate  *time.Time `json:"due_date"`
}

type returnLoanReq struct {
	DamageType string `json:"damage_type"`
	DamageNote string `json:"damage_note"`
}

// Open claims an available copy and opens a loan (staff).
func (h *LoanHandler) Open(c echo.Context) error {
	actor, _ := middleware.CurrentActor(c)
	var req openLoanReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	loan, err := h.Loans.Open(c.Request().Context(), actor, service.OpenLoanRequest{
		BookID:   req.BookID,
		PatronID: req.PatronID,
		DueDate:  req.DueDate,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toLoanView(loan))
}

// Return closes a loan, pricing late and damage fees (staff).
func (h *LoanHandler) Return(c echo.Context) error {
	actor, _ := middleware.CurrentActor(c)
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	var req returnLoanReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	loan, err := h.Loans.Return(c.Request().Context(), actor, service.ReturnLoanRequest{
		LoanID:     id,
		DamageType: model.DamageType(req.DamageType),
		DamageNote: req.DamageNote,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toLoanView(loan))
}

// Get returns one loan. Patrons may only read their own.
func (h *LoanHandler) Get(c echo.Context) error {
	actor, _ := middleware.CurrentActor(c)
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	loan, err := h.Loans.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	if !actor.IsStaff() {
		own, err := h.ownPatronID(c, actor)
		if err != nil || loan.PatronID != own {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
	}
	return c.JSON(http.StatusOK, toLoanView(loan))
}

// ListOpen returns every loan still holding a copy (staff).
func (h *LoanHandler) ListOpen(c echo.Context) error {
	loans, err := h.Loans.ListOpen(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, loanViews(loans))
}

// ListByPatron returns a patron's loans (staff).
func (h *LoanHandler) ListByPatron(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	loans, err := h.Loans.ListByPatron(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, loanViews(loans))
}

// ListMine returns the calling patron's loan history.
func (h *LoanHandler) ListMine(c echo.Context) error {
	actor, _ := middleware.CurrentActor(c)
	own, err := h.ownPatronID(c, actor)
	if err != nil {
		return respondError(c, err)
	}
	loans, err := h.Loans.ListByPatron(c.Request().Context(), own)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, loanViews(loans))
}

func (h *LoanHandler) ownPatronID(c echo.Context, actor model.Actor) (uint64, error) {
	p, err := h.Patrons.GetByUserID(c.Request().Context(), actor.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, service.ErrForbidden
		}
		return 0, err
	}
	return p.ID, nil
}
