package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-circulation/internal/middleware"
	"github.com/iliyamo/library-circulation/internal/model"
	"github.com/iliyamo/library-circulation/internal/repository"
	"github.com/iliyamo/library-circulation/internal/service"
)

// ReportHandler serves lost/damage reports. Patrons file against copies
// they hold; resolution is a staff operation.
type ReportHandler struct {
	Reports *service.ReportService
	Patrons *repository.PatronRepo
}

func NewReportHandler(s *service.ReportService, p *repository.PatronRepo) *ReportHandler {
	return &ReportHandler{Reports: s, Patrons: p}
}

type fileReportReq struct {
	BookID      uint64   `json:"book_id"`
	CopyID      uint64   `json:"copy_id"`
	PatronID    uint64   `json:"patron_id"` // staff only
	ReportType  string   `json:"report_type"`
	Severity    string   `json:"severity"`
	Description string   `json:"description"`
	DamageTypes []string `json:"damage_types"`
}

type resolveReq struct {
	AdminNotes string `json:"admin_notes"`
}

// File opens a PENDING report.
func (h *ReportHandler) File(c echo.Context) error {
	actor, _ := middleware.CurrentActor(c)
	var req fileReportReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	patronID := req.PatronID
	if !actor.IsStaff() {
		own, err := h.ownPatronID(c, actor)
		if err != nil {
			return respondError(c, err)
		}
		patronID = own
	}

	types := make([]model.DamageType, 0, len(req.DamageTypes))
	for _, t := range req.DamageTypes {
		types = append(types, model.DamageType(t))
	}

	rep, err := h.Reports.File(c.Request().Context(), actor, service.FileReportRequest{
		BookID:      req.BookID,
		CopyID:      req.CopyID,
		PatronID:    patronID,
		ReportType:  model.ReportType(req.ReportType),
		Severity:    model.ReportSeverity(req.Severity),
		Description: req.Description,
		DamageTypes: types,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toReportView(rep))
}

// Resolve settles a report: authoritative fee, loan penalty, copy
// routing (staff).
func (h *ReportHandler) Resolve(c echo.Context) error {
	actor, _ := middleware.CurrentActor(c)
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	var req resolveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	rep, err := h.Reports.Resolve(c.Request().Context(), actor, id, req.AdminNotes)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toReportView(rep))
}

// Get returns one report. Patrons may only read their own.
func (h *ReportHandler) Get(c echo.Context) error {
	actor, _ := middleware.CurrentActor(c)
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	rep, err := h.Reports.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	if !actor.IsStaff() {
		own, err := h.ownPatronID(c, actor)
		if err != nil || rep.PatronID != own {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
	}
	return c.JSON(http.StatusOK, toReportView(rep))
}

// ListPending returns the resolution queue (staff).
func (h *ReportHandler) ListPending(c echo.Context) error {
	rs, err := h.Reports.ListPending(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, reportViews(rs))
}

// ListMine returns the calling patron's reports.
func (h *ReportHandler) ListMine(c echo.Context) error {
	actor, _ := middleware.CurrentActor(c)
	own, err := h.ownPatronID(c, actor)
	if err != nil {
		return respondError(c, err)
	}
	rs, err := h.Reports.ListByPatron(c.Request().Context(), own)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, reportViews(rs))
}

func (h *ReportHandler) ownPatronID(c echo.Context, actor model.Actor) (uint64, error) {
	p, err := h.Patrons.GetByUserID(c.Request().Context(), actor.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, service.ErrForbidden
		}
		return 0, err
	}
	return p.ID, nil
}
