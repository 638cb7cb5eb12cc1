package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-circulation/internal/middleware"
	"github.com/iliyamo/library-circulation/internal/model"
	"github.com/iliyamo/library-circulation/internal/repository"
	"github.com/iliyamo/library-circulation/internal/service"
)

// AdminHandler groups the staff back-office surface: fee settings,
// patron management, the audit trail and the scheduler-driven sweeps.
type AdminHandler struct {
	Settings     *repository.SettingsRepo
	Patrons      *repository.PatronRepo
	Audit        *repository.AuditRepo
	Loans        *service.LoanService
	Reservations *service.ReservationService
}

func NewAdminHandler(
	settings *repository.SettingsRepo,
	patrons *repository.PatronRepo,
	audit *repository.AuditRepo,
	loans *service.LoanService,
	reservations *service.ReservationService,
) *AdminHandler {
	return &AdminHandler{
		Settings:     settings,
		Patrons:      patrons,
		Audit:        audit,
		Loans:        loans,
		Reservations: reservations,
	}
}

type feeSettingsView struct {
	OverdueFeePerDay  string            `json:"overdue_fee_per_day"`
	LostFeeMultiplier string            `json:"lost_fee_multiplier"`
	DamageFees        map[string]string `json:"damage_fees"`
}

// FeeSettings returns the penalty configuration the engine is pricing
// with right now.
func (h *AdminHandler) FeeSettings(c echo.Context) error {
	cfg, err := h.Settings.Load(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	fees := make(map[string]string, len(cfg.DamageFees))
	for t, fee := range cfg.DamageFees {
		fees[string(t)] = fee.StringFixed(2)
	}
	return c.JSON(http.StatusOK, feeSettingsView{
		OverdueFeePerDay:  cfg.OverdueFeePerDay.StringFixed(2),
		LostFeeMultiplier: cfg.LostFeeMultiplier.String(),
		DamageFees:        fees,
	})
}

type createPatronReq struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

type patronView struct {
	ID         uint64 `json:"id"`
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Membership string `json:"membership"`
}

// CreatePatron registers a patron without an auth account (walk-in
// membership).
func (h *AdminHandler) CreatePatron(c echo.Context) error {
	var req createPatronReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.FullName == "" || req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "full_name/email required"})
	}
	p := &model.Patron{FullName: req.FullName, Email: req.Email}
	if err := h.Patrons.Create(c.Request().Context(), p); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, patronView{
		ID: p.ID, FullName: p.FullName, Email: p.Email, Membership: string(p.Membership),
	})
}

// ListPatrons returns all patrons.
func (h *AdminHandler) ListPatrons(c echo.Context) error {
	ps, err := h.Patrons.List(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	out := make([]patronView, 0, len(ps))
	for _, p := range ps {
		out = append(out, patronView{
			ID: p.ID, FullName: p.FullName, Email: p.Email, Membership: string(p.Membership),
		})
	}
	return c.JSON(http.StatusOK, out)
}

type auditView struct {
	ID         uint64    `json:"id"`
	ActorID    uint64    `json:"actor_id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   uint64    `json:"entity_id"`
	Details    string    `json:"details"`
	CreatedAt  time.Time `json:"created_at"`
}

// AuditTrail returns the audit entries for one entity, oldest first.
func (h *AdminHandler) AuditTrail(c echo.Context) error {
	entityType := c.Param("type")
	switch entityType {
	case "book", "copy", "reservation", "loan", "report":
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown entity type"})
	}
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	entries, err := h.Audit.ListByEntity(c.Request().Context(), entityType, id)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]auditView, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditView{
			ID: e.ID, ActorID: e.ActorID, Action: e.Action,
			EntityType: e.EntityType, EntityID: e.EntityID,
			Details: e.Details, CreatedAt: e.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// SweepOverdue flips due BORROWED loans to OVERDUE. Driven by an
// external scheduler hitting this endpoint.
func (h *AdminHandler) SweepOverdue(c echo.Context) error {
	actor, _ := middleware.CurrentActor(c)
	n, err := h.Loans.MarkOverdue(c.Request().Context(), actor)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"marked_overdue": n})
}

// SweepExpiredReservations collects reservations past their deadline.
func (h *AdminHandler) SweepExpiredReservations(c echo.Context) error {
	actor, _ := middleware.CurrentActor(c)
	n, err := h.Reservations.ExpireDue(c.Request().Context(), actor)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"expired": n})
}
