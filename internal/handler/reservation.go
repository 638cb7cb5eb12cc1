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

// ReservationHandler serves the reservation lifecycle. Patrons reserve
// for themselves; staff may reserve on a patron's behalf and run the
// approve/decline queue.
type ReservationHandler struct {
	Reservations *service.ReservationService
	Patrons      *repository.PatronRepo
}

func NewReservationHandler(s *service.ReservationService, p *repository.PatronRepo) *ReservationHandler {
	return &ReservationHandler{Reservations: s, Patrons: p}
}

type createReservationReq struct {
	BookID   uint64 `json:"book_id"`
	PatronID uint64 `json:"patron_id"` // staff only; patrons reserve for themselves
}

type declineReq struct {
	Reason string `json:"reason"`
}

type approveResp struct {
	Reservation reservationView `json:"reservation"`
	Loan        loanView        `json:"loan"`
}

// Create files a PENDING reservation.
func (h *ReservationHandler) Create(c echo.Context) error {
	actor, _ := middleware.CurrentActor(c)
	var req createReservationReq
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

	res, err := h.Reservations.Create(c.Request().Context(), actor, req.BookID, patronID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toReservationView(res))
}

// Approve grants a reservation and opens the loan (staff).
func (h *ReservationHandler) Approve(c echo.Context) error {
	actor, _ := middleware.CurrentActor(c)
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	res, loan, err := h.Reservations.Approve(c.Request().Context(), actor, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, approveResp{
		Reservation: toReservationView(res),
		Loan:        toLoanView(loan),
	})
}

// Decline rejects a reservation with a reason (staff).
func (h *ReservationHandler) Decline(c echo.Context) error {
	actor, _ := middleware.CurrentActor(c)
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	var req declineReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	res, err := h.Reservations.Decline(c.Request().Context(), actor, id, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toReservationView(res))
}

// Cancel withdraws a reservation. Staff may cancel any; a patron only
// their own.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	actor, _ := middleware.CurrentActor(c)
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	var own uint64
	if !actor.IsStaff() {
		own, err = h.ownPatronID(c, actor)
		if err != nil {
			return respondError(c, err)
		}
	}
	res, err := h.Reservations.Cancel(c.Request().Context(), actor, id, own)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toReservationView(res))
}

// Get returns one reservation.
func (h *ReservationHandler) Get(c echo.Context) error {
	actor, _ := middleware.CurrentActor(c)
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	res, err := h.Reservations.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	if !actor.IsStaff() {
		own, err := h.ownPatronID(c, actor)
		if err != nil || res.PatronID != own {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
	}
	return c.JSON(http.StatusOK, toReservationView(res))
}

// ListPending returns the approval queue, FIFO (staff).
func (h *ReservationHandler) ListPending(c echo.Context) error {
	rs, err := h.Reservations.ListPending(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, reservationViews(rs))
}

// ListMine returns the calling patron's reservations.
func (h *ReservationHandler) ListMine(c echo.Context) error {
	actor, _ := middleware.CurrentActor(c)
	own, err := h.ownPatronID(c, actor)
	if err != nil {
		return respondError(c, err)
	}
	rs, err := h.Reservations.ListByPatron(c.Request().Context(), own)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, reservationViews(rs))
}

// ownPatronID resolves the patron profile behind the calling account.
func (h *ReservationHandler) ownPatronID(c echo.Context, actor model.Actor) (uint64, error) {
	p, err := h.Patrons.GetByUserID(c.Request().Context(), actor.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, service.ErrForbidden
		}
		return 0, err
	}
	return p.ID, nil
}
