package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/prize-competition/internal/allocator"
	"github.com/iliyamo/prize-competition/internal/lock"
	"github.com/iliyamo/prize-competition/internal/middleware"
	"github.com/iliyamo/prize-competition/internal/model"
	"github.com/iliyamo/prize-competition/internal/repository"
	"github.com/iliyamo/prize-competition/internal/store"
)

// maxTicketsPerReservation bounds one request so a single buyer cannot
// lock an outsized share of the pool in one go.
const maxTicketsPerReservation = 100

// ReservationHandler exposes the reservation contract of the lock
// manager: reserve N tickets, show what is held, release.  All methods
// require an authenticated user; conflicts and rate limits surface as
// structured JSON the UI can render directly.
type ReservationHandler struct {
	Locks        *lock.Manager
	Alloc        *allocator.Allocator
	Competitions *repository.CompetitionRepo
}

func NewReservationHandler(locks *lock.Manager, alloc *allocator.Allocator, competitions *repository.CompetitionRepo) *ReservationHandler {
	return &ReservationHandler{Locks: locks, Alloc: alloc, Competitions: competitions}
}

type reserveReq struct {
	Quantity      int   `json:"quantity"`
	TicketNumbers []int `json:"ticket_numbers"`
}

type reservationView struct {
	TicketNumbers []int     `json:"ticket_numbers"`
	ReservedAt    time.Time `json:"reserved_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Reserve handles POST /v1/competitions/:id/reserve.  The client sends
// either an explicit ticket_numbers set or a quantity for the allocator
// to fill from the free pool.  A user re-requesting their current set
// gets a TTL refresh; a different set replaces the old reservation.
func (h *ReservationHandler) Reserve(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	comp, ok := loadOpenCompetition(c, h.Competitions)
	if !ok {
		return nil // response already written
	}

	var req reserveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	ctx := c.Request().Context()
	numbers := dedupTickets(req.TicketNumbers)
	switch {
	case len(numbers) > 0:
		if len(numbers) > maxTicketsPerReservation {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "too many tickets requested"})
		}
		for _, n := range numbers {
			if n < 1 || n > comp.TotalTickets {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "ticket number out of range", "ticket_number": n})
			}
		}
	case req.Quantity > 0:
		if req.Quantity > maxTicketsPerReservation {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "too many tickets requested"})
		}
		picked, err := h.Alloc.Pick(ctx, comp.ID, comp.TotalTickets, req.Quantity)
		if err != nil {
			var ne *allocator.NotEnoughTicketsError
			if errors.As(err, &ne) {
				return c.JSON(http.StatusConflict, echo.Map{
					"error":     "not enough tickets available",
					"requested": ne.Requested,
					"available": ne.Available,
				})
			}
			return storeFailure(c, err)
		}
		numbers = picked
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantity or ticket_numbers is required"})
	}

	// A stale reservation with a different set must not leave orphaned
	// locks behind once its record is replaced, so it is released first.
	existing, err := h.Locks.GetReservation(ctx, comp.ID, userID)
	if err != nil {
		return storeFailure(c, err)
	}
	if existing != nil && !sameTicketSet(existing.TicketNumbers, numbers) {
		if err := h.Locks.Release(ctx, comp.ID, userID); err != nil {
			return storeFailure(c, err)
		}
	}

	res, err := h.Locks.Reserve(ctx, comp.ID, userID, numbers)
	if err != nil {
		var conflict *lock.ConflictError
		switch {
		case errors.As(err, &conflict):
			return c.JSON(http.StatusConflict, echo.Map{
				"error":       "some tickets are already taken",
				"conflicting": conflict.TicketNumbers,
			})
		case errors.Is(err, lock.ErrInvalidTicketSet):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket set"})
		default:
			return storeFailure(c, err)
		}
	}

	return c.JSON(http.StatusCreated, reservationView{
		TicketNumbers: res.TicketNumbers,
		ReservedAt:    res.ReservedAt,
		ExpiresAt:     res.ExpiresAt,
	})
}

// Release handles POST /v1/competitions/:id/release.  Safe to call
// repeatedly and after expiry.
func (h *ReservationHandler) Release(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	competitionID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || competitionID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid competition id"})
	}
	if err := h.Locks.Release(c.Request().Context(), competitionID, userID); err != nil {
		return storeFailure(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetReservation handles GET /v1/competitions/:id/reservation, used by
// the checkout page to re-display held numbers and the countdown.
func (h *ReservationHandler) GetReservation(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	competitionID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || competitionID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid competition id"})
	}
	res, err := h.Locks.GetReservation(c.Request().Context(), competitionID, userID)
	if err != nil {
		return storeFailure(c, err)
	}
	if res == nil {
		return c.JSON(http.StatusOK, echo.Map{"reservation": nil})
	}
	return c.JSON(http.StatusOK, echo.Map{"reservation": reservationView{
		TicketNumbers: res.TicketNumbers,
		ReservedAt:    res.ReservedAt,
		ExpiresAt:     res.ExpiresAt,
	}})
}

// loadOpenCompetition loads the competition from the path parameter and
// verifies it is accepting entries.  When it returns ok=false the HTTP
// response has already been written.
func loadOpenCompetition(c echo.Context, competitions *repository.CompetitionRepo) (model.Competition, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid competition id"})
		return model.Competition{}, false
	}
	comp, err := competitions.GetByID(c.Request().Context(), id)
	if err != nil {
		if err == repository.ErrNotFound {
			_ = c.JSON(http.StatusNotFound, echo.Map{"error": "competition not found"})
		} else {
			_ = c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		return model.Competition{}, false
	}
	if !comp.Open(time.Now().UTC()) {
		_ = c.JSON(http.StatusConflict, echo.Map{"error": "competition is closed"})
		return model.Competition{}, false
	}
	return comp, true
}

// storeFailure maps backend unavailability to 503 and anything else to
// 500.  A store error must never be reported as success.
func storeFailure(c echo.Context, err error) error {
	var se *store.Error
	if errors.As(err, &se) {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "service temporarily unavailable, please retry"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// dedupTickets drops non-positive and duplicate numbers while keeping
// the caller's order.
func dedupTickets(in []int) []int {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[int]struct{}, len(in))
	out := make([]int, 0, len(in))
	for _, n := range in {
		if n <= 0 {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// sameTicketSet reports whether two ticket sets contain the same
// numbers regardless of order.
func sameTicketSet(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[int]struct{}, len(a))
	for _, n := range a {
		set[n] = struct{}{}
	}
	for _, n := range b {
		if _, ok := set[n]; !ok {
			return false
		}
	}
	return true
}
