package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/prize-competition/internal/model"
	"github.com/iliyamo/prize-competition/internal/repository"
)

// PublicHandler exposes the unauthenticated catalog endpoints.  The
// skill question's answer never leaves the server, so responses go
// through a sanitized view instead of the raw model.
type PublicHandler struct {
	Competitions *repository.CompetitionRepo
}

func NewPublicHandler(competitions *repository.CompetitionRepo) *PublicHandler {
	return &PublicHandler{Competitions: competitions}
}

type competitionView struct {
	ID               uint64    `json:"id"`
	Title            string    `json:"title"`
	Slug             string    `json:"slug"`
	Description      string    `json:"description"`
	TotalTickets     int       `json:"total_tickets"`
	TicketPriceCents uint32    `json:"ticket_price_cents"`
	Question         string    `json:"question"`
	Status           string    `json:"status"`
	ClosesAt         time.Time `json:"closes_at"`
}

func viewOf(c model.Competition) competitionView {
	return competitionView{
		ID:               c.ID,
		Title:            c.Title,
		Slug:             c.Slug,
		Description:      c.Description,
		TotalTickets:     c.TotalTickets,
		TicketPriceCents: c.TicketPriceCents,
		Question:         c.Question,
		Status:           c.Status,
		ClosesAt:         c.ClosesAt,
	}
}

// ListCompetitions handles GET /v1/competitions.
func (h *PublicHandler) ListCompetitions(c echo.Context) error {
	comps, err := h.Competitions.ListOpen(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	views := make([]competitionView, 0, len(comps))
	for _, comp := range comps {
		views = append(views, viewOf(comp))
	}
	return c.JSON(http.StatusOK, echo.Map{"competitions": views})
}

// GetCompetition handles GET /v1/competitions/:id.
func (h *PublicHandler) GetCompetition(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid competition id"})
	}
	comp, err := h.Competitions.GetByID(c.Request().Context(), id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "competition not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, viewOf(comp))
}
