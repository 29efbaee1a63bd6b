package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/prize-competition/internal/repository"
)

// ContactHandler accepts contact-form submissions.  The route is rate
// limited; the handler itself only validates and stores.
type ContactHandler struct {
	Contacts *repository.ContactRepo
}

func NewContactHandler(contacts *repository.ContactRepo) *ContactHandler {
	return &ContactHandler{Contacts: contacts}
}

// Submit handles POST /v1/contact.
func (h *ContactHandler) Submit(c echo.Context) error {
	var req struct {
		Email   string `json:"email"`
		Subject string `json:"subject"`
		Message string `json:"message"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Subject = strings.TrimSpace(req.Subject)
	req.Message = strings.TrimSpace(req.Message)
	if req.Email == "" || req.Message == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and message are required"})
	}
	if len(req.Message) > 10000 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "message too long"})
	}
	if err := h.Contacts.Create(c.Request().Context(), req.Email, req.Subject, req.Message); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.NoContent(http.StatusAccepted)
}
