package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/prize-competition/internal/lock"
	"github.com/iliyamo/prize-competition/internal/middleware"
	"github.com/iliyamo/prize-competition/internal/model"
	"github.com/iliyamo/prize-competition/internal/queue"
	"github.com/iliyamo/prize-competition/internal/quiz"
	"github.com/iliyamo/prize-competition/internal/repository"
	queue_publisher "github.com/iliyamo/prize-competition/internal/service"
)

// CheckoutHandler converts a live reservation into a paid order: the
// durable rows are written first, the order.confirmed event goes out,
// and only then are the store-side locks released.  Payment-provider
// integration sits in front of this endpoint and is out of scope here;
// the handler is called once payment has succeeded and receives the
// provider's reference.
type CheckoutHandler struct {
	Locks        *lock.Manager
	Tracker      *quiz.Tracker
	Competitions *repository.CompetitionRepo
	Orders       *repository.OrderRepo
}

func NewCheckoutHandler(locks *lock.Manager, tracker *quiz.Tracker, competitions *repository.CompetitionRepo, orders *repository.OrderRepo) *CheckoutHandler {
	return &CheckoutHandler{Locks: locks, Tracker: tracker, Competitions: competitions, Orders: orders}
}

// Checkout handles POST /v1/competitions/:id/checkout.
func (h *CheckoutHandler) Checkout(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	comp, ok := loadOpenCompetition(c, h.Competitions)
	if !ok {
		return nil
	}

	var req struct {
		PaymentRef string `json:"payment_ref"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	ctx := c.Request().Context()

	passed, err := h.Tracker.HasPassed(ctx, comp.ID, userID)
	if err != nil {
		return storeFailure(c, err)
	}
	if !passed {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "skill question not passed"})
	}

	res, err := h.Locks.GetReservation(ctx, comp.ID, userID)
	if err != nil {
		return storeFailure(c, err)
	}
	if res == nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": "no active reservation, it may have expired"})
	}

	order := model.Order{
		UserID:           userID,
		CompetitionID:    comp.ID,
		Status:           "PAID",
		TotalAmountCents: comp.TicketPriceCents * uint32(len(res.TicketNumbers)),
	}
	if req.PaymentRef != "" {
		order.PaymentRef = &req.PaymentRef
	}

	tx, err := h.Orders.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := h.Orders.CreateTx(ctx, tx, &order); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create order"})
	}
	if err := h.Orders.CreateTicketsBulkTx(ctx, tx, order.ID, comp.ID, res.TicketNumbers); err != nil {
		if err == repository.ErrConflict {
			// A number was sold out from under the lock.  Should not
			// happen while the lock invariants hold; surface it rather
			// than guessing.
			return c.JSON(http.StatusConflict, echo.Map{"error": "tickets were already sold"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to record tickets"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit order"})
	}
	committed = true

	if err := queue_publisher.PublishOrderConfirmed(ctx, queue.OrderConfirmedEvent{
		OrderID:          order.ID,
		UserID:           userID,
		CompetitionID:    comp.ID,
		CompetitionTitle: comp.Title,
		TicketNumbers:    res.TicketNumbers,
		TotalAmountCents: order.TotalAmountCents,
		ConfirmedAt:      time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		log.Printf("checkout: publishing order %d event failed: %v", order.ID, err)
	}

	// The sale is durable; a failed release is harmless because the
	// leftover locks expire on their own TTL.
	if err := h.Locks.Release(ctx, comp.ID, userID); err != nil {
		log.Printf("checkout: releasing reservation for order %d failed: %v", order.ID, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"order_id":           order.ID,
		"ticket_numbers":     res.TicketNumbers,
		"total_amount_cents": order.TotalAmountCents,
	})
}
