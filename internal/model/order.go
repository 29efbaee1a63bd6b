package model

import "time"

// Order records a completed purchase.  Rows are written only after
// payment succeeds; until then the tickets exist solely as store-side
// locks that expire on their own.
//
// Fields:
//
//	ID               – primary key identifier.
//	UserID           – buyer.
//	CompetitionID    – competition the tickets belong to.
//	Status           – state of the order (PAID, REFUNDED).
//	TotalAmountCents – total price in cents for all tickets.
//	PaymentRef       – external payment reference, if any.
//	CreatedAt        – creation timestamp.
type Order struct {
	ID               uint64    // orders.id
	UserID           uint64    // orders.user_id
	CompetitionID    uint64    // orders.competition_id
	Status           string    // orders.status
	TotalAmountCents uint32    // orders.total_amount_cents
	PaymentRef       *string   // orders.payment_ref (nullable)
	CreatedAt        time.Time // orders.created_at
}

// OrderTicket is one permanently sold ticket number under an order.
// The (competition_id, ticket_number) pair is unique, which is the
// durable counterpart of the store-side lock invariant.
//
// Fields:
//
//	ID            – primary key identifier.
//	OrderID       – reference to the order.
//	CompetitionID – competition the number belongs to.
//	TicketNumber  – the sold ticket number.
type OrderTicket struct {
	ID            uint64 // order_tickets.id
	OrderID       uint64 // order_tickets.order_id
	CompetitionID uint64 // order_tickets.competition_id
	TicketNumber  int    // order_tickets.ticket_number
}
