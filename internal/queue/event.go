// Package queue defines message payloads exchanged over the message broker.
package queue

// OrderConfirmedEvent is published after a checkout commits.  It carries
// enough information for downstream consumers (fulfilment emails,
// analytics, the draw pipeline) to act without querying the primary
// database.
type OrderConfirmedEvent struct {
	OrderID          uint64 `json:"order_id"`
	UserID           uint64 `json:"user_id"`
	CompetitionID    uint64 `json:"competition_id"`
	CompetitionTitle string `json:"competition_title"`
	TicketNumbers    []int  `json:"ticket_numbers"`
	TotalAmountCents uint32 `json:"total_amount_cents"`
	ConfirmedAt      string `json:"confirmed_at"`
}
