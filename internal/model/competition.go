package model

import "time"

// Competition represents one prize competition: a pool of numbered
// tickets sold until the closing date, gated by a skill question.
// Reservation state for its tickets lives in the key-value store; this
// type mirrors the durable catalog row only.
//
// Fields:
//
//	ID               – primary key identifier.
//	Title            – public competition title.
//	Slug             – URL-friendly identifier.
//	Description      – marketing copy shown on the detail page.
//	TotalTickets     – size of the ticket pool; valid numbers are 1..TotalTickets.
//	TicketPriceCents – price per ticket in cents.
//	Question         – the skill question a buyer must answer.
//	Answer           – accepted answer, stored normalized (lower case, trimmed).
//	Status           – current state (DRAFT, OPEN, CLOSED, DRAWN).
//	ClosesAt         – when ticket sales end.
//	CreatedAt        – creation timestamp.
//	UpdatedAt        – last update timestamp.
type Competition struct {
	ID               uint64    // competitions.id
	Title            string    // competitions.title
	Slug             string    // competitions.slug
	Description      string    // competitions.description
	TotalTickets     int       // competitions.total_tickets
	TicketPriceCents uint32    // competitions.ticket_price_cents
	Question         string    // competitions.question
	Answer           string    // competitions.answer
	Status           string    // competitions.status
	ClosesAt         time.Time // competitions.closes_at
	CreatedAt        time.Time // competitions.created_at
	UpdatedAt        time.Time // competitions.updated_at
}

// Open reports whether tickets can currently be reserved.
func (c *Competition) Open(now time.Time) bool {
	return c.Status == "OPEN" && now.Before(c.ClosesAt)
}
