package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/prize-competition/internal/model"
)

// CompetitionRepo provides read access to the competitions catalog.
// The reservation core only consumes the ticket range and the skill
// question; listing powers the public browse endpoints.
type CompetitionRepo struct {
	db *sql.DB
}

// NewCompetitionRepo returns a CompetitionRepo bound to the given database.
func NewCompetitionRepo(db *sql.DB) *CompetitionRepo { return &CompetitionRepo{db: db} }

const competitionColumns = `id, title, slug, description, total_tickets, ticket_price_cents,
	question, answer, status, closes_at, created_at, updated_at`

// GetByID fetches a single competition.  Returns ErrNotFound when the
// row does not exist.
func (r *CompetitionRepo) GetByID(ctx context.Context, id uint64) (model.Competition, error) {
	var c model.Competition
	err := r.db.QueryRowContext(ctx,
		`SELECT `+competitionColumns+` FROM competitions WHERE id = ?`, id).
		Scan(&c.ID, &c.Title, &c.Slug, &c.Description, &c.TotalTickets, &c.TicketPriceCents,
			&c.Question, &c.Answer, &c.Status, &c.ClosesAt, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.Competition{}, ErrNotFound
	}
	return c, err
}

// ListOpen returns competitions that are currently accepting entries,
// soonest-closing first.
func (r *CompetitionRepo) ListOpen(ctx context.Context) ([]model.Competition, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+competitionColumns+` FROM competitions
		 WHERE status = 'OPEN' AND closes_at > UTC_TIMESTAMP()
		 ORDER BY closes_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Competition
	for rows.Next() {
		var c model.Competition
		if err := rows.Scan(&c.ID, &c.Title, &c.Slug, &c.Description, &c.TotalTickets, &c.TicketPriceCents,
			&c.Question, &c.Answer, &c.Status, &c.ClosesAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
