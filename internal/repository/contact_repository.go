package repository

import (
	"context"
	"database/sql"
)

// ContactRepo stores contact-form submissions.  The endpoint in front
// of it is rate limited; the repository itself just appends rows.
type ContactRepo struct{ db *sql.DB }

func NewContactRepo(db *sql.DB) *ContactRepo { return &ContactRepo{db: db} }

// Create inserts one submission.
func (r *ContactRepo) Create(ctx context.Context, email, subject, message string) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO contact_messages (email, subject, message) VALUES (?,?,?)",
		email, subject, message)
	return err
}
