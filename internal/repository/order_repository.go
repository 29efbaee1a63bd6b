package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/prize-competition/internal/model"
)

// OrderRepo persists completed purchases and their ticket numbers.  An
// order plus its order_tickets rows are the durable record the external
// world trusts; the store-side locks they came from are released right
// after these rows commit.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns an OrderRepo bound to the given database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// DB exposes the underlying handle so handlers can open a transaction
// spanning the order and its tickets.
func (r *OrderRepo) DB() *sql.DB { return r.db }

// CreateTx inserts an order within the given transaction and populates
// the generated ID on the record.  The caller commits or rolls back.
func (r *OrderRepo) CreateTx(ctx context.Context, tx *sql.Tx, o *model.Order) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO orders (user_id, competition_id, status, total_amount_cents, payment_ref) VALUES (?, ?, ?, ?, ?)`,
		o.UserID, o.CompetitionID, o.Status, o.TotalAmountCents, o.PaymentRef)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	return nil
}

// CreateTicketsBulkTx inserts all sold ticket numbers of one order in a
// single statement.  The unique (competition_id, ticket_number) index
// is the durable backstop against double-selling: a duplicate-key
// failure surfaces as ErrConflict and the caller must roll back.
func (r *OrderRepo) CreateTicketsBulkTx(ctx context.Context, tx *sql.Tx, orderID, competitionID uint64, ticketNumbers []int) error {
	if len(ticketNumbers) == 0 {
		return nil
	}
	query := `INSERT INTO order_tickets (order_id, competition_id, ticket_number) VALUES `
	args := make([]interface{}, 0, len(ticketNumbers)*3)
	for i, n := range ticketNumbers {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, orderID, competitionID, n)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrConflict
		}
		return err
	}
	return nil
}

// SoldTicketNumbers returns the set of permanently sold numbers for a
// competition.  The allocator subtracts these from the free pool.
func (r *OrderRepo) SoldTicketNumbers(ctx context.Context, competitionID uint64) (map[int]struct{}, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT ticket_number FROM order_tickets WHERE competition_id = ?`, competitionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	sold := make(map[int]struct{})
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		sold[n] = struct{}{}
	}
	return sold, rows.Err()
}

// ListByUser returns a user's orders, newest first.
func (r *OrderRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, competition_id, status, total_amount_cents, payment_ref, created_at
		 FROM orders WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Order
	for rows.Next() {
		var o model.Order
		var ref sql.NullString
		if err := rows.Scan(&o.ID, &o.UserID, &o.CompetitionID, &o.Status, &o.TotalAmountCents, &ref, &o.CreatedAt); err != nil {
			return nil, err
		}
		if ref.Valid {
			v := ref.String
			o.PaymentRef = &v
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
