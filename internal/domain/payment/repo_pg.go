package payment

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hims/billing/internal/platform/apperr"
	"github.com/hims/billing/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const payCols = `id, case_id, invoice_id, amount, mode, reference_no, received_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.CaseID, &p.InvoiceID, &p.Amount, &p.Mode, &p.ReferenceNo, &p.ReceivedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("payment not found")
	}
	return &p, err
}

func (r *repoPG) CreatePayment(ctx context.Context, p *Payment) error {
	p.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO payment (id, case_id, invoice_id, amount, mode, reference_no)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING received_at`,
		p.ID, p.CaseID, p.InvoiceID, p.Amount, p.Mode, p.ReferenceNo).
		Scan(&p.ReceivedAt)
}

func (r *repoPG) GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return scanPayment(r.conn(ctx).QueryRow(ctx, `SELECT `+payCols+` FROM payment WHERE id = $1`, id))
}

func (r *repoPG) DeletePayment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM payment WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("payment not found")
	}
	return nil
}

func (r *repoPG) ListPaymentsByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*Payment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM payment WHERE case_id = $1`, caseID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+payCols+` FROM payment WHERE case_id = $1 ORDER BY received_at, id LIMIT $2 OFFSET $3`,
		caseID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

const advCols = `id, case_id, amount, balance_remaining, created_at, updated_at`

func scanAdvance(row pgx.Row) (*Advance, error) {
	var a Advance
	err := row.Scan(&a.ID, &a.CaseID, &a.Amount, &a.BalanceRemaining, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("advance not found")
	}
	return &a, err
}

func (r *repoPG) CreateAdvance(ctx context.Context, a *Advance) error {
	a.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO advance (id, case_id, amount, balance_remaining)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		a.ID, a.CaseID, a.Amount, a.BalanceRemaining).
		Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *repoPG) GetAdvanceForUpdate(ctx context.Context, id uuid.UUID) (*Advance, error) {
	return scanAdvance(r.conn(ctx).QueryRow(ctx, `SELECT `+advCols+` FROM advance WHERE id = $1 FOR UPDATE`, id))
}

func (r *repoPG) UpdateAdvanceBalance(ctx context.Context, a *Advance) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE advance SET balance_remaining = $2, updated_at = NOW() WHERE id = $1`,
		a.ID, a.BalanceRemaining)
	return err
}

func (r *repoPG) ListAdvancesByCase(ctx context.Context, caseID uuid.UUID) ([]*Advance, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+advCols+` FROM advance WHERE case_id = $1 ORDER BY created_at, id`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Advance
	for rows.Next() {
		a, err := scanAdvance(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
