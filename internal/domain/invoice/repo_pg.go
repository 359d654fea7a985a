package invoice

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

const invCols = `id, case_id, billing_type, status,
	gross_total, tax_total, net_total, amount_paid, advance_applied, balance_due,
	void_reason, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.CaseID, &inv.BillingType, &inv.Status,
		&inv.GrossTotal, &inv.TaxTotal, &inv.NetTotal, &inv.AmountPaid, &inv.AdvanceApplied, &inv.BalanceDue,
		&inv.VoidReason, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("invoice not found")
	}
	return &inv, err
}

func (r *repoPG) Create(ctx context.Context, inv *Invoice) error {
	inv.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO invoice (id, case_id, billing_type, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		inv.ID, inv.CaseID, inv.BillingType, inv.Status).
		Scan(&inv.CreatedAt, &inv.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return scanInvoice(r.conn(ctx).QueryRow(ctx, `SELECT `+invCols+` FROM invoice WHERE id = $1`, id))
}

func (r *repoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return scanInvoice(r.conn(ctx).QueryRow(ctx, `SELECT `+invCols+` FROM invoice WHERE id = $1 FOR UPDATE`, id))
}

func (r *repoPG) UpdateTotals(ctx context.Context, inv *Invoice) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE invoice SET gross_total=$2, tax_total=$3, net_total=$4,
			amount_paid=$5, advance_applied=$6, balance_due=$7, updated_at=NOW()
		WHERE id = $1`,
		inv.ID, inv.GrossTotal, inv.TaxTotal, inv.NetTotal,
		inv.AmountPaid, inv.AdvanceApplied, inv.BalanceDue)
	return err
}

func (r *repoPG) UpdateStatus(ctx context.Context, inv *Invoice) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE invoice SET status=$2, void_reason=$3, updated_at=NOW() WHERE id = $1`,
		inv.ID, inv.Status, inv.VoidReason)
	return err
}

func (r *repoPG) ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM invoice WHERE case_id = $1`, caseID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+invCols+` FROM invoice WHERE case_id = $1 ORDER BY created_at LIMIT $2 OFFSET $3`, caseID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, inv)
	}
	return items, total, rows.Err()
}

const liCols = `id, invoice_id, entry_type, description, quantity, unit_price,
	tax_rate, tax_amount, line_total, service_type, service_uid, service_ref_id,
	authorized_by, is_voided, void_reason, created_at`

func scanLineItem(row pgx.Row) (*LineItem, error) {
	var li LineItem
	err := row.Scan(&li.ID, &li.InvoiceID, &li.EntryType, &li.Description, &li.Quantity, &li.UnitPrice,
		&li.TaxRate, &li.TaxAmount, &li.LineTotal, &li.ServiceType, &li.ServiceUID, &li.ServiceRefID,
		&li.AuthorizedBy, &li.IsVoided, &li.VoidReason, &li.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("line item not found")
	}
	return &li, err
}

func (r *repoPG) AddLineItem(ctx context.Context, li *LineItem) error {
	li.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO invoice_line_item (id, invoice_id, entry_type, description, quantity, unit_price,
			tax_rate, tax_amount, line_total, service_type, service_uid, service_ref_id, authorized_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at`,
		li.ID, li.InvoiceID, li.EntryType, li.Description, li.Quantity, li.UnitPrice,
		li.TaxRate, li.TaxAmount, li.LineTotal, li.ServiceType, li.ServiceUID, li.ServiceRefID, li.AuthorizedBy).
		Scan(&li.CreatedAt)
}

func (r *repoPG) GetLineItem(ctx context.Context, invoiceID, lineID uuid.UUID) (*LineItem, error) {
	return scanLineItem(r.conn(ctx).QueryRow(ctx,
		`SELECT `+liCols+` FROM invoice_line_item WHERE id = $1 AND invoice_id = $2`, lineID, invoiceID))
}

func (r *repoPG) GetLineItems(ctx context.Context, invoiceID uuid.UUID) ([]*LineItem, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+liCols+` FROM invoice_line_item WHERE invoice_id = $1 ORDER BY created_at, id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*LineItem
	for rows.Next() {
		li, err := scanLineItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, li)
	}
	return items, rows.Err()
}

func (r *repoPG) VoidLineItem(ctx context.Context, lineID uuid.UUID, reason string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE invoice_line_item SET is_voided = TRUE, void_reason = $2 WHERE id = $1`, lineID, reason)
	return err
}

func (r *repoPG) VoidAllLineItems(ctx context.Context, invoiceID uuid.UUID, reason string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE invoice_line_item SET is_voided = TRUE, void_reason = $2
		 WHERE invoice_id = $1 AND is_voided = FALSE`, invoiceID, reason)
	return err
}

func (r *repoPG) ServiceUIDsByCase(ctx context.Context, caseID uuid.UUID) (map[string]bool, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT li.service_uid
		FROM invoice_line_item li
		JOIN invoice i ON i.id = li.invoice_id
		WHERE i.case_id = $1 AND i.status <> 'voided'
		  AND li.is_voided = FALSE AND li.service_uid IS NOT NULL`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	uids := make(map[string]bool)
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		uids[uid] = true
	}
	return uids, rows.Err()
}
