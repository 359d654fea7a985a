package cases

import (
	"context"
	"errors"
	"strconv"

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

const caseCols = `id, uhid, patient_name, billing_context, status, created_at, updated_at`

func scanCase(row pgx.Row) (*Case, error) {
	var cs Case
	err := row.Scan(&cs.ID, &cs.UHID, &cs.PatientName, &cs.BillingContext, &cs.Status, &cs.CreatedAt, &cs.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("case not found")
	}
	return &cs, err
}

func (r *repoPG) Create(ctx context.Context, cs *Case) error {
	cs.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO billing_case (id, uhid, patient_name, billing_context, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		cs.ID, cs.UHID, cs.PatientName, cs.BillingContext, cs.Status).
		Scan(&cs.CreatedAt, &cs.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Case, error) {
	return scanCase(r.conn(ctx).QueryRow(ctx, `SELECT `+caseCols+` FROM billing_case WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, cs *Case) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE billing_case SET patient_name=$2, status=$3, updated_at=NOW() WHERE id = $1`,
		cs.ID, cs.PatientName, cs.Status)
	return err
}

func (r *repoPG) List(ctx context.Context, uhid string, limit, offset int) ([]*Case, int, error) {
	where, args := ``, []interface{}{}
	if uhid != "" {
		where = ` WHERE uhid = $1`
		args = append(args, uhid)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM billing_case`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := `SELECT ` + caseCols + ` FROM billing_case` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Case
	for rows.Next() {
		cs, err := scanCase(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, cs)
	}
	return items, total, rows.Err()
}
