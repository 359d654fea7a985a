package insurance

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

// -- insurance case --

const icCols = `id, case_id, payer_id, payer_name, tpa_id, policy_no, created_at, updated_at`

func scanInsurance(row pgx.Row) (*InsuranceCase, error) {
	var ic InsuranceCase
	err := row.Scan(&ic.ID, &ic.CaseID, &ic.PayerID, &ic.PayerName, &ic.TPAID, &ic.PolicyNo, &ic.CreatedAt, &ic.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotConfigured("insurance is not configured for this case")
	}
	return &ic, err
}

func (r *repoPG) UpsertInsurance(ctx context.Context, ic *InsuranceCase) error {
	if ic.ID == uuid.Nil {
		ic.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO insurance_case (id, case_id, payer_id, payer_name, tpa_id, policy_no)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (case_id) DO UPDATE
		SET payer_id = EXCLUDED.payer_id, payer_name = EXCLUDED.payer_name,
			tpa_id = EXCLUDED.tpa_id, policy_no = EXCLUDED.policy_no, updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		ic.ID, ic.CaseID, ic.PayerID, ic.PayerName, ic.TPAID, ic.PolicyNo).
		Scan(&ic.ID, &ic.CreatedAt, &ic.UpdatedAt)
}

func (r *repoPG) GetInsuranceByCase(ctx context.Context, caseID uuid.UUID) (*InsuranceCase, error) {
	return scanInsurance(r.conn(ctx).QueryRow(ctx,
		`SELECT `+icCols+` FROM insurance_case WHERE case_id = $1`, caseID))
}

// -- coverage lines --

func (r *repoPG) ReplaceCoverageLines(ctx context.Context, insuranceID uuid.UUID, lines []*CoverageLine) error {
	if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM coverage_line WHERE insurance_id = $1`, insuranceID); err != nil {
		return err
	}
	for _, l := range lines {
		l.ID = uuid.New()
		l.InsuranceID = insuranceID
		if _, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO coverage_line (id, insurance_id, category, coverage_pct)
			VALUES ($1, $2, $3, $4)`,
			l.ID, l.InsuranceID, l.Category, l.CoveragePct); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) GetCoverageLines(ctx context.Context, insuranceID uuid.UUID) ([]*CoverageLine, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, insurance_id, category, coverage_pct
		FROM coverage_line WHERE insurance_id = $1 ORDER BY category`, insuranceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []*CoverageLine
	for rows.Next() {
		var l CoverageLine
		if err := rows.Scan(&l.ID, &l.InsuranceID, &l.Category, &l.CoveragePct); err != nil {
			return nil, err
		}
		lines = append(lines, &l)
	}
	return lines, rows.Err()
}

// -- splits --

func (r *repoPG) ReplaceSplit(ctx context.Context, sp *InvoiceSplit) error {
	sp.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO invoice_split (id, case_id, invoice_id, coverage_pct, payer_share, patient_share)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (invoice_id) DO UPDATE
		SET coverage_pct = EXCLUDED.coverage_pct, payer_share = EXCLUDED.payer_share,
			patient_share = EXCLUDED.patient_share, created_at = NOW()
		RETURNING id, created_at`,
		sp.ID, sp.CaseID, sp.InvoiceID, sp.CoveragePct, sp.PayerShare, sp.PatientShare).
		Scan(&sp.ID, &sp.CreatedAt)
}

func (r *repoPG) GetSplitsByCase(ctx context.Context, caseID uuid.UUID) ([]*InvoiceSplit, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, case_id, invoice_id, coverage_pct, payer_share, patient_share, created_at
		FROM invoice_split WHERE case_id = $1 ORDER BY created_at, id`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var splits []*InvoiceSplit
	for rows.Next() {
		var sp InvoiceSplit
		if err := rows.Scan(&sp.ID, &sp.CaseID, &sp.InvoiceID, &sp.CoveragePct, &sp.PayerShare, &sp.PatientShare, &sp.CreatedAt); err != nil {
			return nil, err
		}
		splits = append(splits, &sp)
	}
	return splits, rows.Err()
}

// -- preauth --

const preauthCols = `id, case_id, status, requested_amount, approved_amount, remarks, created_at, updated_at`

func scanPreauth(row pgx.Row) (*Preauth, error) {
	var p Preauth
	err := row.Scan(&p.ID, &p.CaseID, &p.Status, &p.RequestedAmount, &p.ApprovedAmount, &p.Remarks, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("preauth not found")
	}
	return &p, err
}

func (r *repoPG) CreatePreauth(ctx context.Context, p *Preauth) error {
	p.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO preauth (id, case_id, status, requested_amount, remarks)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		p.ID, p.CaseID, p.Status, p.RequestedAmount, p.Remarks).
		Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *repoPG) GetPreauthForUpdate(ctx context.Context, id uuid.UUID) (*Preauth, error) {
	return scanPreauth(r.conn(ctx).QueryRow(ctx,
		`SELECT `+preauthCols+` FROM preauth WHERE id = $1 FOR UPDATE`, id))
}

func (r *repoPG) UpdatePreauth(ctx context.Context, p *Preauth) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE preauth SET status = $2, approved_amount = $3, remarks = $4, updated_at = NOW()
		WHERE id = $1`,
		p.ID, p.Status, p.ApprovedAmount, p.Remarks)
	return err
}

func (r *repoPG) ListPreauthsByCase(ctx context.Context, caseID uuid.UUID) ([]*Preauth, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+preauthCols+` FROM preauth WHERE case_id = $1 ORDER BY created_at, id`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Preauth
	for rows.Next() {
		p, err := scanPreauth(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *repoPG) AddPreauthEvent(ctx context.Context, e *Event) error {
	e.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO preauth_event (id, subject_id, from_status, to_status, note, amount)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		e.ID, e.SubjectID, e.FromStatus, e.ToStatus, e.Note, e.Amount).
		Scan(&e.CreatedAt)
}

func (r *repoPG) GetPreauthEvents(ctx context.Context, preauthID uuid.UUID) ([]*Event, error) {
	return r.events(ctx, `preauth_event`, preauthID)
}

// -- claim --

const claimCols = `id, case_id, status, invoice_ids, remarks, created_at, updated_at`

func scanClaim(row pgx.Row) (*Claim, error) {
	var cl Claim
	err := row.Scan(&cl.ID, &cl.CaseID, &cl.Status, &cl.InvoiceIDs, &cl.Remarks, &cl.CreatedAt, &cl.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("claim not found")
	}
	return &cl, err
}

func (r *repoPG) CreateClaim(ctx context.Context, cl *Claim) error {
	cl.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO claim (id, case_id, status, invoice_ids, remarks)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		cl.ID, cl.CaseID, cl.Status, cl.InvoiceIDs, cl.Remarks).
		Scan(&cl.CreatedAt, &cl.UpdatedAt)
}

func (r *repoPG) GetClaimForUpdate(ctx context.Context, id uuid.UUID) (*Claim, error) {
	return scanClaim(r.conn(ctx).QueryRow(ctx,
		`SELECT `+claimCols+` FROM claim WHERE id = $1 FOR UPDATE`, id))
}

func (r *repoPG) UpdateClaim(ctx context.Context, cl *Claim) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE claim SET status = $2, remarks = $3, updated_at = NOW() WHERE id = $1`,
		cl.ID, cl.Status, cl.Remarks)
	return err
}

func (r *repoPG) ListClaimsByCase(ctx context.Context, caseID uuid.UUID) ([]*Claim, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+claimCols+` FROM claim WHERE case_id = $1 ORDER BY created_at, id`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Claim
	for rows.Next() {
		cl, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, cl)
	}
	return items, rows.Err()
}

func (r *repoPG) AddClaimEvent(ctx context.Context, e *Event) error {
	e.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO claim_event (id, subject_id, from_status, to_status, note, amount)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		e.ID, e.SubjectID, e.FromStatus, e.ToStatus, e.Note, e.Amount).
		Scan(&e.CreatedAt)
}

func (r *repoPG) GetClaimEvents(ctx context.Context, claimID uuid.UUID) ([]*Event, error) {
	return r.events(ctx, `claim_event`, claimID)
}

func (r *repoPG) events(ctx context.Context, table string, subjectID uuid.UUID) ([]*Event, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, subject_id, from_status, to_status, note, amount, created_at
		FROM `+table+` WHERE subject_id = $1 ORDER BY created_at, id`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []*Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.SubjectID, &e.FromStatus, &e.ToStatus, &e.Note, &e.Amount, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}
