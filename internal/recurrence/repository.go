package recurrence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/platform/db"
)

// Repository defines rule and instance data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetRule(ctx context.Context, id uuid.UUID) (Rule, error)
	ListRules(ctx context.Context) ([]Rule, error)

	GetInstance(ctx context.Context, id uuid.UUID) (Instance, error)
	ListInstancesByRule(ctx context.Context, ruleID uuid.UUID) ([]Instance, error)
	ListInstancesByPeriod(ctx context.Context, period string) ([]Instance, error)
	ListDueInstances(ctx context.Context) ([]Instance, error)
	UpdateInstance(ctx context.Context, inst Instance) error
}

// TxRepository defines the mutations that run inside one transaction.
// Regeneration and rule deletion depend on this boundary: their
// delete/insert sequences must not be observable half-applied.
type TxRepository interface {
	CreateRule(ctx context.Context, rule Rule) error
	UpdateRule(ctx context.Context, rule Rule) error
	DeleteRule(ctx context.Context, id uuid.UUID) error

	CreateInstances(ctx context.Context, instances []Instance) error
	UpdateInstance(ctx context.Context, inst Instance) error
	DeleteInstance(ctx context.Context, id uuid.UUID) error
	DeleteInstancesByRule(ctx context.Context, ruleID uuid.UUID) error
	ListInstancesByRule(ctx context.Context, ruleID uuid.UUID) ([]Instance, error)
}

var _ Repository = (*pgRepository)(nil)
var _ TxRepository = (*pgTxRepository)(nil)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

type pgTxRepository struct {
	tx pgx.Tx
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{tx: tx})
	})
}

const ruleColumns = `id, name, frequency, due_day, expected_amount::text, start_date, end_date, notes, created_at, updated_at`

func (r *pgRepository) GetRule(ctx context.Context, id uuid.UUID) (Rule, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+ruleColumns+` FROM recurrence_rules WHERE id = $1`, id)
	rule, err := scanRule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Rule{}, ErrRuleNotFound
		}
		return Rule{}, err
	}
	return rule, nil
}

func (r *pgRepository) ListRules(ctx context.Context) ([]Rule, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+ruleColumns+` FROM recurrence_rules ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

const instanceColumns = `id, rule_id, period, due_date, expected_amount::text, actual_amount::text, status, paid_date, transaction_id, created_at, updated_at`

func (r *pgRepository) GetInstance(ctx context.Context, id uuid.UUID) (Instance, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+instanceColumns+` FROM recurring_instances WHERE id = $1`, id)
	inst, err := scanInstance(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Instance{}, ErrInstanceNotFound
		}
		return Instance{}, err
	}
	return inst, nil
}

func (r *pgRepository) ListInstancesByRule(ctx context.Context, ruleID uuid.UUID) ([]Instance, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+instanceColumns+` FROM recurring_instances WHERE rule_id = $1 ORDER BY due_date`, ruleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInstances(rows)
}

func (r *pgRepository) ListInstancesByPeriod(ctx context.Context, period string) ([]Instance, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+instanceColumns+` FROM recurring_instances WHERE period = $1 ORDER BY due_date, id`, period)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInstances(rows)
}

func (r *pgRepository) ListDueInstances(ctx context.Context) ([]Instance, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+instanceColumns+` FROM recurring_instances WHERE status = 'DUE' ORDER BY due_date, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInstances(rows)
}

func (r *pgRepository) UpdateInstance(ctx context.Context, inst Instance) error {
	tag, err := r.pool.Exec(ctx, `UPDATE recurring_instances
SET actual_amount = $2, status = $3, paid_date = $4, transaction_id = $5, updated_at = NOW()
WHERE id = $1`,
		inst.ID, decimalPtrToText(inst.ActualAmount), string(inst.Status), inst.PaidDate, inst.TransactionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInstanceNotFound
	}
	return nil
}

// --- transactional mutations ---

func (t *pgTxRepository) CreateRule(ctx context.Context, rule Rule) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO recurrence_rules
(id, name, frequency, due_day, expected_amount, start_date, end_date, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())`,
		rule.ID, rule.Name, string(rule.Frequency), rule.DueDay, rule.ExpectedAmount.String(),
		rule.StartDate, rule.EndDate, rule.Notes)
	return err
}

func (t *pgTxRepository) UpdateRule(ctx context.Context, rule Rule) error {
	tag, err := t.tx.Exec(ctx, `UPDATE recurrence_rules
SET name = $2, due_day = $3, expected_amount = $4, start_date = $5, end_date = $6, notes = $7, updated_at = NOW()
WHERE id = $1`,
		rule.ID, rule.Name, rule.DueDay, rule.ExpectedAmount.String(), rule.StartDate, rule.EndDate, rule.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (t *pgTxRepository) DeleteRule(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM recurrence_rules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (t *pgTxRepository) CreateInstances(ctx context.Context, instances []Instance) error {
	for _, inst := range instances {
		_, err := t.tx.Exec(ctx, `INSERT INTO recurring_instances
(id, rule_id, period, due_date, expected_amount, actual_amount, status, paid_date, transaction_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())`,
			inst.ID, inst.RuleID, inst.Period, inst.DueDate, inst.ExpectedAmount.String(),
			decimalPtrToText(inst.ActualAmount), string(inst.Status), inst.PaidDate, inst.TransactionID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTxRepository) UpdateInstance(ctx context.Context, inst Instance) error {
	tag, err := t.tx.Exec(ctx, `UPDATE recurring_instances
SET actual_amount = $2, status = $3, paid_date = $4, transaction_id = $5, updated_at = NOW()
WHERE id = $1`,
		inst.ID, decimalPtrToText(inst.ActualAmount), string(inst.Status), inst.PaidDate, inst.TransactionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInstanceNotFound
	}
	return nil
}

func (t *pgTxRepository) DeleteInstance(ctx context.Context, id uuid.UUID) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM recurring_instances WHERE id = $1`, id)
	return err
}

func (t *pgTxRepository) DeleteInstancesByRule(ctx context.Context, ruleID uuid.UUID) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM recurring_instances WHERE rule_id = $1`, ruleID)
	return err
}

func (t *pgTxRepository) ListInstancesByRule(ctx context.Context, ruleID uuid.UUID) ([]Instance, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+instanceColumns+` FROM recurring_instances WHERE rule_id = $1 ORDER BY due_date FOR UPDATE`, ruleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInstances(rows)
}

// --- scan helpers ---

func scanRule(row pgx.Row) (Rule, error) {
	var (
		rule      Rule
		frequency string
		amount    string
		endDate   pgtype.Date
	)
	if err := row.Scan(&rule.ID, &rule.Name, &frequency, &rule.DueDay, &amount,
		&rule.StartDate, &endDate, &rule.Notes, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
		return Rule{}, err
	}
	rule.Frequency = Frequency(frequency)
	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return Rule{}, err
	}
	rule.ExpectedAmount = dec
	if endDate.Valid {
		d := endDate.Time
		rule.EndDate = &d
	}
	return rule, nil
}

func scanInstance(row pgx.Row) (Instance, error) {
	var (
		inst     Instance
		expected string
		actual   *string
		status   string
		paidDate pgtype.Date
	)
	if err := row.Scan(&inst.ID, &inst.RuleID, &inst.Period, &inst.DueDate, &expected, &actual,
		&status, &paidDate, &inst.TransactionID, &inst.CreatedAt, &inst.UpdatedAt); err != nil {
		return Instance{}, err
	}
	dec, err := decimal.NewFromString(expected)
	if err != nil {
		return Instance{}, err
	}
	inst.ExpectedAmount = dec
	if actual != nil {
		a, err := decimal.NewFromString(*actual)
		if err != nil {
			return Instance{}, err
		}
		inst.ActualAmount = &a
	}
	inst.Status = InstanceStatus(status)
	if paidDate.Valid {
		d := paidDate.Time
		inst.PaidDate = &d
	}
	return inst, nil
}

func collectInstances(rows pgx.Rows) ([]Instance, error) {
	var out []Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func decimalPtrToText(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
