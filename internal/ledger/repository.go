package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for the ledger.
// Reads and writes join an open transaction when the caller runs inside
// db.WithTx, so settlement rows commit together with the instance update
// that produced them.
type Repository struct {
	pool *pgxpool.Pool
}

func (r *Repository) q(ctx context.Context) db.Querier {
	return db.QuerierFrom(ctx, r.pool)
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateAccount inserts an account.
func (r *Repository) CreateAccount(ctx context.Context, account Account) error {
	_, err := r.q(ctx).Exec(ctx, `INSERT INTO accounts (id, name, kind, created_at, updated_at)
VALUES ($1, $2, $3, NOW(), NOW())`, account.ID, account.Name, string(account.Kind))
	if err != nil {
		return fmt.Errorf("ledger: create account: %w", err)
	}
	return nil
}

// GetAccount loads an account by id.
func (r *Repository) GetAccount(ctx context.Context, id uuid.UUID) (Account, error) {
	var (
		account Account
		kind    string
	)
	err := r.q(ctx).QueryRow(ctx,
		`SELECT id, name, kind, created_at, updated_at FROM accounts WHERE id = $1`, id).
		Scan(&account.ID, &account.Name, &kind, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	account.Kind = AccountKind(kind)
	return account, nil
}

// ListAccounts returns all accounts ordered by name.
func (r *Repository) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.q(ctx).Query(ctx,
		`SELECT id, name, kind, created_at, updated_at FROM accounts ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		var (
			account Account
			kind    string
		)
		if err := rows.Scan(&account.ID, &account.Name, &kind, &account.CreatedAt, &account.UpdatedAt); err != nil {
			return nil, err
		}
		account.Kind = AccountKind(kind)
		out = append(out, account)
	}
	return out, rows.Err()
}

// CreateTransaction inserts a transaction.
func (r *Repository) CreateTransaction(ctx context.Context, txn Transaction) error {
	_, err := r.q(ctx).Exec(ctx, `INSERT INTO transactions
(id, account_id, date, amount, description, category, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())`,
		txn.ID, txn.AccountID, txn.Date, txn.Amount.String(), txn.Description, txn.Category)
	if err != nil {
		return fmt.Errorf("ledger: create transaction: %w", err)
	}
	return nil
}

// GetTransaction loads a transaction by id.
func (r *Repository) GetTransaction(ctx context.Context, id uuid.UUID) (Transaction, error) {
	row := r.q(ctx).QueryRow(ctx, `SELECT id, account_id, date, amount::text, description, category, created_at, updated_at
FROM transactions WHERE id = $1`, id)
	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	return txn, nil
}

// ListTransactions returns transactions newest first.
func (r *Repository) ListTransactions(ctx context.Context, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.q(ctx).Query(ctx, `SELECT id, account_id, date, amount::text, description, category, created_at, updated_at
FROM transactions ORDER BY date DESC, created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, txn)
	}
	return out, rows.Err()
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		txn    Transaction
		amount string
	)
	if err := row.Scan(&txn.ID, &txn.AccountID, &txn.Date, &amount, &txn.Description,
		&txn.Category, &txn.CreatedAt, &txn.UpdatedAt); err != nil {
		return Transaction{}, err
	}
	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return Transaction{}, err
	}
	txn.Amount = dec
	return txn, nil
}
