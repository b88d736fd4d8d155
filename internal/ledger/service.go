package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store abstracts persistence so tests can run against memory doubles.
type Store interface {
	CreateAccount(ctx context.Context, account Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	CreateTransaction(ctx context.Context, txn Transaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (Transaction, error)
	ListTransactions(ctx context.Context, limit int) ([]Transaction, error)
}

// Service exposes ledger operations.
type Service struct {
	store Store
}

// NewService constructs the ledger service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// CreateAccount validates and persists an account.
func (s *Service) CreateAccount(ctx context.Context, input CreateAccountInput) (Account, error) {
	if err := input.Validate(); err != nil {
		return Account{}, err
	}
	account := Account{ID: uuid.New(), Name: input.Name, Kind: input.Kind}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return Account{}, err
	}
	return account, nil
}

// ListAccounts returns all accounts.
func (s *Service) ListAccounts(ctx context.Context) ([]Account, error) {
	return s.store.ListAccounts(ctx)
}

// CreateTransaction validates and records a transaction. When an
// account is referenced it must exist.
func (s *Service) CreateTransaction(ctx context.Context, input CreateTransactionInput) (Transaction, error) {
	if err := input.Validate(); err != nil {
		return Transaction{}, err
	}
	if input.AccountID != nil {
		if _, err := s.store.GetAccount(ctx, *input.AccountID); err != nil {
			return Transaction{}, err
		}
	}
	txn := Transaction{
		ID:          uuid.New(),
		AccountID:   input.AccountID,
		Date:        input.Date,
		Amount:      input.Amount,
		Description: input.Description,
		Category:    input.Category,
	}
	if err := s.store.CreateTransaction(ctx, txn); err != nil {
		return Transaction{}, err
	}
	return txn, nil
}

// GetTransaction loads one transaction.
func (s *Service) GetTransaction(ctx context.Context, id uuid.UUID) (Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

// ListTransactions returns recent transactions.
func (s *Service) ListTransactions(ctx context.Context, limit int) ([]Transaction, error) {
	return s.store.ListTransactions(ctx, limit)
}

// RecordSettlement realizes a settled recurring instance as an outflow
// transaction. Satisfies the recurrence engine's SettlementLedger hook.
func (s *Service) RecordSettlement(ctx context.Context, description string, amount decimal.Decimal, paidAt time.Time) (uuid.UUID, error) {
	txn, err := s.CreateTransaction(ctx, CreateTransactionInput{
		Date:        paidAt,
		Amount:      amount.Neg(),
		Description: description,
		Category:    "recurring",
	})
	if err != nil {
		return uuid.Nil, err
	}
	return txn.ID, nil
}
