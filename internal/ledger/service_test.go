package ledger

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	accounts     map[uuid.UUID]Account
	transactions map[uuid.UUID]Transaction
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		accounts:     make(map[uuid.UUID]Account),
		transactions: make(map[uuid.UUID]Transaction),
	}
}

func (s *memoryStore) CreateAccount(ctx context.Context, account Account) error {
	s.accounts[account.ID] = account
	return nil
}

func (s *memoryStore) GetAccount(ctx context.Context, id uuid.UUID) (Account, error) {
	account, ok := s.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (s *memoryStore) ListAccounts(ctx context.Context) ([]Account, error) {
	var out []Account
	for _, account := range s.accounts {
		out = append(out, account)
	}
	return out, nil
}

func (s *memoryStore) CreateTransaction(ctx context.Context, txn Transaction) error {
	s.transactions[txn.ID] = txn
	return nil
}

func (s *memoryStore) GetTransaction(ctx context.Context, id uuid.UUID) (Transaction, error) {
	txn, ok := s.transactions[id]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	return txn, nil
}

func (s *memoryStore) ListTransactions(ctx context.Context, limit int) ([]Transaction, error) {
	var out []Transaction
	for _, txn := range s.transactions {
		out = append(out, txn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func TestCreateAccount(t *testing.T) {
	svc := NewService(newMemoryStore())
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, CreateAccountInput{Name: "Daily", Kind: AccountChecking})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, account.ID)

	accounts, err := svc.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)

	_, err = svc.CreateAccount(ctx, CreateAccountInput{Name: "", Kind: AccountChecking})
	require.ErrorIs(t, err, ErrInvalid)

	_, err = svc.CreateAccount(ctx, CreateAccountInput{Name: "Crypto", Kind: "WALLET"})
	require.ErrorIs(t, err, ErrInvalid)
}

func TestCreateTransactionChecksAccount(t *testing.T) {
	svc := NewService(newMemoryStore())
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, CreateAccountInput{Name: "Daily", Kind: AccountChecking})
	require.NoError(t, err)

	txn, err := svc.CreateTransaction(ctx, CreateTransactionInput{
		AccountID:   &account.ID,
		Date:        time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.RequireFromString("-42.50"),
		Description: "Groceries",
		Category:    "food",
	})
	require.NoError(t, err)
	require.Equal(t, account.ID, *txn.AccountID)

	missing := uuid.New()
	_, err = svc.CreateTransaction(ctx, CreateTransactionInput{
		AccountID:   &missing,
		Date:        time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.RequireFromString("-1"),
		Description: "Orphan",
	})
	require.ErrorIs(t, err, ErrAccountNotFound)

	_, err = svc.CreateTransaction(ctx, CreateTransactionInput{
		Date:        time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.Zero,
		Description: "Nothing",
	})
	require.ErrorIs(t, err, ErrInvalid)
}

func TestRecordSettlementNegatesAmount(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store)
	ctx := context.Background()

	paidAt := time.Date(2024, time.February, 2, 0, 0, 0, 0, time.UTC)
	id, err := svc.RecordSettlement(ctx, "Streaming", decimal.RequireFromString("15.99"), paidAt)
	require.NoError(t, err)

	txn, err := svc.GetTransaction(ctx, id)
	require.NoError(t, err)
	require.True(t, txn.Amount.Equal(decimal.RequireFromString("-15.99")), "settlements are outflows")
	require.Equal(t, "recurring", txn.Category)
	require.Equal(t, "Streaming", txn.Description)
	require.Equal(t, paidAt, txn.Date)
	require.Nil(t, txn.AccountID)
}

func TestListTransactionsOrdersNewestFirst(t *testing.T) {
	svc := NewService(newMemoryStore())
	ctx := context.Background()

	for day := 1; day <= 3; day++ {
		_, err := svc.CreateTransaction(ctx, CreateTransactionInput{
			Date:        time.Date(2024, time.April, day, 0, 0, 0, 0, time.UTC),
			Amount:      decimal.RequireFromString("-10"),
			Description: "Coffee",
		})
		require.NoError(t, err)
	}

	txns, err := svc.ListTransactions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	require.Equal(t, 3, txns[0].Date.Day())
	require.Equal(t, 2, txns[1].Date.Day())
}
