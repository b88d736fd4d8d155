// Package ledger tracks accounts and realized transactions. It is thin
// plumbing around storage; the recurrence engine links settled
// instances to transactions created here.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalid wraps validation failures.
	ErrInvalid = errors.New("ledger: invalid input")
	// ErrAccountNotFound indicates the referenced account does not exist.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrTransactionNotFound indicates the referenced transaction does not exist.
	ErrTransactionNotFound = errors.New("ledger: transaction not found")
)

// AccountKind enumerates supported account categories.
type AccountKind string

const (
	AccountChecking   AccountKind = "CHECKING"
	AccountSavings    AccountKind = "SAVINGS"
	AccountInvestment AccountKind = "INVESTMENT"
	AccountCard       AccountKind = "CARD"
)

// Valid reports whether the kind is known.
func (k AccountKind) Valid() bool {
	switch k {
	case AccountChecking, AccountSavings, AccountInvestment, AccountCard:
		return true
	}
	return false
}

// Account is a container transactions belong to.
type Account struct {
	ID        uuid.UUID
	Name      string
	Kind      AccountKind
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transaction is one realized ledger entry. Amount is negative for
// outflows, positive for inflows.
type Transaction struct {
	ID          uuid.UUID
	AccountID   *uuid.UUID
	Date        time.Time
	Amount      decimal.Decimal
	Description string
	Category    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateAccountInput captures account creation parameters.
type CreateAccountInput struct {
	Name string
	Kind AccountKind
}

// Validate checks account parameters.
func (in CreateAccountInput) Validate() error {
	if in.Name == "" {
		return fmt.Errorf("%w: name required", ErrInvalid)
	}
	if !in.Kind.Valid() {
		return fmt.Errorf("%w: unknown account kind %q", ErrInvalid, in.Kind)
	}
	return nil
}

// CreateTransactionInput captures transaction creation parameters.
type CreateTransactionInput struct {
	AccountID   *uuid.UUID
	Date        time.Time
	Amount      decimal.Decimal
	Description string
	Category    string
}

// Validate checks transaction parameters.
func (in CreateTransactionInput) Validate() error {
	if in.Date.IsZero() {
		return fmt.Errorf("%w: date required", ErrInvalid)
	}
	if in.Amount.IsZero() {
		return fmt.Errorf("%w: amount must be non-zero", ErrInvalid)
	}
	if in.Description == "" {
		return fmt.Errorf("%w: description required", ErrInvalid)
	}
	return nil
}
