/**
 * @description
 * This file defines the storage contracts consumed by the ledger engine:
 * credentials, account balances, and the two append-only activity logs.
 * Defining interfaces here decouples the engine from the concrete backend
 * (PostgreSQL in production, in-memory for local runs and tests) and keeps
 * both implementations interchangeable.
 *
 * @notes
 * - Stores hold state only. Logging rejected attempts is the engine's job,
 *   which is why CredentialStore.Authenticate has no side effects.
 * - The engine is the sole writer and is responsible for validating amounts
 *   before calling SetBalance; stores never enforce business rules.
 */

package store

import (
	"context"
	"errors"

	"github.com/tellerhq/ledger-service/internal/domain"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrAccountNotFound = errors.New("account not found")
)

// CredentialStore holds userID -> PIN hash and validates credentials.
type CredentialStore interface {
	// Authenticate reports whether userID exists and its stored hash equals
	// candidateHash. An unknown userID is false, not an error.
	Authenticate(ctx context.Context, userID, candidateHash string) (bool, error)
	// UpdatePin replaces the stored hash for an existing user. Hash format
	// validation is the engine's responsibility.
	UpdatePin(ctx context.Context, userID, newHash string) error
	Exists(ctx context.Context, userID string) (bool, error)
}

// AccountStore holds (userID, accountType) -> balance in minor units.
type AccountStore interface {
	// GetBalance returns 0 for an account that was never provisioned.
	GetBalance(ctx context.Context, userID string, accountType domain.AccountType) (int64, error)
	ListAccounts(ctx context.Context, userID string) (map[domain.AccountType]int64, error)
	// SetBalance unconditionally overwrites the balance. Returns
	// ErrAccountNotFound if the pair was never provisioned.
	SetBalance(ctx context.Context, userID string, accountType domain.AccountType, balance int64) error
}

// ActivityLog holds the per-user append-only transaction and PIN logs.
type ActivityLog interface {
	AppendTransaction(ctx context.Context, userID, description string, amount int64) error
	AppendPinActivity(ctx context.Context, userID, description string) error
	// TransactionHistory returns all records, most recent first.
	TransactionHistory(ctx context.Context, userID string) ([]domain.TransactionRecord, error)
	// RecentTransactions returns the n most recent records, most recent
	// first, fewer if the history is shorter.
	RecentTransactions(ctx context.Context, userID string, n int) ([]domain.TransactionRecord, error)
	// PinActivityHistory returns all PIN records, most recent first.
	PinActivityHistory(ctx context.Context, userID string) ([]domain.PinActivityRecord, error)
}

// Repository bundles the three contracts a backend must provide.
type Repository interface {
	CredentialStore
	AccountStore
	ActivityLog
}
