/**
 * @description
 * In-memory implementation of the Repository contracts. Used for local runs
 * without a database and as the backend for engine tests. A single RWMutex
 * guards all maps; logical atomicity across stores is provided by the
 * engine's per-account locks, not here.
 */

package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tellerhq/ledger-service/internal/domain"
)

// MemoryRepository is a map-backed Repository.
type MemoryRepository struct {
	mu           sync.RWMutex
	users        map[string]string
	accounts     map[string]map[domain.AccountType]int64
	transactions map[string][]domain.TransactionRecord
	pinActivity  map[string][]domain.PinActivityRecord
}

// NewMemoryRepository creates an empty in-memory repository and provisions
// the given seed users.
func NewMemoryRepository(seed []SeedUser) *MemoryRepository {
	r := &MemoryRepository{
		users:        make(map[string]string),
		accounts:     make(map[string]map[domain.AccountType]int64),
		transactions: make(map[string][]domain.TransactionRecord),
		pinActivity:  make(map[string][]domain.PinActivityRecord),
	}
	for _, u := range seed {
		r.Provision(u.ID, domain.HashPIN(u.PIN), u.Balances)
	}
	return r
}

// Provision registers a user with a credential hash and initial balances.
func (r *MemoryRepository) Provision(userID, pinHash string, balances map[domain.AccountType]int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[userID] = pinHash
	accts := make(map[domain.AccountType]int64, len(balances))
	for t, b := range balances {
		accts[t] = b
	}
	r.accounts[userID] = accts
}

func (r *MemoryRepository) Authenticate(ctx context.Context, userID, candidateHash string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hash, ok := r.users[userID]
	return ok && hash == candidateHash, nil
}

func (r *MemoryRepository) UpdatePin(ctx context.Context, userID, newHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[userID]; !ok {
		return ErrUserNotFound
	}
	r.users[userID] = newHash
	return nil
}

func (r *MemoryRepository) Exists(ctx context.Context, userID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[userID]
	return ok, nil
}

func (r *MemoryRepository) GetBalance(ctx context.Context, userID string, accountType domain.AccountType) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.accounts[userID][accountType], nil
}

func (r *MemoryRepository) ListAccounts(ctx context.Context, userID string) (map[domain.AccountType]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[domain.AccountType]int64, len(r.accounts[userID]))
	for t, b := range r.accounts[userID] {
		out[t] = b
	}
	return out, nil
}

func (r *MemoryRepository) SetBalance(ctx context.Context, userID string, accountType domain.AccountType, balance int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	accts, ok := r.accounts[userID]
	if !ok {
		return ErrAccountNotFound
	}
	if _, ok := accts[accountType]; !ok {
		return ErrAccountNotFound
	}
	accts[accountType] = balance
	return nil
}

func (r *MemoryRepository) AppendTransaction(ctx context.Context, userID, description string, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[userID]; !ok {
		return ErrUserNotFound
	}
	r.transactions[userID] = append(r.transactions[userID], domain.TransactionRecord{
		ID:          uuid.New(),
		UserID:      userID,
		Description: description,
		Amount:      amount,
		CreatedAt:   time.Now(),
	})
	return nil
}

func (r *MemoryRepository) AppendPinActivity(ctx context.Context, userID, description string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[userID]; !ok {
		return ErrUserNotFound
	}
	r.pinActivity[userID] = append(r.pinActivity[userID], domain.PinActivityRecord{
		ID:          uuid.New(),
		UserID:      userID,
		Description: description,
		CreatedAt:   time.Now(),
	})
	return nil
}

func (r *MemoryRepository) TransactionHistory(ctx context.Context, userID string) ([]domain.TransactionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return reverseCopy(r.transactions[userID]), nil
}

func (r *MemoryRepository) RecentTransactions(ctx context.Context, userID string, n int) ([]domain.TransactionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	recent := reverseCopy(r.transactions[userID])
	if n >= 0 && len(recent) > n {
		recent = recent[:n]
	}
	return recent, nil
}

func (r *MemoryRepository) PinActivityHistory(ctx context.Context, userID string) ([]domain.PinActivityRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return reverseCopy(r.pinActivity[userID]), nil
}

// reverseCopy returns a most-recent-first copy of an append-ordered log.
func reverseCopy[T any](in []T) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}
