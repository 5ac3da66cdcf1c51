/**
 * @description
 * This file contains the core business logic for the ledger-service. The
 * `Service` struct is the ledger engine: it orchestrates the credential
 * store, the account store and the activity log to implement authentication,
 * deposits, withdrawals, transfers and PIN changes, and it is the sole
 * writer to all three.
 *
 * Key behaviors:
 * - Every mutating operation reads current state under the account locks,
 *   commits the new state, and appends a log entry reflecting the outcome.
 * - Rejected withdrawals and transfers mutate nothing and append nothing.
 * - Rejected PIN attempts are still recorded in the PIN activity log.
 * - Recorded outcomes are additionally published to RabbitMQ when a
 *   producer is configured; publishing never fails an operation.
 *
 * @dependencies
 * - github.com/tellerhq/ledger-service/internal/domain, internal/store
 * - github.com/tellerhq/ledger-service/pkg/rabbitmq
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/tellerhq/ledger-service/internal/domain"
	"github.com/tellerhq/ledger-service/internal/store"
	"github.com/tellerhq/ledger-service/pkg/rabbitmq"
)

// MiniStatementSize is the number of entries in a mini statement.
const MiniStatementSize = 5

var (
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrAmountTooLarge    = errors.New("amount would overflow the account balance")
	ErrSameAccount       = errors.New("cannot transfer to the same account")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrLockBusy          = errors.New("account is busy, try again")
)

// PinRateLimiter limits PIN authentication attempts per subject. A nil
// limiter disables limiting.
type PinRateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service is the ledger engine. It is stateless across calls; the acting
// user is an explicit parameter on every operation.
type Service struct {
	repo          store.Repository
	eventProducer rabbitmq.Publisher
	locks         *lockTable

	pinLimiter    PinRateLimiter
	pinAuthPerMin int
}

// NewService creates a new ledger engine instance.
func NewService(repo store.Repository, producer rabbitmq.Publisher, lockWait time.Duration) *Service {
	return &Service{
		repo:          repo,
		eventProducer: producer,
		locks:         newLockTable(lockWait),
	}
}

// SetPinRateLimiter enables attempt limiting on PIN authentication.
func (s *Service) SetPinRateLimiter(limiter PinRateLimiter, attemptsPerMinute int) {
	s.pinLimiter = limiter
	s.pinAuthPerMin = attemptsPerMinute
}

func accountKey(userID string, accountType domain.AccountType) string {
	return userID + "/" + string(accountType)
}

// Authenticate hashes the PIN, checks it against the credential store and
// records the outcome in the user's PIN activity log. An unknown user fails
// authentication without a log entry, since the log rejects unprovisioned
// users.
func (s *Service) Authenticate(ctx context.Context, userID, pin string) (bool, error) {
	known, err := s.repo.Exists(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	if !known {
		log.Printf("level=warn component=engine op=authenticate outcome=reject reason=unknown_user user_id=%s", userID)
		return false, nil
	}

	if s.pinLimiter != nil && s.pinAuthPerMin > 0 {
		count, retryAfter, limitErr := s.pinLimiter.ConsumeRateLimit(ctx, "pin_auth", userID, s.pinAuthPerMin, time.Minute)
		if limitErr != nil {
			log.Printf("level=warn component=engine op=authenticate msg=\"pin rate limiter unavailable; allowing attempt\" user_id=%s err=%v", userID, limitErr)
		} else if count > s.pinAuthPerMin {
			log.Printf("level=warn component=engine op=authenticate outcome=reject reason=rate_limited user_id=%s retry_after_s=%d", userID, retryAfter)
			if err := s.recordPinActivity(ctx, userID, "Failed PIN authentication attempt"); err != nil {
				return false, err
			}
			return false, nil
		}
	}

	ok, err := s.repo.Authenticate(ctx, userID, domain.HashPIN(pin))
	if err != nil {
		return false, fmt.Errorf("failed to authenticate: %w", err)
	}

	description := "Successful PIN authentication"
	if !ok {
		description = "Failed PIN authentication attempt"
	}
	if err := s.recordPinActivity(ctx, userID, description); err != nil {
		return false, err
	}
	return ok, nil
}

// ChangePin verifies the current PIN, validates the new PIN's format and
// replaces the stored hash. The format check runs strictly after credential
// verification so a wrong current PIN is never reported as a format error.
// Every outcome is recorded in the PIN activity log.
func (s *Service) ChangePin(ctx context.Context, userID, currentPin, newPin string) (bool, error) {
	ok, err := s.repo.Authenticate(ctx, userID, domain.HashPIN(currentPin))
	if err != nil {
		return false, fmt.Errorf("failed to verify current PIN: %w", err)
	}
	if !ok {
		if err := s.recordPinActivity(ctx, userID, "Failed PIN change - incorrect current PIN"); err != nil {
			return false, err
		}
		return false, nil
	}

	if !domain.ValidPINFormat(newPin) {
		if err := s.recordPinActivity(ctx, userID, "Failed PIN change - invalid format"); err != nil {
			return false, err
		}
		return false, nil
	}

	if err := s.repo.UpdatePin(ctx, userID, domain.HashPIN(newPin)); err != nil {
		return false, fmt.Errorf("failed to update PIN: %w", err)
	}
	if err := s.recordPinActivity(ctx, userID, "Successful PIN change"); err != nil {
		return false, err
	}
	return true, nil
}

// Deposit credits an account and records the transaction. Channel optionally
// names the deposit channel ("Cash", "Check") and only affects the recorded
// description. Returns the new balance.
func (s *Service) Deposit(ctx context.Context, userID string, accountType domain.AccountType, amount int64, channel string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	release, err := s.locks.acquire(ctx, accountKey(userID, accountType))
	if err != nil {
		return 0, err
	}
	defer release()

	balance, err := s.repo.GetBalance(ctx, userID, accountType)
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	if amount > math.MaxInt64-balance {
		return 0, ErrAmountTooLarge
	}
	newBalance := balance + amount
	if err := s.repo.SetBalance(ctx, userID, accountType, newBalance); err != nil {
		return 0, fmt.Errorf("failed to commit deposit: %w", err)
	}

	description := fmt.Sprintf("Deposit to %s", accountType)
	if channel != "" {
		description = fmt.Sprintf("%s Deposit to %s", channel, accountType)
	}
	if err := s.recordTransaction(ctx, userID, description, amount); err != nil {
		s.compensateBalance(ctx, userID, accountType, balance)
		return 0, err
	}
	return newBalance, nil
}

// Withdraw debits an account after validating funds and records the
// transaction. An insufficient balance rejects the withdrawal with no
// mutation and no log entry. Returns the new balance.
func (s *Service) Withdraw(ctx context.Context, userID string, accountType domain.AccountType, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	release, err := s.locks.acquire(ctx, accountKey(userID, accountType))
	if err != nil {
		return 0, err
	}
	defer release()

	balance, err := s.repo.GetBalance(ctx, userID, accountType)
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	if balance < amount {
		return 0, ErrInsufficientFunds
	}
	newBalance := balance - amount
	if err := s.repo.SetBalance(ctx, userID, accountType, newBalance); err != nil {
		return 0, fmt.Errorf("failed to commit withdrawal: %w", err)
	}

	description := fmt.Sprintf("Withdrawal from %s", accountType)
	if err := s.recordTransaction(ctx, userID, description, amount); err != nil {
		s.compensateBalance(ctx, userID, accountType, balance)
		return 0, err
	}
	return newBalance, nil
}

// TransferInternal moves money between two accounts of the same user and
// records a single transaction on that user's log.
func (s *Service) TransferInternal(ctx context.Context, userID string, sourceType, destType domain.AccountType, amount int64) error {
	if sourceType == destType {
		return ErrSameAccount
	}
	description := fmt.Sprintf("Transfer from %s to %s", sourceType, destType)
	return s.transfer(ctx, userID, sourceType, userID, destType, amount, description)
}

// TransferExternal moves money from the acting user to another user's named
// account. Per the ledger's source-attribution rule, only the source user's
// log receives a transaction record.
func (s *Service) TransferExternal(ctx context.Context, sourceUserID string, sourceType domain.AccountType, destUserID string, destType domain.AccountType, amount int64) error {
	known, err := s.repo.Exists(ctx, destUserID)
	if err != nil {
		return fmt.Errorf("failed to check recipient existence: %w", err)
	}
	if !known {
		return store.ErrUserNotFound
	}
	description := fmt.Sprintf("Transfer to %s's %s", destUserID, destType)
	return s.transfer(ctx, sourceUserID, sourceType, destUserID, destType, amount, description)
}

// transfer debits the source, credits the destination and appends one record
// to the source user's log. Both balances are read before either mutation so
// the credit never uses a post-debit read.
func (s *Service) transfer(ctx context.Context, sourceUserID string, sourceType domain.AccountType, destUserID string, destType domain.AccountType, amount int64, description string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	release, err := s.locks.acquire(ctx,
		accountKey(sourceUserID, sourceType),
		accountKey(destUserID, destType),
	)
	if err != nil {
		return err
	}
	defer release()

	sourceBalance, err := s.repo.GetBalance(ctx, sourceUserID, sourceType)
	if err != nil {
		return fmt.Errorf("failed to read source balance: %w", err)
	}
	if sourceBalance < amount {
		return ErrInsufficientFunds
	}
	destBalance, err := s.repo.GetBalance(ctx, destUserID, destType)
	if err != nil {
		return fmt.Errorf("failed to read destination balance: %w", err)
	}
	if amount > math.MaxInt64-destBalance {
		return ErrAmountTooLarge
	}

	if err := s.repo.SetBalance(ctx, sourceUserID, sourceType, sourceBalance-amount); err != nil {
		return fmt.Errorf("failed to debit source: %w", err)
	}
	if err := s.repo.SetBalance(ctx, destUserID, destType, destBalance+amount); err != nil {
		s.compensateBalance(ctx, sourceUserID, sourceType, sourceBalance)
		return fmt.Errorf("failed to credit destination: %w", err)
	}

	if err := s.recordTransaction(ctx, sourceUserID, description, amount); err != nil {
		s.compensateBalance(ctx, destUserID, destType, destBalance)
		s.compensateBalance(ctx, sourceUserID, sourceType, sourceBalance)
		return err
	}
	return nil
}

// GetBalance returns an account's current balance; 0 for an account that
// was never provisioned.
func (s *Service) GetBalance(ctx context.Context, userID string, accountType domain.AccountType) (int64, error) {
	return s.repo.GetBalance(ctx, userID, accountType)
}

// ListAccounts returns the user's accounts sorted by type name so that
// display order is deterministic.
func (s *Service) ListAccounts(ctx context.Context, userID string) ([]domain.AccountBalance, error) {
	accounts, err := s.repo.ListAccounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.AccountBalance, 0, len(accounts))
	for accountType, balance := range accounts {
		out = append(out, domain.AccountBalance{Type: accountType, Balance: balance})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}

// TransactionHistory returns the user's full transaction log, most recent first.
func (s *Service) TransactionHistory(ctx context.Context, userID string) ([]domain.TransactionRecord, error) {
	return s.repo.TransactionHistory(ctx, userID)
}

// MiniStatement returns the user's most recent transactions, most recent
// first, capped at MiniStatementSize.
func (s *Service) MiniStatement(ctx context.Context, userID string) ([]domain.TransactionRecord, error) {
	return s.repo.RecentTransactions(ctx, userID, MiniStatementSize)
}

// PinActivityHistory returns the user's PIN security log, most recent first.
func (s *Service) PinActivityHistory(ctx context.Context, userID string) ([]domain.PinActivityRecord, error) {
	return s.repo.PinActivityHistory(ctx, userID)
}

func (s *Service) recordTransaction(ctx context.Context, userID, description string, amount int64) error {
	if err := s.repo.AppendTransaction(ctx, userID, description, amount); err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}
	if s.eventProducer != nil {
		event := rabbitmq.TransactionEvent{
			UserID:      userID,
			Description: description,
			Amount:      amount,
			Timestamp:   time.Now(),
		}
		if err := s.eventProducer.PublishTransactionEvent(ctx, event); err != nil {
			log.Printf("level=warn component=engine msg=\"transaction event publish failed\" user_id=%s err=%v", userID, err)
		}
	}
	return nil
}

func (s *Service) recordPinActivity(ctx context.Context, userID, description string) error {
	if err := s.repo.AppendPinActivity(ctx, userID, description); err != nil {
		return fmt.Errorf("failed to record PIN activity: %w", err)
	}
	if s.eventProducer != nil {
		event := rabbitmq.PinActivityEvent{
			UserID:      userID,
			Description: description,
			Timestamp:   time.Now(),
		}
		if err := s.eventProducer.PublishPinActivityEvent(ctx, event); err != nil {
			log.Printf("level=warn component=engine msg=\"pin activity event publish failed\" user_id=%s err=%v", userID, err)
		}
	}
	return nil
}

// compensateBalance restores a previously read balance after a later step of
// the same operation failed, keeping the no-partial-commit rule.
func (s *Service) compensateBalance(ctx context.Context, userID string, accountType domain.AccountType, balance int64) {
	if err := s.repo.SetBalance(ctx, userID, accountType, balance); err != nil {
		log.Printf("level=error component=engine msg=\"CRITICAL: failed to restore balance after partial operation\" user_id=%s account_type=%s err=%v", userID, accountType, err)
	}
}
