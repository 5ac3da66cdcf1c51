/**
 * @description
 * This file defines the core domain models for the ledger-service: users,
 * typed accounts, and the two append-only activity record kinds (financial
 * transactions and PIN security events).
 *
 * @notes
 * - Amounts are stored as `int64` in the smallest currency unit (cents),
 *   which avoids floating-point inaccuracies with financial data.
 * - Activity records are immutable once appended; ordering is append order,
 *   which equals timestamp order with append-order tiebreak.
 */

package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AccountType distinguishes a user's sub-accounts.
type AccountType string

const (
	AccountSavings  AccountType = "SAVINGS"
	AccountChecking AccountType = "CHECKING"
)

// recordTimeLayout is the display layout for activity record timestamps.
const recordTimeLayout = "2006-01-02 15:04:05"

// ParseAccountType normalizes and validates an account type string.
func ParseAccountType(s string) (AccountType, bool) {
	switch AccountType(strings.ToUpper(strings.TrimSpace(s))) {
	case AccountSavings:
		return AccountSavings, true
	case AccountChecking:
		return AccountChecking, true
	}
	return "", false
}

// User holds the credential state for a provisioned user. The raw PIN is
// never stored; PINHash is the lowercase hex SHA-256 digest of the PIN.
type User struct {
	ID      string `json:"id"`
	PINHash string `json:"-"`
}

// TransactionRecord is one entry in a user's financial activity log.
type TransactionRecord struct {
	ID          uuid.UUID `json:"id"`
	UserID      string    `json:"user_id"`
	Description string    `json:"description"`
	Amount      int64     `json:"amount"` // in cents
	CreatedAt   time.Time `json:"created_at"`
}

// DisplayLine renders the record as a single statement line.
func (r TransactionRecord) DisplayLine() string {
	return fmt.Sprintf("%s - %s: %s", r.CreatedAt.Format(recordTimeLayout), r.Description, FormatAmount(r.Amount))
}

// PinActivityRecord is one entry in a user's PIN security log.
type PinActivityRecord struct {
	ID          uuid.UUID `json:"id"`
	UserID      string    `json:"user_id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// DisplayLine renders the record as a single statement line.
func (r PinActivityRecord) DisplayLine() string {
	return fmt.Sprintf("%s - %s", r.CreatedAt.Format(recordTimeLayout), r.Description)
}

// AccountBalance pairs an account type with its current balance for listing.
type AccountBalance struct {
	Type    AccountType `json:"account_type"`
	Balance int64       `json:"balance"` // in cents
}

// LoginRequest is the DTO for PIN authentication requests.
type LoginRequest struct {
	UserID string `json:"user_id"`
	PIN    string `json:"pin"`
}

// ChangePinRequest is the DTO for PIN change requests.
type ChangePinRequest struct {
	CurrentPIN string `json:"current_pin"`
	NewPIN     string `json:"new_pin"`
}

// DepositRequest is the DTO for deposit requests. Amount is a two-decimal
// string (e.g. "200.00"); Channel optionally names the deposit channel
// ("Cash", "Check") and only affects the recorded description.
type DepositRequest struct {
	Amount  string `json:"amount"`
	Channel string `json:"channel,omitempty"`
}

// WithdrawRequest is the DTO for withdrawal requests.
type WithdrawRequest struct {
	Amount string `json:"amount"`
}

// InternalTransferRequest moves money between two accounts of the acting user.
type InternalTransferRequest struct {
	FromAccount string `json:"from_account"`
	ToAccount   string `json:"to_account"`
	Amount      string `json:"amount"`
}

// ExternalTransferRequest moves money from the acting user to another user.
type ExternalTransferRequest struct {
	FromAccount      string `json:"from_account"`
	RecipientID      string `json:"recipient_id"`
	RecipientAccount string `json:"recipient_account"`
	Amount           string `json:"amount"`
}
