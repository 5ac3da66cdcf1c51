/**
 * @description
 * This file contains the HTTP handlers for the ledger-service's API
 * endpoints. Handlers parse incoming requests, call the ledger engine, and
 * write the HTTP response. They act as the bridge between the web layer and
 * the business logic layer; amounts cross this boundary as two-decimal
 * strings and are converted to minor units here.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For engine logic, models
 *   and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tellerhq/ledger-service/internal/app"
	"github.com/tellerhq/ledger-service/internal/domain"
	"github.com/tellerhq/ledger-service/internal/store"
)

// LedgerHandlers holds the ledger engine and session settings handlers use.
type LedgerHandlers struct {
	service    *app.Service
	jwtSecret  []byte
	sessionTTL time.Duration
}

// NewLedgerHandlers creates a new instance of LedgerHandlers.
func NewLedgerHandlers(service *app.Service, jwtSecret []byte, sessionTTL time.Duration) *LedgerHandlers {
	return &LedgerHandlers{service: service, jwtSecret: jwtSecret, sessionTTL: sessionTTL}
}

type loginResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type balanceResponse struct {
	AccountType string `json:"account_type"`
	Balance     string `json:"balance"`
}

type changePinResponse struct {
	Changed bool `json:"changed"`
}

type statementResponse struct {
	Entries []string `json:"entries"`
}

// LoginHandler authenticates a user by PIN and mints a session token.
func (h *LedgerHandlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.UserID = strings.ToUpper(strings.TrimSpace(req.UserID))
	if req.UserID == "" || req.PIN == "" {
		h.writeError(w, http.StatusBadRequest, "user_id and pin are required")
		return
	}

	ok, err := h.service.Authenticate(r.Context(), req.UserID, req.PIN)
	if err != nil {
		log.Printf("level=error component=api endpoint=login msg=\"authentication failed\" user_id=%s err=%v", req.UserID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to authenticate")
		return
	}
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Invalid user ID or PIN")
		return
	}

	token, expiresAt, err := IssueSessionToken(h.jwtSecret, req.UserID, h.sessionTTL)
	if err != nil {
		log.Printf("level=error component=api endpoint=login msg=\"token minting failed\" user_id=%s err=%v", req.UserID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to create session")
		return
	}
	h.writeJSON(w, http.StatusOK, loginResponse{Token: token, UserID: req.UserID, ExpiresAt: expiresAt})
}

// ChangePinHandler changes the acting user's PIN.
func (h *LedgerHandlers) ChangePinHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.actingUser(w, r)
	if !ok {
		return
	}
	var req domain.ChangePinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	changed, err := h.service.ChangePin(r.Context(), userID, req.CurrentPIN, req.NewPIN)
	if err != nil {
		log.Printf("level=error component=api endpoint=change_pin msg=\"pin change failed\" user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to change PIN")
		return
	}
	if !changed {
		h.writeJSON(w, http.StatusUnprocessableEntity, changePinResponse{Changed: false})
		return
	}
	h.writeJSON(w, http.StatusOK, changePinResponse{Changed: true})
}

// ListAccountsHandler lists the acting user's accounts and balances.
func (h *LedgerHandlers) ListAccountsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.actingUser(w, r)
	if !ok {
		return
	}
	accounts, err := h.service.ListAccounts(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_accounts msg=\"listing failed\" user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to list accounts")
		return
	}
	out := make([]balanceResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, balanceResponse{AccountType: string(a.Type), Balance: domain.FormatAmount(a.Balance)})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// GetBalanceHandler returns one account's balance.
func (h *LedgerHandlers) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.actingUser(w, r)
	if !ok {
		return
	}
	accountType, ok := h.accountTypeParam(w, r)
	if !ok {
		return
	}
	balance, err := h.service.GetBalance(r.Context(), userID, accountType)
	if err != nil {
		log.Printf("level=error component=api endpoint=get_balance msg=\"read failed\" user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to read balance")
		return
	}
	h.writeJSON(w, http.StatusOK, balanceResponse{AccountType: string(accountType), Balance: domain.FormatAmount(balance)})
}

// DepositHandler credits the acting user's account.
func (h *LedgerHandlers) DepositHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.actingUser(w, r)
	if !ok {
		return
	}
	accountType, ok := h.accountTypeParam(w, r)
	if !ok {
		return
	}
	var req domain.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	amount, ok := h.amountField(w, req.Amount)
	if !ok {
		return
	}

	newBalance, err := h.service.Deposit(r.Context(), userID, accountType, amount, strings.TrimSpace(req.Channel))
	if err != nil {
		h.writeEngineError(w, "deposit", userID, err)
		return
	}
	h.writeJSON(w, http.StatusOK, balanceResponse{AccountType: string(accountType), Balance: domain.FormatAmount(newBalance)})
}

// WithdrawHandler debits the acting user's account.
func (h *LedgerHandlers) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.actingUser(w, r)
	if !ok {
		return
	}
	accountType, ok := h.accountTypeParam(w, r)
	if !ok {
		return
	}
	var req domain.WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	amount, ok := h.amountField(w, req.Amount)
	if !ok {
		return
	}

	newBalance, err := h.service.Withdraw(r.Context(), userID, accountType, amount)
	if err != nil {
		h.writeEngineError(w, "withdraw", userID, err)
		return
	}
	h.writeJSON(w, http.StatusOK, balanceResponse{AccountType: string(accountType), Balance: domain.FormatAmount(newBalance)})
}

// InternalTransferHandler moves money between the acting user's accounts.
func (h *LedgerHandlers) InternalTransferHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.actingUser(w, r)
	if !ok {
		return
	}
	var req domain.InternalTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	sourceType, okSrc := domain.ParseAccountType(req.FromAccount)
	destType, okDst := domain.ParseAccountType(req.ToAccount)
	if !okSrc || !okDst {
		h.writeError(w, http.StatusBadRequest, "Invalid account type")
		return
	}
	amount, ok := h.amountField(w, req.Amount)
	if !ok {
		return
	}

	if err := h.service.TransferInternal(r.Context(), userID, sourceType, destType, amount); err != nil {
		h.writeEngineError(w, "internal_transfer", userID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExternalTransferHandler moves money from the acting user to another user.
func (h *LedgerHandlers) ExternalTransferHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.actingUser(w, r)
	if !ok {
		return
	}
	var req domain.ExternalTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	sourceType, okSrc := domain.ParseAccountType(req.FromAccount)
	destType, okDst := domain.ParseAccountType(req.RecipientAccount)
	if !okSrc || !okDst {
		h.writeError(w, http.StatusBadRequest, "Invalid account type")
		return
	}
	recipientID := strings.ToUpper(strings.TrimSpace(req.RecipientID))
	if recipientID == "" {
		h.writeError(w, http.StatusBadRequest, "recipient_id is required")
		return
	}
	amount, ok := h.amountField(w, req.Amount)
	if !ok {
		return
	}

	if err := h.service.TransferExternal(r.Context(), userID, sourceType, recipientID, destType, amount); err != nil {
		h.writeEngineError(w, "external_transfer", userID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TransactionHistoryHandler returns the full transaction statement.
func (h *LedgerHandlers) TransactionHistoryHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.actingUser(w, r)
	if !ok {
		return
	}
	records, err := h.service.TransactionHistory(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api endpoint=transactions msg=\"history read failed\" user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to read transaction history")
		return
	}
	h.writeJSON(w, http.StatusOK, transactionStatement(records))
}

// MiniStatementHandler returns the most recent transactions.
func (h *LedgerHandlers) MiniStatementHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.actingUser(w, r)
	if !ok {
		return
	}
	records, err := h.service.MiniStatement(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api endpoint=mini_statement msg=\"history read failed\" user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to read mini statement")
		return
	}
	h.writeJSON(w, http.StatusOK, transactionStatement(records))
}

// PinActivityHandler returns the PIN security statement.
func (h *LedgerHandlers) PinActivityHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.actingUser(w, r)
	if !ok {
		return
	}
	records, err := h.service.PinActivityHistory(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api endpoint=pin_activity msg=\"history read failed\" user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to read PIN activity")
		return
	}
	entries := make([]string, 0, len(records))
	for _, rec := range records {
		entries = append(entries, rec.DisplayLine())
	}
	h.writeJSON(w, http.StatusOK, statementResponse{Entries: entries})
}

func transactionStatement(records []domain.TransactionRecord) statementResponse {
	entries := make([]string, 0, len(records))
	for _, rec := range records {
		entries = append(entries, rec.DisplayLine())
	}
	return statementResponse{Entries: entries}
}

func (h *LedgerHandlers) actingUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := GetSessionUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return "", false
	}
	return userID, true
}

func (h *LedgerHandlers) accountTypeParam(w http.ResponseWriter, r *http.Request) (domain.AccountType, bool) {
	accountType, ok := domain.ParseAccountType(chi.URLParam(r, "accountType"))
	if !ok {
		h.writeError(w, http.StatusBadRequest, "Invalid account type")
		return "", false
	}
	return accountType, true
}

func (h *LedgerHandlers) amountField(w http.ResponseWriter, raw string) (int64, bool) {
	amount, err := domain.ParseAmount(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid amount format")
		return 0, false
	}
	if amount <= 0 {
		h.writeError(w, http.StatusBadRequest, "Amount must be positive")
		return 0, false
	}
	return amount, true
}

// writeEngineError maps engine errors to HTTP status codes.
func (h *LedgerHandlers) writeEngineError(w http.ResponseWriter, endpoint, userID string, err error) {
	switch {
	case errors.Is(err, app.ErrInsufficientFunds):
		h.writeError(w, http.StatusPaymentRequired, "Insufficient funds")
	case errors.Is(err, app.ErrSameAccount):
		h.writeError(w, http.StatusBadRequest, "Cannot transfer to the same account")
	case errors.Is(err, app.ErrInvalidAmount):
		h.writeError(w, http.StatusBadRequest, "Amount must be positive")
	case errors.Is(err, app.ErrAmountTooLarge):
		h.writeError(w, http.StatusBadRequest, "Amount too large")
	case errors.Is(err, store.ErrUserNotFound):
		h.writeError(w, http.StatusNotFound, "Recipient not found")
	case errors.Is(err, store.ErrAccountNotFound):
		h.writeError(w, http.StatusNotFound, "Account not found")
	case errors.Is(err, app.ErrLockBusy):
		h.writeError(w, http.StatusConflict, "Account is busy, try again")
	default:
		log.Printf("level=error component=api endpoint=%s msg=\"operation failed\" user_id=%s err=%v", endpoint, userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *LedgerHandlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("level=error component=api msg=\"response encoding failed\" err=%v", err)
	}
}

func (h *LedgerHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
