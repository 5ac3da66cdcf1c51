package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tellerhq/ledger-service/internal/app"
	"github.com/tellerhq/ledger-service/internal/store"
)

var testSecret = []byte("test-session-secret")

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	repo := store.NewMemoryRepository(store.DefaultSeed())
	svc := app.NewService(repo, nil, time.Second)
	handlers := NewLedgerHandlers(svc, testSecret, 15*time.Minute)
	server := httptest.NewServer(NewRouter(handlers, testSecret))
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}

func loginAs(t *testing.T, server *httptest.Server, userID, pin string) string {
	t.Helper()
	resp := doJSON(t, http.MethodPost, server.URL+"/auth/login", "", map[string]string{
		"user_id": userID,
		"pin":     pin,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected login 200, got %d", resp.StatusCode)
	}
	var body struct {
		Token string `json:"token"`
	}
	decodeBody(t, resp, &body)
	if body.Token == "" {
		t.Fatal("expected a session token")
	}
	return body.Token
}

func TestLogin(t *testing.T) {
	server := newTestServer(t)

	token := loginAs(t, server, "USER001", "1234")
	if token == "" {
		t.Fatal("expected token")
	}

	resp := doJSON(t, http.MethodPost, server.URL+"/auth/login", "", map[string]string{
		"user_id": "USER001",
		"pin":     "0000",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong PIN, got %d", resp.StatusCode)
	}
}

func TestAuthenticatedRoutesRejectMissingToken(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/accounts")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
}

func TestGetBalance(t *testing.T) {
	server := newTestServer(t)
	token := loginAs(t, server, "USER001", "1234")

	resp := doJSON(t, http.MethodGet, server.URL+"/accounts/savings/balance", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		AccountType string `json:"account_type"`
		Balance     string `json:"balance"`
	}
	decodeBody(t, resp, &body)
	if body.AccountType != "SAVINGS" || body.Balance != "1000.00" {
		t.Fatalf("unexpected balance response: %+v", body)
	}

	resp = doJSON(t, http.MethodGet, server.URL+"/accounts/brokerage/balance", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown account type, got %d", resp.StatusCode)
	}
}

func TestDepositAndWithdrawFlow(t *testing.T) {
	server := newTestServer(t)
	token := loginAs(t, server, "USER001", "1234")

	resp := doJSON(t, http.MethodPost, server.URL+"/accounts/savings/deposits", token, map[string]string{"amount": "250.00"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Balance string `json:"balance"`
	}
	decodeBody(t, resp, &body)
	if body.Balance != "1250.00" {
		t.Fatalf("expected balance 1250.00, got %q", body.Balance)
	}

	resp = doJSON(t, http.MethodPost, server.URL+"/accounts/savings/withdrawals", token, map[string]string{"amount": "50.00"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &body)
	if body.Balance != "1200.00" {
		t.Fatalf("expected balance 1200.00, got %q", body.Balance)
	}
}

func TestWithdrawInsufficientFundsStatus(t *testing.T) {
	server := newTestServer(t)
	token := loginAs(t, server, "USER001", "1234")

	resp := doJSON(t, http.MethodPost, server.URL+"/accounts/checking/withdrawals", token, map[string]string{"amount": "800.00"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("expected 402 for insufficient funds, got %d", resp.StatusCode)
	}
}

func TestDepositRejectsMalformedAmount(t *testing.T) {
	server := newTestServer(t)
	token := loginAs(t, server, "USER001", "1234")

	for _, amount := range []string{"abc", "1.005", "-20.00", "0"} {
		resp := doJSON(t, http.MethodPost, server.URL+"/accounts/savings/deposits", token, map[string]string{"amount": amount})
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400 for amount %q, got %d", amount, resp.StatusCode)
		}
	}
}

func TestInternalTransfer(t *testing.T) {
	server := newTestServer(t)
	token := loginAs(t, server, "USER001", "1234")

	resp := doJSON(t, http.MethodPost, server.URL+"/transfers/internal", token, map[string]string{
		"from_account": "SAVINGS",
		"to_account":   "CHECKING",
		"amount":       "300.00",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, server.URL+"/transfers/internal", token, map[string]string{
		"from_account": "SAVINGS",
		"to_account":   "SAVINGS",
		"amount":       "10.00",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for same-account transfer, got %d", resp.StatusCode)
	}
}

func TestExternalTransferUnknownRecipient(t *testing.T) {
	server := newTestServer(t)
	token := loginAs(t, server, "USER001", "1234")

	resp := doJSON(t, http.MethodPost, server.URL+"/transfers/external", token, map[string]string{
		"from_account":      "SAVINGS",
		"recipient_id":      "GHOST",
		"recipient_account": "CHECKING",
		"amount":            "10.00",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown recipient, got %d", resp.StatusCode)
	}
}

func TestTransactionHistoryEndpoint(t *testing.T) {
	server := newTestServer(t)
	token := loginAs(t, server, "USER001", "1234")

	resp := doJSON(t, http.MethodPost, server.URL+"/accounts/savings/deposits", token, map[string]string{"amount": "100.00"})
	resp.Body.Close()
	resp = doJSON(t, http.MethodPost, server.URL+"/accounts/savings/withdrawals", token, map[string]string{"amount": "25.00"})
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, server.URL+"/transactions", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Entries []string `json:"entries"`
	}
	decodeBody(t, resp, &body)
	if len(body.Entries) != 2 {
		t.Fatalf("expected 2 statement entries, got %d", len(body.Entries))
	}
	// Most recent first; entries end with "description: amount".
	if want := "Withdrawal from SAVINGS: 25.00"; !strings.HasSuffix(body.Entries[0], want) {
		t.Fatalf("expected first entry to end with %q, got %q", want, body.Entries[0])
	}
	if want := "Deposit to SAVINGS: 100.00"; !strings.HasSuffix(body.Entries[1], want) {
		t.Fatalf("expected second entry to end with %q, got %q", want, body.Entries[1])
	}
}

func TestPinActivityEndpoint(t *testing.T) {
	server := newTestServer(t)
	token := loginAs(t, server, "USER001", "1234")

	resp := doJSON(t, http.MethodGet, server.URL+"/pin-activity", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Entries []string `json:"entries"`
	}
	decodeBody(t, resp, &body)
	if len(body.Entries) != 1 {
		t.Fatalf("expected 1 activity entry from login, got %d", len(body.Entries))
	}
	if want := "Successful PIN authentication"; !strings.HasSuffix(body.Entries[0], want) {
		t.Fatalf("expected entry to end with %q, got %q", want, body.Entries[0])
	}
}

func TestChangePinEndpoint(t *testing.T) {
	server := newTestServer(t)
	token := loginAs(t, server, "USER001", "1234")

	resp := doJSON(t, http.MethodPost, server.URL+"/auth/pin", token, map[string]string{
		"current_pin": "1234",
		"new_pin":     "5678",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Changed bool `json:"changed"`
	}
	decodeBody(t, resp, &body)
	if !body.Changed {
		t.Fatal("expected PIN change to succeed")
	}

	// The old PIN no longer logs in; the new one does.
	resp = doJSON(t, http.MethodPost, server.URL+"/auth/login", "", map[string]string{
		"user_id": "USER001",
		"pin":     "1234",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for retired PIN, got %d", resp.StatusCode)
	}
	loginAs(t, server, "USER001", "5678")

	resp = doJSON(t, http.MethodPost, server.URL+"/auth/pin", token, map[string]string{
		"current_pin": "5678",
		"new_pin":     "12ab",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for malformed new PIN, got %d", resp.StatusCode)
	}
}
