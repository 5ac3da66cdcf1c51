/**
 * @description
 * PostgreSQL implementation of the Repository contracts. Holds all SQL for
 * the users, accounts, transactions and pin_activity tables.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 *
 * @notes
 * - pgx.ErrNoRows is mapped to the store's sentinel errors so the engine
 *   never sees driver-level errors for missing rows.
 * - Log tables carry a BIGSERIAL seq column so that most-recent-first
 *   ordering has a stable append-order tiebreak for same-timestamp rows.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tellerhq/ledger-service/internal/domain"
)

// PostgresRepository is a concrete implementation of Repository for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the ledger tables if they do not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id TEXT PRIMARY KEY,
			pin_hash CHAR(64) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS accounts (
			user_id TEXT NOT NULL REFERENCES users(user_id),
			account_type TEXT NOT NULL,
			balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
			PRIMARY KEY (user_id, account_type)
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id UUID PRIMARY KEY,
			seq BIGSERIAL,
			user_id TEXT NOT NULL REFERENCES users(user_id),
			description TEXT NOT NULL,
			amount BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS pin_activity (
			id UUID PRIMARY KEY,
			seq BIGSERIAL,
			user_id TEXT NOT NULL REFERENCES users(user_id),
			description TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, stmt := range statements {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// SeedDemoData provisions the demo users and accounts if they are absent.
// Existing rows are left untouched so a restart never resets balances.
func (r *PostgresRepository) SeedDemoData(ctx context.Context, seed []SeedUser) error {
	for _, u := range seed {
		_, err := r.db.Exec(ctx,
			`INSERT INTO users (user_id, pin_hash) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING`,
			u.ID, domain.HashPIN(u.PIN))
		if err != nil {
			return err
		}
		for accountType, balance := range u.Balances {
			_, err := r.db.Exec(ctx,
				`INSERT INTO accounts (user_id, account_type, balance) VALUES ($1, $2, $3)
				 ON CONFLICT (user_id, account_type) DO NOTHING`,
				u.ID, accountType, balance)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *PostgresRepository) Authenticate(ctx context.Context, userID, candidateHash string) (bool, error) {
	var stored string
	err := r.db.QueryRow(ctx, `SELECT pin_hash FROM users WHERE user_id = $1`, userID).Scan(&stored)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return stored == candidateHash, nil
}

func (r *PostgresRepository) UpdatePin(ctx context.Context, userID, newHash string) error {
	result, err := r.db.Exec(ctx, `UPDATE users SET pin_hash = $1 WHERE user_id = $2`, newHash, userID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PostgresRepository) Exists(ctx context.Context, userID string) (bool, error) {
	var one int
	err := r.db.QueryRow(ctx, `SELECT 1 FROM users WHERE user_id = $1`, userID).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *PostgresRepository) GetBalance(ctx context.Context, userID string, accountType domain.AccountType) (int64, error) {
	var balance int64
	err := r.db.QueryRow(ctx,
		`SELECT balance FROM accounts WHERE user_id = $1 AND account_type = $2`,
		userID, accountType).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}

func (r *PostgresRepository) ListAccounts(ctx context.Context, userID string) (map[domain.AccountType]int64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT account_type, balance FROM accounts WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make(map[domain.AccountType]int64)
	for rows.Next() {
		var accountType domain.AccountType
		var balance int64
		if err := rows.Scan(&accountType, &balance); err != nil {
			return nil, err
		}
		accounts[accountType] = balance
	}
	return accounts, rows.Err()
}

func (r *PostgresRepository) SetBalance(ctx context.Context, userID string, accountType domain.AccountType, balance int64) error {
	result, err := r.db.Exec(ctx,
		`UPDATE accounts SET balance = $1 WHERE user_id = $2 AND account_type = $3`,
		balance, userID, accountType)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *PostgresRepository) AppendTransaction(ctx context.Context, userID, description string, amount int64) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO transactions (id, user_id, description, amount) VALUES ($1, $2, $3, $4)`,
		uuid.New(), userID, description, amount)
	return mapForeignKeyToNotFound(err)
}

func (r *PostgresRepository) AppendPinActivity(ctx context.Context, userID, description string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO pin_activity (id, user_id, description) VALUES ($1, $2, $3)`,
		uuid.New(), userID, description)
	return mapForeignKeyToNotFound(err)
}

func (r *PostgresRepository) TransactionHistory(ctx context.Context, userID string) ([]domain.TransactionRecord, error) {
	return r.queryTransactions(ctx,
		`SELECT id, user_id, description, amount, created_at
		 FROM transactions WHERE user_id = $1
		 ORDER BY created_at DESC, seq DESC`, userID)
}

func (r *PostgresRepository) RecentTransactions(ctx context.Context, userID string, n int) ([]domain.TransactionRecord, error) {
	return r.queryTransactions(ctx,
		`SELECT id, user_id, description, amount, created_at
		 FROM transactions WHERE user_id = $1
		 ORDER BY created_at DESC, seq DESC LIMIT $2`, userID, n)
}

func (r *PostgresRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]domain.TransactionRecord, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.TransactionRecord
	for rows.Next() {
		var rec domain.TransactionRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Description, &rec.Amount, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *PostgresRepository) PinActivityHistory(ctx context.Context, userID string) ([]domain.PinActivityRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, description, created_at
		 FROM pin_activity WHERE user_id = $1
		 ORDER BY created_at DESC, seq DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.PinActivityRecord
	for rows.Next() {
		var rec domain.PinActivityRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Description, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// mapForeignKeyToNotFound translates a users FK violation on log inserts
// into ErrUserNotFound; appending for an unprovisioned user is an
// integration error, not a storage fault.
func mapForeignKeyToNotFound(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return ErrUserNotFound
	}
	return err
}
