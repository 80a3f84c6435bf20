// Package sqlite disponibiliza o ledger de transações e o store de benefícios em SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/JeanGrijp/settlement-guard/internal/core/domain"
	"github.com/JeanGrijp/settlement-guard/internal/core/ports"
)

// Store é dono das tabelas de transações e benefícios.
type Store struct {
	db *sql.DB
}

var (
	_ ports.TransactionRepository = (*Store)(nil)
	_ ports.EntitlementService    = (*Entitlements)(nil)
)

// Open abre (ou cria) o banco em dsn e aplica o schema.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("ledger dsn is required")
	}
	if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dsn+dsnOptions(dsn))
	if err != nil {
		return nil, err
	}
	// One writer keeps conditional updates serialized.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func dsnOptions(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return sep + "_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS transactions (
			order_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			plan_id TEXT NOT NULL,
			amount INTEGER NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('created', 'processing', 'paid', 'failed')),
			payment_id TEXT,
			signature TEXT,
			claimed_at INTEGER,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS entitlements (
			user_id TEXT PRIMARY KEY,
			plan_id TEXT NOT NULL,
			expires_at INTEGER,
			credits INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS entitlement_activations (
			order_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			plan_id TEXT NOT NULL,
			activated_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status);
		CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Create(ctx context.Context, tx domain.Transaction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (order_id, user_id, plan_id, amount, currency, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, tx.OrderID, tx.UserID, tx.PlanID, tx.Amount, tx.Currency, string(tx.Status), tx.CreatedAt.UnixMilli(), tx.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", tx.OrderID, err)
	}
	return nil
}

const selectTransaction = `
	SELECT order_id, user_id, plan_id, amount, currency, status, payment_id, signature, claimed_at, created_at, updated_at
	FROM transactions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (domain.Transaction, error) {
	var (
		tx                   domain.Transaction
		status               string
		paymentID, signature sql.NullString
		claimedAt            sql.NullInt64
		createdAt, updatedAt int64
	)
	err := row.Scan(&tx.OrderID, &tx.UserID, &tx.PlanID, &tx.Amount, &tx.Currency, &status, &paymentID, &signature, &claimedAt, &createdAt, &updatedAt)
	if err != nil {
		return domain.Transaction{}, err
	}
	tx.Status = domain.TransactionStatus(status)
	tx.PaymentID = paymentID.String
	tx.Signature = signature.String
	if claimedAt.Valid {
		at := time.UnixMilli(claimedAt.Int64).UTC()
		tx.ClaimedAt = &at
	}
	tx.CreatedAt = time.UnixMilli(createdAt).UTC()
	tx.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return tx, nil
}

func (s *Store) GetByOrderID(ctx context.Context, orderID string) (domain.Transaction, error) {
	tx, err := scanTransaction(s.db.QueryRowContext(ctx, selectTransaction+` WHERE order_id = ?`, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Transaction{}, domain.ErrTransactionNotFound
		}
		return domain.Transaction{}, fmt.Errorf("load transaction %s: %w", orderID, err)
	}
	return tx, nil
}

// ClaimProcessing é um único UPDATE compare-and-swap sobre status.
func (s *Store) ClaimProcessing(ctx context.Context, orderID, userID string, now time.Time, lease time.Duration) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = 'processing', claimed_at = ?, updated_at = ?
		WHERE order_id = ? AND user_id = ?
		  AND (status = 'created' OR (status = 'processing' AND claimed_at IS NOT NULL AND claimed_at <= ?))
	`, now.UnixMilli(), now.UnixMilli(), orderID, userID, now.Add(-lease).UnixMilli())
	if err != nil {
		return false, fmt.Errorf("claim transaction %s: %w", orderID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) MarkPaid(ctx context.Context, orderID, paymentID, signature string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = 'paid', payment_id = ?, signature = ?, updated_at = ?
		WHERE order_id = ? AND status = 'processing'
	`, paymentID, signature, now.UnixMilli(), orderID)
	if err != nil {
		return fmt.Errorf("mark transaction %s paid: %w", orderID, err)
	}
	return expectOneRow(res, orderID, domain.StatusPaid)
}

// MarkFailed nunca altera uma transação paga.
func (s *Store) MarkFailed(ctx context.Context, orderID string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = 'failed', updated_at = ?
		WHERE order_id = ? AND status IN ('created', 'processing')
	`, now.UnixMilli(), orderID)
	if err != nil {
		return fmt.Errorf("mark transaction %s failed: %w", orderID, err)
	}
	return expectOneRow(res, orderID, domain.StatusFailed)
}

func expectOneRow(res sql.Result, orderID string, target domain.TransactionStatus) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("transaction %s cannot move to %s", orderID, target)
	}
	return nil
}

func (s *Store) ListByStatus(ctx context.Context, status domain.TransactionStatus, limit int) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, selectTransaction+` WHERE status = ? ORDER BY created_at DESC LIMIT ?`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}
