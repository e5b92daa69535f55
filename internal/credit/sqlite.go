package credit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

const schema = `
CREATE TABLE IF NOT EXISTS balances (
    user_id    TEXT PRIMARY KEY,
    balance    INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS entries (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id    TEXT NOT NULL,
    delta      INTEGER NOT NULL,
    reason     TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS entries_user ON entries(user_id, id);
`

// SQLiteLedger implements Ledger on a local SQLite database in WAL mode.
type SQLiteLedger struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the ledger database at dbPath.
func OpenSQLite(ctx context.Context, dbPath string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("credit: open database: %w", err)
	}

	// SQLite has a single writer; one pooled connection keeps the PRAGMAs
	// below in effect for every statement.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("credit: enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("credit: set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("credit: create schema: %w", err)
	}
	return &SQLiteLedger{db: db}, nil
}

func (l *SQLiteLedger) Balance(ctx context.Context, userID string) (int, error) {
	var bal int
	err := l.db.QueryRowContext(ctx, "SELECT balance FROM balances WHERE user_id = ?", userID).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("credit: balance %q: %w", userID, err)
	}
	return bal, nil
}

func (l *SQLiteLedger) Deduct(ctx context.Context, userID string, amount int) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("credit: begin deduct: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	res, err := tx.ExecContext(ctx, `
		UPDATE balances SET balance = balance - ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND balance >= ?`, amount, userID, amount)
	if err != nil {
		return fmt.Errorf("credit: deduct %q: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("credit: deduct %q: %w", userID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: user %q cannot cover %d", ErrInsufficientCredit, userID, amount)
	}
	if err := insertEntry(ctx, tx, userID, -amount, ReasonTurn); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("credit: commit deduct: %w", err)
	}
	return nil
}

func (l *SQLiteLedger) Grant(ctx context.Context, userID string, amount int) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("credit: begin grant: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	const q = `
		INSERT INTO balances (user_id, balance, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			balance    = balance + excluded.balance,
			updated_at = CURRENT_TIMESTAMP`
	if _, err := tx.ExecContext(ctx, q, userID, amount); err != nil {
		return fmt.Errorf("credit: grant %q: %w", userID, err)
	}
	if err := insertEntry(ctx, tx, userID, amount, ReasonGrant); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("credit: commit grant: %w", err)
	}
	return nil
}

// History returns the newest entries for userID first, at most limit.
func (l *SQLiteLedger) History(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT user_id, delta, reason, created_at FROM entries
		WHERE user_id = ? ORDER BY id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("credit: history %q: %w", userID, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.UserID, &e.Delta, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("credit: scan entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func insertEntry(ctx context.Context, tx *sql.Tx, userID string, delta int, reason string) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO entries (user_id, delta, reason, created_at) VALUES (?, ?, ?, ?)",
		userID, delta, reason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("credit: record entry: %w", err)
	}
	return nil
}

// Close releases the database.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}
