package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/shopbooks/shopbooks/internal/shared"
)

// Store is the embedded durable home of the offline queue: a SQLite table
// with secondary indexes on status and shop_id, opened in WAL mode so a
// reader never blocks the single writer.
type Store struct {
	db *sql.DB
}

// OpenStore opens (and migrates) the queue database at path. Use ":memory:"
// for tests.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path))
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS pending_transactions (
	id TEXT PRIMARY KEY,
	payload TEXT NOT NULL,
	queued_at TIMESTAMP NOT NULL,
	user_id TEXT NOT NULL,
	shop_id TEXT NOT NULL,
	retry_count INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error_message TEXT
);
CREATE INDEX IF NOT EXISTS idx_pending_status ON pending_transactions(status);
CREATE INDEX IF NOT EXISTS idx_pending_shop ON pending_transactions(shop_id);`)
	return err
}

// Put inserts or replaces a record.
func (s *Store) Put(ctx context.Context, record *PendingTransactionRecord) error {
	payload, err := json.Marshal(record.Transaction)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO pending_transactions
	(id, payload, queued_at, user_id, shop_id, retry_count, status, error_message)
VALUES (?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
	payload=excluded.payload, retry_count=excluded.retry_count,
	status=excluded.status, error_message=excluded.error_message`,
		record.ID, string(payload), record.Timestamp, record.UserID, record.ShopID,
		record.RetryCount, string(record.Status), record.ErrorMessage)
	return err
}

// Get returns one record by id.
func (s *Store) Get(ctx context.Context, id string) (*PendingTransactionRecord, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id=?`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	return record, err
}

// Delete removes a record; deleting a missing id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_transactions WHERE id=?`, id)
	return err
}

// List returns records ordered by enqueue time, optionally scoped to a shop.
func (s *Store) List(ctx context.Context, shopID string) ([]PendingTransactionRecord, error) {
	query := selectColumns
	var args []any
	if shopID != "" {
		query += ` WHERE shop_id=?`
		args = append(args, shopID)
	}
	query += ` ORDER BY queued_at ASC, id ASC`
	return s.queryRecords(ctx, query, args...)
}

// ListByStatus returns records in the given state, oldest first.
func (s *Store) ListByStatus(ctx context.Context, status Status, shopID string) ([]PendingTransactionRecord, error) {
	query := selectColumns + ` WHERE status=?`
	args := []any{string(status)}
	if shopID != "" {
		query += ` AND shop_id=?`
		args = append(args, shopID)
	}
	query += ` ORDER BY queued_at ASC, id ASC`
	return s.queryRecords(ctx, query, args...)
}

// CountByStatus counts records in the given state.
func (s *Store) CountByStatus(ctx context.Context, status Status, shopID string) (int, error) {
	query := `SELECT COUNT(*) FROM pending_transactions WHERE status=?`
	args := []any{string(status)}
	if shopID != "" {
		query += ` AND shop_id=?`
		args = append(args, shopID)
	}
	var count int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

const selectColumns = `SELECT id, payload, queued_at, user_id, shop_id, retry_count, status, error_message FROM pending_transactions`

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]PendingTransactionRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PendingTransactionRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *record)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*PendingTransactionRecord, error) {
	var record PendingTransactionRecord
	var payload string
	var status string
	var errMsg sql.NullString
	var queuedAt time.Time
	if err := row.Scan(&record.ID, &payload, &queuedAt, &record.UserID, &record.ShopID,
		&record.RetryCount, &status, &errMsg); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(payload), &record.Transaction); err != nil {
		return nil, err
	}
	record.Timestamp = queuedAt
	record.Status = Status(status)
	record.ErrorMessage = errMsg.String
	return &record, nil
}
