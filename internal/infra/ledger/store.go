// Package ledger persists the queue ledger in SQLite.
//
// The ledger is a thin durable record of operator intent: which tracks were
// staged, in what order, and which of them were already handed to the
// engine. Everything else about queue state is owned by the engine and
// reconciled at read time.
package ledger

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"

	"aircast/internal/domain/queue"
)

const schema = `
CREATE TABLE IF NOT EXISTS staged_queue (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    name        TEXT NOT NULL,
    folder      TEXT NOT NULL,
    path        TEXT NOT NULL,
    position    INTEGER NOT NULL,
    rid         TEXT,
    status      TEXT NOT NULL,
    created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_staged_queue_position ON staged_queue(position);
CREATE INDEX IF NOT EXISTS idx_staged_queue_status ON staged_queue(status);
`

// Store manages queue ledger persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the ledger database.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrap(err, "ensure ledger directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite db")
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, errors.Wrapf(execErr, "apply pragma %q", pragma)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "apply schema")
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Insert persists a new entry and returns it with its assigned identifier.
func (s *Store) Insert(ctx context.Context, e queue.Entry) (*queue.Entry, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO staged_queue (name, folder, path, position, rid, status, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Name,
		e.Folder,
		e.Path,
		e.Position,
		nullableRID(e.RID),
		string(e.Status),
		e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, errors.Wrap(err, "insert entry")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "last insert id")
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches an entry by identifier. A missing entry returns nil.
func (s *Store) GetByID(ctx context.Context, id int64) (*queue.Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM staged_queue WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get entry")
	}
	return e, nil
}

// List returns all entries ordered by position ascending, the same order
// used for feeding.
func (s *Store) List(ctx context.Context) ([]*queue.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM staged_queue ORDER BY position ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "list entries")
	}
	defer rows.Close()

	var entries []*queue.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// NextStaged returns the staged entry with the lowest position, or nil when
// nothing is waiting.
func (s *Store) NextStaged(ctx context.Context) (*queue.Entry, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+entryColumns+` FROM staged_queue WHERE status = ? ORDER BY position ASC LIMIT 1`,
		string(queue.StatusStaged),
	)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "next staged entry")
	}
	return e, nil
}

// MarkPushed transitions an entry to pushed and records the request
// identifier the engine assigned to it.
func (s *Store) MarkPushed(ctx context.Context, id int64, rid queue.RID) error {
	if rid.Empty() {
		return errors.New("rid is required to mark an entry pushed")
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE staged_queue SET rid = ?, status = ? WHERE id = ?`,
		string(rid),
		string(queue.StatusPushed),
		id,
	)
	if err != nil {
		return errors.Wrap(err, "mark pushed")
	}
	return nil
}

// Remove deletes an entry by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM staged_queue WHERE id = ?`, id)
	if err != nil {
		return false, errors.Wrap(err, "delete entry")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return affected > 0, nil
}

// Clear removes all entries from the ledger.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM staged_queue`)
	if err != nil {
		return 0, errors.Wrap(err, "clear ledger")
	}
	return res.RowsAffected()
}

// PositionChange assigns a new ordering key to an entry.
type PositionChange struct {
	ID       int64 `json:"id"`
	Position int   `json:"position"`
}

// Reorder applies a set of position changes in a single transaction.
func (s *Store) Reorder(ctx context.Context, changes []PositionChange) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin reorder")
	}
	defer func() { _ = tx.Rollback() }()

	for _, ch := range changes {
		if _, err := tx.ExecContext(ctx, `UPDATE staged_queue SET position = ? WHERE id = ?`, ch.Position, ch.ID); err != nil {
			return errors.Wrapf(err, "reorder entry %d", ch.ID)
		}
	}
	return errors.Wrap(tx.Commit(), "commit reorder")
}

// MinPosition returns the lowest position in the ledger, or 0 when empty.
func (s *Store) MinPosition(ctx context.Context) (int, error) {
	return s.boundPosition(ctx, `SELECT MIN(position) FROM staged_queue`)
}

// MaxPosition returns the highest position in the ledger, or 0 when empty.
func (s *Store) MaxPosition(ctx context.Context) (int, error) {
	return s.boundPosition(ctx, `SELECT MAX(position) FROM staged_queue`)
}

func (s *Store) boundPosition(ctx context.Context, query string) (int, error) {
	var pos sql.NullInt64
	if err := s.db.QueryRowContext(ctx, query).Scan(&pos); err != nil {
		return 0, errors.Wrap(err, "position bound")
	}
	if !pos.Valid {
		return 0, nil
	}
	return int(pos.Int64), nil
}

const entryColumns = "id, name, folder, path, position, rid, status, created_at"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*queue.Entry, error) {
	var (
		id         int64
		name       string
		folder     string
		path       string
		position   int
		rid        sql.NullString
		statusStr  string
		createdRaw string
	)

	if err := scanner.Scan(&id, &name, &folder, &path, &position, &rid, &statusStr, &createdRaw); err != nil {
		return nil, err
	}

	e := &queue.Entry{
		ID:       id,
		Name:     name,
		Folder:   folder,
		Path:     path,
		Position: position,
		Status:   queue.Status(statusStr),
	}
	if rid.Valid {
		e.RID = queue.RID(rid.String)
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		e.CreatedAt = created
	}
	return e, nil
}

func nullableRID(rid queue.RID) any {
	if rid.Empty() {
		return nil
	}
	return string(rid)
}
