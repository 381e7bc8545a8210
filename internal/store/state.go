// Package store persists local-only client state in SQLite: which blocks
// are collapsed, which page was open last, and a journal of writes sent
// to the backend. None of this is document data; losing the file costs
// nothing but UI state.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"rhizome/internal/api"
)

const schema = `
CREATE TABLE IF NOT EXISTS ui_state (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS collapsed (
	page_uid  TEXT NOT NULL,
	block_uid TEXT NOT NULL,
	PRIMARY KEY (page_uid, block_uid)
);
CREATE TABLE IF NOT EXISTS write_journal (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	chain_key  TEXT NOT NULL,
	block_uid  TEXT NOT NULL,
	action     TEXT NOT NULL,
	status     TEXT NOT NULL,
	detail     TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// State is a handle to the local SQLite database. Safe for use from the
// UI goroutine; it is not shared across goroutines.
type State struct {
	db *sql.DB
}

// Open creates or opens the state database at path, creating parent
// directories as needed.
func Open(ctx context.Context, path string) (*State, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create state dir: %w", err)
		}
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &State{db: db}, nil
}

func (s *State) Close() error { return s.db.Close() }

// SetLastPage remembers the page to reopen on next start.
func (s *State) SetLastPage(ctx context.Context, uid string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ui_state (key, value) VALUES ('last_page', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, uid)
	return err
}

// LastPage returns the previously open page uid, or "" if none is stored.
func (s *State) LastPage(ctx context.Context) (string, error) {
	var uid string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM ui_state WHERE key = 'last_page'`).Scan(&uid)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return uid, err
}

// SaveCollapsed replaces the stored collapsed set for a page.
func (s *State) SaveCollapsed(ctx context.Context, pageUID string, blockUIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM collapsed WHERE page_uid = ?`, pageUID); err != nil {
		return err
	}
	for _, uid := range blockUIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO collapsed (page_uid, block_uid) VALUES (?, ?)`, pageUID, uid); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadCollapsed returns the collapsed block uids recorded for a page.
func (s *State) LoadCollapsed(ctx context.Context, pageUID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT block_uid FROM collapsed WHERE page_uid = ?`, pageUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		out[uid] = true
	}
	return out, rows.Err()
}

// JournalEntry is one recorded write, kept for debugging sync issues.
type JournalEntry struct {
	ID        int64
	ChainKey  string
	BlockUID  string
	Action    api.WriteAction
	Status    string
	Detail    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// JournalAppend records an enqueued write and returns its journal id.
func (s *State) JournalAppend(ctx context.Context, chainKey, blockUID string, action api.WriteAction) (int64, error) {
	raw, err := json.Marshal(action)
	if err != nil {
		return 0, fmt.Errorf("store: encode action: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO write_journal (chain_key, block_uid, action, status, created_at, updated_at)
		 VALUES (?, ?, ?, 'queued', ?, ?)`,
		chainKey, blockUID, string(raw), now, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// JournalSettle updates a journal row once its write confirmed, failed,
// or was discarded.
func (s *State) JournalSettle(ctx context.Context, id int64, status, detail string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`UPDATE write_journal SET status = ?, detail = ?, updated_at = ? WHERE id = ?`,
		status, detail, now, id)
	return err
}

// JournalRecent returns the newest n entries, newest first.
func (s *State) JournalRecent(ctx context.Context, n int) ([]JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chain_key, block_uid, action, status, detail, created_at, updated_at
		 FROM write_journal ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var e JournalEntry
		var action, created, updated string
		if err := rows.Scan(&e.ID, &e.ChainKey, &e.BlockUID, &action, &e.Status, &e.Detail, &created, &updated); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(action), &e.Action); err != nil {
			return nil, fmt.Errorf("store: decode journal action %d: %w", e.ID, err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		e.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, e)
	}
	return out, rows.Err()
}

// JournalPrune deletes settled entries older than the cutoff so the
// journal does not grow without bound.
func (s *State) JournalPrune(ctx context.Context, before time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM write_journal WHERE status != 'queued' AND updated_at < ?`,
		before.UTC().Format(time.RFC3339Nano))
	return err
}
