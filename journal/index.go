package journal

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Index is a local sqlite-backed record of each entry's submitted and
// completed flags, sitting alongside the canonical per-intent JSON files,
// which remain the source of truth. The Journal writes through to it on
// every save; IsIntentSubmitted and the stream scans read only the JSON
// files and never query it, and it is not rebuilt from those files on
// startup.
type Index struct {
	db *sql.DB
}

// OpenIndex opens (creating if absent) the sqlite index at
// {baseDir}/index.db and ensures its schema exists.
func OpenIndex(baseDir string) (*Index, error) {
	path := filepath.Join(baseDir, "index.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open index db: %w", err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS journal_entries (
	intent_id    TEXT NOT NULL,
	trading_date TEXT NOT NULL,
	stream       TEXT NOT NULL,
	submitted    INTEGER NOT NULL DEFAULT 0,
	completed    INTEGER NOT NULL DEFAULT 0,
	updated_at   TEXT NOT NULL,
	PRIMARY KEY (trading_date, stream, intent_id)
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: create index schema: %w", err)
	}
	return &Index{db: db}, nil
}

// Close releases the underlying sqlite handle.
func (idx *Index) Close() error {
	if idx == nil || idx.db == nil {
		return nil
	}
	return idx.db.Close()
}

// Upsert write-throughs an entry's duplicate-check-relevant state. Write
// errors are discarded here and not reported to the caller: the index is
// an accelerator, not a second source of truth.
func (idx *Index) Upsert(k Key, e *Entry) {
	if idx == nil || idx.db == nil {
		return
	}
	_, _ = idx.db.Exec(
		`INSERT INTO journal_entries (intent_id, trading_date, stream, submitted, completed, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(trading_date, stream, intent_id) DO UPDATE SET
		   submitted = excluded.submitted,
		   completed = excluded.completed,
		   updated_at = excluded.updated_at`,
		k.IntentID, k.TradingDate, k.Stream, boolToInt(e.EntrySubmitted), boolToInt(e.TradeCompleted),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
}

// Submitted reports whether the index believes the intent was already
// submitted. A cache miss (err == sql.ErrNoRows) is not authoritative —
// callers must still fall through to the canonical JSON file.
func (idx *Index) Submitted(k Key) (bool, error) {
	if idx == nil || idx.db == nil {
		return false, sql.ErrNoRows
	}
	var submitted int
	err := idx.db.QueryRow(
		`SELECT submitted FROM journal_entries WHERE trading_date = ? AND stream = ? AND intent_id = ?`,
		k.TradingDate, k.Stream, k.IntentID,
	).Scan(&submitted)
	if err != nil {
		return false, err
	}
	return submitted != 0, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
