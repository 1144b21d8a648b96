// Package ledger records which events have been ported between banks in a
// SQLite database, so repeated runs can tell what was already transferred.
//
// Build modes:
//   - Default (CGO_ENABLED=0): pure Go modernc.org/sqlite
//   - CGO mode (CGO_ENABLED=1 -tags cgo_sqlite): mattn/go-sqlite3
package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/caldw/bankforge/core/fnv"
)

// Entry is one recorded transfer.
type Entry struct {
	RunID         string
	SourceName    string
	DestName      string
	SourceBank    string
	DestBank      string
	PlayEventHash uint32
	StopEventHash uint32
	PortedAt      time.Time
}

// Ledger wraps the database handle.
type Ledger struct {
	db *sql.DB
}

// DriverType returns "purego" or "cgo" depending on the build.
func DriverType() string {
	return driverType
}

const schema = `
CREATE TABLE IF NOT EXISTS ported (
	run_id          TEXT NOT NULL,
	source_name     TEXT NOT NULL,
	dest_name       TEXT NOT NULL,
	source_bank     TEXT NOT NULL,
	dest_bank       TEXT NOT NULL,
	play_event_hash INTEGER NOT NULL,
	stop_event_hash INTEGER NOT NULL,
	ported_at       TEXT NOT NULL,
	PRIMARY KEY (dest_bank, dest_name)
);
`

// Open opens (creating if necessary) the ledger database at path.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing ledger schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close releases the database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record stores one entry, replacing a previous record for the same
// destination id in the same bank.
func (l *Ledger) Record(e Entry) error {
	if e.PortedAt.IsZero() {
		e.PortedAt = time.Now().UTC()
	}
	_, err := l.db.Exec(`
		INSERT OR REPLACE INTO ported
			(run_id, source_name, dest_name, source_bank, dest_bank,
			 play_event_hash, stop_event_hash, ported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.SourceName, e.DestName, e.SourceBank, e.DestBank,
		int64(e.PlayEventHash), int64(e.StopEventHash),
		e.PortedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("recording %s: %w", e.DestName, err)
	}
	return nil
}

// Contains reports whether id was already ported into destBank.
func (l *Ledger) Contains(destBank string, id fnv.WwiseID) (bool, error) {
	var n int
	err := l.db.QueryRow(
		`SELECT COUNT(*) FROM ported WHERE dest_bank = ? AND dest_name = ?`,
		destBank, string(id)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("querying ledger: %w", err)
	}
	return n > 0, nil
}

// List returns all entries for destBank ordered by ported_at, or every
// entry when destBank is empty.
func (l *Ledger) List(destBank string) ([]Entry, error) {
	query := `
		SELECT run_id, source_name, dest_name, source_bank, dest_bank,
		       play_event_hash, stop_event_hash, ported_at
		FROM ported`
	args := []any{}
	if destBank != "" {
		query += ` WHERE dest_bank = ?`
		args = append(args, destBank)
	}
	query += ` ORDER BY ported_at, dest_name`

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing ledger: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var play, stop int64
		var stamp string
		if err := rows.Scan(&e.RunID, &e.SourceName, &e.DestName,
			&e.SourceBank, &e.DestBank, &play, &stop, &stamp); err != nil {
			return nil, fmt.Errorf("scanning ledger row: %w", err)
		}
		e.PlayEventHash = uint32(play)
		e.StopEventHash = uint32(stop)
		if t, err := time.Parse(time.RFC3339, stamp); err == nil {
			e.PortedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
