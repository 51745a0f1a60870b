// Package journal provides an append-only SQLite record of broadcast
// events. It backs the dashboard's recent-activity feed; it is an
// observability log, not workflow persistence — workflow state itself
// lives only in memory.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ShunsukeHayashi/workflowd/internal/broadcast"
)

// Journal wraps an SQLite database holding broadcast events.
type Journal struct {
	conn *sql.DB
	path string
}

// Entry is one recorded event.
type Entry struct {
	// ID is the monotonically increasing journal sequence number.
	ID int64 `json:"id"`
	// Type is the event type tag.
	Type string `json:"type"`
	// Payload is the event payload as recorded, JSON-encoded.
	Payload json.RawMessage `json:"payload"`
	// RecordedAt is when the event was journaled.
	RecordedAt time.Time `json:"recorded_at"`
}

// Open opens (creating if needed) the journal database at the given
// path. Parent directories are created. WAL mode is enabled for
// concurrent reads.
func Open(path string) (*Journal, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		payload TEXT NOT NULL,
		recorded_at TEXT NOT NULL
	)`
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create events table: %w", err)
	}

	return &Journal{conn: conn, path: path}, nil
}

// Append records one event.
func (j *Journal) Append(ev broadcast.Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	_, err = j.conn.Exec(
		"INSERT INTO events (type, payload, recorded_at) VALUES (?, ?, ?)",
		string(ev.Type), string(payload), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Recent returns the most recent n entries, newest first.
func (j *Journal) Recent(n int) ([]Entry, error) {
	rows, err := j.conn.Query(
		"SELECT id, type, payload, recorded_at FROM events ORDER BY id DESC LIMIT ?", n,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var payload, recorded string
		if err := rows.Scan(&e.ID, &e.Type, &payload, &recorded); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Payload = json.RawMessage(payload)
		if ts, err := time.Parse(time.RFC3339Nano, recorded); err == nil {
			e.RecordedAt = ts
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the total number of journaled events.
func (j *Journal) Count() (int64, error) {
	var n int64
	if err := j.conn.QueryRow("SELECT COUNT(*) FROM events").Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// Consume subscribes the journal to the broadcaster and records every
// event until the context is done or the subscription is dropped. The
// journal is an ordinary subscriber: if it falls behind it is pruned
// like any other slow connection.
func (j *Journal) Consume(ctx context.Context, b *broadcast.Broadcaster) {
	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := j.Append(ev); err != nil {
				log.Printf("[journal] append: %v", err)
			}
		}
	}
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.conn.Close()
}
