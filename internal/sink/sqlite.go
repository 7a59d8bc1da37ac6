package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"golang.org/x/sync/errgroup"

	"github.com/nextedit/tracker/internal/events"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS emitted_events (
	id        TEXT PRIMARY KEY,
	action    TEXT NOT NULL,
	timestamp TIMESTAMP NOT NULL,
	details   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_emitted_events_action ON emitted_events(action);
CREATE INDEX IF NOT EXISTS idx_emitted_events_timestamp ON emitted_events(timestamp);
`

// DefaultQueueSize is the emit buffer size used when none is
// configured.
const DefaultQueueSize = 256

// SQLite persists events into a local database. Writes happen on a
// background goroutine so Emit never blocks the tracker; when the
// buffer is full the event is dropped and counted instead.
type SQLite struct {
	db      *sql.DB
	queue   chan events.Event
	group   *errgroup.Group
	dropped atomic.Int64
}

// NewSQLite opens (creating if needed) the database at path and starts
// the drain goroutine. queueSize <= 0 uses DefaultQueueSize.
func NewSQLite(path string, queueSize int) (*SQLite, error) {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &SQLite{
		db:    db,
		queue: make(chan events.Event, queueSize),
		group: &errgroup.Group{},
	}
	s.group.Go(s.drain)
	return s, nil
}

// Emit enqueues the event for persistence. Never blocks: when the
// queue is full the event is dropped and counted.
func (s *SQLite) Emit(event events.Event) {
	select {
	case s.queue <- event:
	default:
		s.dropped.Add(1)
	}
}

// Close flushes buffered events and closes the database. Emit must not
// be called after Close.
func (s *SQLite) Close() error {
	close(s.queue)
	drainErr := s.group.Wait()
	closeErr := s.db.Close()
	if drainErr != nil {
		return drainErr
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close database: %w", closeErr)
	}
	return nil
}

// Dropped returns the number of events dropped due to a full queue.
func (s *SQLite) Dropped() int64 {
	return s.dropped.Load()
}

func (s *SQLite) drain() error {
	for event := range s.queue {
		if err := s.store(event); err != nil {
			// A single bad row must not stop the drain; count it as a
			// drop and keep going.
			s.dropped.Add(1)
		}
	}
	return nil
}

func (s *SQLite) store(event events.Event) error {
	detailsJSON, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal event details: %w", err)
	}

	query := `
		INSERT INTO emitted_events (id, action, timestamp, details)
		VALUES (?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(context.Background(), query,
		event.ID,
		string(event.Action),
		event.Timestamp,
		string(detailsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to store event (action=%s): %w", event.Action, err)
	}
	return nil
}

// StoredEvent is one persisted event row.
type StoredEvent struct {
	// ID is the event's unique identifier
	ID string
	// Action is the event's action name
	Action events.Action
	// Timestamp is when the event was emitted
	Timestamp time.Time
	// DetailsJSON is the JSON-encoded ordered debug details
	DetailsJSON string
}

// GetRecent retrieves the most recent persisted events up to limit.
func (s *SQLite) GetRecent(ctx context.Context, limit int) ([]StoredEvent, error) {
	query := `
		SELECT id, action, timestamp, details
		FROM emitted_events
		ORDER BY timestamp DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var ev StoredEvent
		if err := rows.Scan(&ev.ID, &ev.Action, &ev.Timestamp, &ev.DetailsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event rows: %w", err)
	}
	return out, nil
}

// CountByAction returns persisted event counts keyed by action.
func (s *SQLite) CountByAction(ctx context.Context) (map[events.Action]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT action, COUNT(*) FROM emitted_events GROUP BY action`)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[events.Action]int)
	for rows.Next() {
		var action string
		var count int
		if err := rows.Scan(&action, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		counts[events.Action(action)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read count rows: %w", err)
	}
	return counts, nil
}
