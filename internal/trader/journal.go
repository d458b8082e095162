package trader

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// CycleEvent is one audit record of the execution state machine. Every
// transition, rejection and critical escalation lands here so partial
// failures can be reconstructed after the fact.
type CycleEvent struct {
	ID        string
	CycleID   string
	Symbol    string
	State     CycleState
	Detail    string
	CreatedAt time.Time
}

// Journal is an append-only SQLite log of cycle events.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

func NewJournal(path string) (*Journal, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("journal: path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	const schema = `CREATE TABLE IF NOT EXISTS cycle_events (
		id TEXT PRIMARY KEY,
		cycle_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		state TEXT NOT NULL,
		detail TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cycle_events_cycle ON cycle_events(cycle_id);
	CREATE INDEX IF NOT EXISTS idx_cycle_events_created ON cycle_events(created_at);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Append(evt CycleEvent) error {
	if j == nil || j.db == nil {
		return nil
	}
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now()
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	_, err := j.db.Exec(
		`INSERT INTO cycle_events (id, cycle_id, symbol, state, detail, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		evt.ID, evt.CycleID, evt.Symbol, string(evt.State), evt.Detail, evt.CreatedAt.UnixMilli(),
	)
	return err
}

// Recent returns the newest events, most recent first.
func (j *Journal) Recent(limit int) ([]CycleEvent, error) {
	if j == nil || j.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	rows, err := j.db.Query(
		`SELECT id, cycle_id, symbol, state, detail, created_at FROM cycle_events ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CycleEvent
	for rows.Next() {
		var evt CycleEvent
		var state string
		var createdMs int64
		if err := rows.Scan(&evt.ID, &evt.CycleID, &evt.Symbol, &state, &evt.Detail, &createdMs); err != nil {
			return nil, err
		}
		evt.State = CycleState(state)
		evt.CreatedAt = time.UnixMilli(createdMs)
		out = append(out, evt)
	}
	return out, rows.Err()
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}
