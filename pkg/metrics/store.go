package metrics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned by Store.Get for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded execution.
type Run struct {
	ID       string
	Program  string
	Outcome  string // empty on success, otherwise the error kind
	Started  time.Time
	Counters Counters
}

// Store keeps a history of runs in a sqlite database.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the history database at path.
// Use ":memory:" for a throwaway store.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A :memory: database exists per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id         TEXT PRIMARY KEY,
		program    TEXT NOT NULL,
		outcome    TEXT NOT NULL,
		started    INTEGER NOT NULL,
		prog_size  INTEGER NOT NULL,
		exec_ns    INTEGER NOT NULL,
		exec_move  INTEGER NOT NULL,
		data_move  INTEGER NOT NULL,
		data_read  INTEGER NOT NULL,
		data_write INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record inserts a run and returns its generated id.
func (s *Store) Record(ctx context.Context, program, outcome string, started time.Time, c Counters) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, program, outcome, started, prog_size, exec_ns, exec_move, data_move, data_read, data_write)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, program, outcome, started.UnixNano(),
		c.ProgSize, int64(c.ExecTime), c.ExecMove, c.DataMove, c.DataRead, c.DataWrite,
	)
	if err != nil {
		return "", fmt.Errorf("recording run: %w", err)
	}
	return id, nil
}

// Get returns the run with the given id.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+" WHERE id = ?", id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return r, err
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, selectRuns+" ORDER BY started DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

const selectRuns = `SELECT id, program, outcome, started, prog_size, exec_ns, exec_move, data_move, data_read, data_write FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		r       Run
		started int64
		execNs  int64
	)
	err := sc.Scan(&r.ID, &r.Program, &r.Outcome, &started,
		&r.Counters.ProgSize, &execNs, &r.Counters.ExecMove,
		&r.Counters.DataMove, &r.Counters.DataRead, &r.Counters.DataWrite)
	if err != nil {
		return nil, err
	}
	r.Started = time.Unix(0, started)
	r.Counters.ExecTime = time.Duration(execNs)
	return &r, nil
}
