package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"eaipviewer/internal/aip"
	"eaipviewer/internal/history/db"

	_ "modernc.org/sqlite"
)

var ErrRunNotFound = errors.New("history: run not found")

// Store keeps a record of every completed pipeline run.
type Store struct {
	db     *sql.DB
	qry    *db.Queries
	makeTx db.MakeTx
}

const memoryPath = ":memory:"

// Open opens (creating if needed) the sqlite database at path. The special
// path ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := memoryPath + "?_pragma=foreign_keys(1)"
	if path != memoryPath {
		err := os.MkdirAll(filepath.Dir(path), 0o755)
		if err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
		dsn = "file:" + path +
			"?_pragma=journal_mode(WAL)" +
			"&_pragma=busy_timeout(5000)" +
			"&_pragma=foreign_keys(1)"
	}

	sqlite, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer at a time, also keeps an in-memory database alive
	sqlite.SetMaxOpenConns(1)

	_, err = sqlite.Exec(db.Schema)
	if err != nil {
		sqlite.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{
		db:     sqlite,
		qry:    db.New(sqlite),
		makeTx: db.NewMakeTx(sqlite),
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type RunRecord struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Release    string
	FilePath   string
	KeptNodes  int
	Locators   []aip.Locator
}

type Run struct {
	ID           int64
	StartedAt    time.Time
	FinishedAt   time.Time
	Release      string
	FilePath     string
	KeptNodes    int
	LocatorCount int
}

func runFromRow(row db.Run) Run {
	return Run{
		ID:           row.ID,
		StartedAt:    time.Unix(row.StartedAt, 0),
		FinishedAt:   time.Unix(row.FinishedAt, 0),
		Release:      row.Release,
		FilePath:     row.FilePath,
		KeptNodes:    int(row.KeptNodes),
		LocatorCount: int(row.LocatorCount),
	}
}

// Record stores a run and its locators, returning the id of the run.
func (s *Store) Record(ctx context.Context, rec RunRecord) (int64, error) {
	tx, discard, commit, err := s.makeTx(ctx)
	if err != nil {
		return 0, err
	}
	defer discard()

	id, err := tx.CreateRun(ctx, db.CreateRunParams{
		StartedAt:    rec.StartedAt.Unix(),
		FinishedAt:   rec.FinishedAt.Unix(),
		Release:      rec.Release,
		FilePath:     rec.FilePath,
		KeptNodes:    int64(rec.KeptNodes),
		LocatorCount: int64(len(rec.Locators)),
	})
	if err != nil {
		return 0, fmt.Errorf("create run: %w", err)
	}
	for i, l := range rec.Locators {
		err = tx.CreateLocator(ctx, db.Locator{
			RunID:    id,
			Position: int64(i),
			Name:     l.Name,
			Url:      l.URL,
		})
		if err != nil {
			return 0, fmt.Errorf("create locator %d: %w", i, err)
		}
	}

	err = commit()
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Runs lists the most recent runs first. A limit of 0 or less lists all.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.qry.ListRuns(ctx, int64(limit))
	if err != nil {
		return nil, err
	}
	out := make([]Run, len(rows))
	for i, row := range rows {
		out[i] = runFromRow(row)
	}
	return out, nil
}

func (s *Store) Run(ctx context.Context, id int64) (Run, error) {
	row, err := s.qry.GetRun(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, err
	}
	return runFromRow(row), nil
}

// Locators returns the locators a run produced, in their original order.
func (s *Store) Locators(ctx context.Context, runId int64) ([]aip.Locator, error) {
	_, err := s.Run(ctx, runId)
	if err != nil {
		return nil, err
	}
	rows, err := s.qry.ListLocators(ctx, runId)
	if err != nil {
		return nil, err
	}
	out := make([]aip.Locator, len(rows))
	for i, row := range rows {
		out[i] = aip.Locator{Name: row.Name, URL: row.Url}
	}
	return out, nil
}
