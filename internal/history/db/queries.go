package db

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Run struct {
	ID           int64
	StartedAt    int64
	FinishedAt   int64
	Release      string
	FilePath     string
	KeptNodes    int64
	LocatorCount int64
}

type Locator struct {
	RunID    int64
	Position int64
	Name     string
	Url      string
}

const createRun = `-- name: CreateRun :one
insert into runs (started_at, finished_at, release, file_path, kept_nodes, locator_count)
values (?, ?, ?, ?, ?, ?)
returning id
`

type CreateRunParams struct {
	StartedAt    int64
	FinishedAt   int64
	Release      string
	FilePath     string
	KeptNodes    int64
	LocatorCount int64
}

func (q *Queries) CreateRun(ctx context.Context, arg CreateRunParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createRun,
		arg.StartedAt,
		arg.FinishedAt,
		arg.Release,
		arg.FilePath,
		arg.KeptNodes,
		arg.LocatorCount,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const createLocator = `-- name: CreateLocator :exec
insert into locators (run_id, position, name, url)
values (?, ?, ?, ?)
`

func (q *Queries) CreateLocator(ctx context.Context, arg Locator) error {
	_, err := q.db.ExecContext(ctx, createLocator,
		arg.RunID,
		arg.Position,
		arg.Name,
		arg.Url,
	)
	return err
}

const getRun = `-- name: GetRun :one
select id, started_at, finished_at, release, file_path, kept_nodes, locator_count
from runs
where id = ?
`

func (q *Queries) GetRun(ctx context.Context, id int64) (Run, error) {
	row := q.db.QueryRowContext(ctx, getRun, id)
	var i Run
	err := row.Scan(
		&i.ID,
		&i.StartedAt,
		&i.FinishedAt,
		&i.Release,
		&i.FilePath,
		&i.KeptNodes,
		&i.LocatorCount,
	)
	return i, err
}

const listRuns = `-- name: ListRuns :many
select id, started_at, finished_at, release, file_path, kept_nodes, locator_count
from runs
order by started_at desc, id desc
limit ?
`

func (q *Queries) ListRuns(ctx context.Context, limit int64) ([]Run, error) {
	rows, err := q.db.QueryContext(ctx, listRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Run
	for rows.Next() {
		var i Run
		if err := rows.Scan(
			&i.ID,
			&i.StartedAt,
			&i.FinishedAt,
			&i.Release,
			&i.FilePath,
			&i.KeptNodes,
			&i.LocatorCount,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listLocators = `-- name: ListLocators :many
select run_id, position, name, url
from locators
where run_id = ?
order by position
`

func (q *Queries) ListLocators(ctx context.Context, runID int64) ([]Locator, error) {
	rows, err := q.db.QueryContext(ctx, listLocators, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Locator
	for rows.Next() {
		var i Locator
		if err := rows.Scan(
			&i.RunID,
			&i.Position,
			&i.Name,
			&i.Url,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
