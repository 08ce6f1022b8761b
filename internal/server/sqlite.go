package server

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"timetrack/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - no schema
// 1 - events table
const currentSchemaVersion = 1

// ErrNotFound is returned when no event has the requested id.
var ErrNotFound = errors.New("event not found")

// SQLiteRepository stores events in a single SQLite table. Ids come from
// AUTOINCREMENT so a deleted id is never handed out again.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite creates or opens the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version >= currentSchemaVersion {
		return nil
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// List returns every event ordered by id.
func (r *SQLiteRepository) List(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, date_start, date_end
		FROM events
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	out := []model.Event{}
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Title, &e.DateStart, &e.DateEnd); err != nil {
			return nil, fmt.Errorf("list events: scan: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id int64) (model.Event, error) {
	var e model.Event
	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, date_start, date_end
		FROM events
		WHERE id = ?
	`, id).Scan(&e.ID, &e.Title, &e.DateStart, &e.DateEnd)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, fmt.Errorf("get event %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Event{}, fmt.Errorf("get event %d: %w", id, err)
	}
	return e, nil
}

// Create inserts d and returns it with the assigned id.
func (r *SQLiteRepository) Create(ctx context.Context, d model.Draft) (model.Event, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO events (title, date_start, date_end)
		VALUES (?, ?, ?)
	`, d.Title, d.DateStart, d.DateEnd)
	if err != nil {
		return model.Event{}, fmt.Errorf("create event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Event{}, fmt.Errorf("create event: last insert id: %w", err)
	}
	return d.WithID(id), nil
}

// Replace overwrites every field of an existing event.
func (r *SQLiteRepository) Replace(ctx context.Context, e model.Event) (model.Event, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE events
		SET title = ?, date_start = ?, date_end = ?
		WHERE id = ?
	`, e.Title, e.DateStart, e.DateEnd, e.ID)
	if err != nil {
		return model.Event{}, fmt.Errorf("replace event %d: %w", e.ID, err)
	}
	if err := requireOneRow(res); err != nil {
		return model.Event{}, fmt.Errorf("replace event %d: %w", e.ID, err)
	}
	return e, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event %d: %w", id, err)
	}
	if err := requireOneRow(res); err != nil {
		return fmt.Errorf("delete event %d: %w", id, err)
	}
	return nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
