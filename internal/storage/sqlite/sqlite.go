package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"shadowdeck/internal/paths"
	"shadowdeck/internal/storage"
	"shadowdeck/internal/storage/models"
)

var _ storage.History = (*DB)(nil)

// DB implements the History interface using SQLite
type DB struct {
	db *sql.DB
}

// New creates a new SQLite storage instance
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single writer avoids SQLITE_BUSY between the recorder and probes.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	storage := &DB{db: db}

	// Run migrations
	if err := runMigrations(storage); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if dbPath != ":memory:" && !strings.HasPrefix(dbPath, "file:") {
		paths.ChownToRealUser(dbPath)
	}

	return storage, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

// Run operations

func (d *DB) CreateRun(ctx context.Context, run *models.Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	query := `
		INSERT INTO runs (id, profile_name, server, backend_type, backend_path, pid, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := d.db.ExecContext(ctx, query,
		run.ID, run.ProfileName, run.Server, run.BackendType, run.BackendPath, run.PID, run.StartedAt.UTC(),
	)
	return err
}

func (d *DB) FinishRun(ctx context.Context, run *models.Run) error {
	if run.StoppedAt == nil {
		now := time.Now()
		run.StoppedAt = &now
	}

	query := `
		UPDATE runs SET stopped_at = ?, exit_code = ?, requested = ?, error = ?
		WHERE id = ?
	`
	result, err := d.db.ExecContext(ctx, query,
		run.StoppedAt.UTC(), nullInt(run.ExitCode), run.Requested, nullString(run.Error), run.ID,
	)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run not found: %s", run.ID)
	}
	return nil
}

func (d *DB) GetRun(ctx context.Context, id string) (*models.Run, error) {
	query := `
		SELECT id, profile_name, server, backend_type, backend_path, pid,
		       started_at, stopped_at, exit_code, requested, error
		FROM runs WHERE id = ?
	`
	run, err := scanRun(d.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	return run, err
}

func (d *DB) ListRuns(ctx context.Context, filter storage.RunFilter) ([]*models.Run, error) {
	query := `
		SELECT id, profile_name, server, backend_type, backend_path, pid,
		       started_at, stopped_at, exit_code, requested, error
		FROM runs
	`
	var args []interface{}
	if filter.ProfileName != "" {
		query += " WHERE profile_name = ?"
		args = append(args, filter.ProfileName)
	}
	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (d *DB) CloseDanglingRuns(ctx context.Context, at time.Time) (int64, error) {
	result, err := d.db.ExecContext(ctx,
		`UPDATE runs SET stopped_at = ?, error = 'shadowdeck exited while backend was running' WHERE stopped_at IS NULL`,
		at.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*models.Run, error) {
	run := &models.Run{}
	var stoppedAt sql.NullTime
	var exitCode sql.NullInt64
	var errMsg sql.NullString

	err := row.Scan(
		&run.ID, &run.ProfileName, &run.Server, &run.BackendType, &run.BackendPath, &run.PID,
		&run.StartedAt, &stoppedAt, &exitCode, &run.Requested, &errMsg,
	)
	if err != nil {
		return nil, err
	}

	if stoppedAt.Valid {
		t := stoppedAt.Time
		run.StoppedAt = &t
	}
	if exitCode.Valid {
		code := int(exitCode.Int64)
		run.ExitCode = &code
	}
	run.Error = errMsg.String
	return run, nil
}

// Latency operations

func (d *DB) RecordLatency(ctx context.Context, latency *models.LatencyTest) error {
	if latency.TestedAt.IsZero() {
		latency.TestedAt = time.Now()
	}

	query := `
		INSERT INTO latency_tests (profile_name, server, latency_ms, success, error_message, test_strategy, tested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := d.db.ExecContext(ctx, query,
		latency.ProfileName, latency.Server, nullInt(latency.LatencyMS), latency.Success,
		nullString(latency.ErrorMessage), latency.TestStrategy, latency.TestedAt.UTC(),
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	latency.ID = id
	return nil
}

func (d *DB) GetLatestLatency(ctx context.Context, profileName string) (*models.LatencyTest, error) {
	history, err := d.GetLatencyHistory(ctx, profileName, 1)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, nil
	}
	return history[0], nil
}

func (d *DB) GetLatencyHistory(ctx context.Context, profileName string, limit int) ([]*models.LatencyTest, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, profile_name, server, latency_ms, success, error_message, test_strategy, tested_at
		FROM latency_tests
		WHERE profile_name = ?
		ORDER BY tested_at DESC, id DESC
		LIMIT ?
	`
	rows, err := d.db.QueryContext(ctx, query, profileName, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var latencies []*models.LatencyTest
	for rows.Next() {
		latency := &models.LatencyTest{}
		var ms sql.NullInt64
		var errMsg sql.NullString
		err := rows.Scan(
			&latency.ID, &latency.ProfileName, &latency.Server, &ms, &latency.Success,
			&errMsg, &latency.TestStrategy, &latency.TestedAt,
		)
		if err != nil {
			return nil, err
		}
		if ms.Valid {
			v := int(ms.Int64)
			latency.LatencyMS = &v
		}
		latency.ErrorMessage = errMsg.String
		latencies = append(latencies, latency)
	}
	return latencies, rows.Err()
}

func (d *DB) PruneLatency(ctx context.Context, before time.Time) (int64, error) {
	result, err := d.db.ExecContext(ctx, `DELETE FROM latency_tests WHERE tested_at < ?`, before.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func nullInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
