package history

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DefaultLimit caps Recent when the caller asks for nothing specific.
const DefaultLimit = 50

// Repository stores session records in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// Connect opens a pool against dsn and checks it.
func Connect(ctx context.Context, dsn string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Repository{pool: pool}, nil
}

// Ping checks that the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the pool.
func (r *Repository) Close() {
	r.pool.Close()
}

// RunMigrations applies the embedded SQL files that have not run yet.
func (r *Repository) RunMigrations(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS standup_schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT filename FROM standup_schema_migrations`)
	if err != nil {
		return fmt.Errorf("failed to query applied migrations: %w", err)
	}
	applied := make(map[string]bool)
	for rows.Next() {
		var filename string
		if err := rows.Scan(&filename); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration filename: %w", err)
		}
		applied[filename] = true
	}
	rows.Close()

	files, err := migrationFiles()
	if err != nil {
		return err
	}

	for _, filename := range files {
		if applied[filename] {
			continue
		}
		content, err := fs.ReadFile(migrationsFS, "migrations/"+filename)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for %s: %w", filename, err)
		}
		if _, err := tx.Exec(ctx, string(content)); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO standup_schema_migrations (filename) VALUES ($1)`, filename); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("failed to record migration %s: %w", filename, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", filename, err)
		}
	}
	return nil
}

func migrationFiles() ([]string, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// Insert writes one record. Writing the same record twice is a no-op.
func (r *Repository) Insert(ctx context.Context, rec models.SessionRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO standup_sessions (
			id, session_id, member, outcome, started_at, ended_at,
			planned_sec, time_started, time_ended
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`, rec.ID, rec.SessionID, rec.Member, rec.Outcome, rec.StartedAt, rec.EndedAt,
		rec.PlannedSec, rec.TimeStarted, rec.TimeEnded)
	if err != nil {
		return fmt.Errorf("failed to insert session %s: %w", rec.SessionID, err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]models.SessionRecord, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, member, outcome, started_at, ended_at,
		       planned_sec, time_started, time_ended
		FROM standup_sessions
		ORDER BY ended_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var records []models.SessionRecord
	for rows.Next() {
		var rec models.SessionRecord
		if err := rows.Scan(
			&rec.ID, &rec.SessionID, &rec.Member, &rec.Outcome, &rec.StartedAt, &rec.EndedAt,
			&rec.PlannedSec, &rec.TimeStarted, &rec.TimeEnded,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sessions: %w", err)
	}
	return records, nil
}
