package preferences

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const schema = `
CREATE TABLE IF NOT EXISTS standup_preferences (
	key        TEXT PRIMARY KEY,
	bool_value BOOLEAN NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

// PostgresStore keeps preferences in a Postgres table through database/sql
// and the lib/pq driver.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the preferences table if needed.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create preferences table: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetBool(ctx context.Context, key string) (bool, bool, error) {
	var value bool
	err := s.db.QueryRowContext(ctx,
		`SELECT bool_value FROM standup_preferences WHERE key = $1`, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("failed to read preference %s: %w", key, err)
	}
	return value, true, nil
}

func (s *PostgresStore) SetBool(ctx context.Context, key string, value bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO standup_preferences (key, bool_value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			bool_value = EXCLUDED.bool_value,
			updated_at = EXCLUDED.updated_at
	`, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to write preference %s: %w", key, err)
	}
	return nil
}
