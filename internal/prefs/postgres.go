package prefs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists preferences in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS device_preferences (
		device_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (device_id, key)
	);`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Get(ctx context.Context, deviceID, key string) (string, error) {
	var v string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM device_preferences WHERE device_id=$1 AND key=$2`, deviceID, key,
	).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get preference: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) Set(ctx context.Context, deviceID, key, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO device_preferences (device_id, key, value, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (device_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		deviceID, key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set preference: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, deviceID, key string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM device_preferences WHERE device_id=$1 AND key=$2`, deviceID, key,
	); err != nil {
		return fmt.Errorf("delete preference: %w", err)
	}
	return nil
}

func (s *PostgresStore) All(ctx context.Context, deviceID string) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, value FROM device_preferences WHERE device_id=$1`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("query preferences: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan preference row: %w", err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate preference rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Mode() string { return "postgres" }

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
