package prefs

import (
	"context"
	"strings"
)

// NewStore prefers PostgreSQL when databaseURL is set, then a SQLite file at
// sqlitePath, and falls back to an in-memory store.
func NewStore(ctx context.Context, databaseURL, sqlitePath string) (Store, error) {
	if strings.TrimSpace(databaseURL) != "" {
		return NewPostgresStore(ctx, databaseURL)
	}
	if strings.TrimSpace(sqlitePath) != "" {
		return NewSQLiteStore(ctx, sqlitePath)
	}
	return NewInMemoryStore(), nil
}
