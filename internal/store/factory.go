package store

import (
	"context"
	"strings"
)

// OpenBackend opens PostgreSQL when databaseURL is set and the SQLite file at
// sqlitePath otherwise.
func OpenBackend(ctx context.Context, databaseURL, sqlitePath string) (Backend, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return Open(sqlitePath)
	}
	return OpenPostgres(ctx, databaseURL)
}
