package fetch

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/modlink-io/modlink/errz"
)

// PGQuerier is the subset of a pgx connection or pool used by PGSource.
type PGQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGSource fetches object containers from a Postgres table with columns
// (module text primary key, object bytea).
type PGSource struct {
	db    PGQuerier
	table string
}

// NewPGSource creates a source over the given table. An empty table name
// defaults to "modules".
func NewPGSource(db PGQuerier, table string) *PGSource {
	if table == "" {
		table = "modules"
	}
	return &PGSource{db: db, table: table}
}

// Fetch implements Source.
func (s *PGSource) Fetch(ctx context.Context, module string) ([]byte, string, error) {
	query := fmt.Sprintf("SELECT object FROM %s WHERE module = $1", s.table)
	var data []byte
	err := s.db.QueryRow(ctx, query, module).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", errz.NewModuleErrorCause(module, errz.NoFile, err)
	}
	if err != nil {
		return nil, "", fmt.Errorf("fetch pg://%s/%s: %w", s.table, module, err)
	}
	return data, fmt.Sprintf("pg://%s/%s", s.table, module), nil
}
