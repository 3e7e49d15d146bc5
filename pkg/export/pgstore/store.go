// Package pgstore loads collections into PostgreSQL, one table per data
// model, for ad hoc SQL analysis.
package pgstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Store wraps a pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	schema string
	logger zerolog.Logger
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	logger := log.With().Str("component", "pgstore").Logger()

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = &tracelog.TraceLog{
		Logger:   newPgxLogger(logger),
		LogLevel: traceLevel(zerolog.GlobalLevel()),
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().
		Str("host", poolConfig.ConnConfig.Host).
		Str("database", poolConfig.ConnConfig.Database).
		Msg("Connected to PostgreSQL")

	return &Store{pool: pool, schema: "public", logger: logger}, nil
}

// Close closes the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// LoadRecords stores records in a table named after table, plus one table
// per extracted nested data model. Existing tables of the same names are
// replaced. It returns the number of rows written per table.
func (s *Store) LoadRecords(ctx context.Context, table string, records []map[string]any) (map[string]int, error) {
	extracted := NewTables()
	flat := FlattenAndExtract(records, extracted)

	tables := append([]*Table{{Name: TableName(table), Rows: flat}}, extracted.All()...)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	counts := make(map[string]int, len(tables))
	for _, t := range tables {
		n, err := s.writeTable(ctx, tx, t)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", t.Name, err)
		}
		counts[t.Name] = n
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.logger.Info().
		Str("table", TableName(table)).
		Int("records", len(records)).
		Int("tables", len(tables)).
		Msg("Records loaded")
	return counts, nil
}

func (s *Store) writeTable(ctx context.Context, tx pgx.Tx, t *Table) (int, error) {
	ident := pgx.Identifier{s.schema, t.Name}.Sanitize()
	cols := InferColumns(t.Rows)

	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+ident); err != nil {
		return 0, fmt.Errorf("drop: %w", err)
	}
	if len(cols) == 0 {
		return 0, nil
	}

	defs := make([]string, len(cols))
	names := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = pgx.Identifier{c.Name}.Sanitize() + " " + c.Type
		names[i] = c.Name
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", ident, strings.Join(defs, ", "))); err != nil {
		return 0, fmt.Errorf("create: %w", err)
	}

	rows := make([][]any, len(t.Rows))
	for i, r := range t.Rows {
		row := make([]any, len(cols))
		for j, c := range cols {
			v, err := convert(r[c.Name], c.Type)
			if err != nil {
				return 0, fmt.Errorf("column %s: %w", c.Name, err)
			}
			row[j] = v
		}
		rows[i] = row
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{s.schema, t.Name}, names, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("copy: %w", err)
	}
	return int(n), nil
}

// ExportSchema renders the tables and columns of the store's schema with
// the relations inferred from <x>_id columns.
func (s *Store) ExportSchema(ctx context.Context) (string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT table_name, column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = $1
		ORDER BY table_name, column_name`, s.schema)
	if err != nil {
		return "", fmt.Errorf("query schema: %w", err)
	}
	defer rows.Close()

	var tables []TableSchema
	for rows.Next() {
		var table string
		var col Column
		if err := rows.Scan(&table, &col.Name, &col.Type); err != nil {
			return "", fmt.Errorf("scan schema: %w", err)
		}
		if n := len(tables); n == 0 || tables[n-1].Name != table {
			tables = append(tables, TableSchema{Name: table})
		}
		last := &tables[len(tables)-1]
		last.Columns = append(last.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("read schema: %w", err)
	}

	return RenderSchema(tables), nil
}
