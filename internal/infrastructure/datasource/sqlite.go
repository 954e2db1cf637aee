package datasource

import (
	"context"
	"errors"
	"fmt"

	_ "github.com/glebarez/go-sqlite"
	"github.com/jmoiron/sqlx"

	"policyguard/internal/domain/compliance"
	"policyguard/internal/errs"
	"policyguard/internal/ports"
)

const sqliteDriver = "sqlite"

// sqliteSource reads a SQLite database, either an external file or a
// materialised in-memory dataset.
type sqliteSource struct {
	db *sqlx.DB
}

var _ ports.DataSource = (*sqliteSource)(nil)

func openSQLite(ctx context.Context, dsn string) (*sqliteSource, error) {
	db, err := sqlx.Open(sqliteDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %w", compliance.ErrConnection, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping sqlite: %w", compliance.ErrConnection, err)
	}
	return &sqliteSource{db: db}, nil
}

func (s *sqliteSource) Introspect(ctx context.Context) (compliance.Schema, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	var tables []string
	if err := s.db.SelectContext(ctx, &tables,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`,
	); err != nil {
		return nil, fmt.Errorf("%w: list sqlite tables: %w", compliance.ErrConnection, err)
	}

	schema := make(compliance.Schema, len(tables))
	for _, table := range tables {
		var columns []string
		if err := s.db.SelectContext(ctx, &columns,
			`SELECT name FROM pragma_table_info(?) ORDER BY cid`, table,
		); err != nil {
			return nil, errs.Wrapf(err, "list columns of %q", table)
		}
		schema[table] = columns
	}
	return schema, nil
}

func (s *sqliteSource) FindViolations(ctx context.Context, rule compliance.Rule) ([]ports.Row, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	query, err := violationQuery(rule, placeholderQuestion)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", compliance.ErrPredicateEvaluation, err)
	}

	rows, err := s.db.QueryxContext(ctx, query, rule.Value.Arg())
	if err != nil {
		return nil, fmt.Errorf("%w: %s.%s: %w", compliance.ErrPredicateEvaluation, rule.TableName, rule.Field, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: read columns: %w", compliance.ErrPredicateEvaluation, err)
	}

	var out []ports.Row
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("%w: scan row: %w", compliance.ErrPredicateEvaluation, err)
		}
		out = append(out, ports.Row{Columns: columns, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s.%s: %w", compliance.ErrPredicateEvaluation, rule.TableName, rule.Field, err)
	}
	return out, nil
}

func (s *sqliteSource) Close() error {
	return s.db.Close()
}
