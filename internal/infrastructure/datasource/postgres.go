package datasource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"policyguard/internal/domain/compliance"
	"policyguard/internal/errs"
	"policyguard/internal/ports"
)

const closeTimeout = 5 * time.Second

const postgresColumnsQuery = `
SELECT c.table_name, c.column_name
FROM information_schema.columns c
JOIN information_schema.tables t
  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
WHERE c.table_schema = current_schema()
  AND t.table_type = 'BASE TABLE'
ORDER BY c.table_name, c.ordinal_position`

// postgresSource reads an external PostgreSQL database over one pgx connection.
type postgresSource struct {
	conn *pgx.Conn
}

var _ ports.DataSource = (*postgresSource)(nil)

func openPostgres(ctx context.Context, uri string) (*postgresSource, error) {
	conn, err := pgx.Connect(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("%w: connect postgres: %w", compliance.ErrConnection, err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(context.Background())
		return nil, fmt.Errorf("%w: ping postgres: %w", compliance.ErrConnection, err)
	}
	return &postgresSource{conn: conn}, nil
}

func (s *postgresSource) Introspect(ctx context.Context) (compliance.Schema, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	rows, err := s.conn.Query(ctx, postgresColumnsQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: list postgres columns: %w", compliance.ErrConnection, err)
	}
	defer rows.Close()

	schema := compliance.Schema{}
	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return nil, errs.Wrap(err, "scan postgres column")
		}
		schema[table] = append(schema[table], column)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(err, "iterate postgres columns")
	}
	return schema, nil
}

func (s *postgresSource) FindViolations(ctx context.Context, rule compliance.Rule) ([]ports.Row, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	query, err := violationQuery(rule, placeholderDollar)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", compliance.ErrPredicateEvaluation, err)
	}

	rows, err := s.conn.Query(ctx, query, rule.Value.Arg())
	if err != nil {
		return nil, fmt.Errorf("%w: %s.%s: %w", compliance.ErrPredicateEvaluation, rule.TableName, rule.Field, err)
	}
	defer rows.Close()

	descs := rows.FieldDescriptions()
	columns := make([]string, len(descs))
	for i, d := range descs {
		columns[i] = d.Name
	}

	var out []ports.Row
	for rows.Next() {
		values, err := rows.Values()
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

func (s *postgresSource) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return s.conn.Close(ctx)
}
