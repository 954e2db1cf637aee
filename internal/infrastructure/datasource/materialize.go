package datasource

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"policyguard/internal/domain/compliance"
	"policyguard/internal/errs"
)

type affinity int

const (
	affinityInteger affinity = iota + 1
	affinityReal
	affinityText
)

func (a affinity) String() string {
	switch a {
	case affinityInteger:
		return "INTEGER"
	case affinityReal:
		return "REAL"
	default:
		return "TEXT"
	}
}

// materialize loads the table into a private in-memory SQLite database under
// compliance.MaterializedTable. The database lives until the source is closed.
func materialize(ctx context.Context, table Table) (*sqliteSource, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	source, err := openSQLite(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := load(ctx, source, table); err != nil {
		_ = source.Close()
		return nil, err
	}
	return source, nil
}

func load(ctx context.Context, source *sqliteSource, table Table) error {
	affinities := inferAffinities(table)

	columnDefs := make([]string, len(table.Columns))
	placeholders := make([]string, len(table.Columns))
	for i, column := range table.Columns {
		columnDefs[i] = quoteIdent(column) + " " + affinities[i].String()
		placeholders[i] = "?"
	}

	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(compliance.MaterializedTable), strings.Join(columnDefs, ", "))
	if _, err := source.db.ExecContext(ctx, create); err != nil {
		return errs.Wrap(err, "create materialized table")
	}
	if len(table.Rows) == 0 {
		return nil
	}

	tx, err := source.db.BeginTxx(ctx, nil)
	if err != nil {
		return errs.Wrap(err, "begin materialize tx")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	insert := fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(compliance.MaterializedTable), strings.Join(placeholders, ", "))
	stmt, err := tx.PreparexContext(ctx, insert)
	if err != nil {
		return errs.Wrap(err, "prepare materialize insert")
	}
	defer stmt.Close()

	args := make([]any, len(table.Columns))
	for rowIndex, row := range table.Rows {
		for i := range args {
			var cell any
			if i < len(row) {
				cell = row[i]
			}
			args[i] = convertCell(cell, affinities[i])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return errs.Wrapf(err, "insert dataset row %d", rowIndex+1)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.Wrap(err, "commit materialized rows")
	}
	return nil
}

// inferAffinities picks the narrowest of INTEGER, REAL and TEXT that holds
// every non-null cell of a column. All-null columns are TEXT.
func inferAffinities(table Table) []affinity {
	out := make([]affinity, len(table.Columns))
	for i := range table.Columns {
		var current affinity
		for _, row := range table.Rows {
			if i >= len(row) || row[i] == nil {
				continue
			}
			if cell := cellAffinity(row[i]); cell > current {
				current = cell
			}
			if current == affinityText {
				break
			}
		}
		if current == 0 {
			current = affinityText
		}
		out[i] = current
	}
	return out
}

func cellAffinity(cell any) affinity {
	switch value := cell.(type) {
	case bool:
		return affinityInteger
	case float64:
		if isIntegral(value) {
			return affinityInteger
		}
		return affinityReal
	case string:
		trimmed := strings.TrimSpace(value)
		if _, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return affinityInteger
		}
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return affinityReal
		}
		return affinityText
	default:
		return affinityText
	}
}

func convertCell(cell any, target affinity) any {
	if cell == nil {
		return nil
	}

	switch target {
	case affinityInteger:
		switch value := cell.(type) {
		case bool:
			if value {
				return int64(1)
			}
			return int64(0)
		case float64:
			return int64(value)
		case string:
			n, _ := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
			return n
		}
	case affinityReal:
		switch value := cell.(type) {
		case bool:
			if value {
				return float64(1)
			}
			return float64(0)
		case float64:
			return value
		case string:
			f, _ := strconv.ParseFloat(strings.TrimSpace(value), 64)
			return f
		}
	}

	switch value := cell.(type) {
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	default:
		return fmt.Sprint(value)
	}
}

func isIntegral(v float64) bool {
	return v == math.Trunc(v) && math.Abs(v) < 1<<53
}
