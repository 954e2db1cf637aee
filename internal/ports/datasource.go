package ports

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"policyguard/internal/domain/compliance"
)

// Row is one result row with its column names in select order.
type Row struct {
	Columns []string
	Values  []any
}

// DataSource is one open connection to the data being scanned.
type DataSource interface {
	// Introspect lists every visible table with its columns in declaration order.
	Introspect(ctx context.Context) (compliance.Schema, error)
	// FindViolations returns the rows that do not satisfy the rule predicate.
	FindViolations(ctx context.Context, rule compliance.Rule) ([]Row, error)
	Close() error
}

type DataSourceOpener interface {
	OpenDatabase(ctx context.Context, uri string) (DataSource, error)
	// OpenFile parses a dataset at path, naming its format after fileName.
	OpenFile(ctx context.Context, fileName string, path string) (DataSource, error)
}

// Value returns the value of the named column.
func (r Row) Value(column string) (any, bool) {
	for i, name := range r.Columns {
		if name == column && i < len(r.Values) {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Text renders the i-th value for storage. NULL renders as an empty string.
func (r Row) Text(i int) string {
	if i < 0 || i >= len(r.Values) {
		return ""
	}
	return FormatValue(r.Values[i])
}

func FormatValue(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case []byte:
		return string(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(value), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(value)
	case time.Time:
		return value.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return value.String()
	default:
		return fmt.Sprint(value)
	}
}
