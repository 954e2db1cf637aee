package datasource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"policyguard/internal/bootstrap/logging"
	"policyguard/internal/domain/compliance"
	"policyguard/internal/errs"
	"policyguard/internal/ports"
)

// Opener resolves database URIs and uploaded datasets to data sources.
type Opener struct{}

var _ ports.DataSourceOpener = (*Opener)(nil)

func NewOpener() *Opener {
	return &Opener{}
}

// OpenDatabase connects to postgres:// and postgresql:// URIs with pgx, and to
// sqlite://path or file: URIs with the pure-Go SQLite driver. External SQLite
// files are always opened read-only; query parameters in the URI are dropped.
func (o *Opener) OpenDatabase(ctx context.Context, uri string) (ports.DataSource, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	trimmed := strings.TrimSpace(uri)
	lower := strings.ToLower(trimmed)
	logCtx := logging.WithAttrs(ctx, slog.String("component", "datasource.opener"))

	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		source, err := openPostgres(ctx, trimmed)
		if err != nil {
			return nil, err
		}
		logging.Debug(logCtx, "postgres data source opened")
		return source, nil
	case strings.HasPrefix(lower, "sqlite://"), strings.HasPrefix(lower, "file:"):
		rest := trimmed[len("file:"):]
		if strings.HasPrefix(lower, "sqlite://") {
			rest = trimmed[len("sqlite://"):]
		}
		dsn, path, err := readOnlySQLiteDSN(rest)
		if err != nil {
			return nil, err
		}
		source, err := openSQLite(ctx, dsn)
		if err != nil {
			return nil, err
		}
		logging.Debug(logCtx, "sqlite data source opened", slog.String("path", path))
		return source, nil
	default:
		return nil, fmt.Errorf("%w: %q", compliance.ErrUnsupportedDatabase, redactURI(trimmed))
	}
}

// OpenFile parses the dataset at path and materialises it in memory. The
// format is checked before the file is read.
func (o *Opener) OpenFile(ctx context.Context, fileName string, path string) (ports.DataSource, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	if _, err := compliance.DetectInputFormat(fileName); err != nil {
		return nil, err
	}

	table, err := ParseTable(fileName, path)
	if err != nil {
		return nil, err
	}

	source, err := materialize(ctx, table)
	if err != nil {
		return nil, errs.Wrapf(err, "materialize %q", fileName)
	}

	logging.Debug(
		logging.WithAttrs(ctx, slog.String("component", "datasource.opener")),
		"dataset materialized",
		slog.String("file_name", fileName),
		slog.Int("columns", len(table.Columns)),
		slog.Int("rows", len(table.Rows)),
	)
	return source, nil
}

// readOnlySQLiteDSN turns the path part of a sqlite:// or file: URI into a
// read-only DSN. In-memory databases are rejected.
func readOnlySQLiteDSN(rest string) (string, string, error) {
	path, _, _ := strings.Cut(rest, "?")
	path, _, _ = strings.Cut(path, "#")
	path = strings.TrimSpace(path)
	if path == "" {
		return "", "", fmt.Errorf("%w: sqlite uri has no path", compliance.ErrUnsupportedDatabase)
	}
	if strings.HasPrefix(path, ":memory:") {
		return "", "", fmt.Errorf("%w: in-memory sqlite is not a data source", compliance.ErrUnsupportedDatabase)
	}
	return "file:" + path + "?mode=ro", path, nil
}

// redactURI drops credentials before a URI is echoed back in an error.
func redactURI(uri string) string {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return uri
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		rest = "***@" + rest[at+1:]
	}
	return scheme + "://" + rest
}
