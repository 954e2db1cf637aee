package database

import (
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"policyguard/internal/bootstrap/config"
)

func TestOpenSQLiteCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state", "policyguard.sqlite")

	db, err := Open(context.Background(), config.DatabaseConfig{Driver: "sqlite", DSN: path})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("DB() error = %v", err)
	}
	defer sqlDB.Close()

	var enabled int
	if err := db.Raw("PRAGMA foreign_keys").Scan(&enabled).Error; err != nil {
		t.Fatalf("read pragma: %v", err)
	}
	if enabled != 1 {
		t.Fatalf("foreign_keys = %d, want 1", enabled)
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Fatalf("sqlite directory not created: %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), config.DatabaseConfig{Driver: "mysql", DSN: "x"}); err == nil {
		t.Fatalf("Open() error = nil, want unsupported driver")
	}
}

func TestSQLiteDSN(t *testing.T) {
	tests := map[string]string{
		"a.sqlite":                         "a.sqlite?_pragma=foreign_keys(1)",
		"file:a.sqlite?cache=shared":       "file:a.sqlite?cache=shared&_pragma=foreign_keys(1)",
		"a.sqlite?_pragma=foreign_keys(0)": "a.sqlite?_pragma=foreign_keys(0)",
		":memory:":                         ":memory:",
	}
	for in, want := range tests {
		if got := sqliteDSN(in); got != want {
			t.Fatalf("sqliteDSN(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOpenIsDocumented(t *testing.T) {
	file, err := parser.ParseFile(token.NewFileSet(), "database.go", nil, parser.ParseComments)
	if err != nil {
		t.Fatalf("parse database.go: %v", err)
	}
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Name.Name != "Open" || fn.Recv != nil {
			continue
		}
		if fn.Doc == nil || !strings.HasPrefix(fn.Doc.Text(), "Open ") {
			t.Fatalf("Open doc = %q, want a comment starting with \"Open \"", fn.Doc.Text())
		}
		return
	}
	t.Fatalf("func Open not found")
}
