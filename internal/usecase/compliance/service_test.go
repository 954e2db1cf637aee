package compliance

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"policyguard/internal/infrastructure/cache"
	"policyguard/internal/infrastructure/datasource"
	"policyguard/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "policyguard/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "policyguard/internal/infrastructure/persistence/sqlite/uow"
	"policyguard/internal/infrastructure/textextract"
	"policyguard/internal/ports"
)

// stubGenerator answers extraction prompts and remediation prompts separately.
type stubGenerator struct {
	mu          sync.Mutex
	rules       []string
	remediation string
	err         error
	calls       int
}

func (g *stubGenerator) Generate(_ context.Context, req ports.GenerateRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	if req.System != "" {
		return g.remediation, nil
	}
	if len(g.rules) == 0 {
		return "[]", nil
	}
	out := g.rules[0]
	if len(g.rules) > 1 {
		g.rules = g.rules[1:]
	}
	return out, nil
}

type testEnv struct {
	svc       *Service
	db        *gorm.DB
	generator *stubGenerator
	tempDir   string
}

func setupService(t *testing.T, options Options) *testEnv {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "policyguard.sqlite") + "?_pragma=foreign_keys(1)"
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	if options.TempDir == "" {
		options.TempDir = t.TempDir()
	}
	generator := &stubGenerator{}
	svc := NewService(
		sqliterepo.NewComplianceRepository(db),
		sqliteuow.NewUnitOfWork(db),
		cache.NewKVCache(db),
		datasource.NewOpener(),
		generator,
		textextract.New(),
		options,
	)
	return &testEnv{svc: svc, db: db, generator: generator, tempDir: options.TempDir}
}

func usersCSV() string {
	var b strings.Builder
	b.WriteString("id,name,age\n")
	for i, age := range []int{25, 31, 45, 18, 30, 29, 52, 22, 27, 30} {
		fmt.Fprintf(&b, "%d,user%d,%d\n", i+1, i+1, age)
	}
	return b.String()
}

// createReferenceDB writes an accounts table to a fresh SQLite file and
// returns its sqlite:// URI.
func createReferenceDB(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "reference.sqlite")
	db, err := gorm.Open(gormsqlite.Open(path), &gorm.Config{})
	if err != nil {
		t.Fatalf("open reference db: %v", err)
	}
	for _, stmt := range []string{
		`CREATE TABLE accounts (account_id INTEGER PRIMARY KEY, balance REAL, status TEXT)`,
		`INSERT INTO accounts VALUES (1, 100.0, 'open'), (2, -5.5, 'open'), (3, 10, 'closed')`,
	} {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get reference sql db: %v", err)
	}
	_ = sqlDB.Close()
	return "sqlite://" + path
}

func countRows(t *testing.T, db *gorm.DB, value any) int64 {
	t.Helper()

	var n int64
	if err := db.Model(value).Count(&n).Error; err != nil {
		t.Fatalf("count %T: %v", value, err)
	}
	return n
}

func fixedNow(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
