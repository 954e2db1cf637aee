package compliance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domaincompliance "policyguard/internal/domain/compliance"
	"policyguard/internal/infrastructure/persistence/sqlite/model"
	"policyguard/internal/ports"
)

func enableAutoScan(t *testing.T, svc *Service, minutes int) {
	t.Helper()

	enabled := true
	if _, err := svc.UpdateSystemConfig(context.Background(), domaincompliance.SystemConfigUpdate{
		AutoScanEnabled:     &enabled,
		ScanIntervalMinutes: &minutes,
	}); err != nil {
		t.Fatalf("UpdateSystemConfig() error = %v", err)
	}
}

func storeAccountRules(t *testing.T, svc *Service) {
	t.Helper()

	ctx := context.Background()
	policy, err := svc.repo.CreatePolicy(ctx, ports.PolicyCreate{FileName: "policy.txt", ExtractedText: "balances stay positive"})
	if err != nil {
		t.Fatalf("CreatePolicy() error = %v", err)
	}
	if _, err := svc.repo.CreateRules(ctx, policy.PolicyID, []domaincompliance.Rule{
		{TableName: "accounts", Field: "balance", Operator: domaincompliance.OpGreaterEqual, Value: domaincompliance.NumberValue(0), Severity: domaincompliance.SeverityHigh},
		{TableName: "ghost", Field: "balance", Operator: domaincompliance.OpGreater, Value: domaincompliance.NumberValue(1), Severity: domaincompliance.SeverityLow},
	}); err != nil {
		t.Fatalf("CreateRules() error = %v", err)
	}
}

func TestSchedulerCycleDisabled(t *testing.T) {
	env := setupService(t, Options{})
	ctx := context.Background()

	result := env.svc.RunSchedulerCycle(ctx)
	if result.Ran || result.NextDelay != 5*time.Minute {
		t.Fatalf("RunSchedulerCycle() = %+v", result)
	}
	if n := countRows(t, env.db, &model.ScanRun{}); n != 0 {
		t.Fatalf("scan runs = %d, want 0", n)
	}

	status, err := env.svc.SystemStatus(ctx)
	if err != nil {
		t.Fatalf("SystemStatus() error = %v", err)
	}
	if status.SchedulerLastStatus != "IDLE" || status.SchedulerNextCycleAt == "" {
		t.Fatalf("SystemStatus() = %+v", status)
	}
}

func TestSchedulerCycleRunsAutoScan(t *testing.T) {
	env := setupService(t, Options{ReferenceDSN: createReferenceDB(t)})
	storeAccountRules(t, env.svc)
	enableAutoScan(t, env.svc, 15)

	result := env.svc.RunSchedulerCycle(context.Background())
	if !result.Ran || result.Status != domaincompliance.StatusAutoSuccess {
		t.Fatalf("RunSchedulerCycle() = %+v", result)
	}
	if result.NextDelay != 15*time.Minute {
		t.Fatalf("NextDelay = %s, want 15m", result.NextDelay)
	}

	run, err := env.svc.repo.GetScanRun(context.Background(), result.ScanID)
	if err != nil {
		t.Fatalf("GetScanRun() error = %v", err)
	}
	if run.TotalRules != 2 || run.TotalViolations != 1 || run.Status != domaincompliance.StatusAutoSuccess {
		t.Fatalf("GetScanRun() = %+v", run)
	}
}

func TestSchedulerCycleRecordsAutoFailure(t *testing.T) {
	env := setupService(t, Options{})
	storeAccountRules(t, env.svc)
	enableAutoScan(t, env.svc, 15)

	result := env.svc.RunSchedulerCycle(context.Background())
	if !result.Ran || result.Status != domaincompliance.StatusAutoFailed || result.NextDelay != 15*time.Minute {
		t.Fatalf("RunSchedulerCycle() = %+v", result)
	}

	runs, err := env.svc.History(context.Background(), 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("History() len = %d, want 1", len(runs))
	}
	if runs[0].Status != domaincompliance.StatusAutoFailed || runs[0].TotalRules != 0 || runs[0].TotalViolations != 0 {
		t.Fatalf("History()[0] = %+v", runs[0])
	}
}

type listRulesFailingRepo struct {
	ports.ComplianceRepository
	err error
}

func (r listRulesFailingRepo) ListRules(context.Context) ([]ports.StoredRule, error) {
	return nil, r.err
}

func TestAutoScanClosesSourceWhenRunFails(t *testing.T) {
	env := setupService(t, Options{ReferenceDSN: "postgres://example/reference"})
	source := &fakeSource{schema: scanUsersSchema()}
	env.svc.sources = fakeOpener{source: source}
	cause := errors.New("rules table locked")
	env.svc.repo = listRulesFailingRepo{ComplianceRepository: env.svc.repo, err: cause}

	result, err := env.svc.RunAutoScan(context.Background())
	if !errors.Is(err, cause) {
		t.Fatalf("RunAutoScan() error = %v, want %v", err, cause)
	}
	if result.Status != domaincompliance.StatusAutoFailed || result.ScanID == 0 {
		t.Fatalf("RunAutoScan() = %+v", result)
	}
	if source.closes != 1 {
		t.Fatalf("Close() calls = %d, want 1", source.closes)
	}

	run, err := env.svc.repo.GetScanRun(context.Background(), result.ScanID)
	if err != nil {
		t.Fatalf("GetScanRun() error = %v", err)
	}
	if run.Status != domaincompliance.StatusAutoFailed || run.TotalRules != 0 || run.TotalViolations != 0 {
		t.Fatalf("GetScanRun() = %+v", run)
	}
}

func TestAutoScanClosesSourceOnSuccess(t *testing.T) {
	env := setupService(t, Options{ReferenceDSN: "postgres://example/reference"})
	source := &fakeSource{schema: scanUsersSchema(), findErr: domaincompliance.ErrPredicateEvaluation}
	env.svc.sources = fakeOpener{source: source}
	storeAccountRules(t, env.svc)

	result, err := env.svc.RunAutoScan(context.Background())
	if err != nil {
		t.Fatalf("RunAutoScan() error = %v", err)
	}
	if result.Status != domaincompliance.StatusAutoSuccess || result.TotalViolations != 0 {
		t.Fatalf("RunAutoScan() = %+v", result)
	}
	if source.closes != 1 {
		t.Fatalf("Close() calls = %d, want 1", source.closes)
	}
}

type panicOpener struct{}

func (panicOpener) OpenDatabase(context.Context, string) (ports.DataSource, error) {
	panic("driver exploded")
}

func (panicOpener) OpenFile(context.Context, string, string) (ports.DataSource, error) {
	panic("driver exploded")
}

func TestSchedulerCycleRecoversPanic(t *testing.T) {
	env := setupService(t, Options{ReferenceDSN: "sqlite:///nowhere.sqlite"})
	env.svc.sources = panicOpener{}
	enableAutoScan(t, env.svc, 15)

	result := env.svc.RunSchedulerCycle(context.Background())
	if result.Ran || result.NextDelay != domaincompliance.FallbackInterval {
		t.Fatalf("RunSchedulerCycle() = %+v", result)
	}
}

func TestSchedulerRunIsSingleOwner(t *testing.T) {
	env := setupService(t, Options{})
	scheduler := NewScheduler(env.svc)

	var (
		once   sync.Once
		mu     sync.Mutex
		delays []time.Duration
	)
	started := make(chan struct{})
	scheduler.cycles = func(CycleResult) {
		once.Do(func() { close(started) })
	}
	scheduler.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		delays = append(delays, d)
		mu.Unlock()
		<-ctx.Done()
		return ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- scheduler.Run(ctx)
	}()

	<-started
	if err := scheduler.Run(ctx); !errors.Is(err, ErrSchedulerRunning) {
		t.Fatalf("second Run() error = %v, want ErrSchedulerRunning", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not stop after cancellation")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(delays) != 1 || delays[0] != domaincompliance.FallbackInterval {
		t.Fatalf("delays = %v", delays)
	}
}

func TestUpdateSystemConfigValidatesInterval(t *testing.T) {
	env := setupService(t, Options{})
	ctx := context.Background()

	for _, minutes := range []int{0, 1441} {
		minutes := minutes
		enabled := true
		_, err := env.svc.UpdateSystemConfig(ctx, domaincompliance.SystemConfigUpdate{
			AutoScanEnabled:     &enabled,
			ScanIntervalMinutes: &minutes,
		})
		if !errors.Is(err, domaincompliance.ErrInvalidScanInterval) {
			t.Fatalf("UpdateSystemConfig(%d) error = %v, want ErrInvalidScanInterval", minutes, err)
		}
	}

	cfg, err := env.svc.GetSystemConfig(ctx)
	if err != nil {
		t.Fatalf("GetSystemConfig() error = %v", err)
	}
	if cfg != domaincompliance.DefaultSystemConfig() {
		t.Fatalf("GetSystemConfig() = %+v, want defaults", cfg)
	}

	enableAutoScan(t, env.svc, 1440)
	cfg, err = env.svc.GetSystemConfig(ctx)
	if err != nil {
		t.Fatalf("GetSystemConfig() error = %v", err)
	}
	if !cfg.AutoScanEnabled || cfg.ScanIntervalMinutes != 1440 {
		t.Fatalf("GetSystemConfig() = %+v", cfg)
	}
	if n := countRows(t, env.db, &model.SystemConfig{}); n != 1 {
		t.Fatalf("system config rows = %d, want 1", n)
	}
}
