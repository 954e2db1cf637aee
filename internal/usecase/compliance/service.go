package compliance

import (
	"context"
	"errors"
	"io"
	"time"

	domaincompliance "policyguard/internal/domain/compliance"
	"policyguard/internal/ports"
)

const (
	defaultExtractionRetries = 2
	defaultHistoryLimit      = 50
	defaultViolationLimit    = 50
	defaultMaxTokens         = 800

	remediationTemperature = 0.2
	remediationMaxTokens   = 150
)

// Cache keys for best-effort runtime state.
const (
	cacheKeyLastScanID         = "scan:last_id"
	cacheKeyLastScanStatus     = "scan:last_status"
	cacheKeySchedulerLastCycle = "scheduler:last_cycle_at"
	cacheKeySchedulerStatus    = "scheduler:last_status"
	cacheKeySchedulerNextCycle = "scheduler:next_cycle_at"
)

var (
	errRepositoryRequired = errors.New("compliance repository is required")
	errUnitOfWorkRequired = errors.New("compliance unit of work is required")
	errSourcesRequired    = errors.New("data source opener is required")
	errDocumentsRequired  = errors.New("text extractor is required")
)

// Options tune scans. Non-positive limits fall back to DefaultOptions values;
// ExtractionRetries only when negative.
type Options struct {
	// ReferenceDSN is the database scheduled scans evaluate stored rules against.
	ReferenceDSN      string
	ExtractionRetries int
	TempDir           string
	HistoryLimit      int
	Temperature       float64
	MaxTokens         int
	// FallbackInterval is waited when auto scan is off or its config is unreadable.
	FallbackInterval  time.Duration
}

func (o Options) withDefaults() Options {
	if o.ExtractionRetries < 0 {
		o.ExtractionRetries = defaultExtractionRetries
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = defaultHistoryLimit
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = defaultMaxTokens
	}
	if o.FallbackInterval <= 0 {
		o.FallbackInterval = domaincompliance.FallbackInterval
	}
	return o
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		ExtractionRetries: defaultExtractionRetries,
		HistoryLimit:      defaultHistoryLimit,
		MaxTokens:         defaultMaxTokens,
		FallbackInterval:  domaincompliance.FallbackInterval,
	}
}

type Service struct {
	repo      ports.ComplianceRepository
	uow       ports.UnitOfWork
	cache     ports.Cache
	sources   ports.DataSourceOpener
	generator ports.TextGenerator
	documents ports.TextExtractor
	extractor *RuleExtractor
	options   Options
	now       func() time.Time
}

// NewService wires compliance usecases. cache may be nil.
func NewService(
	repo ports.ComplianceRepository,
	uow ports.UnitOfWork,
	cache ports.Cache,
	sources ports.DataSourceOpener,
	generator ports.TextGenerator,
	documents ports.TextExtractor,
	options Options,
) *Service {
	options = options.withDefaults()
	return &Service{
		repo:      repo,
		uow:       uow,
		cache:     cache,
		sources:   sources,
		generator: generator,
		documents: documents,
		extractor: NewRuleExtractor(generator, ExtractorConfig{
			Retries:     options.ExtractionRetries,
			Temperature: options.Temperature,
			MaxTokens:   options.MaxTokens,
		}),
		options: options,
		now:     time.Now,
	}
}

type ScanInput struct {
	PolicyFileName string
	PolicyContent  []byte
	// DatabaseURI takes precedence over DataFile when both are set.
	DatabaseURI  string
	DataFileName string
	DataFile     io.Reader
	// Severity applies to extracted rules that carry none of their own.
	Severity string
}

type ScanResult struct {
	ScanID          uint64
	TotalRules      int
	TotalViolations int
	ViolationsFound bool
	ScanMode        domaincompliance.ScanMode
	InputFormat     domaincompliance.InputFormat
	Status          domaincompliance.ScanStatus
	DurationSeconds float64
}

// CycleResult describes one scheduler cycle.
type CycleResult struct {
	Ran       bool
	ScanID    uint64
	Status    domaincompliance.ScanStatus
	NextDelay time.Duration
}

func (s *Service) setCacheBestEffort(ctx context.Context, key string, value string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Set(ctx, key, value, 0)
}

func (s *Service) getCacheBestEffort(ctx context.Context, key string) string {
	if s.cache == nil {
		return ""
	}
	value, found, err := s.cache.Get(ctx, key)
	if err != nil || !found {
		return ""
	}
	return value
}

func (s *Service) checkRepo() error {
	if s.repo == nil {
		return errRepositoryRequired
	}
	return nil
}
