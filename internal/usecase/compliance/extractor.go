package compliance

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"policyguard/internal/bootstrap/logging"
	domaincompliance "policyguard/internal/domain/compliance"
	"policyguard/internal/errs"
	"policyguard/internal/ports"
)

type ExtractorConfig struct {
	// Retries is the number of regenerations after the first attempt.
	Retries     int
	Temperature float64
	MaxTokens   int
}

// RuleExtractor asks the generator for rule candidates and keeps only those
// that name real tables, real columns and allowed operators.
type RuleExtractor struct {
	generator ports.TextGenerator
	config    ExtractorConfig
}

func NewRuleExtractor(generator ports.TextGenerator, config ExtractorConfig) *RuleExtractor {
	if config.Retries < 0 {
		config.Retries = defaultExtractionRetries
	}
	return &RuleExtractor{generator: generator, config: config}
}

// Extract returns the validated rules, or an empty list once the retry budget
// is spent. Only context cancellation is returned as an error.
func (e *RuleExtractor) Extract(ctx context.Context, policyText string, schema domaincompliance.Schema, fallback domaincompliance.Severity) ([]domaincompliance.Rule, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}
	if strings.TrimSpace(policyText) == "" || schema.IsEmpty() || e.generator == nil {
		return nil, nil
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.compliance.extractor"))
	request := ports.GenerateRequest{
		Prompt:      extractionPrompt(policyText, schema),
		Temperature: e.config.Temperature,
		MaxTokens:   e.config.MaxTokens,
	}

	attempts := e.config.Retries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		raw, err := e.generator.Generate(ctx, request)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, errs.Wrap(ctxErr, "generate rules")
			}
			logging.Warn(logCtx, "rule generation failed",
				slog.Int("attempt", attempt),
				slog.Any("err", errs.Loggable(err)),
			)
			if errors.Is(err, ports.ErrGeneratorUnavailable) {
				return nil, nil
			}
			continue
		}

		rules, err := domaincompliance.ParseCandidates(raw, schema, fallback)
		if err != nil {
			logging.Warn(logCtx, "generated rules unparseable",
				slog.Int("attempt", attempt),
				slog.String("output", truncate(raw, 500)),
				slog.Any("err", errs.Loggable(err)),
			)
			continue
		}
		if len(rules) == 0 {
			logging.Warn(logCtx, "no generated rule passed validation", slog.Int("attempt", attempt))
			continue
		}

		logging.Info(logCtx, "rules extracted", slog.Int("attempt", attempt), slog.Int("rules", len(rules)))
		return rules, nil
	}

	logging.Warn(logCtx, "rule extraction gave up", slog.Int("attempts", attempts))
	return nil, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
