package compliance

import (
	"context"
	"log/slog"
	"strings"

	"policyguard/internal/bootstrap/logging"
	"policyguard/internal/errs"
	"policyguard/internal/ports"
)

const minRemediationLength = 10

type Remediation struct {
	ViolationID uint64 `json:"violation_id" yaml:"violation_id"`
	Advice      string `json:"advice" yaml:"advice"`
	// Generated is false when the fixed fallback advice was returned.
	Generated   bool   `json:"generated" yaml:"generated"`
}

// SuggestRemediation asks the generator for short fix-up steps. Generator
// failures fall back to FallbackRemediation; only lookup failures are returned.
func (s *Service) SuggestRemediation(ctx context.Context, violationID uint64) (Remediation, error) {
	if err := s.checkRead(ctx); err != nil {
		return Remediation{}, err
	}

	violation, err := s.repo.GetViolation(ctx, violationID)
	if err != nil {
		return Remediation{}, err
	}

	result := Remediation{ViolationID: violationID, Advice: FallbackRemediation}
	if s.generator == nil {
		return result, nil
	}

	text, err := s.generator.Generate(ctx, ports.GenerateRequest{
		System:      remediationSystemPrompt,
		Prompt:      remediationPrompt(violation.Explanation),
		Temperature: remediationTemperature,
		MaxTokens:   remediationMaxTokens,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Remediation{}, errs.Wrap(ctxErr, "generate remediation")
		}
		logging.Warn(
			logging.WithAttrs(ctx, slog.String("component", "usecase.compliance.remediation")),
			"remediation generation failed",
			slog.Uint64("violation_id", violationID),
			slog.Any("err", errs.Loggable(err)),
		)
		return result, nil
	}

	text = strings.TrimSpace(text)
	if len(text) < minRemediationLength {
		return result, nil
	}
	result.Advice = text
	result.Generated = true
	return result, nil
}
