package ports

import (
	"context"
	"errors"
)

// ErrGeneratorUnavailable is returned by generators that are not configured.
var ErrGeneratorUnavailable = errors.New("text generator is not configured")

type GenerateRequest struct {
	System      string
	Prompt      string
	Temperature float64
	// MaxTokens of zero leaves the limit to the generator.
	MaxTokens int
}

// TextGenerator turns a prompt into generated text.
type TextGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// TextExtractor reads the plain text of an uploaded policy document.
type TextExtractor interface {
	ExtractText(ctx context.Context, fileName string, content []byte) (string, error)
}
