package textextract

import (
	"context"
	"errors"
	"testing"

	"policyguard/internal/domain/compliance"
)

func TestExtractTextPlain(t *testing.T) {
	got, err := New().ExtractText(context.Background(), "policy.txt", []byte("\xef\xbb\xbf  Users must be older than 30.\n"))
	if err != nil {
		t.Fatalf("ExtractText() error = %v", err)
	}
	if got != "Users must be older than 30." {
		t.Fatalf("ExtractText() = %q", got)
	}
}

func TestExtractTextErrors(t *testing.T) {
	ctx := context.Background()

	if _, err := New().ExtractText(ctx, "blank.txt", []byte(" \n\t ")); !errors.Is(err, compliance.ErrEmptyPolicy) {
		t.Fatalf("ExtractText(blank) error = %v, want ErrEmptyPolicy", err)
	}
	if _, err := New().ExtractText(ctx, "binary.txt", []byte{0xff, 0xfe, 0x00, 0x81}); !errors.Is(err, compliance.ErrUnreadableDocument) {
		t.Fatalf("ExtractText(binary) error = %v, want ErrUnreadableDocument", err)
	}
	if _, err := New().ExtractText(ctx, "broken.pdf", []byte("%PDF-1.4 not really a pdf")); !errors.Is(err, compliance.ErrUnreadableDocument) {
		t.Fatalf("ExtractText(broken pdf) error = %v, want ErrUnreadableDocument", err)
	}
}
