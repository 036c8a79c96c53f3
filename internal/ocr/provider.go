// Package ocr provides text extraction from page images through external
// OCR providers (Google Cloud Vision, Mistral). Providers are treated as
// opaque collaborators behind a single capability: bytes in, text out.
package ocr

import (
	"context"
	"errors"
	"fmt"

	"github.com/atelierdocs/docuflow/internal/config"
)

// Common provider errors.
var (
	// ErrEmptyResult is returned when the provider answered but produced no text.
	ErrEmptyResult = errors.New("provider returned no text")

	// ErrMissingCredentials is returned when the provider API key is not configured.
	ErrMissingCredentials = errors.New("missing OCR provider credentials")
)

// Provider extracts text from a single page buffer.
type Provider interface {
	// ExtractText runs OCR on the given page bytes and returns the extracted text.
	ExtractText(ctx context.Context, page []byte) (string, error)

	// Name identifies the provider in logs.
	Name() string
}

// NewFromEnv builds the provider selected by the OCR_PROVIDER environment
// variable ("mistral" or "google", defaulting to mistral).
func NewFromEnv(ctx context.Context) (Provider, error) {
	switch name := config.GetEnv("OCR_PROVIDER", "mistral"); name {
	case "mistral":
		return NewMistralProvider()
	case "google":
		return NewVisionProvider(ctx)
	default:
		return nil, fmt.Errorf("unknown OCR provider %q", name)
	}
}
