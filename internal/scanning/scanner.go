package scanning

import (
	"context"

	"github.com/zombor/receipt-vision/internal/document"
)

// Analyzer defines the interface for receipt document analysis
type Analyzer interface {
	// Analyze submits a receipt image/PDF and blocks until the provider
	// returns the analyzed documents or ctx is done
	Analyze(ctx context.Context, data []byte, contentType string) ([]document.Document, error)
	// Close releases provider resources
	Close() error
}
