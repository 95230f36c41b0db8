package parsers

import (
	"context"

	"github.com/username/fimaledger/src/models"
)

// Backend is one interchangeable PDF text-extraction engine.
// Implementations live in their own subpackages (layoutpdf, plainpdf).
type Backend interface {
	Name() string
	// Extract returns the document's text as ordered lines. Returning zero
	// lines for a document with pages is treated as a failure by the adapter.
	Extract(ctx context.Context, doc models.Document) ([]models.ExtractedLine, error)
}
