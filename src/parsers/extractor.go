package parsers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/username/fimaledger/src/logger"
	"github.com/username/fimaledger/src/models"
	"github.com/username/fimaledger/src/security/validation"
)

// ErrExtractionFailed is wrapped by every ExtractionError so callers can
// dispatch with errors.Is.
var ErrExtractionFailed = errors.New("text extraction failed")

// BackendFailure records why one engine gave up on a document.
type BackendFailure struct {
	Backend string `json:"backend"`
	Reason  string `json:"reason"`
}

// ExtractionError is the unrecoverable case: every configured backend failed.
type ExtractionError struct {
	Attempts []BackendFailure
}

func (e *ExtractionError) Error() string {
	reasons := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		reasons[i] = fmt.Sprintf("%s: %s", a.Backend, a.Reason)
	}
	return fmt.Sprintf("all extraction backends failed [%s]", strings.Join(reasons, "; "))
}

func (e *ExtractionError) Unwrap() error { return ErrExtractionFailed }

// Extractor tries backends in a fixed priority order until one produces
// lines. Each attempt gets its own wall-time budget; a timeout, an error or
// empty output all fall through to the next backend. The Extractor holds no
// per-document state, so one instance serves concurrent pipelines.
type Extractor struct {
	backends []Backend
	timeout  time.Duration
}

func NewExtractor(timeout time.Duration, backends ...Backend) *Extractor {
	return &Extractor{backends: backends, timeout: timeout}
}

type extractOutcome struct {
	lines []models.ExtractedLine
	err   error
}

// Extract runs the fallback chain for one document. It returns the lines and
// the name of the backend that produced them.
func (e *Extractor) Extract(ctx context.Context, doc models.Document) ([]models.ExtractedLine, string, error) {
	var attempts []BackendFailure

	for _, backend := range e.backends {
		lines, err := e.tryBackend(ctx, backend, doc)
		if err != nil {
			logger.L.Warn("Extraction backend failed, falling through",
				"backend", backend.Name(), "document", doc.Filename, "error", err)
			attempts = append(attempts, BackendFailure{Backend: backend.Name(), Reason: err.Error()})
			continue
		}
		if len(lines) == 0 {
			logger.L.Warn("Extraction backend returned no lines, falling through",
				"backend", backend.Name(), "document", doc.Filename)
			attempts = append(attempts, BackendFailure{Backend: backend.Name(), Reason: "no extractable lines"})
			continue
		}
		lines = sanitizeLines(lines)
		if len(lines) == 0 {
			attempts = append(attempts, BackendFailure{Backend: backend.Name(), Reason: "no printable lines"})
			continue
		}
		logger.L.Info("Text extracted", "backend", backend.Name(),
			"document", doc.Filename, "lines", len(lines))
		return lines, backend.Name(), nil
	}

	return nil, "", &ExtractionError{Attempts: attempts}
}

// sanitizeLines strips control runes that PDF engines occasionally emit and
// drops lines that are empty afterwards. Page and line numbers are preserved
// so source references keep pointing at the original location.
func sanitizeLines(lines []models.ExtractedLine) []models.ExtractedLine {
	out := lines[:0]
	for _, line := range lines {
		line.Text = strings.TrimSpace(validation.StripUnprintable(line.Text))
		if line.Text == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

func (e *Extractor) tryBackend(ctx context.Context, backend Backend, doc models.Document) ([]models.ExtractedLine, error) {
	attemptCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	done := make(chan extractOutcome, 1)
	go func() {
		lines, err := backend.Extract(attemptCtx, doc)
		done <- extractOutcome{lines: lines, err: err}
	}()

	select {
	case out := <-done:
		return out.lines, out.err
	case <-attemptCtx.Done():
		return nil, fmt.Errorf("backend %s: %w", backend.Name(), attemptCtx.Err())
	}
}
