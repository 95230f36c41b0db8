package processors

import (
	"regexp"
	"strings"

	"github.com/username/fimaledger/src/config"
	"github.com/username/fimaledger/src/logger"
	"github.com/username/fimaledger/src/models"
	"github.com/username/fimaledger/src/utils"
)

// leadingDateRe marks a line that is itself an operation record; a fund name
// inside a transaction description must not open a new segment.
var leadingDateRe = regexp.MustCompile(`^\d{2}/\d{2}/(?:\d{4}|\d{2})\b`)

// fundHeaderRe matches the explicit header form the statements print,
// e.g. "FONDO - FIMA PREMIUM CLASE A".
var fundHeaderRe = regexp.MustCompile(`^FONDO\s*-\s*(.+)$`)

// Segmenter groups extracted lines by the fund they belong to. Occurrences of
// the same fund across page breaks are coalesced into one logical segment in
// document order.
type Segmenter struct {
	registry *config.FundRegistry
}

func NewSegmenter(registry *config.FundRegistry) *Segmenter {
	return &Segmenter{registry: registry}
}

func (s *Segmenter) Segment(lines []models.ExtractedLine) ([]models.Segment, []models.ParseIssue) {
	var issues []models.ParseIssue
	// Operation records seen while no segment is open are only lost when the
	// document has segments at all; the unknown-segment fallback keeps them.
	var orphaned []models.ParseIssue

	segmentIdx := make(map[string]int) // fund id -> index into segments
	var segments []models.Segment
	current := -1

	appendTo := func(fund models.Fund, line models.ExtractedLine) int {
		idx, seen := segmentIdx[fund.ID]
		if !seen {
			segments = append(segments, models.Segment{Fund: fund})
			idx = len(segments) - 1
			segmentIdx[fund.ID] = idx
		}
		segments[idx].Lines = append(segments[idx].Lines, line)
		return idx
	}

	for _, line := range lines {
		folded := utils.FoldText(strings.TrimSpace(line.Text))

		isOperationRecord := leadingDateRe.MatchString(folded)
		isPositionRow := !isOperationRecord && strings.Count(line.Text, "$") >= 2

		switch {
		case isOperationRecord:
			// Operation records stay in the running segment even when they
			// mention another fund by name inside their description.
			if current >= 0 {
				segments[current].Lines = append(segments[current].Lines, line)
				continue
			}
			orphaned = append(orphaned, models.ParseIssue{
				Page:     line.Page,
				Line:     line.Line,
				Severity: models.SeverityWarning,
				Message:  "operation record outside any fund segment was discarded",
				RawText:  line.Text,
			})

		case isPositionRow:
			// Stated-position rows identify their fund inline; they belong to
			// that fund's segment without switching the running one.
			if fund, ok := s.registry.Match(line.Text); ok {
				appendTo(fund, line)
			} else if current >= 0 {
				segments[current].Lines = append(segments[current].Lines, line)
			}

		default:
			if fund, ok := s.registry.Match(line.Text); ok {
				current = appendTo(fund, line)
				continue
			}

			// A header-shaped line whose fund is not configured is surfaced
			// as a hard issue; the pipeline never invents funds from free
			// text.
			if m := fundHeaderRe.FindStringSubmatch(folded); m != nil {
				issues = append(issues, models.ParseIssue{
					Page:     line.Page,
					Line:     line.Line,
					Severity: models.SeverityError,
					Message:  "fund header does not match any configured fund: " + strings.TrimSpace(m[1]),
					RawText:  line.Text,
				})
				current = -1
				continue
			}

			if current >= 0 {
				segments[current].Lines = append(segments[current].Lines, line)
			}
		}
	}

	if len(segments) == 0 {
		logger.L.Warn("No fund header recognized in document, using single unknown segment", "lines", len(lines))
		issues = append(issues, models.ParseIssue{
			Severity: models.SeverityWarning,
			Message:  "no configured fund keyword found; entire document treated as one unidentified segment",
		})
		return []models.Segment{{Fund: models.UnknownFund(), Lines: lines}}, issues
	}

	return segments, append(issues, orphaned...)
}
