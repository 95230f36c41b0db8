package processors

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/username/fimaledger/src/logger"
	"github.com/username/fimaledger/src/models"
	"github.com/username/fimaledger/src/utils"
)

var (
	dateTokenRe      = regexp.MustCompile(`\b\d{2}/\d{2}/(?:\d{4}|\d{2})\b`)
	fullYearDateRe   = regexp.MustCompile(`\b\d{2}/\d{2}/\d{4}\b`)
	numberTokenRe    = regexp.MustCompile(`\d(?:[\d.,]*\d)?`)
	positionHeaderRe = regexp.MustCompile(`POSICION AL (\d{2}/\d{2}/\d{4})`)
	financialHintRe  = regexp.MustCompile(`\$|\d,\d{2}\b|\d\.\d{3}\b`)
)

// kindKeywords maps statement wording to operation kinds. Matching runs on
// folded text, so Suscripción == SUSCRIPCION.
var kindKeywords = []struct {
	keyword string
	kind    models.OperationKind
}{
	{"SUSCRIPCION", models.KindSubscription},
	{"COMPRA", models.KindSubscription},
	{"RESCATE", models.KindRedemption},
	{"VENTA", models.KindRedemption},
	{"TRANSFERENCIA", models.KindTransfer},
}

var transferOutRe = regexp.MustCompile(`EGRESO|SALIDA|DEBITO|ENVIADA`)

// Recognizer applies an ordered rule table to a fund segment's lines. New
// statement layouts get new table entries, not new control flow.
type Recognizer struct {
	tolerance decimal.Decimal
	maxDigits int
}

func NewRecognizer(tolerance decimal.Decimal, maxDigits int) *Recognizer {
	return &Recognizer{tolerance: tolerance, maxDigits: maxDigits}
}

// scanLine is an extracted line plus its folded text, precomputed once.
type scanLine struct {
	models.ExtractedLine
	folded string
}

// segmentScan is the mutable state of one Recognize run.
type segmentScan struct {
	r      *Recognizer
	fund   models.Fund
	source string
	ref    time.Time // apparent end of the statement period
	asOf   time.Time // as-of date of the stated position section

	pending *models.Operation // operation still waiting for a wrapped amount

	out RecognizeResult
}

type rule struct {
	name    string
	matches func(s *segmentScan, l scanLine) bool
	apply   func(s *segmentScan, l scanLine)
}

// scanRules is evaluated in order per line; the first matching rule wins.
var scanRules = []rule{
	{
		name:    "position-header",
		matches: func(s *segmentScan, l scanLine) bool { return positionHeaderRe.MatchString(l.folded) },
		apply:   (*segmentScan).applyPositionHeader,
	},
	{
		name: "operation",
		matches: func(s *segmentScan, l scanLine) bool {
			return leadingDateRe.MatchString(l.folded)
		},
		apply: (*segmentScan).applyOperation,
	},
	{
		name: "stated-position",
		matches: func(s *segmentScan, l scanLine) bool {
			return strings.Count(l.Text, "$") >= 2 && !dateTokenRe.MatchString(l.folded)
		},
		apply: (*segmentScan).applyStatedPosition,
	},
	{
		name: "continuation",
		matches: func(s *segmentScan, l scanLine) bool {
			return s.pending != nil && !dateTokenRe.MatchString(l.folded) &&
				numberTokenRe.MatchString(l.folded)
		},
		apply: (*segmentScan).applyContinuation,
	},
	{
		name: "unrecognized-financial",
		matches: func(s *segmentScan, l scanLine) bool {
			return financialHintRe.MatchString(l.folded)
		},
		apply: (*segmentScan).applyUnrecognized,
	},
	// Anything else is boilerplate (letterhead, column captions) and is
	// skipped without comment.
}

// Recognize scans one fund segment. ref is the document's apparent statement
// period end, used to resolve two-digit years; pass the zero value to let the
// recognizer infer it from the segment's own full-year dates.
func (r *Recognizer) Recognize(fund models.Fund, lines []models.ExtractedLine, source string, ref time.Time) RecognizeResult {
	if ref.IsZero() {
		ref = inferPeriodEnd(lines)
	}

	s := &segmentScan{r: r, fund: fund, source: source, ref: ref, asOf: ref}

	for _, line := range lines {
		text := strings.TrimSpace(line.Text)
		if text == "" {
			continue
		}
		l := scanLine{ExtractedLine: line, folded: utils.FoldText(text)}

		for _, rule := range scanRules {
			if rule.matches(s, l) {
				rule.apply(s, l)
				break
			}
		}
	}
	s.finishPending()

	logger.L.Debug("Segment recognized", "fund", fund.ID,
		"operations", len(s.out.Operations), "issues", len(s.out.Issues))
	return s.out
}

// inferPeriodEnd takes the latest full-year date in the segment as the end of
// the statement period. Two-digit years are resolved against it.
func inferPeriodEnd(lines []models.ExtractedLine) time.Time {
	var max time.Time
	for _, line := range lines {
		for _, tok := range fullYearDateRe.FindAllString(line.Text, -1) {
			if d, err := utils.ParseStatementDate(tok, time.Time{}); err == nil && d.After(max) {
				max = d
			}
		}
	}
	return max
}

func (s *segmentScan) applyPositionHeader(l scanLine) {
	m := positionHeaderRe.FindStringSubmatch(l.folded)
	if d, err := utils.ParseStatementDate(m[1], s.ref); err == nil {
		s.asOf = d
	}
	s.finishPending()
}

func (s *segmentScan) applyOperation(l scanLine) {
	s.finishPending()

	dateTok := leadingDateRe.FindString(l.folded)
	date, err := utils.ParseStatementDate(dateTok, s.ref)
	if err != nil {
		s.issue(l, models.SeverityError, "operation line has a malformed date: "+dateTok)
		return
	}

	kind, direction, ok := matchKind(l.folded)
	if !ok {
		s.issue(l, models.SeverityWarning, "dated line has no recognizable operation kind")
		return
	}

	values, malformed := s.parseNumbers(l.folded)
	if malformed != "" {
		s.issue(l, models.SeverityError, "operation line has a malformed numeric token: "+malformed)
		return
	}
	if len(values) < 2 {
		s.issue(l, models.SeverityError, "operation line is missing numeric data (need quantity and unit value)")
		return
	}

	quantity, unitValue := values[0], values[1]
	if quantity.IsZero() || unitValue.IsZero() {
		s.issue(l, models.SeverityError, "operation line has a zero quantity or unit value")
		return
	}

	op := models.Operation{
		ID:        uuid.NewString(),
		FundID:    s.fund.ID,
		Date:      date,
		Kind:      kind,
		Direction: direction,
		Quantity:  quantity,
		UnitValue: unitValue,
		Status:    models.StatusOK,
		SourceRef: l.Ref(s.source),
		Page:      l.Page,
		Line:      l.Line,
		RawText:   strings.TrimSpace(l.Text),
	}

	if len(values) >= 3 {
		op.Amount = values[2]
		op.AmountStated = true
		if !s.amountConsistent(op) {
			op.Status = models.StatusInconsistent
		}
		s.out.Operations = append(s.out.Operations, op)
		return
	}

	// Two numbers only: the stated total may wrap to the next line.
	s.out.Operations = append(s.out.Operations, op)
	s.pending = &s.out.Operations[len(s.out.Operations)-1]
}

func (s *segmentScan) applyStatedPosition(l scanLine) {
	s.finishPending()

	parts := splitNonEmpty(l.Text, "$")
	if len(parts) < 3 {
		s.issue(l, models.SeverityWarning, "position row does not have the expected name/quantity/value layout")
		return
	}

	quantity, err := utils.ParseRegionalDecimal(parts[1], s.r.maxDigits)
	if err != nil {
		s.issue(l, models.SeverityWarning, "position row has a malformed quantity")
		return
	}
	totalValue, err := utils.ParseRegionalDecimal(parts[2], s.r.maxDigits)
	if err != nil {
		s.issue(l, models.SeverityWarning, "position row has a malformed total value")
		return
	}

	s.out.StatedPositions = append(s.out.StatedPositions, models.StatedPosition{
		FundID:     s.fund.ID,
		AsOfDate:   s.asOf,
		Quantity:   quantity,
		TotalValue: totalValue,
		SourceRef:  l.Ref(s.source),
	})
}

func (s *segmentScan) applyContinuation(l scanLine) {
	values, malformed := s.parseNumbers(l.folded)
	if len(values) == 0 {
		s.issue(l, models.SeverityError, "continuation line has a malformed numeric token: "+malformed)
		s.pending = nil
		return
	}

	op := s.pending
	op.Amount = values[0]
	op.AmountStated = true
	if !s.amountConsistent(*op) {
		op.Status = models.StatusInconsistent
	}
	s.pending = nil
}

func (s *segmentScan) applyUnrecognized(l scanLine) {
	s.finishPending()
	s.issue(l, models.SeverityWarning, "unrecognized row skipped")
}

// finishPending closes an operation whose wrapped amount never showed up. The
// stated total is simply absent; nothing is fabricated and the reconciler
// reports the gap.
func (s *segmentScan) finishPending() {
	if s.pending == nil {
		return
	}
	s.pending.Status = models.StatusInconsistent
	s.pending = nil
}

// parseNumbers extracts regional-format numeric tokens from an operation
// line, ignoring date tokens. It returns parsed values in order plus the
// first malformed token, if any.
func (s *segmentScan) parseNumbers(folded string) ([]decimal.Decimal, string) {
	scrubbed := dateTokenRe.ReplaceAllString(folded, " ")

	var values []decimal.Decimal
	for _, tok := range numberTokenRe.FindAllString(scrubbed, -1) {
		v, err := utils.ParseRegionalDecimal(tok, s.r.maxDigits)
		if err != nil {
			return values, tok
		}
		values = append(values, v)
	}
	return values, ""
}

// amountConsistent checks amount == round(quantity * unit_value) within the
// configured tolerance. Rounding happens only here, at the comparison
// boundary.
func (s *segmentScan) amountConsistent(op models.Operation) bool {
	computed := utils.RoundAmount(op.Quantity.Mul(op.UnitValue))
	return op.Amount.Sub(computed).Abs().LessThanOrEqual(s.r.tolerance)
}

func (s *segmentScan) issue(l scanLine, severity models.IssueSeverity, message string) {
	s.out.Issues = append(s.out.Issues, models.ParseIssue{
		Page:     l.Page,
		Line:     l.Line,
		Severity: severity,
		Message:  message,
		RawText:  strings.TrimSpace(l.Text),
	})
}

func matchKind(folded string) (models.OperationKind, models.TransferDirection, bool) {
	for _, k := range kindKeywords {
		if strings.Contains(folded, k.keyword) {
			if k.kind == models.KindTransfer {
				if transferOutRe.MatchString(folded) {
					return k.kind, models.TransferOut, true
				}
				return k.kind, models.TransferIn, true
			}
			return k.kind, "", true
		}
	}
	return "", "", false
}

func splitNonEmpty(s, sep string) []string {
	var parts []string
	for _, p := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
