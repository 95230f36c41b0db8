package layoutpdf

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/username/fimaledger/src/models"
)

// yRowTolerance groups glyphs whose baselines differ by less than this many
// PDF units into the same visual row.
const yRowTolerance = 2.0

// Parser extracts text using positioned glyph content, reassembling visual
// rows from X/Y coordinates. It handles tabular statement layouts better than
// plain-text extraction, at the cost of being stricter about file structure.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Name() string { return "layoutpdf" }

func (p *Parser) Extract(ctx context.Context, doc models.Document) (lines []models.ExtractedLine, err error) {
	// The underlying reader panics on malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			lines = nil
			err = fmt.Errorf("layoutpdf: reader panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(doc.Content), int64(len(doc.Content)))
	if err != nil {
		return nil, fmt.Errorf("layoutpdf: open: %w", err)
	}

	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("layoutpdf: %w", err)
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		rows := assembleRows(page.Content().Text)
		for i, row := range rows {
			lines = append(lines, models.ExtractedLine{Page: pageNum - 1, Line: i, Text: row})
		}
	}
	return lines, nil
}

// assembleRows buckets glyphs into visual rows by Y coordinate (PDF origin is
// bottom-left, so larger Y is higher on the page), then orders each row by X.
func assembleRows(texts []pdf.Text) []string {
	if len(texts) == 0 {
		return nil
	}

	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var rows []string
	var current []pdf.Text
	flush := func() {
		if len(current) == 0 {
			return
		}
		sort.SliceStable(current, func(i, j int) bool { return current[i].X < current[j].X })
		var b strings.Builder
		var prev *pdf.Text
		for i := range current {
			t := current[i]
			if prev != nil && t.X-(prev.X+prev.W) > prev.FontSize/2 {
				b.WriteByte(' ')
			}
			b.WriteString(t.S)
			prev = &current[i]
		}
		row := strings.TrimSpace(b.String())
		if row != "" {
			rows = append(rows, row)
		}
		current = current[:0]
	}

	rowY := sorted[0].Y
	for _, t := range sorted {
		if rowY-t.Y > yRowTolerance {
			flush()
			rowY = t.Y
		}
		current = append(current, t)
	}
	flush()
	return rows
}
