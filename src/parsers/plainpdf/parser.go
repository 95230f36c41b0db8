package plainpdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/dslipak/pdf"

	"github.com/username/fimaledger/src/models"
)

// Parser is the plain-text fallback engine. It loses column alignment but
// copes with producers the layout engine chokes on.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Name() string { return "plainpdf" }

func (p *Parser) Extract(ctx context.Context, doc models.Document) (lines []models.ExtractedLine, err error) {
	defer func() {
		if r := recover(); r != nil {
			lines = nil
			err = fmt.Errorf("plainpdf: reader panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(doc.Content), int64(len(doc.Content)))
	if err != nil {
		return nil, fmt.Errorf("plainpdf: open: %w", err)
	}

	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("plainpdf: %w", err)
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("plainpdf: page %d: %w", pageNum, err)
		}

		lineNum := 0
		for _, raw := range strings.Split(text, "\n") {
			trimmed := strings.TrimSpace(raw)
			if trimmed == "" {
				continue
			}
			lines = append(lines, models.ExtractedLine{Page: pageNum - 1, Line: lineNum, Text: trimmed})
			lineNum++
		}
	}
	return lines, nil
}
