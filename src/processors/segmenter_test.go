package processors

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/fimaledger/src/config"
	"github.com/username/fimaledger/src/models"
)

const testRegistryYAML = `funds:
  - id: fima-premium
    display_name: FIMA Premium
    category: money_market
    keywords:
      - FIMA PREMIUM
  - id: fima-ahorro-pesos
    display_name: FIMA Ahorro Pesos
    category: fixed_income
    keywords:
      - FIMA AHORRO PESOS
`

func testRegistry(t *testing.T) *config.FundRegistry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "funds.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testRegistryYAML), 0o644))
	reg, err := config.LoadFundRegistry(path)
	require.NoError(t, err)
	return reg
}

func extractedLines(texts ...string) []models.ExtractedLine {
	lines := make([]models.ExtractedLine, len(texts))
	for i, text := range texts {
		lines[i] = models.ExtractedLine{Page: 0, Line: i, Text: text}
	}
	return lines
}

func TestSegmenter_Segment(t *testing.T) {
	segmenter := NewSegmenter(testRegistry(t))

	t.Run("splits a document into per-fund segments", func(t *testing.T) {
		segments, issues := segmenter.Segment(extractedLines(
			"FONDO - FIMA PREMIUM CLASE A",
			"15/03/2024 SUSCRIPCION 1.000,00 100,50 $ 100.500,00",
			"FONDO - FIMA AHORRO PESOS",
			"20/03/2024 RESCATE 200,00 55,00 $ 11.000,00",
		))
		require.Empty(t, issues)
		require.Len(t, segments, 2)
		assert.Equal(t, "fima-premium", segments[0].Fund.ID)
		assert.Len(t, segments[0].Lines, 2)
		assert.Equal(t, "fima-ahorro-pesos", segments[1].Fund.ID)
		assert.Len(t, segments[1].Lines, 2)
	})

	t.Run("coalesces a fund reappearing after a page break", func(t *testing.T) {
		segments, _ := segmenter.Segment(extractedLines(
			"FONDO - FIMA PREMIUM",
			"15/03/2024 SUSCRIPCION 1.000,00 100,50 $ 100.500,00",
			"FONDO - FIMA AHORRO PESOS",
			"20/03/2024 RESCATE 200,00 55,00 $ 11.000,00",
			"FONDO - FIMA PREMIUM",
			"22/03/2024 RESCATE 100,00 101,00 $ 10.100,00",
		))
		require.Len(t, segments, 2)
		assert.Equal(t, "fima-premium", segments[0].Fund.ID)
		assert.Len(t, segments[0].Lines, 4)
	})

	t.Run("operation mentioning another fund stays in the running segment", func(t *testing.T) {
		segments, _ := segmenter.Segment(extractedLines(
			"FONDO - FIMA PREMIUM",
			"15/03/2024 TRANSFERENCIA ENVIADA A FIMA AHORRO PESOS 100,00 100,00",
		))
		require.Len(t, segments, 1)
		assert.Equal(t, "fima-premium", segments[0].Fund.ID)
		assert.Len(t, segments[0].Lines, 2)
	})

	t.Run("position row routes to its inline fund", func(t *testing.T) {
		segments, _ := segmenter.Segment(extractedLines(
			"FONDO - FIMA PREMIUM",
			"FIMA AHORRO PESOS $ 1.500,00 $ 82.500,00",
		))
		require.Len(t, segments, 2)
		assert.Equal(t, "fima-ahorro-pesos", segments[1].Fund.ID)
		assert.Len(t, segments[1].Lines, 1)
	})

	t.Run("unknown fund header becomes a hard issue", func(t *testing.T) {
		segments, issues := segmenter.Segment(extractedLines(
			"FONDO - FIMA PREMIUM",
			"15/03/2024 SUSCRIPCION 1.000,00 100,50 $ 100.500,00",
			"FONDO - GALILEO RENTA FIJA",
			"20/03/2024 SUSCRIPCION 50,00 10,00 $ 500,00",
		))
		require.Len(t, issues, 2)
		assert.Equal(t, models.SeverityError, issues[0].Severity)
		assert.Contains(t, issues[0].Message, "GALILEO RENTA FIJA")

		// Lines after the unmatched header are not attributed to any fund,
		// and each discarded operation record is reported.
		require.Len(t, segments, 1)
		assert.Len(t, segments[0].Lines, 2)
		assert.Equal(t, models.SeverityWarning, issues[1].Severity)
		assert.Contains(t, issues[1].Message, "outside any fund segment")
		assert.Contains(t, issues[1].RawText, "20/03/2024")
	})

	t.Run("operation record before the first fund header is reported", func(t *testing.T) {
		segments, issues := segmenter.Segment(extractedLines(
			"10/03/2024 SUSCRIPCION 500,00 100,00 $ 50.000,00",
			"FONDO - FIMA PREMIUM",
			"15/03/2024 SUSCRIPCION 1.000,00 100,50 $ 100.500,00",
		))
		require.Len(t, segments, 1)
		assert.Len(t, segments[0].Lines, 2)

		require.Len(t, issues, 1)
		assert.Equal(t, models.SeverityWarning, issues[0].Severity)
		assert.Contains(t, issues[0].Message, "outside any fund segment")
		assert.Equal(t, 0, issues[0].Line)
	})

	t.Run("document without any fund keyword becomes one unknown segment", func(t *testing.T) {
		lines := extractedLines(
			"RESUMEN DE CUENTA",
			"15/03/2024 SUSCRIPCION 1.000,00 100,50 $ 100.500,00",
		)
		segments, issues := segmenter.Segment(lines)
		require.Len(t, segments, 1)
		assert.Equal(t, models.UnknownFundID, segments[0].Fund.ID)
		assert.Len(t, segments[0].Lines, len(lines))
		require.Len(t, issues, 1)
		assert.Equal(t, models.SeverityWarning, issues[0].Severity)
	})
}
