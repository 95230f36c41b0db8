package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/fimaledger/src/config"
	"github.com/username/fimaledger/src/database"
	"github.com/username/fimaledger/src/models"
	"github.com/username/fimaledger/src/parsers"
	"github.com/username/fimaledger/src/processors"
)

const statementRegistryYAML = `funds:
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

// stubBackend hands the pipeline a fixed page of text, standing in for a PDF
// engine.
type stubBackend struct {
	lines []models.ExtractedLine
}

func (s *stubBackend) Name() string { return "stub" }

func (s *stubBackend) Extract(ctx context.Context, doc models.Document) ([]models.ExtractedLine, error) {
	return s.lines, nil
}

func statementLines(texts ...string) []models.ExtractedLine {
	lines := make([]models.ExtractedLine, len(texts))
	for i, text := range texts {
		lines[i] = models.ExtractedLine{Page: 0, Line: i, Text: text}
	}
	return lines
}

func setupStatementService(t *testing.T, backend parsers.Backend) StatementService {
	t.Helper()

	registryPath := filepath.Join(t.TempDir(), "funds.yaml")
	require.NoError(t, os.WriteFile(registryPath, []byte(statementRegistryYAML), 0o644))
	registry, err := config.LoadFundRegistry(registryPath)
	require.NoError(t, err)
	config.Funds = registry
	t.Cleanup(func() { config.Funds = nil })

	database.InitDB(filepath.Join(t.TempDir(), "statements_test.db"))
	t.Cleanup(func() { database.DB.Close() })

	tolerance := decimal.RequireFromString("0.01")
	reconciler := processors.NewReconciler(tolerance)

	return NewStatementService(
		parsers.NewExtractor(time.Second, backend),
		processors.NewSegmenter(registry),
		processors.NewRecognizer(tolerance, 18),
		reconciler,
		NewLedgerService(reconciler),
		cache.New(time.Minute, time.Minute),
	)
}

func TestStatementService_ProcessStatement(t *testing.T) {
	backend := &stubBackend{lines: statementLines(
		"FONDO - FIMA PREMIUM",
		"15/03/2024 SUSCRIPCION 1.000,00 100,50 $ 100.500,00",
		"18/03/2024 RESCATE 500,00 101,00 $ 50.500,00",
		"FONDO - FIMA AHORRO PESOS",
		"20/03/2024 SUSCRIPCION 200,00 55,00 $ 11.000,00",
		"PROMOCION ESPECIAL $ 1,00",
		"POSICION AL 31/03/2024",
		"FIMA AHORRO PESOS $ 200,00 $ 11.000,00",
	)}
	svc := setupStatementService(t, backend)

	doc := models.Document{Filename: "marzo.pdf", Content: []byte("%PDF-1.4 fake")}
	result, err := svc.ProcessStatement(context.Background(), doc)
	require.NoError(t, err)

	t.Run("both funds come out with their operations", func(t *testing.T) {
		require.Len(t, result.Funds, 2)
		assert.Equal(t, "fima-premium", result.Funds[0].Fund.ID)
		assert.Len(t, result.Funds[0].Operations, 2)
		assert.Equal(t, "fima-ahorro-pesos", result.Funds[1].Fund.ID)
		assert.Len(t, result.Funds[1].Operations, 1)
		assert.Equal(t, "stub", result.Backend)
	})

	t.Run("unrecognized financial row surfaces as a warning", func(t *testing.T) {
		require.Len(t, result.Issues, 1)
		assert.Equal(t, models.SeverityWarning, result.Issues[0].Severity)
		assert.Contains(t, result.Issues[0].RawText, "PROMOCION ESPECIAL")
	})

	t.Run("reconciliation ran per fund", func(t *testing.T) {
		premium := result.Funds[0].Reconciliation
		assert.True(t, premium.Position.QuantityBalance.Equal(decimal.RequireFromString("500")))

		ahorro := result.Funds[1].Reconciliation
		assert.True(t, ahorro.Position.QuantityBalance.Equal(decimal.RequireFromString("200")))
		assert.Empty(t, ahorro.Findings)
	})

	t.Run("positions are queryable afterwards", func(t *testing.T) {
		positions, err := svc.GetPositions()
		require.NoError(t, err)
		assert.Len(t, positions, 2)
	})

	t.Run("second ingestion of the same bytes is a no-op", func(t *testing.T) {
		again, err := svc.ProcessStatement(context.Background(), doc)
		require.NoError(t, err)
		assert.True(t, again.AlreadyIngested)
		assert.Empty(t, again.Funds)

		ops, err := svc.GetOperations("fima-premium", "", "")
		require.NoError(t, err)
		assert.Len(t, ops, 2)
	})

	t.Run("stats reflect the single ingestion", func(t *testing.T) {
		stats, err := svc.GetStats()
		require.NoError(t, err)
		assert.Equal(t, 3, stats.TotalOperations)
		assert.Equal(t, 1, stats.IngestedStatements)
	})
}

func TestStatementService_ExtractionFailure(t *testing.T) {
	svc := setupStatementService(t, &stubBackend{})

	_, err := svc.ProcessStatement(context.Background(), models.Document{
		Filename: "vacio.pdf",
		Content:  []byte("%PDF-1.4 empty"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExtractionFailed)
}
