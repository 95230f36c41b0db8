package services

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/fimaledger/src/database"
	"github.com/username/fimaledger/src/logger"
	"github.com/username/fimaledger/src/models"
	"github.com/username/fimaledger/src/processors"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

var ledgerTestFund = models.Fund{ID: "fima-premium", DisplayName: "FIMA Premium", Category: models.FundMoneyMarket}

func setupLedger(t *testing.T) LedgerService {
	t.Helper()
	database.InitDB(filepath.Join(t.TempDir(), "ledger_test.db"))
	t.Cleanup(func() { database.DB.Close() })
	return NewLedgerService(processors.NewReconciler(decimal.RequireFromString("0.01")))
}

func ledgerOp(d int, kind models.OperationKind, qty, unit, amount, sourceRef string) models.Operation {
	return models.Operation{
		ID:           uuid.NewString(),
		FundID:       ledgerTestFund.ID,
		Date:         time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC),
		Kind:         kind,
		Quantity:     decimal.RequireFromString(qty),
		UnitValue:    decimal.RequireFromString(unit),
		Amount:       decimal.RequireFromString(amount),
		AmountStated: true,
		Status:       models.StatusOK,
		SourceRef:    sourceRef,
	}
}

func testDocumentResult(fileHash string, ops ...models.Operation) *DocumentResult {
	return &DocumentResult{
		Source:   "marzo.pdf",
		FileHash: fileHash,
		Funds: []FundResult{{
			Fund:       ledgerTestFund,
			Operations: ops,
		}},
	}
}

func TestLedgerService_CommitDocument(t *testing.T) {
	ledger := setupLedger(t)

	ops := []models.Operation{
		ledgerOp(15, models.KindSubscription, "1000", "100.5", "100500", "marzo.pdf:0:1"),
		ledgerOp(18, models.KindRedemption, "500", "101", "50500", "marzo.pdf:0:2"),
	}

	result := testDocumentResult("hash-a", ops...)
	require.NoError(t, ledger.CommitDocument(result))
	assert.Equal(t, 2, result.Funds[0].InsertedCount)

	t.Run("recommitting the same document inserts nothing", func(t *testing.T) {
		again := testDocumentResult("hash-a",
			ledgerOp(15, models.KindSubscription, "1000", "100.5", "100500", "marzo.pdf:0:1"),
			ledgerOp(18, models.KindRedemption, "500", "101", "50500", "marzo.pdf:0:2"),
		)
		require.NoError(t, ledger.CommitDocument(again))
		assert.Equal(t, 0, again.Funds[0].InsertedCount)

		stored, err := ledger.ListOperations(ledgerTestFund.ID, "", "")
		require.NoError(t, err)
		assert.Len(t, stored, 2)
	})

	t.Run("position reflects the fold of all stored operations", func(t *testing.T) {
		pos, err := ledger.ReadLatestPosition(ledgerTestFund.ID)
		require.NoError(t, err)
		require.NotNil(t, pos)
		assert.True(t, pos.QuantityBalance.Equal(decimal.RequireFromString("500")))
		assert.Equal(t, time.Date(2024, time.March, 18, 0, 0, 0, 0, time.UTC), pos.AsOfDate)
	})

	t.Run("ingestion history records the document", func(t *testing.T) {
		ingested, err := ledger.StatementIngested("hash-a")
		require.NoError(t, err)
		assert.True(t, ingested)

		ingested, err = ledger.StatementIngested("hash-unknown")
		require.NoError(t, err)
		assert.False(t, ingested)

		history, err := ledger.ListIngestions()
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, "marzo.pdf", history[0].Filename)
		assert.Equal(t, 2, history[0].OperationCount)
		assert.Equal(t, 2, history[0].InsertedCount)
	})

	t.Run("a later statement extends the same position", func(t *testing.T) {
		later := testDocumentResult("hash-b",
			ledgerOp(25, models.KindSubscription, "200", "102", "20400", "abril.pdf:0:1"),
		)
		require.NoError(t, ledger.CommitDocument(later))

		pos, err := ledger.ReadLatestPosition(ledgerTestFund.ID)
		require.NoError(t, err)
		require.NotNil(t, pos)
		assert.True(t, pos.QuantityBalance.Equal(decimal.RequireFromString("700")))
	})
}

func TestLedgerService_SameDayOperationsFoldInDocumentOrder(t *testing.T) {
	ledger := setupLedger(t)

	opAt := func(line int, kind models.OperationKind, qty, unit, amount string) models.Operation {
		op := ledgerOp(5, kind, qty, unit, amount, fmt.Sprintf("doc.pdf:0:%d", line))
		op.Line = line
		return op
	}

	// Two subscriptions and a redemption on the same date, at lines 2, 10
	// and 11. Line 10 sorts before line 2 lexicographically, so ordering by
	// source_ref would consume the wrong lot first.
	require.NoError(t, ledger.CommitDocument(testDocumentResult("hash-a",
		opAt(2, models.KindSubscription, "100", "10", "1000"),
		opAt(10, models.KindSubscription, "100", "20", "2000"),
		opAt(11, models.KindRedemption, "100", "15", "1500"),
	)))

	t.Run("stored operations come back in document order", func(t *testing.T) {
		ops, err := ledger.ListOperations(ledgerTestFund.ID, "", "")
		require.NoError(t, err)
		require.Len(t, ops, 3)
		assert.Equal(t, "doc.pdf:0:2", ops[0].SourceRef)
		assert.Equal(t, "doc.pdf:0:10", ops[1].SourceRef)
		assert.Equal(t, "doc.pdf:0:11", ops[2].SourceRef)
	})

	t.Run("persisted fold consumes the earliest lot first", func(t *testing.T) {
		pos, err := ledger.ReadLatestPosition(ledgerTestFund.ID)
		require.NoError(t, err)
		require.NotNil(t, pos)
		assert.True(t, pos.QuantityBalance.Equal(decimal.RequireFromString("100")))
		assert.True(t, pos.CostBasis.Equal(decimal.RequireFromString("2000")),
			"cost basis is %s, want 2000 (the line-2 lot redeemed first)", pos.CostBasis)
	})
}

func TestLedgerService_EmptySegmentWritesNoPosition(t *testing.T) {
	ledger := setupLedger(t)

	require.NoError(t, ledger.CommitDocument(testDocumentResult("hash-a")))

	pos, err := ledger.ReadLatestPosition(ledgerTestFund.ID)
	require.NoError(t, err)
	assert.Nil(t, pos)

	positions, err := ledger.ListPositions()
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestLedgerService_ListOperations(t *testing.T) {
	ledger := setupLedger(t)

	require.NoError(t, ledger.CommitDocument(testDocumentResult("hash-a",
		ledgerOp(1, models.KindSubscription, "100", "10", "1000", "a.pdf:0:1"),
		ledgerOp(10, models.KindSubscription, "100", "10", "1000", "a.pdf:0:2"),
		ledgerOp(20, models.KindRedemption, "50", "11", "550", "a.pdf:0:3"),
	)))

	t.Run("filters by date range", func(t *testing.T) {
		ops, err := ledger.ListOperations(ledgerTestFund.ID, "2024-03-05", "2024-03-15")
		require.NoError(t, err)
		require.Len(t, ops, 1)
		assert.Equal(t, "a.pdf:0:2", ops[0].SourceRef)
	})

	t.Run("returns decimals exactly as stored", func(t *testing.T) {
		ops, err := ledger.ListOperations(ledgerTestFund.ID, "", "")
		require.NoError(t, err)
		require.Len(t, ops, 3)
		assert.True(t, ops[0].Quantity.Equal(decimal.RequireFromString("100")))
		assert.True(t, ops[0].UnitValue.Equal(decimal.RequireFromString("10")))
	})

	t.Run("unknown fund yields no operations", func(t *testing.T) {
		ops, err := ledger.ListOperations("no-such-fund", "", "")
		require.NoError(t, err)
		assert.Empty(t, ops)
	})
}

func TestLedgerService_Stats(t *testing.T) {
	ledger := setupLedger(t)

	require.NoError(t, ledger.CommitDocument(testDocumentResult("hash-a",
		ledgerOp(1, models.KindSubscription, "100", "10", "1000", "a.pdf:0:1"),
	)))

	stats, err := ledger.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalOperations)
	assert.Equal(t, 1, stats.TotalPositions)
	assert.Equal(t, 1, stats.IngestedStatements)
	assert.Equal(t, "1000.00", stats.PortfolioValue)
}
