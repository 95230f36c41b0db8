package services

import (
	"context"
	"errors"
	"time"

	"github.com/username/fimaledger/src/models"
)

var (
	ErrExtractionFailed = errors.New("statement text extraction failed")
	ErrLedgerFailed     = errors.New("ledger storage failed")
)

// FundResult bundles everything one document produced for one fund.
type FundResult struct {
	Fund            models.Fund                  `json:"fund"`
	Operations      []models.Operation           `json:"operations"`
	StatedPositions []models.StatedPosition      `json:"stated_positions,omitempty"`
	Reconciliation  models.ReconciliationResult  `json:"reconciliation"`
	InsertedCount   int                          `json:"inserted_count"`
}

// DocumentResult is the full outcome of ingesting one statement PDF: the
// per-fund results plus every issue collected along the way. Callers always
// see what did not parse.
type DocumentResult struct {
	Source          string              `json:"source"`
	FileHash        string              `json:"file_hash"`
	AlreadyIngested bool                `json:"already_ingested"`
	ExtractedLines  int                 `json:"extracted_lines"`
	Backend         string              `json:"backend,omitempty"`
	Funds           []FundResult        `json:"funds"`
	Issues          []models.ParseIssue `json:"issues"`
}

// IngestedStatement is one row of the ingestion history.
type IngestedStatement struct {
	FileHash       string    `json:"file_hash"`
	Filename       string    `json:"filename"`
	OperationCount int       `json:"operation_count"`
	InsertedCount  int       `json:"inserted_count"`
	IssueCount     int       `json:"issue_count"`
	IngestedAt     time.Time `json:"ingested_at"`
}

// LedgerStats summarizes the store, mirroring what the desktop tool showed in
// its status bar.
type LedgerStats struct {
	TotalOperations    int    `json:"total_operations"`
	TotalPositions     int    `json:"total_positions"`
	IngestedStatements int    `json:"ingested_statements"`
	PortfolioValue     string `json:"portfolio_cost_basis"`
}

// StatementService runs the full pipeline for one document:
// extract -> segment -> recognize -> reconcile -> ledger.
type StatementService interface {
	ProcessStatement(ctx context.Context, doc models.Document) (*DocumentResult, error)
	GetPositions() ([]models.Position, error)
	GetOperations(fundID, dateFrom, dateTo string) ([]models.Operation, error)
	GetIngestions() ([]IngestedStatement, error)
	GetStats() (LedgerStats, error)
}

// LedgerService is the gateway to the append-only operation store and the
// upsertable position store. AppendOperations must be idempotent under the
// (fund_id, date, source_ref) key.
type LedgerService interface {
	CommitDocument(result *DocumentResult) error
	AppendOperations(fundID string, ops []models.Operation) (int, error)
	UpsertPosition(pos models.Position) error
	ReadLatestPosition(fundID string) (*models.Position, error)
	ListPositions() ([]models.Position, error)
	ListOperations(fundID, dateFrom, dateTo string) ([]models.Operation, error)
	ListIngestions() ([]IngestedStatement, error)
	StatementIngested(fileHash string) (bool, error)
	Stats() (LedgerStats, error)
}
