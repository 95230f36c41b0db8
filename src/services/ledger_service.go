package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/username/fimaledger/src/database"
	"github.com/username/fimaledger/src/logger"
	"github.com/username/fimaledger/src/models"
	"github.com/username/fimaledger/src/processors"
)

const opDateLayout = "2006-01-02"

type ledgerServiceImpl struct {
	reconciler processors.PositionReconciler
}

// NewLedgerService creates the gateway over the sqlite store. The reconciler
// is injected because the ledger recomputes each fund's position from the
// full stored operation history after every commit; the engine stays the only
// writer of positions.
func NewLedgerService(reconciler processors.PositionReconciler) LedgerService {
	return &ledgerServiceImpl{reconciler: reconciler}
}

// CommitDocument stores one document's operations and derived positions in a
// single transaction, so concurrent ingestions of the same fund cannot
// interleave. Re-running the same document inserts zero new rows.
func (s *ledgerServiceImpl) CommitDocument(result *DocumentResult) error {
	dbTx, err := database.DB.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", ErrLedgerFailed, err)
	}
	defer dbTx.Rollback()

	totalOps, totalInserted, issueCount := 0, 0, len(result.Issues)

	for i := range result.Funds {
		fr := &result.Funds[i]
		inserted, err := appendOperationsTx(dbTx, fr.Fund.ID, fr.Operations)
		if err != nil {
			return err
		}
		fr.InsertedCount = inserted
		totalOps += len(fr.Operations)
		totalInserted += inserted

		// Position is always the fold of everything the ledger now holds for
		// the fund, not just this document's slice of it.
		allOps, err := listOperationsTx(dbTx, fr.Fund.ID, "", "")
		if err != nil {
			return err
		}
		// A fund with no stored history has no derivable position. Writing a
		// zero row here would invent one for empty segments.
		if len(allOps) == 0 {
			continue
		}
		recon := s.reconciler.Reconcile(fr.Fund, allOps, nil)
		if err := upsertPositionTx(dbTx, recon.Position); err != nil {
			return err
		}
	}

	if _, err := dbTx.Exec(`INSERT OR REPLACE INTO ingested_statements
		(file_hash, filename, operation_count, inserted_count, issue_count, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		result.FileHash, result.Source, totalOps, totalInserted, issueCount, time.Now().UTC()); err != nil {
		return fmt.Errorf("%w: record statement: %v", ErrLedgerFailed, err)
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrLedgerFailed, err)
	}

	logger.L.Info("Document committed to ledger", "source", result.Source,
		"operations", totalOps, "inserted", totalInserted)
	return nil
}

func (s *ledgerServiceImpl) AppendOperations(fundID string, ops []models.Operation) (int, error) {
	dbTx, err := database.DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("%w: begin transaction: %v", ErrLedgerFailed, err)
	}
	defer dbTx.Rollback()

	inserted, err := appendOperationsTx(dbTx, fundID, ops)
	if err != nil {
		return 0, err
	}
	if err := dbTx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %v", ErrLedgerFailed, err)
	}
	return inserted, nil
}

func appendOperationsTx(dbTx *sql.Tx, fundID string, ops []models.Operation) (int, error) {
	stmt, err := dbTx.Prepare(`INSERT OR IGNORE INTO operations
		(id, fund_id, op_date, kind, direction, quantity, unit_value, amount, amount_stated, status, source_ref, page, line, raw_text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("%w: prepare insert: %v", ErrLedgerFailed, err)
	}
	defer stmt.Close()

	inserted := 0
	for _, op := range ops {
		amountStated := 0
		if op.AmountStated {
			amountStated = 1
		}
		res, err := stmt.Exec(op.ID, fundID, op.Date.Format(opDateLayout), string(op.Kind),
			string(op.Direction), op.Quantity.String(), op.UnitValue.String(), op.Amount.String(),
			amountStated, string(op.Status), op.SourceRef, op.Page, op.Line, op.RawText)
		if err != nil {
			return 0, fmt.Errorf("%w: insert operation (ref %s): %v", ErrLedgerFailed, op.SourceRef, err)
		}
		affected, _ := res.RowsAffected()
		if affected == 0 {
			logger.L.Debug("Skipping duplicate operation", "fund", fundID, "sourceRef", op.SourceRef)
			continue
		}
		inserted++
	}
	return inserted, nil
}

func (s *ledgerServiceImpl) UpsertPosition(pos models.Position) error {
	dbTx, err := database.DB.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", ErrLedgerFailed, err)
	}
	defer dbTx.Rollback()

	if err := upsertPositionTx(dbTx, pos); err != nil {
		return err
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrLedgerFailed, err)
	}
	return nil
}

func upsertPositionTx(dbTx *sql.Tx, pos models.Position) error {
	_, err := dbTx.Exec(`INSERT OR REPLACE INTO positions
		(fund_id, as_of_date, quantity_balance, cost_basis, last_updated)
		VALUES (?, ?, ?, ?, ?)`,
		pos.FundID, pos.AsOfDate.Format(opDateLayout),
		pos.QuantityBalance.String(), pos.CostBasis.String(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%w: upsert position for %s: %v", ErrLedgerFailed, pos.FundID, err)
	}
	return nil
}

func (s *ledgerServiceImpl) ReadLatestPosition(fundID string) (*models.Position, error) {
	row := database.DB.QueryRow(`SELECT fund_id, as_of_date, quantity_balance, cost_basis, last_updated
		FROM positions WHERE fund_id = ?`, fundID)

	pos, err := scanPosition(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read position for %s: %v", ErrLedgerFailed, fundID, err)
	}
	return &pos, nil
}

func (s *ledgerServiceImpl) ListPositions() ([]models.Position, error) {
	rows, err := database.DB.Query(`SELECT fund_id, as_of_date, quantity_balance, cost_basis, last_updated
		FROM positions ORDER BY fund_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list positions: %v", ErrLedgerFailed, err)
	}
	defer rows.Close()

	var positions []models.Position
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan position: %v", ErrLedgerFailed, err)
		}
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}

func (s *ledgerServiceImpl) ListOperations(fundID, dateFrom, dateTo string) ([]models.Operation, error) {
	dbTx, err := database.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("%w: begin transaction: %v", ErrLedgerFailed, err)
	}
	defer dbTx.Rollback()

	ops, err := listOperationsTx(dbTx, fundID, dateFrom, dateTo)
	if err != nil {
		return nil, err
	}
	return ops, dbTx.Commit()
}

func listOperationsTx(dbTx *sql.Tx, fundID, dateFrom, dateTo string) ([]models.Operation, error) {
	query := `SELECT id, fund_id, op_date, kind, direction, quantity, unit_value, amount,
		amount_stated, status, source_ref, page, line, raw_text, created_at FROM operations WHERE 1=1`
	var params []interface{}

	if fundID != "" {
		query += " AND fund_id = ?"
		params = append(params, fundID)
	}
	if dateFrom != "" {
		query += " AND op_date >= ?"
		params = append(params, dateFrom)
	}
	if dateTo != "" {
		query += " AND op_date <= ?"
		params = append(params, dateTo)
	}
	// Same-date operations keep their original document order (page, line);
	// created_at separates documents ingested at different times.
	query += " ORDER BY op_date, created_at, page, line"

	rows, err := dbTx.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("%w: list operations: %v", ErrLedgerFailed, err)
	}
	defer rows.Close()

	var ops []models.Operation
	for rows.Next() {
		var (
			op                                   models.Operation
			dateStr, kind, direction, status     string
			quantityStr, unitValueStr, amountStr string
			amountStated                         int
			createdAt                            time.Time
		)
		if err := rows.Scan(&op.ID, &op.FundID, &dateStr, &kind, &direction, &quantityStr,
			&unitValueStr, &amountStr, &amountStated, &status, &op.SourceRef, &op.Page, &op.Line,
			&op.RawText, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: scan operation: %v", ErrLedgerFailed, err)
		}

		op.Date, err = time.Parse(opDateLayout, dateStr)
		if err != nil {
			return nil, fmt.Errorf("%w: stored operation %s has bad date %q: %v", ErrLedgerFailed, op.ID, dateStr, err)
		}
		op.Kind = models.OperationKind(kind)
		op.Direction = models.TransferDirection(direction)
		op.Status = models.OperationStatus(status)
		op.AmountStated = amountStated != 0
		op.CreatedAt = createdAt

		if op.Quantity, err = decimal.NewFromString(quantityStr); err != nil {
			return nil, fmt.Errorf("%w: stored operation %s has bad quantity %q: %v", ErrLedgerFailed, op.ID, quantityStr, err)
		}
		if op.UnitValue, err = decimal.NewFromString(unitValueStr); err != nil {
			return nil, fmt.Errorf("%w: stored operation %s has bad unit value %q: %v", ErrLedgerFailed, op.ID, unitValueStr, err)
		}
		if op.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, fmt.Errorf("%w: stored operation %s has bad amount %q: %v", ErrLedgerFailed, op.ID, amountStr, err)
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

func (s *ledgerServiceImpl) ListIngestions() ([]IngestedStatement, error) {
	rows, err := database.DB.Query(`SELECT file_hash, filename, operation_count, inserted_count, issue_count, ingested_at
		FROM ingested_statements ORDER BY ingested_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: list ingestions: %v", ErrLedgerFailed, err)
	}
	defer rows.Close()

	var ingestions []IngestedStatement
	for rows.Next() {
		var ing IngestedStatement
		if err := rows.Scan(&ing.FileHash, &ing.Filename, &ing.OperationCount,
			&ing.InsertedCount, &ing.IssueCount, &ing.IngestedAt); err != nil {
			return nil, fmt.Errorf("%w: scan ingestion: %v", ErrLedgerFailed, err)
		}
		ingestions = append(ingestions, ing)
	}
	return ingestions, rows.Err()
}

func (s *ledgerServiceImpl) StatementIngested(fileHash string) (bool, error) {
	var count int
	err := database.DB.QueryRow(`SELECT COUNT(1) FROM ingested_statements WHERE file_hash = ?`, fileHash).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("%w: check statement hash: %v", ErrLedgerFailed, err)
	}
	return count > 0, nil
}

func (s *ledgerServiceImpl) Stats() (LedgerStats, error) {
	var stats LedgerStats
	if err := database.DB.QueryRow(`SELECT COUNT(1) FROM operations`).Scan(&stats.TotalOperations); err != nil {
		return stats, fmt.Errorf("%w: count operations: %v", ErrLedgerFailed, err)
	}
	if err := database.DB.QueryRow(`SELECT COUNT(1) FROM positions`).Scan(&stats.TotalPositions); err != nil {
		return stats, fmt.Errorf("%w: count positions: %v", ErrLedgerFailed, err)
	}
	if err := database.DB.QueryRow(`SELECT COUNT(1) FROM ingested_statements`).Scan(&stats.IngestedStatements); err != nil {
		return stats, fmt.Errorf("%w: count ingestions: %v", ErrLedgerFailed, err)
	}

	positions, err := s.ListPositions()
	if err != nil {
		return stats, err
	}
	total := decimal.Zero
	for _, pos := range positions {
		total = total.Add(pos.CostBasis)
	}
	stats.PortfolioValue = total.StringFixed(2)
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPosition(row rowScanner) (models.Position, error) {
	var (
		pos     models.Position
		dateStr string
		qtyStr  string
		costStr string
	)
	if err := row.Scan(&pos.FundID, &dateStr, &qtyStr, &costStr, &pos.UpdatedAt); err != nil {
		return pos, err
	}

	var err error
	if pos.AsOfDate, err = time.Parse(opDateLayout, dateStr); err != nil {
		return pos, err
	}
	if pos.QuantityBalance, err = decimal.NewFromString(qtyStr); err != nil {
		return pos, err
	}
	if pos.CostBasis, err = decimal.NewFromString(costStr); err != nil {
		return pos, err
	}
	return pos, nil
}
