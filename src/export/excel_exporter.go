package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/username/fimaledger/src/config"
	"github.com/username/fimaledger/src/logger"
	"github.com/username/fimaledger/src/models"
	"github.com/username/fimaledger/src/security/validation"
	"github.com/username/fimaledger/src/services"
)

const (
	sheetSummary    = "Resumen"
	sheetOperations = "Operaciones"
	sheetPositions  = "Posiciones"

	headerFillColor = "366092"
)

// ExcelExporter renders the ledger into a multi-sheet workbook. Quantities
// and amounts are written as their canonical decimal strings; converting
// them to floats would reintroduce the rounding the whole pipeline avoids.
type ExcelExporter struct{}

func NewExcelExporter() *ExcelExporter {
	return &ExcelExporter{}
}

// Build assembles the workbook from current ledger contents. The caller owns
// the returned file and decides whether to stream or save it.
func (e *ExcelExporter) Build(ops []models.Operation, positions []models.Position, stats services.LedgerStats) (*excelize.File, error) {
	f := excelize.NewFile()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFillColor}},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if err := e.writeSummary(f, headerStyle, positions, stats); err != nil {
		return nil, err
	}
	if err := e.writeOperations(f, headerStyle, ops); err != nil {
		return nil, err
	}
	if err := e.writePositions(f, headerStyle, positions); err != nil {
		return nil, err
	}

	// The default sheet excelize creates is replaced by the summary.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("remove default sheet: %w", err)
	}
	if idx, err := f.GetSheetIndex(sheetSummary); err == nil {
		f.SetActiveSheet(idx)
	}

	logger.L.Info("Workbook built", "operations", len(ops), "positions", len(positions))
	return f, nil
}

func (e *ExcelExporter) writeSummary(f *excelize.File, headerStyle int, positions []models.Position, stats services.LedgerStats) error {
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheetSummary, err)
	}

	rows := [][]interface{}{
		{"Generado el", time.Now().Format("02/01/2006 15:04:05")},
		{},
		{"Operaciones registradas", stats.TotalOperations},
		{"Fondos con posición", stats.TotalPositions},
		{"Extractos ingresados", stats.IngestedStatements},
		{"Costo total del portfolio", stats.PortfolioValue},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheetSummary, cell, &row); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}

	headers := []interface{}{"Fondo", "Fecha", "Cuotapartes", "Costo"}
	if err := f.SetSheetRow(sheetSummary, "A8", &headers); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}
	if err := f.SetCellStyle(sheetSummary, "A8", "D8", headerStyle); err != nil {
		return fmt.Errorf("style summary header: %w", err)
	}

	for i, pos := range positions {
		row := []interface{}{
			fundDisplayName(pos.FundID),
			formatDate(pos.AsOfDate),
			pos.QuantityBalance.String(),
			pos.CostBasis.StringFixed(2),
		}
		cell, _ := excelize.CoordinatesToCellName(1, 9+i)
		if err := f.SetSheetRow(sheetSummary, cell, &row); err != nil {
			return fmt.Errorf("write summary position row: %w", err)
		}
	}
	return nil
}

func (e *ExcelExporter) writeOperations(f *excelize.File, headerStyle int, ops []models.Operation) error {
	if _, err := f.NewSheet(sheetOperations); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheetOperations, err)
	}

	headers := []interface{}{"Fecha", "Fondo", "Tipo", "Dirección", "Cuotapartes",
		"Valor Unitario", "Monto", "Estado", "Origen", "Texto Original"}
	if err := f.SetSheetRow(sheetOperations, "A1", &headers); err != nil {
		return fmt.Errorf("write operations header: %w", err)
	}
	endCell, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheetOperations, "A1", endCell, headerStyle); err != nil {
		return fmt.Errorf("style operations header: %w", err)
	}

	for i, op := range ops {
		row := []interface{}{
			formatDate(op.Date),
			fundDisplayName(op.FundID),
			string(op.Kind),
			string(op.Direction),
			op.Quantity.String(),
			op.UnitValue.String(),
			op.Amount.StringFixed(2),
			string(op.Status),
			op.SourceRef,
			validation.SanitizeForFormulaInjection(op.RawText),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheetOperations, cell, &row); err != nil {
			return fmt.Errorf("write operation row: %w", err)
		}
	}
	return nil
}

func (e *ExcelExporter) writePositions(f *excelize.File, headerStyle int, positions []models.Position) error {
	if _, err := f.NewSheet(sheetPositions); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheetPositions, err)
	}

	headers := []interface{}{"Fondo", "Fecha", "Cuotapartes", "Costo", "Actualizado"}
	if err := f.SetSheetRow(sheetPositions, "A1", &headers); err != nil {
		return fmt.Errorf("write positions header: %w", err)
	}
	if err := f.SetCellStyle(sheetPositions, "A1", "E1", headerStyle); err != nil {
		return fmt.Errorf("style positions header: %w", err)
	}

	for i, pos := range positions {
		row := []interface{}{
			fundDisplayName(pos.FundID),
			formatDate(pos.AsOfDate),
			pos.QuantityBalance.String(),
			pos.CostBasis.StringFixed(2),
			pos.UpdatedAt.Format("02/01/2006 15:04:05"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheetPositions, cell, &row); err != nil {
			return fmt.Errorf("write position row: %w", err)
		}
	}
	return nil
}

func fundDisplayName(fundID string) string {
	if config.Funds != nil {
		if fund, ok := config.Funds.ByID(fundID); ok {
			return fund.DisplayName
		}
	}
	return fundID
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006")
}
