package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/username/fimaledger/src/config"
	"github.com/username/fimaledger/src/export"
	"github.com/username/fimaledger/src/logger"
	"github.com/username/fimaledger/src/services"
	"github.com/username/fimaledger/src/utils"
)

type ExportHandler struct {
	statementService services.StatementService
	exporter         *export.ExcelExporter
}

func NewExportHandler(service services.StatementService, exporter *export.ExcelExporter) *ExportHandler {
	return &ExportHandler{
		statementService: service,
		exporter:         exporter,
	}
}

// HandleExportExcel streams the full ledger as an xlsx workbook. The same
// fund/date filters as the operations listing apply to the operations sheet.
func (h *ExportHandler) HandleExportExcel(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	operations, err := h.statementService.GetOperations(query.Get("fund"), query.Get("from"), query.Get("to"))
	if err != nil {
		logger.L.Error("Error retrieving operations for export", "error", err)
		utils.SendJSONError(w, "Error retrieving operations for export", http.StatusInternalServerError)
		return
	}
	positions, err := h.statementService.GetPositions()
	if err != nil {
		logger.L.Error("Error retrieving positions for export", "error", err)
		utils.SendJSONError(w, "Error retrieving positions for export", http.StatusInternalServerError)
		return
	}
	stats, err := h.statementService.GetStats()
	if err != nil {
		logger.L.Error("Error retrieving stats for export", "error", err)
		utils.SendJSONError(w, "Error retrieving stats for export", http.StatusInternalServerError)
		return
	}

	workbook, err := h.exporter.Build(operations, positions, stats)
	if err != nil {
		logger.L.Error("Error building export workbook", "error", err)
		utils.SendJSONError(w, "Error building export workbook", http.StatusInternalServerError)
		return
	}
	defer workbook.Close()

	filename := fmt.Sprintf("fima_ledger_%s.xlsx", time.Now().Format("20060102_150405"))

	// A copy also lands in the export directory, like the desktop tool kept.
	if config.Cfg.ExportDir != "" {
		if err := os.MkdirAll(config.Cfg.ExportDir, 0o755); err != nil {
			logger.L.Warn("Could not create export directory", "dir", config.Cfg.ExportDir, "error", err)
		} else if err := workbook.SaveAs(filepath.Join(config.Cfg.ExportDir, filename)); err != nil {
			logger.L.Warn("Could not save export copy", "dir", config.Cfg.ExportDir, "error", err)
		}
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := workbook.Write(w); err != nil {
		logger.L.Error("Error streaming export workbook", "error", err)
	}
}
