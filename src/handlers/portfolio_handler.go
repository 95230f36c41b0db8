package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/username/fimaledger/src/logger"
	"github.com/username/fimaledger/src/models"
	"github.com/username/fimaledger/src/services"
	"github.com/username/fimaledger/src/utils"
)

type PortfolioHandler struct {
	statementService services.StatementService
}

func NewPortfolioHandler(service services.StatementService) *PortfolioHandler {
	return &PortfolioHandler{
		statementService: service,
	}
}

func (h *PortfolioHandler) HandleGetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.statementService.GetPositions()
	if err != nil {
		logger.L.Error("Error retrieving positions", "error", err)
		utils.SendJSONError(w, "Error retrieving positions", http.StatusInternalServerError)
		return
	}
	if positions == nil {
		positions = []models.Position{}
	}

	w.Header().Set("Cache-Control", "no-cache, private")
	if writeWithETag(w, r, positions) {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(positions); err != nil {
		logger.L.Error("Error encoding positions response", "error", err)
	}
}

func (h *PortfolioHandler) HandleGetOperations(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	fundID := query.Get("fund")
	dateFrom := query.Get("from")
	dateTo := query.Get("to")

	for _, d := range []string{dateFrom, dateTo} {
		if d == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", d); err != nil {
			utils.SendJSONError(w, fmt.Sprintf("invalid date filter %q, expected YYYY-MM-DD", d), http.StatusBadRequest)
			return
		}
	}

	operations, err := h.statementService.GetOperations(fundID, dateFrom, dateTo)
	if err != nil {
		logger.L.Error("Error retrieving operations", "fund", fundID, "error", err)
		utils.SendJSONError(w, "Error retrieving operations", http.StatusInternalServerError)
		return
	}
	if operations == nil {
		operations = []models.Operation{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(operations); err != nil {
		logger.L.Error("Error encoding operations response", "error", err)
	}
}

func (h *PortfolioHandler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.statementService.GetStats()
	if err != nil {
		logger.L.Error("Error retrieving ledger stats", "error", err)
		utils.SendJSONError(w, "Error retrieving ledger stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "no-cache, private")
	if writeWithETag(w, r, stats) {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		logger.L.Error("Error encoding ledger stats response", "error", err)
	}
}

// writeWithETag sets the ETag header for the payload and reports whether the
// client's If-None-Match already covers it, in which case 304 was written.
func writeWithETag(w http.ResponseWriter, r *http.Request, payload interface{}) bool {
	currentETag, err := utils.GenerateETag(payload)
	if err != nil || currentETag == "" {
		logger.L.Warn("Proceeding without ETag check", "error", err)
		return false
	}

	quotedETag := fmt.Sprintf("\"%s\"", currentETag)
	w.Header().Set("ETag", quotedETag)
	for _, cETag := range strings.Split(r.Header.Get("If-None-Match"), ",") {
		if strings.TrimSpace(cETag) == quotedETag {
			w.WriteHeader(http.StatusNotModified)
			return true
		}
	}
	return false
}
