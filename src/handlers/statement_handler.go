package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/username/fimaledger/src/config"
	"github.com/username/fimaledger/src/logger"
	"github.com/username/fimaledger/src/models"
	"github.com/username/fimaledger/src/security/validation"
	"github.com/username/fimaledger/src/services"
	"github.com/username/fimaledger/src/utils"
)

type StatementHandler struct {
	statementService services.StatementService
}

func NewStatementHandler(service services.StatementService) *StatementHandler {
	return &StatementHandler{
		statementService: service,
	}
}

func (h *StatementHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		logger.L.Warn("Failed to parse multipart form or request too large", "error", err, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("Failed to parse form or request too large (max %d MB)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		logger.L.Warn("Failed to retrieve file from request", "error", err)
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if fileHeader.Size > config.Cfg.MaxUploadSizeBytes {
		logger.L.Warn("Uploaded file header reports size too large", "fileSize", fileHeader.Size, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("File too large, max %d MB", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	clientContentType := fileHeader.Header.Get("Content-Type")
	if err := validation.ValidateClientContentType(clientContentType); err != nil {
		logger.L.Warn("Invalid client-declared file type", "contentType", clientContentType, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := validation.ValidateFileContentByMagicBytes(file); err != nil {
		logger.L.Warn("Server-side file content validation failed", "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		logger.L.Error("Failed to read uploaded file", "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, "Failed to read uploaded file", http.StatusInternalServerError)
		return
	}

	logger.L.Info("Processing statement upload", "filename", fileHeader.Filename, "bytes", len(content))
	result, err := h.statementService.ProcessStatement(r.Context(), models.Document{
		Filename: fileHeader.Filename,
		Content:  content,
	})
	if err != nil {
		if errors.Is(err, services.ErrExtractionFailed) {
			logger.L.Warn("Statement processing failed during text extraction", "filename", fileHeader.Filename, "error", err)
			utils.SendJSONError(w, fmt.Sprintf("Could not extract text from PDF: %v", err), http.StatusUnprocessableEntity)
		} else if errors.Is(err, services.ErrLedgerFailed) {
			logger.L.Error("Statement processing failed at the ledger", "filename", fileHeader.Filename, "error", err)
			utils.SendJSONError(w, "An internal error occurred while storing the statement. Please try again later.", http.StatusInternalServerError)
		} else {
			logger.L.Error("Internal error processing statement", "filename", fileHeader.Filename, "error", err)
			utils.SendJSONError(w, "An internal error occurred while processing the statement. Please try again later.", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		logger.L.Error("Error encoding JSON response for statement result", "error", err)
	}
}

func (h *StatementHandler) HandleGetIngestions(w http.ResponseWriter, r *http.Request) {
	ingestions, err := h.statementService.GetIngestions()
	if err != nil {
		logger.L.Error("Error retrieving ingestion history", "error", err)
		utils.SendJSONError(w, "Error retrieving ingestion history", http.StatusInternalServerError)
		return
	}
	if ingestions == nil {
		ingestions = []services.IngestedStatement{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ingestions); err != nil {
		logger.L.Error("Error encoding ingestion history response", "error", err)
	}
}
