package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/username/fimaledger/src/logger"
	"github.com/username/fimaledger/src/models"
)

// WatchService periodically scans a folder for statement PDFs and ingests
// them. Content hashing in the pipeline makes rescanning the same files a
// no-op, so the scan does not track which files it has already seen.
type WatchService struct {
	statementService StatementService
	dir              string
	schedule         string
	cron             *cron.Cron
}

func NewWatchService(statementService StatementService, dir, schedule string) *WatchService {
	return &WatchService{
		statementService: statementService,
		dir:              dir,
		schedule:         schedule,
	}
}

// Start schedules the scan and runs one immediately. It is a no-op when no
// watch directory is configured.
func (w *WatchService) Start() error {
	if w.dir == "" {
		logger.L.Info("No watch directory configured, folder watching disabled")
		return nil
	}

	w.cron = cron.New()
	if _, err := w.cron.AddFunc(w.schedule, w.ScanOnce); err != nil {
		return err
	}
	w.cron.Start()
	logger.L.Info("Watching folder for statements", "dir", w.dir, "schedule", w.schedule)

	go w.ScanOnce()
	return nil
}

// Stop halts the schedule and waits for a running scan to finish.
func (w *WatchService) Stop() {
	if w.cron != nil {
		<-w.cron.Stop().Done()
	}
}

// ScanOnce ingests every PDF currently in the watch directory.
func (w *WatchService) ScanOnce() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		logger.L.Error("Failed to read watch directory", "dir", w.dir, "error", err)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}

		path := filepath.Join(w.dir, entry.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			logger.L.Error("Failed to read statement file", "path", path, "error", err)
			continue
		}

		result, err := w.statementService.ProcessStatement(context.Background(), models.Document{
			Filename: entry.Name(),
			Content:  content,
		})
		if err != nil {
			logger.L.Error("Failed to ingest watched statement", "path", path, "error", err)
			continue
		}
		if result.AlreadyIngested {
			continue
		}
		logger.L.Info("Ingested watched statement", "path", path,
			"funds", len(result.Funds), "issues", len(result.Issues))
	}
}
