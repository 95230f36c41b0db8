package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/username/fimaledger/src/config"
	"github.com/username/fimaledger/src/logger"
	"github.com/username/fimaledger/src/models"
	"github.com/username/fimaledger/src/parsers"
	"github.com/username/fimaledger/src/processors"
)

const (
	ckPositions  = "agg_positions"
	ckStats      = "agg_ledger_stats"
	ckIngestions = "agg_ingestions"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type statementServiceImpl struct {
	extractor   *parsers.Extractor
	segmenter   processors.FundSegmenter
	recognizer  processors.OperationRecognizer
	reconciler  processors.PositionReconciler
	ledger      LedgerService
	reportCache *cache.Cache
}

func NewStatementService(
	extractor *parsers.Extractor,
	segmenter processors.FundSegmenter,
	recognizer processors.OperationRecognizer,
	reconciler processors.PositionReconciler,
	ledger LedgerService,
	reportCache *cache.Cache,
) StatementService {
	return &statementServiceImpl{
		extractor:   extractor,
		segmenter:   segmenter,
		recognizer:  recognizer,
		reconciler:  reconciler,
		ledger:      ledger,
		reportCache: reportCache,
	}
}

// ProcessStatement runs a document through the full pipeline. A document
// whose content hash is already in the ledger is skipped without touching
// the extraction backends.
func (s *statementServiceImpl) ProcessStatement(ctx context.Context, doc models.Document) (*DocumentResult, error) {
	overallStartTime := time.Now()
	logger.L.Info("ProcessStatement START", "document", doc.Filename, "bytes", len(doc.Content))

	hash := sha256.Sum256(doc.Content)
	fileHash := hex.EncodeToString(hash[:])

	ingested, err := s.ledger.StatementIngested(fileHash)
	if err != nil {
		return nil, err
	}
	if ingested {
		logger.L.Info("Statement already ingested, skipping", "document", doc.Filename, "fileHash", fileHash)
		return &DocumentResult{Source: doc.Filename, FileHash: fileHash, AlreadyIngested: true}, nil
	}

	lines, backend, err := s.extractor.Extract(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	segments, issues := s.segmenter.Segment(lines)

	result := &DocumentResult{
		Source:         doc.Filename,
		FileHash:       fileHash,
		ExtractedLines: len(lines),
		Backend:        backend,
		Issues:         issues,
	}

	for _, segment := range segments {
		recognized := s.recognizer.Recognize(segment.Fund, segment.Lines, doc.Filename, time.Time{})
		result.Issues = append(result.Issues, recognized.Issues...)

		recon := s.reconciler.Reconcile(segment.Fund, recognized.Operations, recognized.StatedPositions)
		result.Funds = append(result.Funds, FundResult{
			Fund:            segment.Fund,
			Operations:      recognized.Operations,
			StatedPositions: recognized.StatedPositions,
			Reconciliation:  recon,
		})
	}

	if err := s.ledger.CommitDocument(result); err != nil {
		return nil, err
	}

	s.invalidateCache()

	logger.L.Info("ProcessStatement END", "document", doc.Filename,
		"funds", len(result.Funds), "issues", len(result.Issues),
		"duration", time.Since(overallStartTime))
	return result, nil
}

// invalidateCache clears every aggregate after an ingestion. The next request
// triggers a full reread from the ledger.
func (s *statementServiceImpl) invalidateCache() {
	for _, key := range []string{ckPositions, ckStats, ckIngestions} {
		s.reportCache.Delete(key)
	}
	logger.L.Debug("Invalidated aggregate caches")
}

func (s *statementServiceImpl) GetPositions() ([]models.Position, error) {
	if cached, found := s.reportCache.Get(ckPositions); found {
		return cached.([]models.Position), nil
	}

	positions, err := s.ledger.ListPositions()
	if err != nil {
		return nil, err
	}

	registry := config.Funds
	if registry != nil {
		// Surface registered funds with no activity as zero positions, the
		// way the desktop tool listed every configured fund.
		known := make(map[string]bool, len(positions))
		for _, pos := range positions {
			known[pos.FundID] = true
		}
		for _, fund := range registry.All() {
			if !known[fund.ID] {
				positions = append(positions, models.Position{FundID: fund.ID})
			}
		}
	}

	s.reportCache.Set(ckPositions, positions, DefaultCacheExpiration)
	return positions, nil
}

func (s *statementServiceImpl) GetOperations(fundID, dateFrom, dateTo string) ([]models.Operation, error) {
	// Operation listings are filtered per request; not worth caching.
	return s.ledger.ListOperations(fundID, dateFrom, dateTo)
}

func (s *statementServiceImpl) GetIngestions() ([]IngestedStatement, error) {
	if cached, found := s.reportCache.Get(ckIngestions); found {
		return cached.([]IngestedStatement), nil
	}
	ingestions, err := s.ledger.ListIngestions()
	if err != nil {
		return nil, err
	}
	s.reportCache.Set(ckIngestions, ingestions, DefaultCacheExpiration)
	return ingestions, nil
}

func (s *statementServiceImpl) GetStats() (LedgerStats, error) {
	if cached, found := s.reportCache.Get(ckStats); found {
		return cached.(LedgerStats), nil
	}
	stats, err := s.ledger.Stats()
	if err != nil {
		return stats, err
	}
	s.reportCache.Set(ckStats, stats, DefaultCacheExpiration)
	return stats, nil
}
