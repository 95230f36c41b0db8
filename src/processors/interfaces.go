package processors

import (
	"time"

	"github.com/username/fimaledger/src/models"
)

// RecognizeResult carries everything the recognizer pulled out of one fund
// segment. Issues are collected, never thrown away.
type RecognizeResult struct {
	Operations      []models.Operation
	StatedPositions []models.StatedPosition
	Issues          []models.ParseIssue
}

// FundSegmenter partitions extracted lines into per-fund segments.
type FundSegmenter interface {
	Segment(lines []models.ExtractedLine) ([]models.Segment, []models.ParseIssue)
}

// OperationRecognizer turns a fund segment's lines into operations.
type OperationRecognizer interface {
	Recognize(fund models.Fund, lines []models.ExtractedLine, source string, ref time.Time) RecognizeResult
}

// PositionReconciler folds a fund's operations into a position.
type PositionReconciler interface {
	Reconcile(fund models.Fund, ops []models.Operation, stated []models.StatedPosition) models.ReconciliationResult
}
