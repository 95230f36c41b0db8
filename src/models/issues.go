package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type IssueSeverity string

const (
	SeverityWarning IssueSeverity = "WARNING"
	SeverityError   IssueSeverity = "ERROR"
)

// ParseIssue records a line the pipeline could not (fully) understand. Issues
// are collected and returned with results, never discarded.
type ParseIssue struct {
	Page     int           `json:"page"`
	Line     int           `json:"line"`
	Severity IssueSeverity `json:"severity"`
	Message  string        `json:"message"`
	RawText  string        `json:"raw_text"`
}

type FindingType string

const (
	FindingOutOfOrder       FindingType = "OUT_OF_ORDER"
	FindingOverdraft        FindingType = "OVERDRAFT"
	FindingAmountMismatch   FindingType = "AMOUNT_MISMATCH"
	FindingPositionMismatch FindingType = "POSITION_MISMATCH"
)

// ReconciliationFinding is a fold-level anomaly. Findings never abort the
// fold; the position is produced regardless and the finding travels with it.
type ReconciliationFinding struct {
	Type      FindingType     `json:"type"`
	FundID    string          `json:"fund_id"`
	Date      time.Time       `json:"date,omitempty"`
	SourceRef string          `json:"source_ref,omitempty"`
	Expected  decimal.Decimal `json:"expected"`
	Actual    decimal.Decimal `json:"actual"`
	Detail    string          `json:"detail"`
}

// LotUsage records how much of one FIFO purchase lot a redemption consumed.
type LotUsage struct {
	BuyDate   time.Time       `json:"buy_date"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitValue decimal.Decimal `json:"unit_value"`
	Cost      decimal.Decimal `json:"cost"`
}

// RedemptionDetail is the FIFO (PEPS) breakdown of a single redemption:
// which subscription lots funded it and the realized result.
type RedemptionDetail struct {
	FundID    string          `json:"fund_id"`
	SaleDate  time.Time       `json:"sale_date"`
	Quantity  decimal.Decimal `json:"quantity"`
	SaleValue decimal.Decimal `json:"sale_value"`
	CostBasis decimal.Decimal `json:"cost_basis"`
	GainLoss  decimal.Decimal `json:"gain_loss"`
	UsedLots  []LotUsage      `json:"used_lots,omitempty"`
}

// PurchaseLot is a remaining (not fully redeemed) subscription lot.
type PurchaseLot struct {
	BuyDate   time.Time       `json:"buy_date"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitValue decimal.Decimal `json:"unit_value"`
}

// ReconciliationResult is everything the engine derives for one fund.
type ReconciliationResult struct {
	Position         Position                `json:"position"`
	Findings         []ReconciliationFinding `json:"findings"`
	Redemptions      []RedemptionDetail      `json:"redemptions,omitempty"`
	RemainingLots    []PurchaseLot           `json:"remaining_lots,omitempty"`
	TotalSubscribed  decimal.Decimal         `json:"total_subscribed"`
	TotalRedeemed    decimal.Decimal         `json:"total_redeemed"`
	RealizedGainLoss decimal.Decimal         `json:"realized_gain_loss"`
}
