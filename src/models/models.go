package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// FundCategory classifies a configured fund. Values mirror the categories the
// statements themselves print (Renta Fija, Money Market, ...).
type FundCategory string

const (
	FundFixedIncome    FundCategory = "fixed_income"
	FundEquity         FundCategory = "equity"
	FundMixed          FundCategory = "mixed"
	FundMoneyMarket    FundCategory = "money_market"
	FundCorporateNotes FundCategory = "corporate_notes"
	FundOther          FundCategory = "other"
)

// UnknownFundID tags the catch-all segment used when a statement contains no
// recognizable fund header at all.
const UnknownFundID = "unknown"

// Fund is a configured investment vehicle. Funds come from the registry file
// only; the parsing pipeline references them and never creates new ones.
type Fund struct {
	ID          string       `json:"id" yaml:"id"`
	DisplayName string       `json:"display_name" yaml:"display_name"`
	Category    FundCategory `json:"category" yaml:"category"`
	Keywords    []string     `json:"keywords" yaml:"keywords"`
}

// UnknownFund returns the placeholder fund used for unsegmentable statements.
func UnknownFund() Fund {
	return Fund{ID: UnknownFundID, DisplayName: "Fondo no identificado", Category: FundOther}
}

// Document is a statement PDF as received, before extraction. It is never
// persisted; only its derived operations are.
type Document struct {
	Filename string
	Content  []byte
}

// ExtractedLine is one line of text pulled out of the PDF. Page and Line are
// zero-based and, together with the source filename, form the line reference
// used for operation idempotency.
type ExtractedLine struct {
	Page int    `json:"page"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// Ref renders the stable source reference for a line within a document.
func (l ExtractedLine) Ref(source string) string {
	return fmt.Sprintf("%s:%d:%d", source, l.Page, l.Line)
}

type OperationKind string

const (
	KindSubscription OperationKind = "SUBSCRIPTION"
	KindRedemption   OperationKind = "REDEMPTION"
	KindTransfer     OperationKind = "TRANSFER"
)

// TransferDirection only applies to KindTransfer operations.
type TransferDirection string

const (
	TransferIn  TransferDirection = "IN"
	TransferOut TransferDirection = "OUT"
)

type OperationStatus string

const (
	StatusOK OperationStatus = "ok"
	// StatusInconsistent marks an operation whose stated amount disagrees with
	// quantity * unit_value, or was never stated at all. The operation is kept
	// and the discrepancy is surfaced by the reconciler.
	StatusInconsistent OperationStatus = "inconsistent"
)

// Operation is a single recognized statement line. Quantity and UnitValue are
// the business facts; Amount is the total the PDF printed for the line. All
// three are kept exactly as parsed.
type Operation struct {
	ID           string            `json:"id"`
	FundID       string            `json:"fund_id"`
	Date         time.Time         `json:"date"`
	Kind         OperationKind     `json:"kind"`
	Direction    TransferDirection `json:"direction,omitempty"`
	Quantity     decimal.Decimal   `json:"quantity"`
	UnitValue    decimal.Decimal   `json:"unit_value"`
	Amount       decimal.Decimal   `json:"amount"`
	AmountStated bool              `json:"amount_stated"`
	Status       OperationStatus   `json:"status"`
	SourceRef    string            `json:"source_ref"`
	// Page and Line carry the operation's place in its source document.
	// Same-date operations fold in this order.
	Page      int       `json:"page"`
	Line      int       `json:"line"`
	RawText   string    `json:"raw_text"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Inflow reports whether the operation adds units to the fund's balance.
func (o Operation) Inflow() bool {
	switch o.Kind {
	case KindSubscription:
		return true
	case KindRedemption:
		return false
	case KindTransfer:
		return o.Direction != TransferOut
	}
	return false
}

// Position is the derived running balance of a fund. It is only ever written
// by the reconciliation engine.
type Position struct {
	FundID          string          `json:"fund_id"`
	AsOfDate        time.Time       `json:"as_of_date"`
	QuantityBalance decimal.Decimal `json:"quantity_balance"`
	CostBasis       decimal.Decimal `json:"cost_basis"`
	UpdatedAt       time.Time       `json:"updated_at,omitempty"`
}

// StatedPosition is a position line printed by the statement itself in its
// "Posicion al DD/MM/YYYY" section. It is compared against the computed fold,
// never trusted over it.
type StatedPosition struct {
	FundID     string          `json:"fund_id"`
	AsOfDate   time.Time       `json:"as_of_date"`
	Quantity   decimal.Decimal `json:"quantity"`
	TotalValue decimal.Decimal `json:"total_value"`
	SourceRef  string          `json:"source_ref"`
}

// Segment is a run of lines belonging to one fund, coalesced across page
// breaks so a fund repeated on every page still yields a single segment.
type Segment struct {
	Fund  Fund
	Lines []ExtractedLine
}
