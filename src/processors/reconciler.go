package processors

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/username/fimaledger/src/logger"
	"github.com/username/fimaledger/src/models"
	"github.com/username/fimaledger/src/utils"
)

// Reconciler folds a fund's operations into a position in a single forward
// pass. It is best-effort by design: every anomaly becomes a finding and the
// fold always completes with a terminal position.
type Reconciler struct {
	tolerance decimal.Decimal
}

func NewReconciler(tolerance decimal.Decimal) *Reconciler {
	return &Reconciler{tolerance: tolerance}
}

func (r *Reconciler) Reconcile(fund models.Fund, ops []models.Operation, stated []models.StatedPosition) models.ReconciliationResult {
	result := models.ReconciliationResult{
		TotalSubscribed:  decimal.Zero,
		TotalRedeemed:    decimal.Zero,
		RealizedGainLoss: decimal.Zero,
	}

	ordered := make([]models.Operation, len(ops))
	copy(ordered, ops)

	if out := outOfOrderAt(ordered); out >= 0 {
		result.Findings = append(result.Findings, models.ReconciliationFinding{
			Type:      models.FindingOutOfOrder,
			FundID:    fund.ID,
			Date:      ordered[out].Date,
			SourceRef: ordered[out].SourceRef,
			Detail:    "operations were not in chronological order; re-sorted by date before folding",
		})
		// Stable keeps document order for same-day operations.
		sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Date.Before(ordered[j].Date) })
	}

	balance := decimal.Zero
	var lots []models.PurchaseLot
	var asOf time.Time

	for _, op := range ordered {
		if op.Date.After(asOf) {
			asOf = op.Date
		}

		if op.Status == models.StatusInconsistent {
			result.Findings = append(result.Findings, amountFinding(op))
		}

		value := op.Amount
		if !op.AmountStated {
			value = utils.RoundAmount(op.Quantity.Mul(op.UnitValue))
		}

		if op.Inflow() {
			balance = balance.Add(op.Quantity)
			lots = append(lots, models.PurchaseLot{
				BuyDate:   op.Date,
				Quantity:  op.Quantity,
				UnitValue: op.UnitValue,
			})
			result.TotalSubscribed = result.TotalSubscribed.Add(value)
			continue
		}

		// Outflow: apply even when it overdraws, and say so. A human sorts
		// out the anomaly, the engine never guesses a correction.
		if op.Quantity.GreaterThan(balance) {
			result.Findings = append(result.Findings, models.ReconciliationFinding{
				Type:      models.FindingOverdraft,
				FundID:    fund.ID,
				Date:      op.Date,
				SourceRef: op.SourceRef,
				Expected:  balance,
				Actual:    op.Quantity,
				Detail: fmt.Sprintf("redemption of %s units exceeds balance of %s",
					op.Quantity.String(), balance.String()),
			})
		}
		balance = balance.Sub(op.Quantity)

		detail, remainingLots := consumeLots(lots, op)
		lots = remainingLots
		result.Redemptions = append(result.Redemptions, detail)
		result.TotalRedeemed = result.TotalRedeemed.Add(value)
		result.RealizedGainLoss = result.RealizedGainLoss.Add(detail.GainLoss)
	}

	costBasis := decimal.Zero
	for _, lot := range lots {
		costBasis = costBasis.Add(lot.Quantity.Mul(lot.UnitValue))
	}
	result.RemainingLots = lots

	for _, sp := range stated {
		expected := balanceAsOf(ordered, sp.AsOfDate)
		if sp.Quantity.Sub(expected).Abs().GreaterThan(r.tolerance) {
			result.Findings = append(result.Findings, models.ReconciliationFinding{
				Type:      models.FindingPositionMismatch,
				FundID:    fund.ID,
				Date:      sp.AsOfDate,
				SourceRef: sp.SourceRef,
				Expected:  expected,
				Actual:    sp.Quantity,
				Detail:    "statement's stated position disagrees with the fold of its operations",
			})
		}
		if sp.AsOfDate.After(asOf) {
			asOf = sp.AsOfDate
		}
	}

	result.Position = models.Position{
		FundID:          fund.ID,
		AsOfDate:        asOf,
		QuantityBalance: balance,
		CostBasis:       costBasis,
	}

	logger.L.Debug("Fund reconciled", "fund", fund.ID, "operations", len(ordered),
		"balance", balance.String(), "findings", len(result.Findings))
	return result
}

// outOfOrderAt returns the index of the first operation dated earlier than
// its predecessor, or -1 when dates are non-decreasing.
func outOfOrderAt(ops []models.Operation) int {
	for i := 1; i < len(ops); i++ {
		if ops[i].Date.Before(ops[i-1].Date) {
			return i
		}
	}
	return -1
}

// consumeLots matches a redemption against purchase lots first-in-first-out
// (the PEPS method) and returns the realized breakdown plus what is left.
func consumeLots(lots []models.PurchaseLot, op models.Operation) (models.RedemptionDetail, []models.PurchaseLot) {
	saleValue := op.Amount
	if !op.AmountStated {
		saleValue = utils.RoundAmount(op.Quantity.Mul(op.UnitValue))
	}

	detail := models.RedemptionDetail{
		FundID:    op.FundID,
		SaleDate:  op.Date,
		Quantity:  op.Quantity,
		SaleValue: saleValue,
		CostBasis: decimal.Zero,
	}

	remaining := op.Quantity
	for len(lots) > 0 && remaining.IsPositive() {
		lot := lots[0]
		matched := decimal.Min(lot.Quantity, remaining)
		cost := matched.Mul(lot.UnitValue)

		detail.UsedLots = append(detail.UsedLots, models.LotUsage{
			BuyDate:   lot.BuyDate,
			Quantity:  matched,
			UnitValue: lot.UnitValue,
			Cost:      cost,
		})
		detail.CostBasis = detail.CostBasis.Add(cost)

		remaining = remaining.Sub(matched)
		lot.Quantity = lot.Quantity.Sub(matched)
		if lot.Quantity.IsZero() {
			lots = lots[1:]
		} else {
			lots[0] = lot
		}
	}

	detail.GainLoss = detail.SaleValue.Sub(detail.CostBasis)
	return detail, lots
}

// balanceAsOf folds signed quantities of operations dated on or before cutoff.
func balanceAsOf(ordered []models.Operation, cutoff time.Time) decimal.Decimal {
	balance := decimal.Zero
	for _, op := range ordered {
		if op.Date.After(cutoff) {
			break
		}
		if op.Inflow() {
			balance = balance.Add(op.Quantity)
		} else {
			balance = balance.Sub(op.Quantity)
		}
	}
	return balance
}

func amountFinding(op models.Operation) models.ReconciliationFinding {
	computed := utils.RoundAmount(op.Quantity.Mul(op.UnitValue))
	detail := "stated amount disagrees with quantity * unit value"
	if !op.AmountStated {
		detail = "statement never supplied a total amount for this operation"
	}
	return models.ReconciliationFinding{
		Type:      models.FindingAmountMismatch,
		FundID:    op.FundID,
		Date:      op.Date,
		SourceRef: op.SourceRef,
		Expected:  computed,
		Actual:    op.Amount,
		Detail:    detail,
	}
}
