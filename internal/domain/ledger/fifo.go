package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Lot is the open remainder of a BUY, consumed oldest-first by later SELLs.
type Lot struct {
	SourceID       uuid.UUID
	RemainingUnits decimal.Decimal
	UnitCost       decimal.Decimal // TRY per USDT
}

// WarningCode names the approximations the matcher makes instead of failing.
type WarningCode string

const (
	WarnBuyWithoutCost  WarningCode = "BUY_WITHOUT_COST"  // no lot created
	WarnSellWithoutRate WarningCode = "SELL_WITHOUT_RATE" // sell ignored
	WarnSellExceedsLots WarningCode = "SELL_EXCEEDS_LOTS" // Units left unmatched
)

type Warning struct {
	Code          WarningCode
	TransactionID uuid.UUID
	Units         decimal.Decimal
}

// ProfitPoint is the cumulative realized profit right after a transaction.
type ProfitPoint struct {
	TransactionID    uuid.UUID
	OccurredAt       time.Time
	CumulativeProfit decimal.Decimal
}

type MatchResult struct {
	RealizedProfit decimal.Decimal // TRY
	OpenLots       []Lot
	UnmatchedUnits decimal.Decimal
	Warnings       []Warning
	Series         []ProfitPoint
}

// RealizedProfit returns the TRY profit realized by FIFO matching over txs.
func RealizedProfit(txs []Transaction) decimal.Decimal {
	return Match(txs).RealizedProfit
}

// Match replays txs chronologically. Each BUY with a derivable unit cost opens a
// lot; each SELL with a positive rate consumes lots oldest-first and realizes
// matchedUnits*rate - matchedCost. Settlements and corrections are ignored.
// Nothing is cached: every call replays from scratch.
func Match(txs []Transaction) MatchResult {
	result := MatchResult{
		RealizedProfit: decimal.Zero,
		UnmatchedUnits: decimal.Zero,
	}
	var lots []*Lot

	for _, t := range SortChronological(txs) {
		switch v := t.(type) {
		case *Buy:
			cost, ok := buyUnitCost(v)
			if !ok {
				result.Warnings = append(result.Warnings, Warning{Code: WarnBuyWithoutCost, TransactionID: v.ID, Units: v.AmountReceived})
				break
			}
			lots = append(lots, &Lot{SourceID: v.ID, RemainingUnits: v.AmountReceived, UnitCost: cost})

		case *Sell:
			if !v.AmountSold.IsPositive() {
				break
			}
			rate, ok := sellRate(v)
			if !ok {
				result.Warnings = append(result.Warnings, Warning{Code: WarnSellWithoutRate, TransactionID: v.ID, Units: v.AmountSold})
				break
			}

			remaining := v.AmountSold
			matchedUnits := decimal.Zero
			matchedCost := decimal.Zero
			for _, lot := range lots {
				if !remaining.IsPositive() {
					break
				}
				if !lot.RemainingUnits.IsPositive() {
					continue
				}
				matched := decimal.Min(lot.RemainingUnits, remaining)
				lot.RemainingUnits = lot.RemainingUnits.Sub(matched)
				remaining = remaining.Sub(matched)
				matchedUnits = matchedUnits.Add(matched)
				matchedCost = matchedCost.Add(matched.Mul(lot.UnitCost))
			}

			if matchedUnits.IsPositive() {
				result.RealizedProfit = result.RealizedProfit.Add(matchedUnits.Mul(rate).Sub(matchedCost))
			}
			if remaining.IsPositive() {
				result.UnmatchedUnits = result.UnmatchedUnits.Add(remaining)
				result.Warnings = append(result.Warnings, Warning{Code: WarnSellExceedsLots, TransactionID: v.ID, Units: remaining})
			}
		}

		result.Series = append(result.Series, ProfitPoint{
			TransactionID:    t.Meta().ID,
			OccurredAt:       t.Meta().OccurredAt,
			CumulativeProfit: result.RealizedProfit,
		})
	}

	for _, lot := range lots {
		if lot.RemainingUnits.IsPositive() {
			result.OpenLots = append(result.OpenLots, *lot)
		}
	}
	return result
}

// Strict turns the matcher's warnings into a validation error.
func (r MatchResult) Strict() error {
	return warningsError(r.Warnings)
}

// OpenUnits is the USDT still held in open lots.
func (r MatchResult) OpenUnits() decimal.Decimal {
	total := decimal.Zero
	for _, lot := range r.OpenLots {
		total = total.Add(lot.RemainingUnits)
	}
	return total
}

func warningsError(warnings []Warning) error {
	if len(warnings) == 0 {
		return nil
	}
	parts := make([]string, 0, len(warnings))
	for _, w := range warnings {
		parts = append(parts, fmt.Sprintf("%s (%s, %s units)", w.Code, w.TransactionID, w.Units.String()))
	}
	return Validationf("cost-basis matching is approximate: %s", strings.Join(parts, "; "))
}

// buyUnitCost prefers the stored effective rate and otherwise recomputes it.
func buyUnitCost(b *Buy) (decimal.Decimal, bool) {
	if !b.AmountReceived.IsPositive() {
		return decimal.Zero, false
	}
	if positive(b.EffectiveRateTry) {
		return b.EffectiveRateTry.Decimal, true
	}
	rate := EffectiveRateTry(b.TransactionValue, b.TransactionCurrency, b.USDTRYRateAtBuy, b.AmountReceived, b.CommissionPercent)
	if !positive(rate) {
		return decimal.Zero, false
	}
	return rate.Decimal, true
}

func sellRate(s *Sell) (decimal.Decimal, bool) {
	if positive(s.PricePerUnit) {
		return s.PricePerUnit.Decimal, true
	}
	if positive(s.EffectiveRateTry) {
		return s.EffectiveRateTry.Decimal, true
	}
	return decimal.Zero, false
}
