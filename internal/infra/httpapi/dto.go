package httpapi

import (
	"time"

	"exchange_profitbook/internal/app"
	"exchange_profitbook/internal/domain/ledger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Decimals travel as JSON strings on the way out and are accepted as strings
// or numbers on the way in.

type cycleRequest struct {
	Name string `json:"name" binding:"required"`
}

type cycleResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newCycleResponse(c *ledger.Cycle) cycleResponse {
	return cycleResponse{ID: c.ID, Name: c.Name, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
}

// createTransactionRequest is the tagged union accepted by POST /api/transactions.
type createTransactionRequest struct {
	Type                ledger.Kind      `json:"type" binding:"required"`
	Cycle               string           `json:"cycle"`
	OccurredAt          *time.Time       `json:"occurredAt"`
	TransactionValue    *decimal.Decimal `json:"transactionValue"`
	TransactionCurrency ledger.Currency  `json:"transactionCurrency"`
	USDTRYRateAtBuy     *decimal.Decimal `json:"usdTryRateAtBuy"`
	AmountReceived      *decimal.Decimal `json:"amountReceived"`
	AmountSold          *decimal.Decimal `json:"amountSold"`
	PricePerUnit        *decimal.Decimal `json:"pricePerUnit"`
	CommissionPercent   *decimal.Decimal `json:"commissionPercent"`
	Amount              *decimal.Decimal `json:"amount"`
	FromCycle           string           `json:"fromCycle"`
	ToCycle             string           `json:"toCycle"`
}

func (r createTransactionRequest) toInput() (app.Input, error) {
	var occurredAt time.Time
	if r.OccurredAt != nil {
		occurredAt = *r.OccurredAt
	}

	switch r.Type {
	case ledger.KindBuy:
		value, err := required("transactionValue", r.TransactionValue)
		if err != nil {
			return nil, err
		}
		received, err := required("amountReceived", r.AmountReceived)
		if err != nil {
			return nil, err
		}
		return app.BuyInput{
			Cycle:               r.Cycle,
			OccurredAt:          occurredAt,
			TransactionValue:    value,
			TransactionCurrency: r.TransactionCurrency,
			USDTRYRateAtBuy:     optional(r.USDTRYRateAtBuy),
			AmountReceived:      received,
			CommissionPercent:   optional(r.CommissionPercent),
		}, nil
	case ledger.KindSell:
		sold, err := required("amountSold", r.AmountSold)
		if err != nil {
			return nil, err
		}
		return app.SellInput{
			Cycle:             r.Cycle,
			OccurredAt:        occurredAt,
			AmountSold:        sold,
			AmountReceived:    optional(r.AmountReceived),
			PricePerUnit:      optional(r.PricePerUnit),
			CommissionPercent: optional(r.CommissionPercent),
		}, nil
	case ledger.KindCycleSettlement:
		amount, err := required("amount", r.Amount)
		if err != nil {
			return nil, err
		}
		return app.SettlementInput{FromCycle: r.FromCycle, ToCycle: r.ToCycle, OccurredAt: occurredAt, Amount: amount}, nil
	case ledger.KindDepositBalanceCorrection:
		amount, err := required("amount", r.Amount)
		if err != nil {
			return nil, err
		}
		return app.DepositInput{Cycle: r.Cycle, OccurredAt: occurredAt, Amount: amount}, nil
	case ledger.KindWithdrawBalanceCorrection:
		amount, err := required("amount", r.Amount)
		if err != nil {
			return nil, err
		}
		return app.WithdrawInput{Cycle: r.Cycle, OccurredAt: occurredAt, Amount: amount}, nil
	}
	return nil, ledger.Validationf("Unknown transaction type %q", r.Type)
}

func required(field string, v *decimal.Decimal) (decimal.Decimal, error) {
	if v == nil {
		return decimal.Zero, ledger.Validationf("%s is required", field)
	}
	return *v, nil
}

func optional(v *decimal.Decimal) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*v)
}

func nullable(v decimal.NullDecimal) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	d := v.Decimal
	return &d
}

func ptrTo(v decimal.Decimal) *decimal.Decimal { return &v }

type transactionResponse struct {
	ID                  uuid.UUID        `json:"id"`
	CycleID             uuid.UUID        `json:"cycleId"`
	CycleName           string           `json:"cycleName"`
	Type                ledger.Kind      `json:"type"`
	OccurredAt          time.Time        `json:"occurredAt"`
	CreatedAt           time.Time        `json:"createdAt"`
	UpdatedAt           time.Time        `json:"updatedAt"`
	Seq                 int64            `json:"seq"`
	ReceivedCurrency    ledger.Currency  `json:"receivedCurrency"`
	TransactionValue    *decimal.Decimal `json:"transactionValue,omitempty"`
	TransactionCurrency ledger.Currency  `json:"transactionCurrency,omitempty"`
	USDTRYRateAtBuy     *decimal.Decimal `json:"usdTryRateAtBuy,omitempty"`
	AmountReceived      *decimal.Decimal `json:"amountReceived,omitempty"`
	AmountSold          *decimal.Decimal `json:"amountSold,omitempty"`
	PricePerUnit        *decimal.Decimal `json:"pricePerUnit,omitempty"`
	CommissionPercent   *decimal.Decimal `json:"commissionPercent,omitempty"`
	EffectiveRateTry    *decimal.Decimal `json:"effectiveRateTry,omitempty"`
	Amount              *decimal.Decimal `json:"amount,omitempty"`
	SettlementID        *uuid.UUID       `json:"settlementId,omitempty"`
	Direction           ledger.Direction `json:"direction,omitempty"`
	CounterpartCycleID  *uuid.UUID       `json:"counterpartCycleId,omitempty"`
}

func newTransactionResponse(t ledger.Transaction) transactionResponse {
	h := t.Meta()
	resp := transactionResponse{
		ID:               h.ID,
		CycleID:          h.CycleID,
		CycleName:        h.CycleName,
		Type:             t.Kind(),
		OccurredAt:       h.OccurredAt,
		CreatedAt:        h.CreatedAt,
		UpdatedAt:        h.UpdatedAt,
		Seq:              h.Seq,
		ReceivedCurrency: h.ReceivedCurrency,
	}
	switch v := t.(type) {
	case *ledger.Buy:
		resp.TransactionValue = ptrTo(v.TransactionValue)
		resp.TransactionCurrency = v.TransactionCurrency
		resp.USDTRYRateAtBuy = nullable(v.USDTRYRateAtBuy)
		resp.AmountReceived = ptrTo(v.AmountReceived)
		resp.CommissionPercent = nullable(v.CommissionPercent)
		resp.EffectiveRateTry = nullable(v.EffectiveRateTry)
	case *ledger.Sell:
		resp.AmountSold = ptrTo(v.AmountSold)
		resp.AmountReceived = ptrTo(v.AmountReceived)
		resp.PricePerUnit = nullable(v.PricePerUnit)
		resp.CommissionPercent = nullable(v.CommissionPercent)
		resp.EffectiveRateTry = nullable(v.EffectiveRateTry)
	case *ledger.Settlement:
		settlementID, counterpart := v.SettlementID, v.CounterpartCycleID
		resp.Amount = ptrTo(v.Amount)
		resp.SettlementID = &settlementID
		resp.Direction = v.Direction
		if counterpart != uuid.Nil {
			resp.CounterpartCycleID = &counterpart
		}
	case *ledger.DepositCorrection:
		resp.Amount = ptrTo(v.Amount)
	case *ledger.WithdrawCorrection:
		resp.Amount = ptrTo(v.Amount)
	}
	return resp
}

func newTransactionResponses(txs []ledger.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, newTransactionResponse(t))
	}
	return out
}

type warningResponse struct {
	Code          ledger.WarningCode `json:"code"`
	TransactionID uuid.UUID          `json:"transactionId"`
	Units         decimal.Decimal    `json:"units"`
}

type summaryResponse struct {
	Cycle               cycleResponse     `json:"cycle"`
	Balance             decimal.Decimal   `json:"balance"`
	BoughtUsdt          decimal.Decimal   `json:"boughtUsdt"`
	SoldUsdt            decimal.Decimal   `json:"soldUsdt"`
	ReceivedTry         decimal.Decimal   `json:"receivedTry"`
	AverageSellPriceTry decimal.Decimal   `json:"averageSellPriceTry"`
	RealizedProfitTry   decimal.Decimal   `json:"realizedProfitTry"`
	TransactionCount    int               `json:"transactionCount"`
	OpenUnits           decimal.Decimal   `json:"openUnits"`
	UnmatchedUnits      decimal.Decimal   `json:"unmatchedUnits"`
	Warnings            []warningResponse `json:"warnings"`
}

func newSummaryResponse(s *app.CycleSummary) summaryResponse {
	warnings := make([]warningResponse, 0, len(s.Warnings))
	for _, w := range s.Warnings {
		warnings = append(warnings, warningResponse{Code: w.Code, TransactionID: w.TransactionID, Units: w.Units})
	}
	return summaryResponse{
		Cycle:               newCycleResponse(s.Cycle),
		Balance:             s.Balance,
		BoughtUsdt:          s.BoughtUsdt,
		SoldUsdt:            s.SoldUsdt,
		ReceivedTry:         s.ReceivedTry,
		AverageSellPriceTry: s.AverageSellPriceTry,
		RealizedProfitTry:   s.RealizedProfitTry,
		TransactionCount:    s.TransactionCount,
		OpenUnits:           s.OpenUnits,
		UnmatchedUnits:      s.UnmatchedUnits,
		Warnings:            warnings,
	}
}

type ledgerRowResponse struct {
	No                 int              `json:"no"`
	ID                 uuid.UUID        `json:"id"`
	Cycle              string           `json:"cycle"`
	OccurredAt         time.Time        `json:"occurredAt"`
	Type               ledger.Kind      `json:"type"`
	Direction          ledger.Direction `json:"direction,omitempty"`
	Paid               string           `json:"paid"`
	Received           string           `json:"received"`
	UnitPriceTry       *decimal.Decimal `json:"unitPriceTry"`
	CommissionPercent  *decimal.Decimal `json:"commissionPercent"`
	UsdtDelta          decimal.Decimal  `json:"usdtDelta"`
	TryDelta           decimal.Decimal  `json:"tryDelta"`
	RunningUsdtBalance decimal.Decimal  `json:"runningUsdtBalance"`
}

func newLedgerRows(rows []ledger.Row) []ledgerRowResponse {
	out := make([]ledgerRowResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, ledgerRowResponse{
			No:                 r.No,
			ID:                 r.ID,
			Cycle:              r.Cycle,
			OccurredAt:         r.OccurredAt,
			Type:               r.Type,
			Direction:          r.Direction,
			Paid:               r.PaidLabel,
			Received:           r.ReceivedLabel,
			UnitPriceTry:       nullable(r.UnitPriceTry),
			CommissionPercent:  nullable(r.CommissionPercent),
			UsdtDelta:          r.UsdtDelta,
			TryDelta:           r.TryDelta,
			RunningUsdtBalance: r.RunningUsdtBalance,
		})
	}
	return out
}

type insightResponse struct {
	TransactionID    uuid.UUID        `json:"transactionId"`
	OccurredAt       time.Time        `json:"occurredAt"`
	Type             ledger.Kind      `json:"type"`
	UsdtBalance      decimal.Decimal  `json:"usdtBalance"`
	SellRateTry      *decimal.Decimal `json:"sellRateTry"`
	CumulativeProfit decimal.Decimal  `json:"cumulativeProfit"`
}

func newInsights(points []ledger.InsightPoint) []insightResponse {
	out := make([]insightResponse, 0, len(points))
	for _, p := range points {
		out = append(out, insightResponse{
			TransactionID:    p.TransactionID,
			OccurredAt:       p.OccurredAt,
			Type:             p.Type,
			UsdtBalance:      p.UsdtBalance,
			SellRateTry:      nullable(p.SellRateTry),
			CumulativeProfit: p.CumulativeProfit,
		})
	}
	return out
}

type simulateRequest struct {
	StartingCapital *decimal.Decimal `json:"startingCapital"`
	ExchangeRate    *decimal.Decimal `json:"exchangeRate"`
	BankTaxPercent  *decimal.Decimal `json:"bankTaxPercent"`
	BuyCommission   *decimal.Decimal `json:"buyCommission"`
	SellRate        *decimal.Decimal `json:"sellRate"`
	LoopCount       int              `json:"loopCount"`
	CompoundProfits *bool            `json:"compoundProfits"`
}

// toParams fills the optional fields: no tax, no commission and compounding on.
func (r simulateRequest) toParams() (ledger.LoopParams, error) {
	capital, err := required("startingCapital", r.StartingCapital)
	if err != nil {
		return ledger.LoopParams{}, err
	}
	rate, err := required("exchangeRate", r.ExchangeRate)
	if err != nil {
		return ledger.LoopParams{}, err
	}
	sellRate, err := required("sellRate", r.SellRate)
	if err != nil {
		return ledger.LoopParams{}, err
	}
	commission := decimal.Zero
	if r.BuyCommission != nil {
		commission = *r.BuyCommission
	}
	compound := r.CompoundProfits == nil || *r.CompoundProfits
	return ledger.LoopParams{
		StartingCapitalUsd: capital,
		ExchangeRate:       rate,
		BankTaxPercent:     optional(r.BankTaxPercent),
		BuyCommission:      commission,
		SellRate:           sellRate,
		Loops:              r.LoopCount,
		Compound:           compound,
	}, nil
}

type loopResponse struct {
	Loop          int              `json:"loop"`
	BuyUsd        decimal.Decimal  `json:"buyUsd"`
	BuyRateTry    decimal.Decimal  `json:"buyRateTry"`
	UsdtBought    decimal.Decimal  `json:"usdtBought"`
	SellTry       decimal.Decimal  `json:"sellTry"`
	SellRateTry   decimal.Decimal  `json:"sellRateTry"`
	ProfitTry     decimal.Decimal  `json:"profitTry"`
	ProfitUsd     decimal.Decimal  `json:"profitUsd"`
	ChangeTry     *decimal.Decimal `json:"changeTry"`
	ChangePercent *decimal.Decimal `json:"changePercent"`
}

type loopTotalsResponse struct {
	BuyUsd          decimal.Decimal `json:"buyUsd"`
	UsdtBought      decimal.Decimal `json:"usdtBought"`
	SellTry         decimal.Decimal `json:"sellTry"`
	ProfitTry       decimal.Decimal `json:"profitTry"`
	ProfitUsd       decimal.Decimal `json:"profitUsd"`
	FinalCapitalUsd decimal.Decimal `json:"finalCapitalUsd"`
}

type simulationResponse struct {
	Loops  []loopResponse     `json:"loops"`
	Totals loopTotalsResponse `json:"totals"`
}

func newSimulationResponse(sim *ledger.Simulation) simulationResponse {
	t := sim.Totals
	totals := loopTotalsResponse{
		BuyUsd:          t.BuyUsd,
		UsdtBought:      t.UsdtBought,
		SellTry:         t.SellTry,
		ProfitTry:       t.ProfitTry,
		ProfitUsd:       t.ProfitUsd,
		FinalCapitalUsd: t.FinalCapitalUsd,
	}
	resp := simulationResponse{Loops: make([]loopResponse, 0, len(sim.Loops)), Totals: totals}
	for _, l := range sim.Loops {
		resp.Loops = append(resp.Loops, loopResponse{
			Loop:          l.Loop,
			BuyUsd:        l.BuyUsd,
			BuyRateTry:    l.BuyRateTry,
			UsdtBought:    l.UsdtBought,
			SellTry:       l.SellTry,
			SellRateTry:   l.SellRateTry,
			ProfitTry:     l.ProfitTry,
			ProfitUsd:     l.ProfitUsd,
			ChangeTry:     nullable(l.ChangeTry),
			ChangePercent: nullable(l.ChangePercent),
		})
	}
	return resp
}
