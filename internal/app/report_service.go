package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"exchange_profitbook/internal/domain/ledger"
	domainTelegram "exchange_profitbook/internal/domain/telegram"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ReportService renders cycle summaries as text and pushes the daily digest
// to the admin chat.
type ReportService struct {
	ledger      *LedgerService
	client      domainTelegram.Client
	adminChatID int64
	logger      *logrus.Entry
	now         func() time.Time
}

func NewReportService(ls *LedgerService, client domainTelegram.Client, adminChatID int64, logger *logrus.Entry) *ReportService {
	return &ReportService{
		ledger:      ls,
		client:      client,
		adminChatID: adminChatID,
		logger:      logger.WithField("component", "report_service"),
		now:         utcNow,
	}
}

// BuildDigest renders every cycle summary plus the overall realized profit.
func (s *ReportService) BuildDigest(ctx context.Context) (string, error) {
	summaries, err := s.ledger.Summaries(ctx)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Ledger digest %s\n", s.now().Format("2006-01-02"))
	if len(summaries) == 0 {
		b.WriteString("\nNo cycles yet.")
		return b.String(), nil
	}

	total := decimal.Zero
	for _, sum := range summaries {
		b.WriteString("\n")
		b.WriteString(FormatSummary(sum))
		b.WriteString("\n")
		total = total.Add(sum.RealizedProfitTry)
	}
	fmt.Fprintf(&b, "\nTotal realized profit: %s", ledger.FormatSigned(total, string(ledger.CurrencyTRY)))
	return b.String(), nil
}

// SendDailyDigest builds the digest and sends it to the admin chat.
func (s *ReportService) SendDailyDigest(ctx context.Context) error {
	text, err := s.BuildDigest(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to build daily digest")
		return err
	}
	if err := s.client.SendMessage(s.adminChatID, text, nil); err != nil {
		s.logger.WithError(err).WithField("chat_id", s.adminChatID).Error("Failed to send daily digest")
		return fmt.Errorf("failed to send daily digest: %w", err)
	}
	s.logger.WithField("chat_id", s.adminChatID).Info("Daily digest sent")
	return nil
}

// FormatSummary renders one cycle summary as a few lines of plain text.
func FormatSummary(sum *CycleSummary) string {
	try := string(ledger.CurrencyTRY)
	lines := []string{
		fmt.Sprintf("Cycle %q", sum.Cycle.Name),
		"Balance: " + signedIfNegative(sum.Balance, ledger.UnitCode),
		fmt.Sprintf("Bought: %s, sold: %s", ledger.FormatAmount(sum.BoughtUsdt, ledger.UnitCode), ledger.FormatAmount(sum.SoldUsdt, ledger.UnitCode)),
		"Received: " + ledger.FormatAmount(sum.ReceivedTry, try),
		"Average sell price: " + ledger.FormatAmount(sum.AverageSellPriceTry, try),
		"Realized profit: " + ledger.FormatSigned(sum.RealizedProfitTry, try),
		fmt.Sprintf("Transactions: %d", sum.TransactionCount),
	}
	if sum.UnmatchedUnits.IsPositive() {
		lines = append(lines, "Sold without cost basis: "+ledger.FormatAmount(sum.UnmatchedUnits, ledger.UnitCode))
	}
	if n := len(sum.Warnings); n > 0 {
		lines = append(lines, fmt.Sprintf("Cost-basis warnings: %d", n))
	}
	return strings.Join(lines, "\n")
}

func signedIfNegative(amount decimal.Decimal, code string) string {
	if amount.IsNegative() {
		return ledger.FormatSigned(amount, code)
	}
	return ledger.FormatAmount(amount, code)
}
