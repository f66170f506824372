package app

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"
)

type recordingClient struct {
	chatID int64
	texts  []string
	err    error
}

func (c *recordingClient) SendMessage(recipientChatID int64, text string, _ *telebot.SendOptions) error {
	c.chatID = recipientChatID
	c.texts = append(c.texts, text)
	return c.err
}

func newReportService(f *fixture, client *recordingClient) *ReportService {
	log := logrus.New()
	log.SetOutput(io.Discard)
	rs := NewReportService(f.ledger, client, 42, logrus.NewEntry(log))
	rs.now = f.txs.now
	return rs
}

func TestReportService_SendDailyDigest(t *testing.T) {
	f := newFixture(t, SellPolicyPermissive)
	ctx := context.Background()
	_, err := f.txs.Buy(ctx, BuyInput{Cycle: "Spring", TransactionValue: d("1000"), TransactionCurrency: "TRY", AmountReceived: d("20")})
	require.NoError(t, err)
	_, err = f.txs.Sell(ctx, SellInput{Cycle: "Spring", AmountSold: d("5"), PricePerUnit: nd("55")})
	require.NoError(t, err)

	client := &recordingClient{}
	require.NoError(t, newReportService(f, client).SendDailyDigest(ctx))

	require.Len(t, client.texts, 1)
	assert.EqualValues(t, 42, client.chatID)
	text := client.texts[0]
	assert.Contains(t, text, "Ledger digest 2025-03-01")
	assert.Contains(t, text, `Cycle "Spring"`)
	assert.Contains(t, text, "Balance: USDT 15.00")
	assert.Contains(t, text, "Bought: USDT 20.00, sold: USDT 5.00")
	assert.Contains(t, text, "Transactions: 2")
	assert.Contains(t, text, "Total realized profit: +")
}

func TestReportService_EmptyLedger(t *testing.T) {
	f := newFixture(t, SellPolicyPermissive)
	text, err := newReportService(f, &recordingClient{}).BuildDigest(context.Background())
	require.NoError(t, err)
	assert.Contains(t, text, "No cycles yet.")
}

func TestReportService_SendFailure(t *testing.T) {
	f := newFixture(t, SellPolicyPermissive)
	client := &recordingClient{err: errors.New("bot blocked")}
	err := newReportService(f, client).SendDailyDigest(context.Background())
	assert.ErrorContains(t, err, "bot blocked")
}

func TestFormatSummary_NegativeBalanceAndWarnings(t *testing.T) {
	f := newFixture(t, SellPolicyPermissive)
	ctx := context.Background()
	_, err := f.txs.Sell(ctx, SellInput{Cycle: "Short", AmountSold: d("3"), PricePerUnit: nd("40")})
	require.NoError(t, err)

	sum, err := f.ledger.CycleSummaryByName(ctx, "Short")
	require.NoError(t, err)
	text := FormatSummary(sum)
	assert.Contains(t, text, "Balance: -USDT 3.00")
	assert.Contains(t, text, "Sold without cost basis: USDT 3.00")
	assert.Contains(t, text, "Cost-basis warnings: 1")
}
