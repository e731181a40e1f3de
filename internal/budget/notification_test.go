package budget

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAmount(t *testing.T) {
	amount := decimal.RequireFromString("1500000")
	assert.Equal(t, "Rp 1.500.000,00", FormatAmount("id-ID", "Rp", amount))
	assert.Equal(t, "$ 1,500,000.00", FormatAmount("en-US", "$", amount))
	assert.Equal(t, "12.35", FormatAmount("not a locale", "", decimal.RequireFromString("12.345")))
}

func TestRenderItemsTableEscapes(t *testing.T) {
	html, err := RenderItemsTable([]MaterialItem{{ItemName: "<b>Steel</b>", Quantity: 2}})
	require.NoError(t, err)
	assert.Contains(t, html, "<td>1</td><td>&lt;b&gt;Steel&lt;/b&gt;</td><td>2</td>")

	empty, err := RenderItemsTable(nil)
	require.NoError(t, err)
	assert.Contains(t, empty, `<td colspan="3">-</td>`)
}

func TestMessageFallsBackToAccountCode(t *testing.T) {
	cfg := NotificationConfig{ApproverName: "Sam", Locale: "en", CurrencySymbol: "$"}
	msg, err := cfg.Message(Request{RequestNumber: "BR-1", AccountCode: "6100", Amount: decimal.NewFromInt(10)}, "a", "r")
	require.NoError(t, err)
	assert.Equal(t, "6100", msg.Params["account_name"])
	assert.Equal(t, "$ 10.00", msg.Params["amount"])
	assert.Equal(t, "", msg.Params["cc_emails"])
	assert.Equal(t, "a", msg.Params["approve_url"])
	assert.Equal(t, "r", msg.Params["reject_url"])
}
