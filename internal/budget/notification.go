package budget

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/stockflow/stockflow/internal/notify"
)

// NotificationConfig carries the fixed parts of the approval email.
type NotificationConfig struct {
	ServiceID      string
	TemplateID     string
	ApproverName   string
	ApproverEmail  string
	CC             []string
	Locale         string
	CurrencySymbol string
}

var itemsTable = template.Must(template.New("items").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(
	`<table border="1" cellpadding="6" cellspacing="0" style="border-collapse:collapse">` +
		`<thead><tr><th>No</th><th>Item</th><th>Quantity</th></tr></thead><tbody>` +
		`{{range $i, $m := .}}<tr><td>{{inc $i}}</td><td>{{$m.ItemName}}</td><td>{{$m.Quantity}}</td></tr>{{else}}` +
		`<tr><td colspan="3">-</td></tr>{{end}}</tbody></table>`))

// RenderItemsTable renders the materials as an HTML table with escaped cells.
func RenderItemsTable(items []MaterialItem) (string, error) {
	var buf bytes.Buffer
	if err := itemsTable.Execute(&buf, items); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// FormatAmount formats amount with two decimals using the grouping rules of
// locale, prefixed by symbol.
func FormatAmount(locale, symbol string, amount decimal.Decimal) string {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	p := message.NewPrinter(tag)
	formatted := p.Sprint(number.Decimal(amount.Round(2).InexactFloat64(), number.Scale(2)))
	if symbol == "" {
		return formatted
	}
	return symbol + " " + formatted
}

// Message builds the approval email for r.
func (c NotificationConfig) Message(r Request, approveURL, rejectURL string) (notify.Message, error) {
	table, err := RenderItemsTable(r.Materials)
	if err != nil {
		return notify.Message{}, err
	}
	accountName := r.AccountName
	if accountName == "" {
		accountName = r.AccountCode
	}
	return notify.Message{
		ServiceID:  c.ServiceID,
		TemplateID: c.TemplateID,
		Params: map[string]string{
			"request_number": r.RequestNumber,
			"requester":      r.Requester,
			"approver_name":  c.ApproverName,
			"approver_email": c.ApproverEmail,
			"cc_emails":      strings.Join(c.CC, ","),
			"account_name":   accountName,
			"amount":         FormatAmount(c.Locale, c.CurrencySymbol, r.Amount),
			"items_table":    table,
			"note":           r.Note,
			"approve_url":    approveURL,
			"reject_url":     rejectURL,
		},
	}, nil
}
