package budget

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// PrintTemplate is the view template rendering the print document.
const PrintTemplate = "pages/budget_print"

// Renderer executes a named HTML template.
type Renderer interface {
	Execute(w io.Writer, name string, data any) error
}

// PrintData feeds the print document.
type PrintData struct {
	Detail
	Amount    string
	PrintedAt time.Time
}

// PrintDocument renders the standalone HTML page for request id: request
// fields, the materials table and the approval when one exists.
func (s *Service) PrintDocument(ctx context.Context, id uuid.UUID, r Renderer) ([]byte, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	data := PrintData{
		Detail:    d,
		Amount:    FormatAmount(s.notif.Locale, s.notif.CurrencySymbol, d.Amount),
		PrintedAt: s.now(),
	}
	var buf bytes.Buffer
	if err := r.Execute(&buf, PrintTemplate, data); err != nil {
		return nil, fmt.Errorf("budget: render print document: %w", err)
	}
	return buf.Bytes(), nil
}
