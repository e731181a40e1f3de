package budget

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockflow/stockflow/internal/shared"
)

// Status is the lifecycle state of a budget request.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Decision is the outcome carried by a decision link.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// ParseDecision accepts APPROVE or REJECT, ignoring case.
func ParseDecision(s string) (Decision, error) {
	switch d := Decision(strings.ToUpper(strings.TrimSpace(s))); d {
	case DecisionApprove, DecisionReject:
		return d, nil
	}
	return "", fmt.Errorf("budget: decision %q: %w", s, ErrValidation)
}

// Status returns the request status the decision leads to.
func (d Decision) Status() Status {
	if d == DecisionApprove {
		return StatusApproved
	}
	return StatusRejected
}

// MaterialItem is one line of the materials list.
type MaterialItem struct {
	ItemName string `json:"item_name" validate:"required,max=200"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

// Request is a budget request awaiting or past a decision.
type Request struct {
	ID            uuid.UUID       `json:"id"`
	RequestNumber string          `json:"request_number"`
	Requester     string          `json:"requester"`
	RequestDate   time.Time       `json:"request_date"`
	AccountCode   string          `json:"account_code"`
	AccountName   string          `json:"account_name"`
	Amount        decimal.Decimal `json:"amount"`
	Note          string          `json:"note"`
	Materials     []MaterialItem  `json:"materials"`
	Status        Status          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Approval records the decision on a request. There is at most one per
// request and it is never modified.
type Approval struct {
	ID           uuid.UUID `json:"id"`
	RequestID    uuid.UUID `json:"request_id"`
	ApproverName string    `json:"approver_name"`
	Decision     Decision  `json:"decision"`
	DecidedAt    time.Time `json:"decided_at"`
	Remark       string    `json:"remark,omitempty"`
}

// RequestInput carries the fields accepted when creating a request.
type RequestInput struct {
	RequestNumber string           `json:"request_number" validate:"max=40"`
	Requester     string           `json:"requester" validate:"required,max=200"`
	RequestDate   time.Time        `json:"request_date"`
	AccountCode   string           `json:"account_code" validate:"required,max=40"`
	AccountName   string           `json:"account_name" validate:"max=200"`
	Amount        *decimal.Decimal `json:"amount" validate:"required"`
	Note          string           `json:"note"`
	Materials     []MaterialItem   `json:"materials" validate:"dive"`
}

// RequestPatch carries a partial update of a pending request.
type RequestPatch struct {
	Requester   *string          `json:"requester" validate:"omitempty,min=1,max=200"`
	RequestDate *time.Time       `json:"request_date"`
	AccountCode *string          `json:"account_code" validate:"omitempty,min=1,max=40"`
	AccountName *string          `json:"account_name" validate:"omitempty,max=200"`
	Amount      *decimal.Decimal `json:"amount"`
	Note        *string          `json:"note"`
	Materials   *[]MaterialItem  `json:"materials" validate:"omitempty,dive"`
}

// Apply returns r with the set fields of p applied.
func (p RequestPatch) Apply(r Request, now time.Time) Request {
	if p.Requester != nil {
		r.Requester = *p.Requester
	}
	if p.RequestDate != nil {
		r.RequestDate = *p.RequestDate
	}
	if p.AccountCode != nil {
		r.AccountCode = *p.AccountCode
	}
	if p.AccountName != nil {
		r.AccountName = *p.AccountName
	}
	if p.Amount != nil {
		r.Amount = *p.Amount
	}
	if p.Note != nil {
		r.Note = *p.Note
	}
	if p.Materials != nil {
		r.Materials = append([]MaterialItem(nil), (*p.Materials)...)
	}
	r.UpdatedAt = now
	return r
}

// DecisionInput is the parsed content of a decision link.
type DecisionInput struct {
	RequestID    uuid.UUID
	Decision     Decision
	ApproverName string
	Remark       string
}

// ListFilter narrows List.
type ListFilter struct {
	Status Status
	Search string
	Limit  int
}

var (
	// ErrValidation indicates input rejected before reaching the data store.
	ErrValidation = fmt.Errorf("budget: %w", shared.ErrValidation)
	// ErrNotPending indicates an edit or delete of a decided request.
	ErrNotPending = fmt.Errorf("budget: request is not pending: %w", shared.ErrConflict)
	// ErrAlreadyDecided indicates a second decision on the same request.
	ErrAlreadyDecided = fmt.Errorf("budget: request already decided: %w", shared.ErrConflict)
	// ErrInvalidLink indicates a decision link whose token is missing or bad.
	ErrInvalidLink = fmt.Errorf("budget: invalid decision link: %w", shared.ErrValidation)
)

// FieldError lists rejected request fields keyed by JSON name.
type FieldError struct {
	Fields map[string]string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("budget: invalid request: %v", e.Fields)
}

func (e *FieldError) Unwrap() error { return ErrValidation }

// FieldErrors returns the rejected fields for problem responses.
func (e *FieldError) FieldErrors() map[string]string { return e.Fields }
