package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/stockflow/stockflow/internal/budget"
	"github.com/stockflow/stockflow/internal/shared"
)

type budgetTable struct{ db *DB }

func cloneRequest(r budget.Request) budget.Request {
	r.Materials = append([]budget.MaterialItem(nil), r.Materials...)
	return r
}

func (t budgetTable) Select(_ context.Context, f budget.ListFilter) ([]budget.Request, error) {
	unlock, err := t.db.lock()
	defer unlock()
	if err != nil {
		return nil, err
	}
	search := strings.ToLower(strings.TrimSpace(f.Search))
	var out []budget.Request
	for _, r := range t.db.requests {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(r.RequestNumber), search) &&
			!strings.Contains(strings.ToLower(r.Requester), search) &&
			!strings.Contains(strings.ToLower(r.AccountName), search) {
			continue
		}
		out = append(out, cloneRequest(r))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return limit(out, f.Limit), nil
}

func (t budgetTable) find(id uuid.UUID) int {
	for i, r := range t.db.requests {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (t budgetTable) Get(_ context.Context, id uuid.UUID) (budget.Request, error) {
	unlock, err := t.db.lock()
	defer unlock()
	if err != nil {
		return budget.Request{}, err
	}
	if i := t.find(id); i >= 0 {
		return cloneRequest(t.db.requests[i]), nil
	}
	return budget.Request{}, fmt.Errorf("budget request %s: %w", id, shared.ErrNotFound)
}

func (t budgetTable) Insert(_ context.Context, r budget.Request) (budget.Request, error) {
	unlock, err := t.db.lock()
	defer unlock()
	if err != nil {
		return budget.Request{}, err
	}
	for _, existing := range t.db.requests {
		if existing.RequestNumber == r.RequestNumber {
			return budget.Request{}, fmt.Errorf("budget request %s: %w", r.RequestNumber, shared.ErrDuplicate)
		}
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.Status = budget.StatusPending
	t.db.requests = append(t.db.requests, cloneRequest(r))
	return cloneRequest(r), nil
}

func (t budgetTable) Update(_ context.Context, id uuid.UUID, patch budget.RequestPatch) (budget.Request, error) {
	unlock, err := t.db.lock()
	defer unlock()
	if err != nil {
		return budget.Request{}, err
	}
	i := t.find(id)
	if i < 0 {
		return budget.Request{}, fmt.Errorf("budget request %s: %w", id, shared.ErrNotFound)
	}
	if t.db.requests[i].Status != budget.StatusPending {
		return budget.Request{}, budget.ErrNotPending
	}
	t.db.requests[i] = patch.Apply(t.db.requests[i], t.db.now())
	return cloneRequest(t.db.requests[i]), nil
}

func (t budgetTable) Delete(_ context.Context, id uuid.UUID) error {
	unlock, err := t.db.lock()
	defer unlock()
	if err != nil {
		return err
	}
	i := t.find(id)
	if i < 0 {
		return fmt.Errorf("budget request %s: %w", id, shared.ErrNotFound)
	}
	if t.db.requests[i].Status != budget.StatusPending {
		return budget.ErrNotPending
	}
	t.db.requests = append(t.db.requests[:i:i], t.db.requests[i+1:]...)
	return nil
}

func (t budgetTable) RecordDecision(_ context.Context, a budget.Approval) (budget.Request, budget.Approval, error) {
	unlock, err := t.db.lock()
	defer unlock()
	if err != nil {
		return budget.Request{}, budget.Approval{}, err
	}
	i := t.find(a.RequestID)
	if i < 0 {
		return budget.Request{}, budget.Approval{}, fmt.Errorf("budget request %s: %w", a.RequestID, shared.ErrNotFound)
	}
	if t.db.approvalIndex(a.RequestID) >= 0 || t.db.requests[i].Status != budget.StatusPending {
		return budget.Request{}, budget.Approval{}, budget.ErrAlreadyDecided
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	t.db.requests[i].Status = a.Decision.Status()
	t.db.requests[i].UpdatedAt = a.DecidedAt
	t.db.approvals = append(t.db.approvals, a)
	return cloneRequest(t.db.requests[i]), a, nil
}

func (t budgetTable) ApprovalFor(_ context.Context, requestID uuid.UUID) (*budget.Approval, error) {
	unlock, err := t.db.lock()
	defer unlock()
	if err != nil {
		return nil, err
	}
	i := t.db.approvalIndex(requestID)
	if i < 0 {
		return nil, nil
	}
	a := t.db.approvals[i]
	return &a, nil
}

func (db *DB) approvalIndex(requestID uuid.UUID) int {
	for i, a := range db.approvals {
		if a.RequestID == requestID {
			return i
		}
	}
	return -1
}

// ApprovalCount reports how many approvals exist for requestID.
func (db *DB) ApprovalCount(requestID uuid.UUID) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for _, a := range db.approvals {
		if a.RequestID == requestID {
			n++
		}
	}
	return n
}
