package budget

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the data-store contract for budget requests and approvals.
//
// Update and Delete only touch rows still PENDING and return ErrNotPending
// otherwise. RecordDecision flips a PENDING request and inserts its Approval
// in one atomic request, returning ErrAlreadyDecided when the request was
// decided before.
type Repository interface {
	Select(ctx context.Context, filter ListFilter) ([]Request, error)
	Get(ctx context.Context, id uuid.UUID) (Request, error)
	Insert(ctx context.Context, r Request) (Request, error)
	Update(ctx context.Context, id uuid.UUID, patch RequestPatch) (Request, error)
	Delete(ctx context.Context, id uuid.UUID) error

	RecordDecision(ctx context.Context, a Approval) (Request, Approval, error)
	ApprovalFor(ctx context.Context, requestID uuid.UUID) (*Approval, error)
}
