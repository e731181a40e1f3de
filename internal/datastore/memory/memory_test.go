package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockflow/stockflow/internal/budget"
	"github.com/stockflow/stockflow/internal/inventory"
	"github.com/stockflow/stockflow/internal/shared"
)

func fixedClock() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }

func TestMovementInsertAdjustsStock(t *testing.T) {
	ctx := context.Background()
	repos := New(fixedClock).Inventory()

	p, err := repos.Products.Insert(ctx, inventory.ProductInput{Name: "Mask", SKU: "M-1", CurrentStock: 5})
	require.NoError(t, err)

	_, err = repos.Movements.Insert(ctx, inventory.MovementInput{ProductID: p.ID, Type: inventory.MovementOut, Quantity: 8, Reason: "sale"})
	require.NoError(t, err)
	_, err = repos.Movements.Insert(ctx, inventory.MovementInput{ProductID: p.ID, Type: inventory.MovementIn, Quantity: 3, Reason: "restock"})
	require.NoError(t, err)

	products, err := repos.Products.Select(ctx, inventory.ListQuery{})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, 3, products[0].CurrentStock)

	movements, err := repos.Movements.Select(ctx, inventory.MovementQuery{})
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, inventory.MovementIn, movements[0].Type, "newest first")
}

func TestUniqueSKU(t *testing.T) {
	ctx := context.Background()
	repos := New(fixedClock).Inventory()
	_, err := repos.Products.Insert(ctx, inventory.ProductInput{Name: "A", SKU: "DUP"})
	require.NoError(t, err)
	_, err = repos.Products.Insert(ctx, inventory.ProductInput{Name: "B", SKU: "DUP"})
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestCategoryDeleteRestricted(t *testing.T) {
	ctx := context.Background()
	repos := New(fixedClock).Inventory()
	c, err := repos.Categories.Insert(ctx, inventory.CategoryInput{Name: "Medicine"})
	require.NoError(t, err)
	_, err = repos.Products.Insert(ctx, inventory.ProductInput{Name: "A", SKU: "A", CategoryID: &c.ID})
	require.NoError(t, err)

	require.ErrorIs(t, repos.Categories.Delete(ctx, c.ID), shared.ErrConflict)
}

func TestFailWith(t *testing.T) {
	db := New(fixedClock)
	boom := errors.New("connection reset")
	db.FailWith(boom)
	_, err := db.Inventory().Products.Select(context.Background(), inventory.ListQuery{})
	require.ErrorIs(t, err, boom)
	db.FailWith(nil)
	_, err = db.Inventory().Products.Select(context.Background(), inventory.ListQuery{})
	require.NoError(t, err)
}

func TestBudgetDecisionIsRecordedOnce(t *testing.T) {
	ctx := context.Background()
	db := New(fixedClock)
	repo := db.Budget()
	req, err := repo.Insert(ctx, budget.Request{RequestNumber: "BR-1", Requester: "Ana", CreatedAt: fixedClock()})
	require.NoError(t, err)
	assert.Equal(t, budget.StatusPending, req.Status)

	decided, approval, err := repo.RecordDecision(ctx, budget.Approval{RequestID: req.ID, Decision: budget.DecisionApprove, DecidedAt: fixedClock()})
	require.NoError(t, err)
	assert.Equal(t, budget.StatusApproved, decided.Status)
	assert.Equal(t, req.ID, approval.RequestID)

	_, _, err = repo.RecordDecision(ctx, budget.Approval{RequestID: req.ID, Decision: budget.DecisionReject, DecidedAt: fixedClock()})
	require.ErrorIs(t, err, budget.ErrAlreadyDecided)
	assert.Equal(t, 1, db.ApprovalCount(req.ID))

	_, err = repo.Update(ctx, req.ID, budget.RequestPatch{})
	require.ErrorIs(t, err, budget.ErrNotPending)
	require.ErrorIs(t, repo.Delete(ctx, req.ID), budget.ErrNotPending)
}
