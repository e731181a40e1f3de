package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/stockflow/stockflow/internal/budget"
	"github.com/stockflow/stockflow/internal/platform/db"
	"github.com/stockflow/stockflow/internal/shared"
)

const requestColumns = "id, request_number, requester, request_date, account_code, account_name, " +
	"amount::text AS amount, note, materials::text AS materials, status, created_at, updated_at"

type requestRow struct {
	ID            uuid.UUID `db:"id"`
	RequestNumber string    `db:"request_number"`
	Requester     string    `db:"requester"`
	RequestDate   time.Time `db:"request_date"`
	AccountCode   string    `db:"account_code"`
	AccountName   string    `db:"account_name"`
	Amount        string    `db:"amount"`
	Note          string    `db:"note"`
	Materials     string    `db:"materials"`
	Status        string    `db:"status"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r requestRow) request() (budget.Request, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return budget.Request{}, mapErr("decode amount", err)
	}
	var materials []budget.MaterialItem
	if err := json.Unmarshal([]byte(r.Materials), &materials); err != nil {
		return budget.Request{}, mapErr("decode materials", err)
	}
	return budget.Request{
		ID:            r.ID,
		RequestNumber: r.RequestNumber,
		Requester:     r.Requester,
		RequestDate:   r.RequestDate,
		AccountCode:   r.AccountCode,
		AccountName:   r.AccountName,
		Amount:        amount,
		Note:          r.Note,
		Materials:     materials,
		Status:        budget.Status(r.Status),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}, nil
}

func requestValues(r budget.Request) (map[string]any, error) {
	materials := r.Materials
	if materials == nil {
		materials = []budget.MaterialItem{}
	}
	raw, err := json.Marshal(materials)
	if err != nil {
		return nil, mapErr("encode materials", err)
	}
	return map[string]any{
		"requester":    r.Requester,
		"request_date": r.RequestDate,
		"account_code": r.AccountCode,
		"account_name": r.AccountName,
		"amount":       r.Amount.String(),
		"note":         r.Note,
		"materials":    string(raw),
		"updated_at":   r.UpdatedAt,
	}, nil
}

const approvalColumns = "id, request_id, approver_name, decision, decided_at, remark"

type budgetTable struct{ db *DB }

func (t budgetTable) Select(ctx context.Context, f budget.ListFilter) ([]budget.Request, error) {
	sb := t.db.builder.Select(requestColumns).From("budget_requests").
		OrderBy("created_at DESC", "id DESC")
	if f.Status != "" {
		sb = sb.Where(squirrel.Eq{"status": string(f.Status)})
	}
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		sb = sb.Where(squirrel.Or{
			squirrel.ILike{"request_number": pattern},
			squirrel.ILike{"requester": pattern},
			squirrel.ILike{"account_name": pattern},
		})
	}
	query, args, err := withLimit(sb, f.Limit).ToSql()
	if err != nil {
		return nil, mapErr("build select budget requests", err)
	}
	var rows []requestRow
	if err := pgxscan.Select(ctx, t.db.pool, &rows, query, args...); err != nil {
		return nil, mapErr("select budget requests", err)
	}
	out := make([]budget.Request, 0, len(rows))
	for _, row := range rows {
		r, err := row.request()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (t budgetTable) get(ctx context.Context, q pgxscan.Querier, id uuid.UUID, lock bool) (budget.Request, error) {
	sb := t.db.builder.Select(requestColumns).From("budget_requests").Where("id = ?", id)
	if lock {
		sb = sb.Suffix("FOR UPDATE")
	}
	query, args, err := sb.ToSql()
	if err != nil {
		return budget.Request{}, mapErr("build get budget request", err)
	}
	var row requestRow
	if err := pgxscan.Get(ctx, q, &row, query, args...); err != nil {
		return budget.Request{}, mapErr("get budget request "+id.String(), err)
	}
	return row.request()
}

func (t budgetTable) Get(ctx context.Context, id uuid.UUID) (budget.Request, error) {
	return t.get(ctx, t.db.pool, id, false)
}

// Insert always stores the request as PENDING.
func (t budgetTable) Insert(ctx context.Context, r budget.Request) (budget.Request, error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	values, err := requestValues(r)
	if err != nil {
		return budget.Request{}, err
	}
	values["id"] = r.ID
	values["request_number"] = r.RequestNumber
	values["status"] = string(budget.StatusPending)
	values["created_at"] = r.CreatedAt
	query, args, err := t.db.builder.Insert("budget_requests").SetMap(values).
		Suffix("RETURNING " + requestColumns).ToSql()
	if err != nil {
		return budget.Request{}, mapErr("build insert budget request", err)
	}
	var row requestRow
	if err := pgxscan.Get(ctx, t.db.pool, &row, query, args...); err != nil {
		return budget.Request{}, mapErr("insert budget request", err)
	}
	return row.request()
}

func (t budgetTable) Update(ctx context.Context, id uuid.UUID, patch budget.RequestPatch) (budget.Request, error) {
	var out budget.Request
	err := db.WithTx(ctx, t.db.pool, func(tx pgx.Tx) error {
		current, err := t.get(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if current.Status != budget.StatusPending {
			return budget.ErrNotPending
		}
		values, err := requestValues(patch.Apply(current, t.db.now()))
		if err != nil {
			return err
		}
		query, args, err := t.db.builder.Update("budget_requests").SetMap(values).
			Where("id = ?", id).Suffix("RETURNING " + requestColumns).ToSql()
		if err != nil {
			return mapErr("build update budget request", err)
		}
		var row requestRow
		if err := pgxscan.Get(ctx, tx, &row, query, args...); err != nil {
			return mapErr("update budget request", err)
		}
		out, err = row.request()
		return err
	})
	return out, err
}

// Delete removes a PENDING request. The status predicate sits in the DELETE
// itself; a miss is told apart from a decided row by a follow-up lookup.
func (t budgetTable) Delete(ctx context.Context, id uuid.UUID) error {
	query, args, err := t.db.builder.Delete("budget_requests").
		Where(squirrel.Eq{"id": id, "status": string(budget.StatusPending)}).ToSql()
	if err != nil {
		return mapErr("build delete budget request", err)
	}
	tag, err := t.db.pool.Exec(ctx, query, args...)
	if err != nil {
		return mapErr("delete budget request", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if _, err := t.Get(ctx, id); err != nil {
		return err
	}
	return budget.ErrNotPending
}

// RecordDecision flips a PENDING request and inserts its approval in one
// transaction. The unique request_id index backs the single-approval rule
// when two decisions race.
func (t budgetTable) RecordDecision(ctx context.Context, a budget.Approval) (budget.Request, budget.Approval, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	var (
		outReq      budget.Request
		outApproval budget.Approval
	)
	err := db.WithTx(ctx, t.db.pool, func(tx pgx.Tx) error {
		query, args, err := t.db.builder.Update("budget_requests").
			Set("status", string(a.Decision.Status())).
			Set("updated_at", a.DecidedAt).
			Where(squirrel.Eq{"id": a.RequestID, "status": string(budget.StatusPending)}).
			Suffix("RETURNING " + requestColumns).ToSql()
		if err != nil {
			return mapErr("build decide budget request", err)
		}
		var row requestRow
		if err := pgxscan.Get(ctx, tx, &row, query, args...); err != nil {
			if !pgxscan.NotFound(err) {
				return mapErr("decide budget request", err)
			}
			if _, gerr := t.get(ctx, tx, a.RequestID, false); gerr != nil {
				return gerr
			}
			return budget.ErrAlreadyDecided
		}
		if outReq, err = row.request(); err != nil {
			return err
		}

		query, args, err = t.db.builder.Insert("approvals").SetMap(map[string]any{
			"id":            a.ID,
			"request_id":    a.RequestID,
			"approver_name": a.ApproverName,
			"decision":      string(a.Decision),
			"decided_at":    a.DecidedAt,
			"remark":        a.Remark,
		}).Suffix("RETURNING " + approvalColumns).ToSql()
		if err != nil {
			return mapErr("build insert approval", err)
		}
		if err := pgxscan.Get(ctx, tx, &outApproval, query, args...); err != nil {
			err = mapErr("insert approval", err)
			if errors.Is(err, shared.ErrDuplicate) {
				return budget.ErrAlreadyDecided
			}
			return err
		}
		return nil
	})
	if err != nil {
		return budget.Request{}, budget.Approval{}, err
	}
	return outReq, outApproval, nil
}

// ApprovalFor returns nil when the request has no approval yet.
func (t budgetTable) ApprovalFor(ctx context.Context, requestID uuid.UUID) (*budget.Approval, error) {
	query, args, err := t.db.builder.Select(approvalColumns).From("approvals").
		Where("request_id = ?", requestID).ToSql()
	if err != nil {
		return nil, mapErr("build get approval", err)
	}
	var a budget.Approval
	if err := pgxscan.Get(ctx, t.db.pool, &a, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, mapErr("get approval", err)
	}
	return &a, nil
}
