package budget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/stockflow/stockflow/internal/notify"
	"github.com/stockflow/stockflow/internal/shared"
)

// Notifier dispatches a message in the background.
type Notifier interface {
	Dispatch(msg notify.Message, attrs ...any) *notify.Delivery
}

// Detail is a request together with its approval, if decided.
type Detail struct {
	Request
	Approval *Approval `json:"approval"`
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	Notification NotificationConfig
	Clock        func() time.Time
}

// Service coordinates the budget request lifecycle.
type Service struct {
	repo     Repository
	notifier Notifier
	links    *Links
	notif    NotificationConfig
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo Repository, notifier Notifier, links *Links, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	return &Service{
		repo:     repo,
		notifier: notifier,
		links:    links,
		notif:    cfg.Notification,
		logger:   logger,
		validate: v,
		now:      cfg.Clock,
	}
}

// Links exposes the decision link builder.
func (s *Service) Links() *Links {
	return s.links
}

// Create stores a new PENDING request and dispatches the approval email.
// The returned delivery reports the send outcome; a failed send does not
// undo the request.
func (s *Service) Create(ctx context.Context, in RequestInput) (Request, *notify.Delivery, error) {
	if err := s.check(in); err != nil {
		return Request{}, nil, err
	}
	if in.Amount.IsNegative() {
		return Request{}, nil, &FieldError{Fields: map[string]string{"amount": "must be at least 0"}}
	}
	now := s.now().UTC()
	req := Request{
		ID:            uuid.New(),
		RequestNumber: strings.TrimSpace(in.RequestNumber),
		Requester:     strings.TrimSpace(in.Requester),
		RequestDate:   in.RequestDate,
		AccountCode:   strings.TrimSpace(in.AccountCode),
		AccountName:   strings.TrimSpace(in.AccountName),
		Amount:        *in.Amount,
		Note:          in.Note,
		Materials:     append([]MaterialItem{}, in.Materials...),
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.RequestNumber == "" {
		req.RequestNumber = NewRequestNumber(now)
	}
	if req.RequestDate.IsZero() {
		req.RequestDate = now.Truncate(24 * time.Hour)
	}

	created, err := s.repo.Insert(ctx, req)
	if err != nil {
		s.logger.Error("budget request insert failed", slog.String("request_number", req.RequestNumber), slog.Any("error", err))
		return Request{}, nil, fmt.Errorf("budget: create request: %w", err)
	}
	s.logger.Info("budget request created", slog.String("id", created.ID.String()), slog.String("request_number", created.RequestNumber))
	return created, s.notify(created), nil
}

func (s *Service) notify(r Request) *notify.Delivery {
	if s.notifier == nil || s.links == nil {
		return nil
	}
	approve, err := s.links.URL(r.ID, DecisionApprove)
	if err != nil {
		s.logger.Error("budget decision link failed", slog.String("id", r.ID.String()), slog.Any("error", err))
		return nil
	}
	reject, err := s.links.URL(r.ID, DecisionReject)
	if err != nil {
		s.logger.Error("budget decision link failed", slog.String("id", r.ID.String()), slog.Any("error", err))
		return nil
	}
	msg, err := s.notif.Message(r, approve, reject)
	if err != nil {
		s.logger.Error("budget notification render failed", slog.String("id", r.ID.String()), slog.Any("error", err))
		return nil
	}
	return s.notifier.Dispatch(msg, slog.String("request_id", r.ID.String()), slog.String("request_number", r.RequestNumber))
}

// NewRequestNumber returns a number of the form BR-YYYYMMDD-XXXXXX.
func NewRequestNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return "BR-" + now.Format("20060102") + "-" + suffix
}

func (s *Service) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	fields := map[string]string{}
	for _, fe := range verrs {
		key := strings.TrimPrefix(fe.Namespace(), "RequestInput.")
		key = strings.TrimPrefix(key, "RequestPatch.")
		fields[key] = fe.Tag()
	}
	return &FieldError{Fields: fields}
}

// Get returns request id with its approval.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Detail, error) {
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		return Detail{}, fmt.Errorf("budget: get request: %w", err)
	}
	d := Detail{Request: r}
	if r.Status.Terminal() {
		if d.Approval, err = s.repo.ApprovalFor(ctx, id); err != nil {
			return Detail{}, fmt.Errorf("budget: get approval: %w", err)
		}
	}
	return d, nil
}

// List returns requests matching filter, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Request, error) {
	if filter.Status != "" && filter.Status != StatusPending && !filter.Status.Terminal() {
		return nil, &FieldError{Fields: map[string]string{"status": "oneof"}}
	}
	rows, err := s.repo.Select(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("budget: list requests: %w", err)
	}
	return rows, nil
}

// Update edits a request while it is PENDING.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch RequestPatch) (Request, error) {
	if err := s.check(patch); err != nil {
		return Request{}, err
	}
	if patch.Amount != nil && patch.Amount.IsNegative() {
		return Request{}, &FieldError{Fields: map[string]string{"amount": "must be at least 0"}}
	}
	r, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return Request{}, fmt.Errorf("budget: update request: %w", err)
	}
	return r, nil
}

// Delete removes a request while it is PENDING.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("budget: delete request: %w", err)
	}
	s.logger.Info("budget request deleted", slog.String("id", id.String()))
	return nil
}

// Decide applies a decision to a PENDING request and records its Approval.
// Deciding an already decided request returns ErrAlreadyDecided.
func (s *Service) Decide(ctx context.Context, in DecisionInput) (Detail, error) {
	if in.RequestID == uuid.Nil {
		return Detail{}, &FieldError{Fields: map[string]string{"request_id": "required"}}
	}
	if in.Decision != DecisionApprove && in.Decision != DecisionReject {
		return Detail{}, &FieldError{Fields: map[string]string{"decision": "oneof"}}
	}
	approver := strings.TrimSpace(in.ApproverName)
	if approver == "" {
		approver = s.notif.ApproverName
	}
	a := Approval{
		ID:           uuid.New(),
		RequestID:    in.RequestID,
		ApproverName: approver,
		Decision:     in.Decision,
		DecidedAt:    s.now().UTC(),
		Remark:       strings.TrimSpace(in.Remark),
	}
	r, approval, err := s.repo.RecordDecision(ctx, a)
	if err != nil {
		if errors.Is(err, ErrAlreadyDecided) {
			s.logger.Warn("budget decision ignored", slog.String("id", in.RequestID.String()), slog.String("decision", string(in.Decision)))
		}
		return Detail{}, fmt.Errorf("budget: decide request: %w", err)
	}
	s.logger.Info("budget request decided", slog.String("id", r.ID.String()), slog.String("status", string(r.Status)))
	return Detail{Request: r, Approval: &approval}, nil
}

// IsNotFound reports whether err means the request does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}
