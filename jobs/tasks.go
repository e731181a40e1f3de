package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/stockflow/stockflow/internal/jobs"
	"github.com/stockflow/stockflow/internal/notify"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskBudgetApprovalMail sends the approval email of a budget request.
	TaskBudgetApprovalMail = "mail:budget-approval"
)

// NewBudgetApprovalTask constructs an Asynq task carrying msg. The task is
// never retried.
func NewBudgetApprovalTask(msg notify.Message) (*asynq.Task, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBudgetApprovalMail, data, asynq.Queue(QueueDefault), asynq.MaxRetry(0)), nil
}

// MailJob delivers queued approval emails through a direct transport.
type MailJob struct {
	sender  notify.Sender
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewMailJob constructs the handler for TaskBudgetApprovalMail.
func NewMailJob(sender notify.Sender, logger *slog.Logger, metrics *jobmetrics.Metrics) *MailJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &MailJob{sender: sender, logger: logger, metrics: metrics}
}

// Handle processes TaskBudgetApprovalMail tasks.
func (j *MailJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track(TaskBudgetApprovalMail)
	var msg notify.Message
	if err := json.Unmarshal(t.Payload(), &msg); err != nil {
		j.logger.Error("budget approval mail payload", slog.Any("error", err))
		return tracker.End(fmt.Errorf("%w: %v", asynq.SkipRetry, err))
	}
	res, err := j.sender.Send(ctx, msg)
	if err != nil {
		j.logger.Error("budget approval mail failed",
			slog.String("request_number", msg.Params["request_number"]), slog.Any("error", err))
		return tracker.End(fmt.Errorf("%w: %v", asynq.SkipRetry, err))
	}
	j.logger.Info("budget approval mail sent",
		slog.String("request_number", msg.Params["request_number"]), slog.String("transport", res.Transport))
	return tracker.End(nil)
}
