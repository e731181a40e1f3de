package jobs

import (
	"context"
	"fmt"

	"github.com/stockflow/stockflow/internal/notify"
	"github.com/stockflow/stockflow/internal/shared"
)

// TransportQueue names the queued transport in notify.Result.
const TransportQueue = "queue"

// QueueSender implements notify.Sender by enqueueing the message for the
// worker. A successful Send only means the task was accepted by Redis.
type QueueSender struct {
	client *Client
}

// NewQueueSender wraps client.
func NewQueueSender(client *Client) *QueueSender {
	return &QueueSender{client: client}
}

// Send enqueues msg as a TaskBudgetApprovalMail task.
func (s *QueueSender) Send(ctx context.Context, msg notify.Message) (notify.Result, error) {
	info, err := s.client.EnqueueBudgetApproval(ctx, msg)
	if err != nil {
		return notify.Result{}, fmt.Errorf("jobs: enqueue budget approval: %w: %w", shared.ErrUpstream, err)
	}
	return notify.Result{Status: 202, Text: info.ID, Transport: TransportQueue}, nil
}
