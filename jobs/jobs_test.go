package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/stockflow/stockflow/internal/jobs"
	"github.com/stockflow/stockflow/internal/notify"
	"github.com/stockflow/stockflow/internal/shared"
)

type fakeSender struct {
	got notify.Message
	err error
}

func (f *fakeSender) Send(_ context.Context, msg notify.Message) (notify.Result, error) {
	f.got = msg
	if f.err != nil {
		return notify.Result{}, f.err
	}
	return notify.Result{Status: 200, Text: "OK", Transport: "smtp"}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func approvalMessage() notify.Message {
	return notify.Message{ServiceID: "svc", TemplateID: "tpl", Params: map[string]string{"request_number": "BR-1"}}
}

func TestNewBudgetApprovalTask(t *testing.T) {
	task, err := NewBudgetApprovalTask(approvalMessage())
	require.NoError(t, err)
	assert.Equal(t, TaskBudgetApprovalMail, task.Type())

	var msg notify.Message
	require.NoError(t, json.Unmarshal(task.Payload(), &msg))
	assert.Equal(t, approvalMessage(), msg)
}

func TestMailJobHandle(t *testing.T) {
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	sender := &fakeSender{}
	job := NewMailJob(sender, quietLogger(), metrics)

	task, err := NewBudgetApprovalTask(approvalMessage())
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, "BR-1", sender.got.Params["request_number"])

	sender.err = errors.New("smtp down")
	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), asynq.NewTask(TaskBudgetApprovalMail, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestMailJobCountsRuns(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)
	job := NewMailJob(&fakeSender{err: errors.New("boom")}, quietLogger(), metrics)

	task, err := NewBudgetApprovalTask(approvalMessage())
	require.NoError(t, err)
	_ = job.Handle(context.Background(), task)

	families, err := registry.Gather()
	require.NoError(t, err)
	var failures float64
	for _, f := range families {
		if f.GetName() == "stockflow_jobs_failures_total" {
			failures = f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(1), failures)
}

func TestQueueSenderEnqueues(t *testing.T) {
	mr := miniredis.RunT(t)
	opts := asynq.RedisClientOpt{Addr: mr.Addr()}
	client := NewClient(opts)
	defer client.Close()

	res, err := NewQueueSender(client).Send(context.Background(), approvalMessage())
	require.NoError(t, err)
	assert.Equal(t, TransportQueue, res.Transport)
	assert.NotEmpty(t, res.Text)

	pending, err := mr.List("asynq:{" + QueueDefault + "}:pending")
	require.NoError(t, err)
	assert.Equal(t, []string{res.Text}, pending)
}

func TestQueueSenderFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	_, err := NewQueueSender(client).Send(context.Background(), approvalMessage())
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrUpstream)
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return s.info, s.err }

func TestHealthHandler(t *testing.T) {
	cases := []struct {
		name      string
		inspector QueueInspector
		status    int
		pending   int
	}{
		{"no queue", nil, http.StatusOK, 0},
		{"pending", stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 4}}, http.StatusOK, 4},
		{"unreachable", stubInspector{err: errors.New("dial tcp")}, http.StatusServiceUnavailable, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			NewHandler(tc.inspector, quietLogger()).health(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
			assert.Equal(t, tc.status, rr.Code)
			if tc.status != http.StatusOK {
				return
			}
			var body queueHealth
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, QueueDefault, body.Queue)
			assert.Equal(t, tc.pending, body.Pending)
		})
	}
}
