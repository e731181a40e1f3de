package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Observer receives the outcome of every dispatched send.
type Observer interface {
	ObserveNotification(result string)
}

// Delivery is the handle of one asynchronous send.
type Delivery struct {
	done   chan struct{}
	result Result
	err    error
}

// Done is closed once the send finished.
func (d *Delivery) Done() <-chan struct{} {
	return d.done
}

// Wait blocks until the send finished or ctx ends.
func (d *Delivery) Wait(ctx context.Context) (Result, error) {
	select {
	case <-d.done:
		return d.result, d.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Dispatcher runs sends in the background. Failures are logged and observed,
// never returned to the dispatching caller.
type Dispatcher struct {
	sender   Sender
	logger   *slog.Logger
	observer Observer
	timeout  time.Duration
	wg       sync.WaitGroup
}

// NewDispatcher constructs a Dispatcher. observer may be nil.
func NewDispatcher(sender Sender, logger *slog.Logger, observer Observer, timeout time.Duration) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{sender: sender, logger: logger, observer: observer, timeout: timeout}
}

// Dispatch starts sending msg and returns immediately. The send is detached
// from the caller's context so it outlives the request that triggered it.
func (d *Dispatcher) Dispatch(msg Message, attrs ...any) *Delivery {
	del := &Delivery{done: make(chan struct{})}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer close(del.done)
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		del.result, del.err = d.sender.Send(ctx, msg)
		if del.err != nil {
			d.logger.Error("notification send failed", append(attrs, slog.Any("error", del.err))...)
			d.observe("failure")
			return
		}
		d.logger.Info("notification sent", append(attrs, slog.String("transport", del.result.Transport))...)
		d.observe("success")
	}()
	return del
}

func (d *Dispatcher) observe(result string) {
	if d.observer != nil {
		d.observer.ObserveNotification(result)
	}
}

// Close waits for in-flight sends or until ctx ends.
func (d *Dispatcher) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
