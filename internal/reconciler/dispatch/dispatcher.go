// Package dispatch delivers notifications on a bounded worker pool so the
// reconciliation loop never waits on the notification transport.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/go-exchange-reconciler/internal/domain/notification"
	"github.com/go-exchange-reconciler/internal/platform/metrics"
)

// errorBuffer bounds the delivery errors kept until the owner drains them
const errorBuffer = 64

// Recorder counts delivery outcomes
type Recorder interface {
	Notification(result string)
}

// DeliveryError is reported on Errors when the underlying publisher fails
type DeliveryError struct {
	UserID uuid.UUID
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("failed to deliver notification to user %s: %v", e.UserID, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Dispatcher implements notification.Publisher by submitting each send to a pool.
// Send only fails when the task cannot be submitted; delivery failures surface on Errors.
type Dispatcher struct {
	publisher notification.Publisher
	pool      *ants.Pool
	recorder  Recorder
	logger    *slog.Logger

	wg   sync.WaitGroup
	errs chan error
	once sync.Once
}

func NewDispatcher(logger *slog.Logger, publisher notification.Publisher, size int, recorder Recorder) (*Dispatcher, error) {
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatch pool: %w", err)
	}

	return &Dispatcher{
		publisher: publisher,
		pool:      pool,
		recorder:  recorder,
		logger:    logger.With("component", "dispatcher"),
		errs:      make(chan error, errorBuffer),
	}, nil
}

// Send queues text for delivery to the user. The send outlives ctx cancellation
// but keeps its values.
func (d *Dispatcher) Send(ctx context.Context, userID uuid.UUID, text string) error {
	sendCtx := context.WithoutCancel(ctx)

	d.wg.Add(1)
	err := d.pool.Submit(func() {
		defer d.wg.Done()

		if err := d.publisher.Send(sendCtx, userID, text); err != nil {
			d.record(metrics.ResultFailed)
			d.report(&DeliveryError{UserID: userID, Err: err})
			return
		}
		d.record(metrics.ResultSent)
	})
	if err != nil {
		d.wg.Done()
		d.logger.Error("Failed to submit notification", "user_id", userID.String(), "error", err)
		return fmt.Errorf("failed to submit notification: %w", err)
	}

	return nil
}

// Errors returns delivery failures. Failures that arrive while the buffer is full are
// logged and dropped.
func (d *Dispatcher) Errors() <-chan error {
	return d.errs
}

// Wait blocks until every submitted send has finished
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Shutdown waits for in-flight sends, releases the pool and closes Errors
func (d *Dispatcher) Shutdown() {
	d.once.Do(func() {
		d.logger.Info("Shutting down dispatcher", "running_workers", d.pool.Running())
		d.wg.Wait()
		d.pool.Release()
		close(d.errs)
	})
}

// Running returns the number of busy workers
func (d *Dispatcher) Running() int {
	return d.pool.Running()
}

// Capacity returns the pool size
func (d *Dispatcher) Capacity() int {
	return d.pool.Cap()
}

func (d *Dispatcher) report(err error) {
	select {
	case d.errs <- err:
	default:
		d.logger.Error("Dropped delivery error", "error", err)
	}
}

func (d *Dispatcher) record(result string) {
	if d.recorder != nil {
		d.recorder.Notification(result)
	}
}

// Drain logs delivery errors until the dispatcher shuts down or ctx ends
func (d *Dispatcher) Drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-d.errs:
			if !ok {
				return
			}
			d.logger.Error("Notification delivery failed", "error", err)
		}
	}
}
