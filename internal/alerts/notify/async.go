package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	alertapp "iot-climate-monitor/internal/alerts/application"
	"iot-climate-monitor/internal/observability/metrics"
)

const defaultQueueSize = 256

type queuedEvent struct {
	ctx   context.Context
	event alertapp.AlertEvent
}

// AsyncNotifier hands events to a bounded queue drained by a single worker.
// Notify never blocks; events arriving while the queue is full are dropped.
type AsyncNotifier struct {
	next   alertapp.AlertNotifier
	name   string
	queue  chan queuedEvent
	done   chan struct{}
	logger *zap.Logger
}

// AsyncOption configures an AsyncNotifier.
type AsyncOption func(*AsyncNotifier)

// WithQueueSize sets the queue capacity.
func WithQueueSize(size int) AsyncOption {
	return func(a *AsyncNotifier) {
		if size > 0 {
			a.queue = make(chan queuedEvent, size)
		}
	}
}

// WithAsyncLogger assigns a logger.
func WithAsyncLogger(logger *zap.Logger) AsyncOption {
	return func(a *AsyncNotifier) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAsyncNotifier wraps next. Call Run to start delivery.
func NewAsyncNotifier(name string, next alertapp.AlertNotifier, opts ...AsyncOption) (*AsyncNotifier, error) {
	if next == nil {
		return nil, errors.New("notify: nil notifier")
	}
	if name == "" {
		name = "async"
	}
	a := &AsyncNotifier{
		next:   next,
		name:   name,
		queue:  make(chan queuedEvent, defaultQueueSize),
		done:   make(chan struct{}),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Notify implements AlertNotifier.
func (a *AsyncNotifier) Notify(ctx context.Context, event alertapp.AlertEvent) {
	if a == nil {
		return
	}
	select {
	case a.queue <- queuedEvent{ctx: context.WithoutCancel(ctx), event: event}:
	default:
		metrics.IncNotify(a.name, "dropped")
		a.logger.Warn("alert notification queue full",
			zap.String("channel", a.name),
			zap.Int64("alert_id", event.Alert.ID),
		)
	}
}

// Run delivers queued events until ctx is cancelled.
func (a *AsyncNotifier) Run(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case <-ctx.Done():
			if pending := len(a.queue); pending > 0 {
				a.logger.Info("alert notifications discarded on shutdown",
					zap.String("channel", a.name),
					zap.Int("pending", pending),
				)
			}
			return
		case item := <-a.queue:
			a.next.Notify(item.ctx, item.event)
		}
	}
}

// Done is closed when Run returns.
func (a *AsyncNotifier) Done() <-chan struct{} {
	return a.done
}
