package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	alertapp "iot-climate-monitor/internal/alerts/application"
	"iot-climate-monitor/internal/observability/metrics"
)

// Notifier renders alert events and delivers them over a channel.
// Raised alerts are rate limited per room; resolutions always pass.
type Notifier struct {
	channel  Channel
	name     string
	tmpl     *Template
	cooldown time.Duration
	timeout  time.Duration
	now      func() time.Time
	logger   *zap.Logger

	mu       sync.Mutex
	lastSent map[int64]time.Time
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithCooldown sets the minimum gap between raised-alert messages per room.
func WithCooldown(d time.Duration) Option {
	return func(n *Notifier) {
		if d >= 0 {
			n.cooldown = d
		}
	}
}

// WithSendTimeout bounds each delivery.
func WithSendTimeout(d time.Duration) Option {
	return func(n *Notifier) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// WithTemplate overrides the default template.
func WithTemplate(t *Template) Option {
	return func(n *Notifier) {
		if t != nil {
			n.tmpl = t
		}
	}
}

// WithChannelName labels metrics for the channel.
func WithChannelName(name string) Option {
	return func(n *Notifier) {
		if name != "" {
			n.name = name
		}
	}
}

// WithNow overrides the time source.
func WithNow(now func() time.Time) Option {
	return func(n *Notifier) {
		if now != nil {
			n.now = now
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// NewNotifier constructs a Notifier.
func NewNotifier(channel Channel, opts ...Option) (*Notifier, error) {
	if channel == nil {
		return nil, errors.New("notify: nil channel")
	}
	tmpl, err := NewTemplate("")
	if err != nil {
		return nil, err
	}
	n := &Notifier{
		channel:  channel,
		name:     "webhook",
		tmpl:     tmpl,
		timeout:  5 * time.Second,
		now:      time.Now,
		logger:   zap.NewNop(),
		lastSent: make(map[int64]time.Time),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Notify implements AlertNotifier. Delivery failures are logged, never returned.
func (n *Notifier) Notify(ctx context.Context, event alertapp.AlertEvent) {
	if n == nil || event.Type == alertapp.EventDeleted {
		return
	}
	if event.Type == alertapp.EventActive && !n.shouldSend(event.Alert.RoomID) {
		metrics.IncNotify(n.name, "cooldown")
		return
	}
	content, err := n.tmpl.Render(event)
	if err != nil {
		metrics.IncNotify(n.name, metrics.ResultError)
		n.logger.Warn("render alert notification failed", zap.Error(err))
		return
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()
	if err := n.channel.Send(sendCtx, content); err != nil {
		metrics.IncNotify(n.name, metrics.ResultError)
		n.logger.Warn("alert notification failed",
			zap.String("channel", n.name),
			zap.Int64("alert_id", event.Alert.ID),
			zap.Error(err),
		)
		return
	}
	if event.Type == alertapp.EventActive {
		n.markSent(event.Alert.RoomID)
	}
	metrics.IncNotify(n.name, metrics.ResultSuccess)
}

func (n *Notifier) shouldSend(roomID int64) bool {
	if n.cooldown <= 0 {
		return true
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	last, ok := n.lastSent[roomID]
	return !ok || n.now().Sub(last) >= n.cooldown
}

func (n *Notifier) markSent(roomID int64) {
	if n.cooldown <= 0 {
		return
	}
	n.mu.Lock()
	n.lastSent[roomID] = n.now()
	n.mu.Unlock()
}
