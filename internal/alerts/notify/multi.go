package notify

import (
	"context"

	alertapp "iot-climate-monitor/internal/alerts/application"
)

// MultiNotifier fans out to multiple notifiers in order.
type MultiNotifier []alertapp.AlertNotifier

// NewMultiNotifier drops nil entries.
func NewMultiNotifier(notifiers ...alertapp.AlertNotifier) MultiNotifier {
	out := make(MultiNotifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

// Notify implements AlertNotifier.
func (m MultiNotifier) Notify(ctx context.Context, event alertapp.AlertEvent) {
	for _, n := range m {
		n.Notify(ctx, event)
	}
}
