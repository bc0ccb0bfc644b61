package telemetry

import "time"

// Status is the derived connectivity state of a device.
type Status string

const (
	StatusOnline  Status = "ONLINE"
	StatusOffline Status = "OFFLINE"
)

// DefaultLivenessWindow is how recent the last reading must be for ONLINE.
const DefaultLivenessWindow = 5 * time.Minute

// Liveness derives the device state from its last reading time.
// A device is ONLINE iff now-last < window; exactly window ago is OFFLINE.
// A zero last time means the device never reported.
func Liveness(last, now time.Time, window time.Duration) Status {
	if last.IsZero() {
		return StatusOffline
	}
	if window <= 0 {
		window = DefaultLivenessWindow
	}
	if now.Sub(last) < window {
		return StatusOnline
	}
	return StatusOffline
}

// LivenessOf is Liveness for an optional timestamp.
func LivenessOf(last *time.Time, now time.Time, window time.Duration) Status {
	if last == nil {
		return StatusOffline
	}
	return Liveness(*last, now, window)
}
