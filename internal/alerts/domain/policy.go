package alerts

import "fmt"

// Thresholds are the high watermarks for a reading.
type Thresholds struct {
	TemperatureHigh float64
	HumidityHigh    float64
}

// Breach describes the first threshold a reading exceeded.
type Breach struct {
	Metric    Metric
	Threshold float64
	Value     float64
}

// Evaluate applies the rule temperature > high OR humidity > high.
// Comparison is strict; temperature is checked first.
func (t Thresholds) Evaluate(temperature, humidity float64) (Breach, bool) {
	if temperature > t.TemperatureHigh {
		return Breach{Metric: MetricTemperature, Threshold: t.TemperatureHigh, Value: temperature}, true
	}
	if humidity > t.HumidityHigh {
		return Breach{Metric: MetricHumidity, Threshold: t.HumidityHigh, Value: humidity}, true
	}
	return Breach{}, false
}

// DedupePolicy controls whether repeated breaches create new alerts.
type DedupePolicy string

const (
	// DedupeNone records one alert per breaching reading.
	DedupeNone DedupePolicy = "none"
	// DedupeActivePerRoom suppresses inserts while the room has an ACTIVE alert.
	DedupeActivePerRoom DedupePolicy = "active_per_room"
)

// ParseDedupePolicy parses a policy name; empty means DedupeNone.
func ParseDedupePolicy(value string) (DedupePolicy, error) {
	switch DedupePolicy(value) {
	case "", DedupeNone:
		return DedupeNone, nil
	case DedupeActivePerRoom:
		return DedupeActivePerRoom, nil
	default:
		return "", fmt.Errorf("alerts: unknown dedupe policy %q", value)
	}
}
