package statistic

import (
	"fmt"
	"math"
	"time"

	telemetry "iot-climate-monitor/internal/telemetry/domain"
)

const (
	// DefaultWindowHours is used when no window is requested.
	DefaultWindowHours = 24
	// MaxWindowHours bounds the window to one year.
	MaxWindowHours = 8760
)

// Window is a sliding period ending now.
type Window struct {
	Hours int
}

// NewWindow validates hours; zero selects DefaultWindowHours.
func NewWindow(hours int) (Window, error) {
	if hours == 0 {
		hours = DefaultWindowHours
	}
	if hours < 1 || hours > MaxWindowHours {
		return Window{}, fmt.Errorf("%w: hours must be between 1 and %d", ErrInvalidWindow, MaxWindowHours)
	}
	return Window{Hours: hours}, nil
}

// Since returns the inclusive lower bound of the window.
func (w Window) Since(now time.Time) time.Time {
	return now.Add(-time.Duration(w.Hours) * time.Hour)
}

// MetricSummary holds avg/min/max for one reading field.
type MetricSummary struct {
	Avg float64 `json:"avg"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// LightSummary is the average over readings that carried a light value.
type LightSummary struct {
	Avg   float64 `json:"avg"`
	Count int     `json:"count"`
}

// Summary aggregates readings in a window. An empty window is all zeros;
// callers distinguish "no data" by Count.
type Summary struct {
	Count       int           `json:"count"`
	Temperature MetricSummary `json:"temperature"`
	Humidity    MetricSummary `json:"humidity"`
	Light       LightSummary  `json:"light"`
	Hours       int           `json:"hours"`
	Since       time.Time     `json:"since"`
}

// Aggregate computes the summary in one pass. Values are rounded to 2 decimals.
func Aggregate(readings []telemetry.Reading) Summary {
	var summary Summary
	if len(readings) == 0 {
		return summary
	}
	var (
		tempSum, humSum, lightSum float64
		lightCount                int
	)
	summary.Temperature = MetricSummary{Min: math.Inf(1), Max: math.Inf(-1)}
	summary.Humidity = MetricSummary{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, r := range readings {
		tempSum += r.Temperature
		humSum += r.Humidity
		summary.Temperature.Min = math.Min(summary.Temperature.Min, r.Temperature)
		summary.Temperature.Max = math.Max(summary.Temperature.Max, r.Temperature)
		summary.Humidity.Min = math.Min(summary.Humidity.Min, r.Humidity)
		summary.Humidity.Max = math.Max(summary.Humidity.Max, r.Humidity)
		if r.Light != nil {
			lightSum += *r.Light
			lightCount++
		}
	}
	n := float64(len(readings))
	summary.Count = len(readings)
	summary.Temperature = roundMetric(MetricSummary{Avg: tempSum / n, Min: summary.Temperature.Min, Max: summary.Temperature.Max})
	summary.Humidity = roundMetric(MetricSummary{Avg: humSum / n, Min: summary.Humidity.Min, Max: summary.Humidity.Max})
	if lightCount > 0 {
		summary.Light = LightSummary{Avg: Round2(lightSum / float64(lightCount)), Count: lightCount}
	}
	return summary
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*100) / 100
}

func roundMetric(m MetricSummary) MetricSummary {
	return MetricSummary{Avg: Round2(m.Avg), Min: Round2(m.Min), Max: Round2(m.Max)}
}
