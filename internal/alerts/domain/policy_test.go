package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholdsStrictComparison(t *testing.T) {
	th := Thresholds{TemperatureHigh: 30, HumidityHigh: 80}

	_, breached := th.Evaluate(30.0, 50)
	assert.False(t, breached, "30.0 is not above 30")

	b, breached := th.Evaluate(30.1, 50)
	require.True(t, breached)
	assert.Equal(t, MetricTemperature, b.Metric)
	assert.Equal(t, 30.0, b.Threshold)
	assert.Equal(t, 30.1, b.Value)

	_, breached = th.Evaluate(25, 80)
	assert.False(t, breached)

	b, breached = th.Evaluate(25, 80.5)
	require.True(t, breached)
	assert.Equal(t, MetricHumidity, b.Metric)
}

func TestThresholdsTemperatureWinsWhenBothBreach(t *testing.T) {
	th := Thresholds{TemperatureHigh: 30, HumidityHigh: 80}
	b, breached := th.Evaluate(35, 90)
	require.True(t, breached)
	assert.Equal(t, MetricTemperature, b.Metric)
	assert.Equal(t, 35.0, b.Value)
}

func TestAlertResolveIsTerminal(t *testing.T) {
	a := &Alert{ID: 1, RoomID: 1, Status: StatusActive}
	at := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, a.Resolve(at))
	assert.Equal(t, StatusResolved, a.Status)
	require.NotNil(t, a.ResolvedAt)
	assert.Equal(t, at, *a.ResolvedAt)
	assert.ErrorIs(t, a.Resolve(at), ErrAlreadyResolved)
}

func TestParseDedupePolicy(t *testing.T) {
	p, err := ParseDedupePolicy("")
	require.NoError(t, err)
	assert.Equal(t, DedupeNone, p)
	p, err = ParseDedupePolicy("active_per_room")
	require.NoError(t, err)
	assert.Equal(t, DedupeActivePerRoom, p)
	_, err = ParseDedupePolicy("cooldown")
	assert.Error(t, err)
}

func TestParseStatus(t *testing.T) {
	s, ok := ParseStatus("resolved")
	assert.True(t, ok)
	assert.Equal(t, StatusResolved, s)
	_, ok = ParseStatus("NORMAL")
	assert.False(t, ok)
}
