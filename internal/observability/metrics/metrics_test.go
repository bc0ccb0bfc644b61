package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestHelpersAreNilSafeBeforeInit(t *testing.T) {
	if alertEventsTotal != nil {
		t.Skip("metrics already initialised in this process")
	}
	assert.NotPanics(t, func() {
		IncAlertEvent("active")
		ObserveIngest("http", ResultSuccess, time.Millisecond)
		IncStatsCache(true)
	})
}

func TestCountersAfterInit(t *testing.T) {
	Init(nil, zap.NewNop())
	Init(nil, zap.NewNop())

	before := testutil.ToFloat64(alertEventsTotal.WithLabelValues("resolved"))
	IncAlertEvent("resolved")
	assert.Equal(t, before+1, testutil.ToFloat64(alertEventsTotal.WithLabelValues("resolved")))

	beforeMiss := testutil.ToFloat64(statsCacheTotal.WithLabelValues("miss"))
	IncStatsCache(false)
	assert.Equal(t, beforeMiss+1, testutil.ToFloat64(statsCacheTotal.WithLabelValues("miss")))

	beforeHTTP := testutil.ToFloat64(ingestRequests.WithLabelValues("mqtt", ResultError))
	ObserveIngest("mqtt", ResultError, 5*time.Millisecond)
	assert.Equal(t, beforeHTTP+1, testutil.ToFloat64(ingestRequests.WithLabelValues("mqtt", ResultError)))
}
