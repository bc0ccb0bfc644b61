package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iot-climate-monitor/internal/analytics/domain/statistic"
)

var summaryColumns = []string{"count", "t_avg", "t_min", "t_max", "h_avg", "h_min", "h_max", "l_avg", "l_count"}

func TestSummarizeRoundsAggregates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	since := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	device := int64(4)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE recorded_at >= $1 AND device_id = $2")).
		WithArgs(since, device).
		WillReturnRows(sqlmock.NewRows(summaryColumns).AddRow(3, 29.3333333, 28.0, 31.0, 61.0, 60.0, 62.0, nil, 0))

	summary, err := NewStatisticRepository(db).Summarize(context.Background(), &device, since)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Count)
	assert.Equal(t, statistic.MetricSummary{Avg: 29.33, Min: 28, Max: 31}, summary.Temperature)
	assert.Equal(t, statistic.LightSummary{}, summary.Light)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSummarizeEmptyWindowAllDevices(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM readings_archive\nWHERE recorded_at >= $1")).
		WillReturnRows(sqlmock.NewRows(summaryColumns).AddRow(0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, nil, 0))

	summary, err := NewStatisticRepository(db, WithTable("readings_archive")).
		Summarize(context.Background(), nil, time.Now())
	require.NoError(t, err)
	assert.Equal(t, statistic.Summary{}, summary)
	require.NoError(t, mock.ExpectationsWereMet())
}
