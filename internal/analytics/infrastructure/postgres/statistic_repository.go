package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"iot-climate-monitor/internal/analytics/domain/statistic"
	"iot-climate-monitor/internal/platform/postgres"
)

const defaultReadingsTable = "sensor_logs"

// StatisticRepository aggregates reading windows in SQL.
type StatisticRepository struct {
	db    postgres.DBTX
	table string
}

// RepositoryOption configures the repository.
type RepositoryOption func(*StatisticRepository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *StatisticRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewStatisticRepository constructs a repository.
func NewStatisticRepository(db postgres.DBTX, opts ...RepositoryOption) *StatisticRepository {
	repo := &StatisticRepository{db: db, table: defaultReadingsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Summarize computes count/avg/min/max over readings recorded at or after since.
func (r *StatisticRepository) Summarize(ctx context.Context, deviceID *int64, since time.Time) (statistic.Summary, error) {
	if r == nil || r.db == nil {
		return statistic.Summary{}, errors.New("statistic repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT COUNT(*),
	COALESCE(AVG(temperature), 0), COALESCE(MIN(temperature), 0), COALESCE(MAX(temperature), 0),
	COALESCE(AVG(humidity), 0), COALESCE(MIN(humidity), 0), COALESCE(MAX(humidity), 0),
	AVG(light), COUNT(light)
FROM %s
WHERE recorded_at >= $1`, r.table)
	args := []any{since.UTC()}
	if deviceID != nil {
		query += " AND device_id = $2"
		args = append(args, *deviceID)
	}

	var (
		summary  statistic.Summary
		lightAvg sql.NullFloat64
	)
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&summary.Count,
		&summary.Temperature.Avg,
		&summary.Temperature.Min,
		&summary.Temperature.Max,
		&summary.Humidity.Avg,
		&summary.Humidity.Min,
		&summary.Humidity.Max,
		&lightAvg,
		&summary.Light.Count,
	); err != nil {
		return statistic.Summary{}, err
	}
	summary.Temperature = round(summary.Temperature)
	summary.Humidity = round(summary.Humidity)
	if lightAvg.Valid {
		summary.Light.Avg = statistic.Round2(lightAvg.Float64)
	}
	return summary, nil
}

func round(m statistic.MetricSummary) statistic.MetricSummary {
	return statistic.MetricSummary{
		Avg: statistic.Round2(m.Avg),
		Min: statistic.Round2(m.Min),
		Max: statistic.Round2(m.Max),
	}
}
