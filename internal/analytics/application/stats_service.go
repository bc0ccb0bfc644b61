package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"iot-climate-monitor/internal/analytics/domain/statistic"
	"iot-climate-monitor/internal/apperr"
	"iot-climate-monitor/internal/observability/metrics"
	telemetry "iot-climate-monitor/internal/telemetry/domain"
)

// ChartPoints is the number of readings in a chart series.
const ChartPoints = 50

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// WindowAggregator summarizes readings recorded at or after since.
type WindowAggregator interface {
	Summarize(ctx context.Context, deviceID *int64, since time.Time) (statistic.Summary, error)
}

// StatsCache stores summaries for a short TTL.
type StatsCache interface {
	Get(ctx context.Context, key string) (*statistic.Summary, error)
	Set(ctx context.Context, key string, summary statistic.Summary) error
}

// StatsQuery selects the device and window. Hours 0 means the default window.
type StatsQuery struct {
	DeviceID *int64
	Hours    int
}

// CacheKey identifies a query in the stats cache.
func (q StatsQuery) CacheKey() string {
	device := "all"
	if q.DeviceID != nil {
		device = fmt.Sprintf("%d", *q.DeviceID)
	}
	return fmt.Sprintf("stats:%s:%dh", device, q.Hours)
}

// ReadingAggregator computes summaries from the reading window in process.
type ReadingAggregator struct {
	readings telemetry.ReadingRepository
}

// NewReadingAggregator constructs an aggregator over readings.
func NewReadingAggregator(readings telemetry.ReadingRepository) *ReadingAggregator {
	return &ReadingAggregator{readings: readings}
}

// Summarize implements WindowAggregator.
func (a *ReadingAggregator) Summarize(ctx context.Context, deviceID *int64, since time.Time) (statistic.Summary, error) {
	window, err := a.readings.Window(ctx, deviceID, since)
	if err != nil {
		return statistic.Summary{}, err
	}
	return statistic.Aggregate(window), nil
}

// ChartSeries is a chart-ready set of readings in ascending time.
type ChartSeries struct {
	Labels   []string      `json:"labels"`
	Datasets ChartDatasets `json:"datasets"`
}

// ChartDatasets holds one series per metric. Light is null where not reported.
type ChartDatasets struct {
	Temperature []float64  `json:"temperature"`
	Humidity    []float64  `json:"humidity"`
	Light       []*float64 `json:"light"`
}

// StatsService answers windowed statistics and chart queries.
type StatsService struct {
	readings   telemetry.ReadingRepository
	aggregator WindowAggregator
	cache      StatsCache
	clock      Clock
	logger     *zap.Logger
}

// StatsOption customizes the stats service.
type StatsOption func(*StatsService)

// WithAggregator overrides the in-process aggregator.
func WithAggregator(aggregator WindowAggregator) StatsOption {
	return func(s *StatsService) {
		if aggregator != nil {
			s.aggregator = aggregator
		}
	}
}

// WithCache enables summary caching.
func WithCache(cache StatsCache) StatsOption {
	return func(s *StatsService) {
		s.cache = cache
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) StatsOption {
	return func(s *StatsService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *zap.Logger) StatsOption {
	return func(s *StatsService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStatsService constructs a stats service.
func NewStatsService(readings telemetry.ReadingRepository, opts ...StatsOption) (*StatsService, error) {
	if readings == nil {
		return nil, errors.New("analytics: nil reading repository")
	}
	service := &StatsService{
		readings:   readings,
		aggregator: NewReadingAggregator(readings),
		clock:      systemClock{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Stats returns min/max/avg over the window. Cache failures fall through to the aggregator.
func (s *StatsService) Stats(ctx context.Context, query StatsQuery) (statistic.Summary, error) {
	window, err := windowFor(query.Hours)
	if err != nil {
		return statistic.Summary{}, err
	}
	query.Hours = window.Hours
	key := query.CacheKey()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("stats cache read failed", zap.String("key", key), zap.Error(err))
		}
		metrics.IncStatsCache(cached != nil)
		if cached != nil {
			return *cached, nil
		}
	}

	start := time.Now()
	since := window.Since(s.clock.Now())
	summary, err := s.aggregator.Summarize(ctx, query.DeviceID, since)
	if err != nil {
		metrics.ObserveStats(metrics.ResultError, time.Since(start))
		return statistic.Summary{}, err
	}
	metrics.ObserveStats(metrics.ResultSuccess, time.Since(start))
	summary.Hours = window.Hours
	summary.Since = since.UTC()

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, summary); err != nil {
			s.logger.Warn("stats cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return summary, nil
}

// Chart returns the newest ChartPoints readings of the window in ascending order.
func (s *StatsService) Chart(ctx context.Context, query StatsQuery) (ChartSeries, error) {
	window, err := windowFor(query.Hours)
	if err != nil {
		return ChartSeries{}, err
	}
	recent, err := s.readings.Recent(ctx, query.DeviceID, window.Since(s.clock.Now()), ChartPoints)
	if err != nil {
		return ChartSeries{}, err
	}
	series := ChartSeries{
		Labels: make([]string, 0, len(recent)),
		Datasets: ChartDatasets{
			Temperature: make([]float64, 0, len(recent)),
			Humidity:    make([]float64, 0, len(recent)),
			Light:       make([]*float64, 0, len(recent)),
		},
	}
	for i := len(recent) - 1; i >= 0; i-- {
		r := recent[i]
		series.Labels = append(series.Labels, r.RecordedAt.UTC().Format(time.TimeOnly))
		series.Datasets.Temperature = append(series.Datasets.Temperature, r.Temperature)
		series.Datasets.Humidity = append(series.Datasets.Humidity, r.Humidity)
		series.Datasets.Light = append(series.Datasets.Light, r.Light)
	}
	return series, nil
}

// Window returns the readings of a validated window in ascending order.
func (s *StatsService) Window(ctx context.Context, query StatsQuery) ([]telemetry.Reading, error) {
	window, err := windowFor(query.Hours)
	if err != nil {
		return nil, err
	}
	return s.readings.Window(ctx, query.DeviceID, window.Since(s.clock.Now()))
}

func windowFor(hours int) (statistic.Window, error) {
	window, err := statistic.NewWindow(hours)
	if err != nil {
		return statistic.Window{}, apperr.Validationf("hours must be an integer between 1 and %d", statistic.MaxWindowHours)
	}
	return window, nil
}
