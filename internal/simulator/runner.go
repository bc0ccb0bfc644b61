package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"iot-climate-monitor/internal/auth"
)

const ingestPath = "/api/iot/data"

type ingestBody struct {
	DeviceCode string `json:"device_code"`
	Sample
}

// Runner posts samples for one device code on an interval.
type Runner struct {
	client     *resty.Client
	source     Source
	deviceCode string
	interval   time.Duration
	maxSends   int
	secret     []byte
	now        func() time.Time
	logger     *zap.Logger
}

// Option configures a runner.
type Option func(*Runner)

// WithInterval sets the delay between posts. Defaults to 5s.
func WithInterval(interval time.Duration) Option {
	return func(r *Runner) {
		if interval > 0 {
			r.interval = interval
		}
	}
}

// WithMaxSends stops the runner after n posts. Zero means unbounded.
func WithMaxSends(n int) Option {
	return func(r *Runner) {
		if n >= 0 {
			r.maxSends = n
		}
	}
}

// WithIngestSecret signs each body the way the ingest middleware expects.
func WithIngestSecret(secret []byte) Option {
	return func(r *Runner) {
		r.secret = secret
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithNow overrides the signing clock.
func WithNow(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRunner constructs a runner against the API at baseURL.
func NewRunner(baseURL, deviceCode string, source Source, opts ...Option) (*Runner, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("simulator: empty base url")
	}
	if strings.TrimSpace(deviceCode) == "" {
		return nil, errors.New("simulator: empty device code")
	}
	if source == nil {
		return nil, errors.New("simulator: nil source")
	}
	runner := &Runner{
		client: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(5*time.Second).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
		source:     source,
		deviceCode: deviceCode,
		interval:   5 * time.Second,
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner, nil
}

// Run posts one sample immediately and then one per interval until ctx is
// cancelled or the send limit is reached. Failed posts are logged and skipped.
func (r *Runner) Run(ctx context.Context) (int, error) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	sent := 0
	for {
		if err := r.Send(ctx); err != nil {
			if ctx.Err() != nil {
				return sent, nil
			}
			r.logger.Warn("simulated reading rejected", zap.String("device_code", r.deviceCode), zap.Error(err))
		} else {
			sent++
		}
		if r.maxSends > 0 && sent >= r.maxSends {
			return sent, nil
		}
		select {
		case <-ctx.Done():
			return sent, nil
		case <-ticker.C:
		}
	}
}

// Send posts a single sample.
func (r *Runner) Send(ctx context.Context) error {
	sample := r.source.Next()
	body, err := json.Marshal(ingestBody{DeviceCode: r.deviceCode, Sample: sample})
	if err != nil {
		return err
	}

	req := r.client.R().SetContext(ctx).SetBody(body)
	if len(r.secret) > 0 {
		timestamp := strconv.FormatInt(r.now().Unix(), 10)
		req.SetHeader("X-Ingest-Timestamp", timestamp).
			SetHeader("X-Ingest-Signature", auth.SignIngest(r.secret, timestamp, body))
	}
	resp, err := req.Post(ingestPath)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("simulator: ingest status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	r.logger.Info("simulated reading sent",
		zap.String("device_code", r.deviceCode),
		zap.Float64("temperature", sample.Temperature),
		zap.Float64("humidity", sample.Humidity),
	)
	return nil
}
