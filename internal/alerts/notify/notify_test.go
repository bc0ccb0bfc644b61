package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	alertapp "iot-climate-monitor/internal/alerts/application"
	alerts "iot-climate-monitor/internal/alerts/domain"
)

type recordingChannel struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (c *recordingChannel) Send(_ context.Context, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.messages = append(c.messages, content)
	return nil
}

func (c *recordingChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func activeEvent(roomID int64) alertapp.AlertEvent {
	return alertapp.AlertEvent{
		Type: alertapp.EventActive,
		Alert: alerts.Alert{
			ID:        1,
			RoomID:    roomID,
			RoomName:  "Lab-1",
			Metric:    alerts.MetricTemperature,
			Threshold: 30,
			Value:     31.5,
			Status:    alerts.StatusActive,
			CreatedAt: time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC),
		},
	}
}

func TestDefaultTemplateRender(t *testing.T) {
	tmpl, err := NewTemplate("")
	require.NoError(t, err)
	out, err := tmpl.Render(activeEvent(2))
	require.NoError(t, err)
	assert.Equal(t, "[ACTIVE] Lab-1: temperature 31.50 > 30.00 at 2026-06-01T08:00:00Z", out)
}

func TestTemplateRejectsUnknownField(t *testing.T) {
	tmpl, err := NewTemplate("{{.Missing}}")
	require.NoError(t, err)
	_, err = tmpl.Render(activeEvent(2))
	assert.Error(t, err)

	_, err = NewTemplate("{{.Event")
	assert.Error(t, err)
}

func TestNotifierCooldownPerRoom(t *testing.T) {
	channel := &recordingChannel{}
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	notifier, err := NewNotifier(channel,
		WithCooldown(10*time.Minute),
		WithNow(func() time.Time { return now }),
	)
	require.NoError(t, err)
	ctx := context.Background()

	notifier.Notify(ctx, activeEvent(1))
	notifier.Notify(ctx, activeEvent(1))
	notifier.Notify(ctx, activeEvent(2))
	assert.Equal(t, 2, channel.count())

	resolved := activeEvent(1)
	resolved.Type = alertapp.EventResolved
	notifier.Notify(ctx, resolved)
	assert.Equal(t, 3, channel.count())

	now = now.Add(10 * time.Minute)
	notifier.Notify(ctx, activeEvent(1))
	assert.Equal(t, 4, channel.count())
}

func TestNotifierSkipsDeletedAndSurvivesFailures(t *testing.T) {
	channel := &recordingChannel{err: errors.New("down")}
	notifier, err := NewNotifier(channel, WithCooldown(time.Hour))
	require.NoError(t, err)

	deleted := activeEvent(1)
	deleted.Type = alertapp.EventDeleted
	notifier.Notify(context.Background(), deleted)
	notifier.Notify(context.Background(), activeEvent(1))

	channel.err = nil
	notifier.Notify(context.Background(), activeEvent(1))
	assert.Equal(t, 1, channel.count(), "failed delivery does not start the cooldown")
}

func TestWebhookChannelPostsTextPayload(t *testing.T) {
	var got webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	channel, err := NewWebhookChannel(server.URL, WithRetries(0))
	require.NoError(t, err)
	require.NoError(t, channel.Send(context.Background(), "hello"))
	assert.Equal(t, "text", got.MsgType)
	assert.Equal(t, "hello", got.Text.Content)
}

func TestWebhookChannelReportsNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	channel, err := NewWebhookChannel(server.URL, WithRetries(0))
	require.NoError(t, err)
	assert.Error(t, channel.Send(context.Background(), "hello"))

	_, err = NewWebhookChannel("")
	assert.Error(t, err)
}

type fakeWriter struct {
	messages []kafka.Message
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisherKeysByRoom(t *testing.T) {
	writer := &fakeWriter{}
	publisher, err := NewKafkaPublisher(writer, nil)
	require.NoError(t, err)

	publisher.Notify(context.Background(), activeEvent(7))
	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, "7", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "active", string(msg.Headers[0].Value))

	var event KafkaEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, int64(7), event.Alert.RoomID)

	require.NoError(t, publisher.Close())
	assert.True(t, writer.closed)
}

func TestNewKafkaWriterValidates(t *testing.T) {
	_, err := NewKafkaWriter(nil, "topic")
	assert.Error(t, err)
	_, err = NewKafkaWriter([]string{"localhost:9092"}, "")
	assert.Error(t, err)
	w, err := NewKafkaWriter([]string{"localhost:9092"}, "climate.alerts")
	require.NoError(t, err)
	assert.Equal(t, "climate.alerts", w.Topic)
	assert.Equal(t, 1, w.MaxAttempts)
}

func TestMultiNotifierSkipsNil(t *testing.T) {
	channel := &recordingChannel{}
	n, err := NewNotifier(channel)
	require.NoError(t, err)
	multi := NewMultiNotifier(nil, n, n)
	assert.Len(t, multi, 2)
	multi.Notify(context.Background(), activeEvent(3))
	assert.Equal(t, 2, channel.count())
}
