package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	alertapp "iot-climate-monitor/internal/alerts/application"
	alerts "iot-climate-monitor/internal/alerts/domain"
	"iot-climate-monitor/internal/observability/metrics"
)

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEvent is the message value published for each alert event.
type KafkaEvent struct {
	EventID    string       `json:"event_id"`
	Type       string       `json:"type"`
	OccurredAt time.Time    `json:"occurred_at"`
	Alert      alerts.Alert `json:"alert"`
}

// KafkaPublisher publishes alert events keyed by room id.
type KafkaPublisher struct {
	writer MessageWriter
	now    func() time.Time
	logger *zap.Logger
}

// NewKafkaWriter builds a writer for brokers and topic.
func NewKafkaWriter(brokers []string, topic string) (*kafka.Writer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers")
	}
	if topic == "" {
		return nil, errors.New("kafka: empty topic")
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		MaxAttempts:            1,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}, nil
}

// NewKafkaPublisher constructs a publisher over writer.
func NewKafkaPublisher(writer MessageWriter, logger *zap.Logger) (*KafkaPublisher, error) {
	if writer == nil {
		return nil, errors.New("kafka: nil writer")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{writer: writer, now: time.Now, logger: logger}, nil
}

// Notify implements AlertNotifier.
func (p *KafkaPublisher) Notify(ctx context.Context, event alertapp.AlertEvent) {
	if p == nil {
		return
	}
	value, err := json.Marshal(KafkaEvent{
		EventID:    uuid.NewString(),
		Type:       event.Type,
		OccurredAt: p.now().UTC(),
		Alert:      event.Alert,
	})
	if err != nil {
		metrics.IncNotify("kafka", metrics.ResultError)
		return
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(event.Alert.RoomID, 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.IncNotify("kafka", metrics.ResultError)
		p.logger.Warn("publish alert event failed", zap.Int64("alert_id", event.Alert.ID), zap.Error(err))
		return
	}
	metrics.IncNotify("kafka", metrics.ResultSuccess)
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
