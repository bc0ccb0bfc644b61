package mqtt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	telemetryapp "iot-climate-monitor/internal/telemetry/application"
	"iot-climate-monitor/internal/telemetry/interfaces/payload"
)

// Ingester stores decoded readings.
type Ingester interface {
	Ingest(ctx context.Context, cmd telemetryapp.IngestCommand) (*telemetryapp.IngestResult, error)
}

// Config describes the broker connection.
type Config struct {
	Broker   string
	ClientID string
	Topic    string
	Username string
	Password string
	QoS      byte
}

// Subscriber feeds MQTT readings into the ingest service.
type Subscriber struct {
	cfg      Config
	ingester Ingester
	logger   *zap.Logger
	client   paho.Client
	timeout  time.Duration
}

// NewSubscriber constructs a subscriber. Start connects.
func NewSubscriber(cfg Config, ingester Ingester, logger *zap.Logger) (*Subscriber, error) {
	if ingester == nil {
		return nil, errors.New("mqtt subscriber: nil ingester")
	}
	if strings.TrimSpace(cfg.Broker) == "" {
		return nil, errors.New("mqtt subscriber: empty broker")
	}
	if cfg.Topic == "" {
		cfg.Topic = "sensors/+/data"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "climate-monitor"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Subscriber{cfg: cfg, ingester: ingester, logger: logger, timeout: 5 * time.Second}, nil
}

// Start connects to the broker and subscribes. Messages are handled until ctx is done.
func (s *Subscriber) Start(ctx context.Context) error {
	opts := paho.NewClientOptions()
	opts.AddBroker(s.cfg.Broker)
	opts.SetClientID(s.cfg.ClientID)
	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
	}
	if s.cfg.Password != "" {
		opts.SetPassword(s.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		s.logger.Warn("mqtt connection lost", zap.Error(err))
	})
	opts.SetOnConnectHandler(func(client paho.Client) {
		// Resubscribe after every reconnect; clean sessions drop subscriptions.
		token := client.Subscribe(s.cfg.Topic, s.cfg.QoS, func(_ paho.Client, msg paho.Message) {
			if err := s.handleMessage(ctx, msg.Topic(), msg.Payload()); err != nil {
				s.logger.Warn("mqtt reading rejected", zap.String("topic", msg.Topic()), zap.Error(err))
			}
		})
		if token.WaitTimeout(s.timeout) && token.Error() != nil {
			s.logger.Error("mqtt subscribe failed", zap.String("topic", s.cfg.Topic), zap.Error(token.Error()))
			return
		}
		s.logger.Info("mqtt subscribed", zap.String("broker", s.cfg.Broker), zap.String("topic", s.cfg.Topic))
	})

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(s.timeout) {
		return fmt.Errorf("mqtt subscriber: connect to %s timed out", s.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt subscriber: connect to %s: %w", s.cfg.Broker, err)
	}
	s.client = client

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop disconnects from the broker.
func (s *Subscriber) Stop() {
	if s == nil || s.client == nil {
		return
	}
	if s.client.IsConnected() {
		s.client.Unsubscribe(s.cfg.Topic).WaitTimeout(time.Second)
		s.client.Disconnect(250)
	}
}

func (s *Subscriber) handleMessage(ctx context.Context, topic string, body []byte) error {
	decoded, err := payload.Decode(body)
	if err != nil {
		return err
	}
	if decoded.DeviceCode == "" {
		decoded.DeviceCode = DeviceCodeFromTopic(topic)
	}
	result, err := s.ingester.Ingest(ctx, telemetryapp.IngestCommand{
		DeviceCode:  decoded.DeviceCode,
		Temperature: decoded.Temperature,
		Humidity:    decoded.Humidity,
		Light:       decoded.Light,
		Transport:   "mqtt",
	})
	if err != nil {
		return err
	}
	s.logger.Debug("mqtt reading stored",
		zap.String("device_code", result.Device.Code),
		zap.Int64("log_id", result.Reading.ID),
	)
	return nil
}

// DeviceCodeFromTopic returns the second segment of sensors/<code>/data.
func DeviceCodeFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
