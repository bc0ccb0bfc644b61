package mqtt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"iot-climate-monitor/internal/apperr"
	masterdata "iot-climate-monitor/internal/masterdata/domain"
	telemetryapp "iot-climate-monitor/internal/telemetry/application"
	telemetry "iot-climate-monitor/internal/telemetry/domain"
)

type recordingIngester struct {
	commands []telemetryapp.IngestCommand
}

func (r *recordingIngester) Ingest(_ context.Context, cmd telemetryapp.IngestCommand) (*telemetryapp.IngestResult, error) {
	r.commands = append(r.commands, cmd)
	return &telemetryapp.IngestResult{
		Reading: telemetry.Reading{ID: int64(len(r.commands))},
		Device:  masterdata.Device{Code: cmd.DeviceCode},
	}, nil
}

func TestNewSubscriberRequiresBroker(t *testing.T) {
	_, err := NewSubscriber(Config{}, &recordingIngester{}, nil)
	assert.Error(t, err)
	_, err = NewSubscriber(Config{Broker: "tcp://localhost:1883"}, nil, nil)
	assert.Error(t, err)
}

func TestHandleMessageUsesTopicDeviceCode(t *testing.T) {
	ingester := &recordingIngester{}
	sub, err := NewSubscriber(Config{Broker: "tcp://localhost:1883"}, ingester, zap.NewNop())
	require.NoError(t, err)

	err = sub.handleMessage(context.Background(), "sensors/ESP32-007/data", []byte(`{"suhu":28.4,"kelembaban":"65"}`))
	require.NoError(t, err)
	require.Len(t, ingester.commands, 1)
	cmd := ingester.commands[0]
	assert.Equal(t, "ESP32-007", cmd.DeviceCode)
	assert.Equal(t, "mqtt", cmd.Transport)
	assert.Equal(t, 28.4, *cmd.Temperature)
	assert.Equal(t, 65.0, *cmd.Humidity)
}

func TestHandleMessagePayloadCodeWins(t *testing.T) {
	ingester := &recordingIngester{}
	sub, err := NewSubscriber(Config{Broker: "tcp://localhost:1883"}, ingester, nil)
	require.NoError(t, err)

	require.NoError(t, sub.handleMessage(context.Background(), "sensors/ignored/data", []byte(`{"device_code":"ESP32-001","temperature":1,"humidity":2}`)))
	assert.Equal(t, "ESP32-001", ingester.commands[0].DeviceCode)
}

func TestHandleMessageRejectsMalformed(t *testing.T) {
	ingester := &recordingIngester{}
	sub, err := NewSubscriber(Config{Broker: "tcp://localhost:1883"}, ingester, nil)
	require.NoError(t, err)

	err = sub.handleMessage(context.Background(), "sensors/x/data", []byte(`not-json`))
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Empty(t, ingester.commands)
}

func TestDeviceCodeFromTopic(t *testing.T) {
	assert.Equal(t, "ESP32-001", DeviceCodeFromTopic("sensors/ESP32-001/data"))
	assert.Equal(t, "", DeviceCodeFromTopic("sensors"))
}
