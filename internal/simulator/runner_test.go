package simulator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iot-climate-monitor/internal/auth"
)

type recorder struct {
	mu     sync.Mutex
	bodies []map[string]any
	status int
	secret []byte
	badSig int
}

func (rec *recorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.secret) > 0 {
		want := auth.SignIngest(rec.secret, r.Header.Get("X-Ingest-Timestamp"), body)
		if r.Header.Get("X-Ingest-Signature") != want {
			rec.badSig++
		}
	}
	var decoded map[string]any
	_ = json.Unmarshal(body, &decoded)
	rec.bodies = append(rec.bodies, decoded)
	status := rec.status
	if status == 0 {
		status = http.StatusCreated
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"success":true}`))
}

func TestRunnerPostsSequenceUntilLimit(t *testing.T) {
	rec := &recorder{secret: []byte("device-secret")}
	server := httptest.NewServer(rec)
	defer server.Close()

	source := NewSequence(Sample{Temperature: 29, Humidity: 55}, Sample{Temperature: 31, Humidity: 56})
	runner, err := NewRunner(server.URL, "ESP32-001", source,
		WithInterval(time.Millisecond),
		WithMaxSends(3),
		WithIngestSecret(rec.secret),
	)
	require.NoError(t, err)

	sent, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, sent)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.bodies, 3)
	assert.Equal(t, 0, rec.badSig)
	assert.Equal(t, "ESP32-001", rec.bodies[0]["device_code"])
	assert.Equal(t, 29.0, rec.bodies[0]["temperature"])
	assert.Equal(t, 31.0, rec.bodies[1]["temperature"])
	assert.Equal(t, 29.0, rec.bodies[2]["temperature"])
}

func TestRunnerStopsOnCancel(t *testing.T) {
	rec := &recorder{}
	server := httptest.NewServer(rec)
	defer server.Close()

	runner, err := NewRunner(server.URL, "ESP32-001", NewRandomWalk(1), WithInterval(time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int)
	go func() {
		sent, _ := runner.Run(ctx)
		done <- sent
	}()

	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.bodies) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case sent := <-done:
		assert.Equal(t, 1, sent)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
}

func TestSendReportsRejectedReading(t *testing.T) {
	server := httptest.NewServer(&recorder{status: http.StatusNotFound})
	defer server.Close()

	runner, err := NewRunner(server.URL, "UNKNOWN", NewSequence(Sample{Temperature: 20, Humidity: 40}))
	require.NoError(t, err)
	assert.ErrorContains(t, runner.Send(context.Background()), "404")
}

func TestRandomWalkStaysInBounds(t *testing.T) {
	walk := NewRandomWalk(42)
	for i := 0; i < 1000; i++ {
		s := walk.Next()
		require.GreaterOrEqual(t, s.Temperature, minTemp)
		require.LessOrEqual(t, s.Temperature, maxTemp)
		require.GreaterOrEqual(t, s.Humidity, minHum)
		require.LessOrEqual(t, s.Humidity, maxHum)
		require.NotNil(t, s.Light)
	}

	a, b := NewRandomWalk(7), NewRandomWalk(7)
	assert.Equal(t, a.Next(), b.Next())
}

func TestNewRunnerValidates(t *testing.T) {
	_, err := NewRunner("", "ESP32-001", NewRandomWalk(1))
	assert.Error(t, err)
	_, err = NewRunner("http://localhost", "", NewRandomWalk(1))
	assert.Error(t, err)
	_, err = NewRunner("http://localhost", "ESP32-001", nil)
	assert.Error(t, err)
}
