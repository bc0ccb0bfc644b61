package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"iot-climate-monitor/internal/api/respond"
	"iot-climate-monitor/internal/apperr"
)

// IngestAuthMiddleware validates device ingest signatures.
type IngestAuthMiddleware struct {
	Secret  []byte
	MaxSkew time.Duration
	now     func() time.Time
}

// NewIngestAuthMiddleware constructs ingest auth middleware.
// An empty secret disables signature checks.
func NewIngestAuthMiddleware(secret []byte, maxSkew time.Duration) *IngestAuthMiddleware {
	return &IngestAuthMiddleware{Secret: secret, MaxSkew: maxSkew, now: time.Now}
}

// Wrap enforces ingest signature validation.
func (m *IngestAuthMiddleware) Wrap(next http.Handler) http.Handler {
	if m == nil || len(m.Secret) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timestamp := strings.TrimSpace(r.Header.Get("X-Ingest-Timestamp"))
		signature := strings.TrimSpace(r.Header.Get("X-Ingest-Signature"))
		if timestamp == "" || signature == "" {
			respond.Error(w, nil, apperr.Unauthorized("missing ingest signature"))
			return
		}
		ts, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			respond.Error(w, nil, apperr.Unauthorized("invalid ingest timestamp"))
			return
		}
		skew := m.now().Sub(time.Unix(ts, 0))
		if skew < 0 {
			skew = -skew
		}
		if m.MaxSkew > 0 && skew > m.MaxSkew {
			respond.Error(w, nil, apperr.Unauthorized("ingest signature expired"))
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			respond.Error(w, nil, apperr.Validation("read body error"))
			return
		}
		_ = r.Body.Close()

		expected := SignIngest(m.Secret, timestamp, body)
		if !hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected)) {
			respond.Error(w, nil, apperr.Unauthorized("invalid ingest signature"))
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

// SignIngest computes the hex HMAC-SHA256 of timestamp and body.
func SignIngest(secret []byte, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write([]byte("\n"))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
