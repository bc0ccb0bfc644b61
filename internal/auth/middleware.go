package auth

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"iot-climate-monitor/internal/api/respond"
	"iot-climate-monitor/internal/apperr"
)

// Middleware validates JWTs and enforces RBAC.
type Middleware struct {
	Secret []byte
	Policy Policy
	logger *zap.Logger
}

// NewMiddleware constructs an auth middleware.
func NewMiddleware(secret []byte, policy Policy, logger *zap.Logger) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Middleware{Secret: secret, Policy: policy, logger: logger}
}

// Wrap applies auth and RBAC to the handler.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}

		required, ok := m.Policy.RequiredRole(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		token := extractBearer(r)
		if token == "" && m.Policy.AllowsQueryToken(r) {
			token = strings.TrimSpace(r.URL.Query().Get("access_token"))
		}
		if token == "" {
			respond.Error(w, m.logger, apperr.Unauthorized("access token required"))
			return
		}
		claims, err := ParseJWT(token, m.Secret)
		if err != nil {
			m.logger.Debug("jwt rejected", zap.String("path", r.URL.Path), zap.Error(err))
			respond.Error(w, m.logger, apperr.Unauthorized("invalid or expired token"))
			return
		}
		identity := claims.Identity()
		if !RoleAtLeast(identity.Role, required) {
			respond.Error(w, m.logger, apperr.Forbidden("insufficient role"))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

func extractBearer(r *http.Request) string {
	if r == nil {
		return ""
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
