package auth

import (
	"net/http"
	"strings"
)

// Policy determines required roles by request.
type Policy struct {
	ExemptPaths    map[string]struct{}
	ExemptPrefixes []string
	// QueryTokenPaths may carry the token in the access_token query parameter
	// (browser EventSource and WebSocket clients cannot set headers).
	QueryTokenPaths map[string]struct{}
}

// NewDefaultPolicy builds a default policy with exemptions.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{
		ExemptPaths:    set,
		ExemptPrefixes: exemptPrefixes,
		QueryTokenPaths: map[string]struct{}{
			"/api/alerts/stream": {},
			"/api/live/ws":       {},
		},
	}
}

// IsExempt returns true when a request should skip auth/RBAC.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	if _, ok := p.ExemptPaths[r.URL.Path]; ok {
		return true
	}
	for _, prefix := range p.ExemptPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// AllowsQueryToken reports whether the path accepts access_token in the query.
func (p Policy) AllowsQueryToken(r *http.Request) bool {
	if r == nil {
		return false
	}
	_, ok := p.QueryTokenPaths[r.URL.Path]
	return ok
}

// RequiredRole resolves required role for the request.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	if r == nil {
		return "", false
	}
	path := r.URL.Path
	method := r.Method

	switch {
	case path == "/api/auth/register", path == "/api/auth/users":
		return RoleAdmin, true
	case path == "/api/auth/profile":
		return RoleTechnician, true
	case path == "/api/rooms", strings.HasPrefix(path, "/api/rooms/"),
		path == "/api/devices", strings.HasPrefix(path, "/api/devices/"):
		if isRead(method) {
			return RoleTechnician, true
		}
		return RoleAdmin, true
	case path == "/api/iot/logs":
		if method == http.MethodDelete {
			return RoleAdmin, true
		}
		return RoleTechnician, true
	case strings.HasPrefix(path, "/api/alerts/"):
		switch method {
		case http.MethodDelete:
			return RoleAdmin, true
		default:
			return RoleTechnician, true
		}
	case strings.HasPrefix(path, "/api/exports/"):
		return RoleTechnician, true
	}

	if strings.HasPrefix(path, "/api/") {
		if isRead(method) {
			return RoleTechnician, true
		}
		return RoleAdmin, true
	}
	return "", false
}

func isRead(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}
