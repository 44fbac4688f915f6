package api

import (
	"crypto/subtle"
	"net/http"
	"slices"
	"strings"

	"github.com/AaronLay10/protoflow/internal/config"
)

// Role represents an authorization role.
type Role string

const (
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// credential is one user/password pair granting a role.
type credential struct {
	role Role
	user string
	pass string
}

type authConfig struct {
	creds   []credential
	enabled bool
}

var auth *authConfig

// InitAuth loads credentials from PROTOFLOW_EDITOR_USER/PASS and
// PROTOFLOW_VIEWER_USER/PASS, each also readable from a *_FILE path.
// Without editor credentials authentication is off and every caller is an
// editor.
func InitAuth() error {
	cfg := &authConfig{}
	for _, role := range []Role{RoleEditor, RoleViewer} {
		prefix := "PROTOFLOW_" + strings.ToUpper(string(role))
		user, err := config.ResolveSecret(prefix + "_USER")
		if err != nil {
			return err
		}
		pass, err := config.ResolveSecret(prefix + "_PASS")
		if err != nil {
			return err
		}
		if user == "" || pass == "" {
			continue
		}
		cfg.creds = append(cfg.creds, credential{role: role, user: user, pass: pass})
		if role == RoleEditor {
			cfg.enabled = true
		}
	}
	auth = cfg
	return nil
}

// IsAuthEnabled returns true if authentication is configured.
func IsAuthEnabled() bool {
	return auth != nil && auth.enabled
}

// authenticate returns the caller's role, or "" for bad credentials.
func authenticate(r *http.Request) Role {
	if !IsAuthEnabled() {
		return RoleEditor
	}

	user, pass, ok := r.BasicAuth()
	if !ok {
		return ""
	}
	for _, c := range auth.creds {
		if secureCompare(user, c.user) && secureCompare(pass, c.pass) {
			return c.role
		}
	}
	return ""
}

// secureCompare performs constant-time string comparison to prevent timing attacks.
func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// requireAuth returns 401 Unauthorized with WWW-Authenticate header.
func requireAuth(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="Protoflow"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// RequireRole wraps a handler and requires one of the specified roles.
func RequireRole(handler http.HandlerFunc, allowedRoles ...Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := authenticate(r)
		switch {
		case role == "":
			requireAuth(w)
		case slices.Contains(allowedRoles, role):
			handler(w, r)
		default:
			http.Error(w, "Forbidden", http.StatusForbidden)
		}
	}
}

// RequireAnyRole wraps a handler requiring editor OR viewer role.
func RequireAnyRole(handler http.HandlerFunc) http.HandlerFunc {
	return RequireRole(handler, RoleEditor, RoleViewer)
}

// Middleware returns chi middleware requiring one of roles.
func Middleware(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return RequireRole(next.ServeHTTP, roles...)
	}
}
