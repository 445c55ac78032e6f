package domain

import (
	"context"
	"net/http"
	"strings"
)

// AuthInfo carries authentication details forwarded by the invoking host.
type AuthInfo struct {
	// DownstreamToken is a delegated bearer token to use for calls made on
	// behalf of this request. It takes precedence over the configured token.
	DownstreamToken string
}

// RequestContext is the per-invocation context supplied by the host.
// It is created fresh for every tool call and never retained.
type RequestContext struct {
	AuthInfo *AuthInfo
}

// Credential is the bearer token resolved for outbound backend calls.
// The zero value means no credential: requests go out without an
// Authorization header.
type Credential struct {
	Token string
}

// Present reports whether the credential carries a token.
func (c Credential) Present() bool {
	return c.Token != ""
}

// Source names where the credential came from, for diagnostics only.
// The token itself is never logged.
func (c Credential) Source(rc RequestContext) string {
	switch {
	case !c.Present():
		return "none"
	case rc.AuthInfo != nil && rc.AuthInfo.DownstreamToken == c.Token:
		return "delegated"
	default:
		return "static"
	}
}

type requestContextKey struct{}

// WithRequestContext returns a copy of ctx carrying rc.
func WithRequestContext(ctx context.Context, rc RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// RequestContextFrom extracts the RequestContext stored in ctx. A context
// without one yields the zero RequestContext.
func RequestContextFrom(ctx context.Context) RequestContext {
	rc, _ := ctx.Value(requestContextKey{}).(RequestContext)
	return rc
}

// ResolveCredential picks the credential for outbound calls.
// The delegated token of the request wins over the static token of the
// backend configuration. When neither is set the zero Credential is returned.
func ResolveCredential(rc RequestContext, backend BackendConfig) Credential {
	if rc.AuthInfo != nil && rc.AuthInfo.DownstreamToken != "" {
		return Credential{Token: rc.AuthInfo.DownstreamToken}
	}
	if backend.AccessToken != "" {
		return Credential{Token: backend.AccessToken}
	}
	return Credential{}
}

// BuildHeaders returns a fresh header set for one outbound request.
// The result is owned by the caller; nothing shared is mutated.
func BuildHeaders(cred Credential, userAgent string) http.Header {
	h := make(http.Header, 3)
	h.Set("Accept", "application/json")
	if userAgent != "" {
		h.Set("User-Agent", userAgent)
	}
	if cred.Present() {
		h.Set("Authorization", "Bearer "+cred.Token)
	}
	return h
}

// BearerToken extracts the token from an Authorization header value.
// Returns "" when the value is not a bearer credential.
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
