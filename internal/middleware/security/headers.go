package security

import (
	"net/http"
	"strconv"
)

// HeadersConfig lists the response headers set on every API response.
type HeadersConfig struct {
	// Static headers, set as-is. An empty value skips the header.
	Static map[string]string
	// HSTSMaxAge in seconds; zero disables Strict-Transport-Security.
	// The header is only sent on TLS connections.
	HSTSMaxAge int
}

// DefaultHeadersConfig locks responses down for a JSON-only API: nothing is
// framed, scripted or embedded.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		Static: map[string]string{
			"Content-Security-Policy":      "default-src 'none'; frame-ancestors 'none'; base-uri 'none'",
			"X-Content-Type-Options":       "nosniff",
			"X-Frame-Options":              "DENY",
			"Referrer-Policy":              "no-referrer",
			"Permissions-Policy":           "geolocation=(), microphone=(), camera=(), payment=()",
			"Cross-Origin-Opener-Policy":   "same-origin",
			"Cross-Origin-Resource-Policy": "same-origin",
		},
		HSTSMaxAge: 365 * 24 * 60 * 60,
	}
}

type HeadersMiddleware struct {
	static map[string]string
	hsts   string
}

func NewHeadersMiddleware(config HeadersConfig) *HeadersMiddleware {
	h := &HeadersMiddleware{static: make(map[string]string, len(config.Static))}
	for k, v := range config.Static {
		if v != "" {
			h.static[http.CanonicalHeaderKey(k)] = v
		}
	}
	if config.HSTSMaxAge > 0 {
		h.hsts = "max-age=" + strconv.Itoa(config.HSTSMaxAge) + "; includeSubDomains"
	}
	return h
}

func (h *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := w.Header()
		for k, v := range h.static {
			header.Set(k, v)
		}
		if r.TLS != nil && h.hsts != "" {
			header.Set("Strict-Transport-Security", h.hsts)
		}
		next.ServeHTTP(w, r)
	})
}

// NoStore marks API responses as uncacheable; they carry per-owner data.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
