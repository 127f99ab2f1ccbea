package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy lists the origins allowed to call the API from a browser. An entry of
// "*" allows any origin; "https://*.example.com" allows every subdomain.
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// BookingCORSPolicy allows the headers the booking API reads and the ones browsers
// need to see on responses.
func BookingCORSPolicy(origins []string, maxAge time.Duration) CORSPolicy {
	return CORSPolicy{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Idempotency-Key", "If-None-Match", RequestIDHeader, PrincipalHeader, "X-Role", "X-Instructor-Id"},
		ExposedHeaders: []string{"ETag", RequestIDHeader, "Retry-After"},
		MaxAge:         maxAge,
	}
}

type corsHeaders struct {
	methods, headers, exposed, maxAge string
}

// WithCORS answers preflight requests and decorates responses for allowed origins.
// An empty origin list disables it.
func WithCORS(cfg CORSPolicy) Middleware {
	origins := trimmed(cfg.AllowedOrigins)
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	static := corsHeaders{
		methods: strings.Join(trimmed(cfg.AllowedMethods), ", "),
		headers: strings.Join(trimmed(cfg.AllowedHeaders), ", "),
		exposed: strings.Join(trimmed(cfg.ExposedHeaders), ", "),
	}
	if cfg.MaxAge > 0 {
		static.maxAge = strconv.Itoa(int(cfg.MaxAge.Seconds()))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "Origin")
			origin := r.Header.Get("Origin")
			allowed, ok := allowOrigin(origin, origins, cfg.AllowCredentials)
			if origin == "" || !ok {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowed)
			if cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if static.exposed != "" {
				h.Set("Access-Control-Expose-Headers", static.exposed)
			}

			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			if !preflight {
				next.ServeHTTP(w, r)
				return
			}
			setIf(h, "Access-Control-Allow-Methods", static.methods)
			setIf(h, "Access-Control-Allow-Headers", static.headers)
			setIf(h, "Access-Control-Max-Age", static.maxAge)
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

func setIf(h http.Header, key, value string) {
	if value != "" {
		h.Set(key, value)
	}
}

func trimmed(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// allowOrigin returns the value for Access-Control-Allow-Origin. With credentials
// the concrete origin is echoed since browsers reject "*".
func allowOrigin(origin string, allowed []string, credentials bool) (string, bool) {
	for _, pattern := range allowed {
		switch {
		case pattern == "*":
			if credentials {
				return origin, true
			}
			return "*", true
		case strings.EqualFold(pattern, origin):
			return origin, true
		case strings.Contains(pattern, "://*."):
			scheme, suffix, _ := strings.Cut(pattern, "://*")
			if strings.HasPrefix(strings.ToLower(origin), strings.ToLower(scheme)+"://") &&
				strings.HasSuffix(strings.ToLower(origin), strings.ToLower(suffix)) {
				return origin, true
			}
		}
	}
	return "", false
}
