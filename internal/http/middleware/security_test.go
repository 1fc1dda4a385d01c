package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

const exposedList = "X-Request-ID, X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset, Retry-After, Idempotency-Replayed"

func securityHeaders(t *testing.T, opt SecurityOptions, prior http.Header, tweak func(*http.Request)) http.Header {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		for k, vv := range prior {
			for _, v := range vv {
				c.Writer.Header().Add(k, v)
			}
		}
		c.Next()
	})
	r.Use(SecurityHeaders(opt))
	r.GET("/orders/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/orders/o1", nil)
	if tweak != nil {
		tweak(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Header()
}

func TestSecurityHeaders_Options(t *testing.T) {
	overTLS := func(r *http.Request) { r.TLS = &tls.ConnectionState{} }
	viaProxy := func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", "HTTPS") }

	cases := []struct {
		name     string
		opt      SecurityOptions
		tweak    func(*http.Request)
		wantHSTS string
		policy   bool
		noStore  bool
	}{
		{"baseline", SecurityOptions{}, nil, "", false, false},
		{"hsts skipped on plain http", SecurityOptions{EnableHSTS: true}, nil, "", false, false},
		{"hsts default max age", SecurityOptions{EnableHSTS: true}, overTLS, "max-age=15552000; includeSubDomains; preload", false, false},
		{"hsts behind proxy", SecurityOptions{EnableHSTS: true, HSTSMaxAge: 24 * time.Hour}, viaProxy, "max-age=86400; includeSubDomains; preload", false, false},
		{"policy and no-store", SecurityOptions{EnablePolicy: true, NoStore: true}, nil, "", true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := securityHeaders(t, tc.opt, nil, tc.tweak)

			if h.Get("X-Content-Type-Options") != "nosniff" || h.Get("X-Frame-Options") != "DENY" || h.Get("Referrer-Policy") != "no-referrer" {
				t.Fatalf("baseline headers missing: %v", h)
			}
			if got := h.Get("Strict-Transport-Security"); got != tc.wantHSTS {
				t.Fatalf("HSTS = %q, want %q", got, tc.wantHSTS)
			}
			if got := h.Get("X-Permitted-Cross-Domain-Policies") == "none" && h.Get("Permissions-Policy") != ""; got != tc.policy {
				t.Fatalf("policy headers present = %v, want %v", got, tc.policy)
			}
			if got := h.Get("Cache-Control") == "no-store" && h.Get("Pragma") == "no-cache" && h.Get("Expires") == "0"; got != tc.noStore {
				t.Fatalf("no-store headers present = %v, want %v", got, tc.noStore)
			}
			if got := h.Get("Access-Control-Expose-Headers"); got != exposedList {
				t.Fatalf("expose header = %q", got)
			}
		})
	}
}

func TestSecurityHeaders_ExposeMerge(t *testing.T) {
	cases := []struct {
		name, prior, want string
	}{
		{"appends after existing", "ETag", "ETag, " + exposedList},
		{"keeps existing names once", "Retry-After, ETag",
			"Retry-After, ETag, X-Request-ID, X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset, Idempotency-Replayed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prior := http.Header{"Access-Control-Expose-Headers": {tc.prior}}
			got := securityHeaders(t, SecurityOptions{}, prior, nil).Get("Access-Control-Expose-Headers")
			if got != tc.want {
				t.Fatalf("expose = %q, want %q", got, tc.want)
			}
			if strings.Count(got, "Retry-After") != 1 {
				t.Fatalf("Retry-After duplicated: %q", got)
			}
		})
	}
}

func TestIsHTTPS(t *testing.T) {
	cases := []struct {
		name  string
		tweak func(*http.Request)
		want  bool
	}{
		{"plain", func(*http.Request) {}, false},
		{"tls", func(r *http.Request) { r.TLS = &tls.ConnectionState{} }, true},
		{"forwarded https", func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", "https") }, true},
		{"forwarded http", func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", "http") }, false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		tc.tweak(req)
		if got := isHTTPS(req); got != tc.want {
			t.Fatalf("%s: isHTTPS = %v, want %v", tc.name, got, tc.want)
		}
	}
}
