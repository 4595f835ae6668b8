package nutrition

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/time/rate"
)

// withTestLimiter disables rate limiting for tests.
func withTestLimiter() Option {
	return func(c *client) {
		c.limiter = rate.NewLimiter(rate.Inf, 1)
	}
}

// newTestServer starts an httptest server and returns options pointing an
// adapter at it.
func newTestServer(t *testing.T, h http.HandlerFunc) (*httptest.Server, []Option) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, []Option{WithBaseURL(srv.URL), withTestLimiter()}
}

func jsonHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func statusHandler(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(code)
	}
}
