package support

import (
	"fmt"
	"net/http/httptest"

	"github.com/MeKo-Tech/goctc/internal/ctc"
	"github.com/MeKo-Tech/goctc/internal/server"
)

// HTTPTestServerWrapper wraps httptest.Server around the real scoring
// handler for integration tests.
type HTTPTestServerWrapper struct {
	Server     *httptest.Server
	TestServer *server.Server
}

// Close shuts down the listener and the scoring server.
func (w *HTTPTestServerWrapper) Close() {
	w.Server.Close()
	_ = w.TestServer.Close()
}

// createTestHTTPServer starts an httptest server with the given rate limit.
// A limit of zero disables rate limiting.
func (testCtx *TestContext) createTestHTTPServer(requestsPerMinute int) error {
	if err := testCtx.StopServer(); err != nil {
		return err
	}

	cfg := server.Config{
		CORSOrigin: "*",
		MaxBodyMB:  1,
		CTC:        ctc.DefaultConfig(),
	}
	if requestsPerMinute > 0 {
		cfg.RateLimit = server.RateLimitConfig{Enabled: true, RequestsPerMinute: requestsPerMinute}
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	testCtx.HTTPTestServer = &HTTPTestServerWrapper{
		Server:     httptest.NewServer(srv.Handler()),
		TestServer: srv,
	}
	return nil
}

// GetServerURL returns the base URL of the running test server.
func (testCtx *TestContext) GetServerURL() string {
	if testCtx.HTTPTestServer == nil {
		return ""
	}
	return testCtx.HTTPTestServer.Server.URL
}
