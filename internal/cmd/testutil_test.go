package cmd

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

// routeHandler routes requests to mock responses by method and path.
type routeHandler struct {
	routes map[string]http.HandlerFunc
}

func newRouteHandler() *routeHandler {
	return &routeHandler{routes: make(map[string]http.HandlerFunc)}
}

func (h *routeHandler) On(method, path string, fn http.HandlerFunc) *routeHandler {
	h.routes[method+" "+path] = fn
	return h
}

func (h *routeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if fn, ok := h.routes[r.Method+" "+r.URL.Path]; ok {
		fn(w, r)
		return
	}
	http.NotFound(w, r)
}

func jsonResponse(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

// setupTestEnv starts a mock storefront and points SCHAT_URL/SCHAT_TOKEN
// at it, bypassing the keychain. The cache is redirected to a temp dir
// so tests never touch (or depend on) real cached transcripts.
func setupTestEnv(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	t.Setenv("SCHAT_URL", server.URL)
	t.Setenv("SCHAT_TOKEN", "test-token")
	t.Setenv("SCHAT_OUTPUT", "text")
	t.Setenv("SCHAT_CACHE_DIR", t.TempDir())

	return server
}

// captureStdout executes a function and captures its stdout output.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	fn()

	_ = w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// captureStderr executes a function and captures its stderr output.
func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	fn()

	_ = w.Close()
	os.Stderr = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}
