package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/folio/internal/config"
	"github.com/conneroisu/folio/internal/pipeline"
	"github.com/conneroisu/folio/internal/renderer"
)

func newTestServer(t *testing.T, text string) (*PreviewServer, *pipeline.Session, *httptest.Server) {
	t.Helper()

	p := pipeline.New(pipeline.WithRenderer(renderer.NewHTMLRenderer()))
	session, err := pipeline.NewSession(p, pipeline.WithDebounce(10*time.Millisecond), pipeline.WithBatchFloor(0))
	require.NoError(t, err)
	t.Cleanup(session.Close)
	session.Update(text)
	session.Flush(context.Background())

	cfg := config.Default()
	cfg.Server.Port = 8080
	cfg.Render.Title = "Preview"
	srv := New(cfg, session, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv.Attach(ctx)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	cfg.Server.AllowedOrigins = []string{ts.URL}

	return srv, session, ts
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestIndexServesLatestRender(t *testing.T) {
	_, _, ts := newTestServer(t, "# Status\n\n[progress:70:Done]\n")

	resp, body := get(t, ts.URL+"/")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Contains(t, body, "<title>Preview</title>")
	assert.Contains(t, body, `value="70"`)
	assert.Contains(t, body, "new WebSocket")
}

func TestIndexUnknownPath(t *testing.T) {
	_, _, ts := newTestServer(t, "x")

	resp, _ := get(t, ts.URL+"/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	_, _, ts := newTestServer(t, "x")

	resp, body := get(t, ts.URL+"/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Contains(t, health, "checks")

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/health", nil)
	require.NoError(t, err)
	post, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	post.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, post.StatusCode)
}

func TestDiagnosticsEndpoint(t *testing.T) {
	_, _, ts := newTestServer(t, "![a](a.png)\n\n```chart\nradar\nA: 1\n```\n\n[progress:5:x]\n")

	resp, body := get(t, ts.URL+"/api/diagnostics")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var diag DiagnosticsResponse
	require.NoError(t, json.Unmarshal([]byte(body), &diag))
	assert.Equal(t, 1, diag.Components)
	assert.Equal(t, 1, diag.Images.Unmatched)
	require.NotEmpty(t, diag.Diagnostics)
	assert.Equal(t, "unknown_component_keyword", diag.Diagnostics[0].Kind)
	assert.NotNil(t, diag.Diagnostics[0].Start)
}

func TestCORSAllowedOrigin(t *testing.T) {
	_, _, ts := newTestServer(t, "x")

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/diagnostics", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", ts.URL)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, ts.URL, resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestCheckOrigin(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Port = 8080
	cfg.Server.AllowedOrigins = []string{"http://docs.local:3000"}
	srv := New(cfg, nil, nil)

	tests := []struct {
		origin string
		want   bool
	}{
		{"http://localhost:8080", true},
		{"http://127.0.0.1:8080", true},
		{"https://localhost:8080", true},
		{"http://docs.local:3000", true},
		{"", false},
		{"http://localhost:9999", false},
		{"ftp://localhost:8080", false},
		{"http://evil.example", false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, srv.checkOrigin(r))
		})
	}
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	_, _, ts := newTestServer(t, "x")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"http://evil.example"}},
	})
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) RenderMessage {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg RenderMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestWebSocketPushesFreshResults(t *testing.T) {
	srv, session, ts := newTestServer(t, "first")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{ts.URL}},
	})
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	initial := readMessage(t, ctx, conn)
	assert.Equal(t, "render", initial.Type)
	assert.Contains(t, initial.Content, "first")

	session.Update("second")

	next := readMessage(t, ctx, conn)
	assert.Equal(t, "render", next.Type)
	assert.Contains(t, next.Content, "second")
	assert.Greater(t, next.Generation, initial.Generation)
	assert.Equal(t, 1, srv.ClientCount())
}
