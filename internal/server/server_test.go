package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/cydonia/internal/build"
	"github.com/conneroisu/cydonia/internal/config"
	"github.com/conneroisu/cydonia/internal/livereload"
	"github.com/conneroisu/cydonia/internal/logging"
	"github.com/conneroisu/cydonia/internal/post"
	"github.com/conneroisu/cydonia/internal/renderer"
	"github.com/conneroisu/cydonia/internal/testutils"
	"github.com/conneroisu/cydonia/internal/theme"
)

func renderedSite(t *testing.T) *config.Manifest {
	t.Helper()
	root := testutils.CreateTempProject(t)
	testutils.WritePost(t, root, "2024-01-01-hello-world.md", testutils.HelloWorldPost)
	m := testutils.LoadManifest(t, root)

	r, err := renderer.New(m, renderer.Options{LiveReload: livereload.Endpoint})
	require.NoError(t, err)
	posts, err := post.LoadAll(m.Posts)
	require.NoError(t, err)
	require.NoError(t, r.RenderFull(posts, theme.Load(m.Theme)))
	return m
}

func newTestServer(t *testing.T, m *config.Manifest, metrics *build.BuildMetrics) (*PreviewServer, *livereload.Hub, *httptest.Server) {
	t.Helper()
	hub := livereload.NewHub(logging.Discard(), 4)
	t.Cleanup(hub.Shutdown)

	s := New(m, hub, metrics, Options{}, logging.Discard())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, hub, ts
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

func TestServesRenderedPages(t *testing.T) {
	m := renderedSite(t)
	_, _, ts := newTestServer(t, m, nil)

	resp, body := get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "posts/2024-01-01-hello-world.html")
	assert.Contains(t, body, livereload.Endpoint)
	assert.Equal(t, "no-cache, no-store, must-revalidate", resp.Header.Get("Cache-Control"))

	resp, body = get(t, ts.URL+"/posts/2024-01-01-hello-world.html")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "<h1>Hello World</h1>")

	resp, _ = get(t, ts.URL+"/index.css")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/css")
}

func TestNotFoundPage(t *testing.T) {
	m := renderedSite(t)
	_, _, ts := newTestServer(t, m, nil)

	resp, body := get(t, ts.URL+"/posts/missing.html")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "<h1>Not found</h1>")
	assert.Contains(t, body, "<code>/posts/missing.html</code>")
	assert.Contains(t, body, livereload.Endpoint)
}

func TestNotFoundShowsBuildFailure(t *testing.T) {
	m := renderedSite(t)
	metrics := build.NewBuildMetrics()
	metrics.RecordBuild(&build.Result{}, errors.New(`post "x.md" <is> malformed`))
	_, _, ts := newTestServer(t, m, metrics)

	resp, body := get(t, ts.URL+"/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "<h1>Build failed</h1>")
	assert.Contains(t, body, "&lt;is&gt; malformed")
}

func TestNotFoundPageComponent(t *testing.T) {
	tests := []struct {
		name     string
		buildErr string
		contains []string
		excludes []string
	}{
		{
			name:     "missing page",
			contains: []string{"<title>Not found | Blog &amp; Notes</title>", "<code>/a&lt;b&gt;</code>"},
			excludes: []string{"<pre>"},
		},
		{
			name:     "failed build",
			buildErr: "template <post> missing",
			contains: []string{"<title>Build failed | Blog &amp; Notes</title>", "<pre>template &lt;post&gt; missing</pre>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sb strings.Builder
			require.NoError(t, notFoundPage("Blog & Notes", "/a<b>", tt.buildErr).Render(context.Background(), &sb))

			html := sb.String()
			for _, want := range tt.contains {
				assert.Contains(t, html, want)
			}
			for _, unwanted := range tt.excludes {
				assert.NotContains(t, html, unwanted)
			}
			assert.Contains(t, html, strconv.Quote(livereload.Endpoint))
		})
	}
}

func TestTraversalStaysInOutput(t *testing.T) {
	m := renderedSite(t)
	_, _, ts := newTestServer(t, m, nil)

	resp, body := get(t, ts.URL+"/../cydonia.toml")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotContains(t, body, "title =")
}

func TestMethodNotAllowed(t *testing.T) {
	m := renderedSite(t)
	_, _, ts := newTestServer(t, m, nil)

	for _, path := range []string{"/", "/health"} {
		resp, err := http.Post(ts.URL+path, "text/plain", strings.NewReader("x"))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, path)
	}
}

func TestHealth(t *testing.T) {
	m := renderedSite(t)
	metrics := build.NewBuildMetrics()
	metrics.RecordBuild(&build.Result{Pages: 2, Duration: time.Millisecond}, nil)
	_, _, ts := newTestServer(t, m, metrics)

	resp, body := get(t, ts.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var health map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.NotEmpty(t, health["version"])

	checks := health["checks"].(map[string]interface{})
	for _, name := range []string{"server", "output", "build", "livereload"} {
		assert.Contains(t, checks, name)
	}
}

func TestHealthDegradedAfterFailure(t *testing.T) {
	m := renderedSite(t)
	metrics := build.NewBuildMetrics()
	metrics.RecordBuild(nil, errors.New("boom"))
	_, _, ts := newTestServer(t, m, metrics)

	_, body := get(t, ts.URL+"/health")
	var health map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &health))
	assert.Equal(t, "degraded", health["status"])
}

func TestBuildMetricsEndpoint(t *testing.T) {
	m := renderedSite(t)
	metrics := build.NewBuildMetrics()
	metrics.RecordBuild(&build.Result{Pages: 3}, nil)
	_, _, ts := newTestServer(t, m, metrics)

	_, body := get(t, ts.URL+"/api/build/metrics")
	var payload struct {
		Metrics     build.Snapshot `json:"metrics"`
		SuccessRate float64        `json:"success_rate"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	assert.Equal(t, int64(1), payload.Metrics.TotalBuilds)
	assert.Equal(t, int64(3), payload.Metrics.PagesRendered)
	assert.Equal(t, 100.0, payload.SuccessRate)
}

func TestLiveReloadMounted(t *testing.T) {
	m := renderedSite(t)
	_, hub, ts := newTestServer(t, m, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+livereload.Endpoint, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)
	hub.PublishReload("index")

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"reload"`)
}

func TestListenProbesNextPort(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()
	port := taken.Addr().(*net.TCPAddr).Port

	ln, err := Listen("127.0.0.1", port)
	if err != nil {
		t.Skipf("no free port near %d: %v", port, err)
	}
	defer ln.Close()

	got := ln.Addr().(*net.TCPAddr).Port
	assert.Greater(t, got, port)
	assert.LessOrEqual(t, got, port+MaxPortAttempts)
}

func TestListenGivesUp(t *testing.T) {
	_, err := Listen("127.0.0.1", 65535+1)
	require.Error(t, err)
}

func TestStartAndShutdown(t *testing.T) {
	m := renderedSite(t)
	hub := livereload.NewHub(logging.Discard(), 4)
	defer hub.Shutdown()

	s := New(m, hub, nil, Options{Address: "127.0.0.1", Port: 0}, logging.Discard())
	url, err := s.Listen()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "http://127.0.0.1:"))

	_, portStr, err := net.SplitHostPort(strings.TrimPrefix(url, "http://"))
	require.NoError(t, err)
	_, err = strconv.Atoi(portStr)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	resp, _ := get(t, url+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	assert.NoError(t, s.Shutdown(context.Background()))
}

func TestServeRequiresListen(t *testing.T) {
	s := New(config.Default(), nil, nil, Options{}, logging.Discard())
	assert.Error(t, s.Serve(context.Background()))
	assert.Empty(t, s.URL())
}
