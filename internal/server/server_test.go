package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicehiro/protgraph/internal/graph"
	"github.com/nicehiro/protgraph/internal/metrics"
	"github.com/nicehiro/protgraph/internal/render"
	"github.com/nicehiro/protgraph/internal/search"
)

type fakePipeline struct {
	mu      sync.Mutex
	zoom    float64
	query   string
	events  []render.Event
	queries []string
}

func newFakePipeline() *fakePipeline { return &fakePipeline{zoom: 1} }

func (f *fakePipeline) viewLocked() search.View {
	nb := graph.NewNeighborhood(f.query)
	if f.query != "" {
		nb.AddNode(f.query, "HBA_HUMAN")
	}
	return search.View{
		Query: f.query,
		Zoom:  f.zoom,
		Panels: search.Panels{
			Records:   search.Panel{Title: "Records", Text: "no data found", HTML: "<p>no data found</p>"},
			GraphNode: search.Panel{Title: "Graph node", HTML: "<p>" + f.query + "</p>"},
			Stats:     search.Panel{Title: "Stats"},
		},
		Graph:    nb.Snapshot(nil),
		SVG:      `<svg xmlns="http://www.w3.org/2000/svg" width="800" height="600"></svg>`,
		Controls: []render.Control{{Name: "zoom_in", Label: "+"}, {Name: "zoom_out", Label: "-"}},
	}
}

func (f *fakePipeline) Search(_ context.Context, q string) (search.View, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q = strings.TrimSpace(q)
	if q == "" {
		return f.viewLocked(), false
	}
	f.queries = append(f.queries, q)
	f.query = q
	return f.viewLocked(), true
}

func (f *fakePipeline) HandleEvent(_ context.Context, ev render.Event) search.View {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	f.zoom = render.DefaultZoomSettings().Apply(f.zoom, ev)
	return f.viewLocked()
}

func (f *fakePipeline) View() search.View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.viewLocked()
}

func newTestServer(t *testing.T) (*fakePipeline, http.Handler) {
	t.Helper()
	p := newFakePipeline()
	s, err := New(p, Options{AllowedOrigins: []string{"*"}}, metrics.NewCollector("protgraph"), nil)
	require.NoError(t, err)
	return p, s.Handler()
}

func TestIndexPage(t *testing.T) {
	p, h := newTestServer(t)
	p.Search(context.Background(), "P69905")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `value="P69905"`)
	assert.Contains(t, body, "<p>no data found</p>", "panel markup is not escaped")
	assert.Contains(t, body, "<svg", "surface is inlined")
	assert.Contains(t, body, `action="/zoom/zoom_in"`)
}

func TestSearchEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		accept     string
		wantStatus int
		wantCalls  int
	}{
		{name: "browser redirects", query: "P69905", wantStatus: http.StatusSeeOther, wantCalls: 1},
		{name: "json view", query: "P69905", accept: "application/json", wantStatus: http.StatusOK, wantCalls: 1},
		{name: "blank query", query: "   ", accept: "application/json", wantStatus: http.StatusOK, wantCalls: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, h := newTestServer(t)
			form := url.Values{"q": {tt.query}}
			req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Len(t, p.queries, tt.wantCalls)
			if tt.accept != "" {
				var v search.View
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
				assert.Equal(t, strings.TrimSpace(tt.query), v.Query)
			}
		})
	}
}

func TestZoomEndpoints(t *testing.T) {
	tests := []struct {
		path       string
		wantStatus int
		wantEvent  *render.Event
	}{
		{path: "/zoom/in", wantStatus: http.StatusOK, wantEvent: &render.Event{Kind: render.ZoomIn}},
		{path: "/zoom/zoom_out", wantStatus: http.StatusOK, wantEvent: &render.Event{Kind: render.ZoomOut}},
		{path: "/zoom/reset", wantStatus: http.StatusOK, wantEvent: &render.Event{Kind: render.ZoomReset}},
		{path: "/zoom/scroll?direction=-1", wantStatus: http.StatusOK, wantEvent: &render.Event{Kind: render.Scroll, Direction: -1}},
		{path: "/zoom/scroll?direction=up", wantStatus: http.StatusBadRequest},
		{path: "/zoom/sideways", wantStatus: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			p, h := newTestServer(t)
			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			req.Header.Set("Accept", "application/json")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantEvent == nil {
				assert.Empty(t, p.events)
				return
			}
			require.Len(t, p.events, 1)
			assert.Equal(t, *tt.wantEvent, p.events[0])
		})
	}
}

func TestGraphEndpoints(t *testing.T) {
	p, h := newTestServer(t)
	p.Search(context.Background(), "P69905")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/graph.svg", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "<svg"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/graph.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var g graph.Graph
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &g))
	assert.Equal(t, "P69905", g.Seed)
	require.Len(t, g.Nodes, 1)
}

func TestHealthAndMetrics(t *testing.T) {
	_, h := newTestServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "protgraph_http_requests_total")
}

func TestWebSocketZoom(t *testing.T) {
	p, h := newTestServer(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	steps := []struct {
		req       zoomRequest
		wantZoom  float64
		wantError bool
	}{
		{req: zoomRequest{Type: "zoom_in"}, wantZoom: 1.2},
		{req: zoomRequest{Type: "scroll", Direction: 1}, wantZoom: 1.3},
		{req: zoomRequest{Type: "scroll", Direction: -1}, wantZoom: 1.2},
		{req: zoomRequest{Type: "pan"}, wantError: true},
		{req: zoomRequest{Type: "reset"}, wantZoom: 1},
	}
	for _, st := range steps {
		require.NoError(t, conn.WriteJSON(st.req))
		var resp zoomResponse
		require.NoError(t, conn.ReadJSON(&resp))
		if st.wantError {
			assert.NotEmpty(t, resp.Error)
			continue
		}
		assert.Empty(t, resp.Error)
		assert.InDelta(t, st.wantZoom, resp.Zoom, 1e-9)
		assert.Contains(t, resp.SVG, "<svg")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Len(t, p.events, 4)
}

func TestCheckOrigin(t *testing.T) {
	s := &Server{opts: Options{AllowedOrigins: []string{"https://example.org"}}}
	tests := []struct {
		origin string
		host   string
		want   bool
	}{
		{origin: "", host: "localhost:8080", want: true},
		{origin: "http://localhost:8080", host: "localhost:8080", want: true},
		{origin: "https://example.org", host: "localhost:8080", want: true},
		{origin: "https://evil.test", host: "localhost:8080", want: false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		r.Host = tt.host
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		assert.Equal(t, tt.want, s.checkOrigin(r), tt.origin)
	}
}
