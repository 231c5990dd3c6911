// Package server exposes the search pipeline over HTTP.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/nicehiro/protgraph/internal/metrics"
	"github.com/nicehiro/protgraph/internal/render"
	"github.com/nicehiro/protgraph/internal/search"
)

//go:embed templates/*
var templatesFS embed.FS

// Pipeline is the part of the orchestrator the HTTP surface drives.
type Pipeline interface {
	Search(ctx context.Context, query string) (search.View, bool)
	HandleEvent(ctx context.Context, ev render.Event) search.View
	View() search.View
}

// Options configure the HTTP surface.
type Options struct {
	Title          string
	AllowedOrigins []string
}

// Server serves the page, the graph, and the zoom endpoints.
type Server struct {
	pipeline Pipeline
	metrics  *metrics.Collector
	logger   *zap.Logger
	opts     Options
	page     *template.Template
}

// New creates a server.
func New(p Pipeline, opts Options, m *metrics.Collector, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Title == "" {
		opts.Title = "protgraph"
	}
	page, err := template.ParseFS(templatesFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return &Server{pipeline: p, metrics: m, logger: logger, opts: opts, page: page}, nil
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(requestLogger(s.logger, s.metrics))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	router.Get("/", s.handleIndex)
	router.Post("/search", s.handleSearch)
	router.Route("/zoom", func(r chi.Router) {
		r.Post("/scroll", s.handleScroll)
		r.Post("/{action}", s.handleZoom)
	})
	router.Get("/graph.svg", s.handleSVG)
	router.Get("/graph.json", s.handleGraphJSON)
	router.Get("/ws", s.handleWebSocket)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", s.metrics.Handler())

	return router
}

// requestLogger logs every request and records it in metrics.
func requestLogger(logger *zap.Logger, m *metrics.Collector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.RecordHTTPRequest(r.Method, route, strconv.Itoa(status), time.Since(start))
			logger.Info("HTTP Request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("requestID", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}

type pageData struct {
	Title  string
	View   search.View
	Panels []panelData
	SVG    template.HTML
}

type panelData struct {
	Title string
	HTML  template.HTML
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	v := s.pipeline.View()
	data := pageData{
		Title: s.opts.Title,
		View:  v,
		// panel and surface markup is produced by our own renderers
		Panels: []panelData{
			{Title: v.Panels.Records.Title, HTML: template.HTML(v.Panels.Records.HTML)},
			{Title: v.Panels.GraphNode.Title, HTML: template.HTML(v.Panels.GraphNode.HTML)},
			{Title: v.Panels.Stats.Title, HTML: template.HTML(v.Panels.Stats.HTML)},
		},
		SVG: template.HTML(v.SVG),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.ExecuteTemplate(w, "index.html", data); err != nil {
		s.logger.Error("failed to render page", zap.Error(err))
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// respond writes the view as JSON for API clients and redirects browsers
// back to the page.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, v search.View) {
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, v)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	v, _ := s.pipeline.Search(r.Context(), r.PostForm.Get("q"))
	s.respond(w, r, v)
}

func (s *Server) handleZoom(w http.ResponseWriter, r *http.Request) {
	kind, err := render.ParseEventKind(chi.URLParam(r, "action"))
	if err != nil || kind == render.Scroll {
		writeError(w, http.StatusNotFound, "unknown zoom action")
		return
	}
	s.respond(w, r, s.pipeline.HandleEvent(r.Context(), render.Event{Kind: kind}))
}

func (s *Server) handleScroll(w http.ResponseWriter, r *http.Request) {
	direction, err := strconv.Atoi(r.URL.Query().Get("direction"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "direction must be an integer")
		return
	}
	s.respond(w, r, s.pipeline.HandleEvent(r.Context(), render.Event{Kind: render.Scroll, Direction: direction}))
}

func (s *Server) handleSVG(w http.ResponseWriter, r *http.Request) {
	v := s.pipeline.View()
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = w.Write([]byte(v.SVG))
}

func (s *Server) handleGraphJSON(w http.ResponseWriter, r *http.Request) {
	v := s.pipeline.View()
	data, err := v.Graph.ToJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode graph")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ListenAndServe runs the server until ctx is done, then shuts it down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.logger.Info("shutting down server")
	return srv.Shutdown(shutdownCtx)
}
