// Package search runs the query pipeline: record lookup, neighborhood
// fetch, assembly, layout and render, and keeps the session they act on.
package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nicehiro/protgraph/internal/config"
	"github.com/nicehiro/protgraph/internal/db"
	"github.com/nicehiro/protgraph/internal/graph"
	"github.com/nicehiro/protgraph/internal/graphstore"
	"github.com/nicehiro/protgraph/internal/layout"
	"github.com/nicehiro/protgraph/internal/metrics"
	"github.com/nicehiro/protgraph/internal/render"
)

// RecordStore is the document store lookup.
type RecordStore interface {
	LookupOne(ctx context.Context, query string) (*db.Record, error)
	Count(ctx context.Context) (int, error)
}

// GraphStore fetches raw neighborhood rows.
type GraphStore interface {
	FetchNeighborhood(ctx context.Context, seed string) ([]graph.RawTuple, error)
}

// Search outcomes, as counted in metrics.
const (
	OutcomeOK               = "ok"
	OutcomeNotFound         = "not_found"
	OutcomeConnectionFailed = "connection_failed"
	OutcomeQueryFailed      = "query_failed"
)

// Options are the pipeline settings that may change at runtime.
type Options struct {
	IncludeSeedEdges bool
	Layout           layout.Options
	Render           render.Options
	Zoom             render.ZoomSettings
}

// OptionsFromConfig extracts the pipeline settings from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		IncludeSeedEdges: cfg.Neo4j.IncludeSeedEdges,
		Layout: layout.Options{
			Algorithm:     cfg.Layout.Algorithm,
			MaxIterations: cfg.Layout.MaxIterations,
			Epsilon:       cfg.Layout.Epsilon,
		},
		Render: render.Options{
			Width:      cfg.Render.Width,
			Height:     cfg.Render.Height,
			NodeRadius: cfg.Render.NodeRadius,
			Padding:    cfg.Render.Padding,
			FontSize:   cfg.Render.FontSize,
		},
		Zoom: render.ZoomSettings{
			Initial:     cfg.Zoom.Initial,
			ButtonStep:  cfg.Zoom.ButtonStep,
			ButtonFloor: cfg.Zoom.ButtonFloor,
			ScrollStep:  cfg.Zoom.ScrollStep,
			ScrollFloor: cfg.Zoom.ScrollFloor,
		},
	}
}

// Orchestrator owns the session. Searches and zoom events are serialized:
// each one finishes its render before the next starts.
type Orchestrator struct {
	records  RecordStore
	graphs   GraphStore
	renderer *render.Renderer
	metrics  *metrics.Collector
	logger   *zap.Logger

	mu        sync.Mutex
	assembler graph.Assembler
	engine    layout.Engine
	zoom      render.ZoomSettings
	session   Session
	region    render.Region
}

// New creates an orchestrator and renders the initial empty graph.
func New(records RecordStore, graphs GraphStore, opts Options, m *metrics.Collector, logger *zap.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	engine, err := layout.New(opts.Layout)
	if err != nil {
		return nil, err
	}
	display := render.NewDisplay()
	display.OnChange(m.SetActiveSurfaces)
	renderer, err := render.NewRenderer(opts.Render, display, logger)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		records:   records,
		graphs:    graphs,
		renderer:  renderer,
		metrics:   m,
		logger:    logger,
		assembler: graph.Assembler{IncludeSeedEdges: opts.IncludeSeedEdges},
		engine:    engine,
		zoom:      opts.Zoom,
		session:   NewSession(opts.Zoom.Initial),
		region:    render.RegionGraph,
	}
	o.renderLocked()
	return o, nil
}

// Display exposes the display the graph panel is drawn into.
func (o *Orchestrator) Display() *render.Display { return o.renderer.Display() }

// Reconfigure applies new pipeline settings to later searches and renders.
// The current zoom is kept.
func (o *Orchestrator) Reconfigure(opts Options) error {
	engine, err := layout.New(opts.Layout)
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.assembler = graph.Assembler{IncludeSeedEdges: opts.IncludeSeedEdges}
	o.engine = engine
	o.zoom = opts.Zoom
	o.renderer.SetOptions(opts.Render)
	return nil
}

// View returns the current view without changing anything.
func (o *Orchestrator) View() View {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.viewLocked()
}

func (o *Orchestrator) viewLocked() View {
	svg, _ := o.renderer.Current(o.region)
	var controls []render.Control
	if tb, ok := o.renderer.Display().Toolbar(o.region); ok {
		controls = tb.Controls
	}
	return o.session.view(svg, controls)
}

// Search runs the pipeline for query. A blank query changes nothing and
// reports false.
func (o *Orchestrator) Search(ctx context.Context, query string) (View, bool) {
	q := strings.TrimSpace(query)
	if q == "" {
		return o.View(), false
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	start := time.Now()
	rec, lookupErr := o.records.LookupOne(ctx, q)
	o.metrics.ObserveStage(metrics.StageLookup, time.Since(start))
	stored := -1
	if lookupErr != nil && !errors.Is(lookupErr, db.ErrNotFound) {
		o.logger.Warn("record lookup failed", zap.String("query", q), zap.Error(lookupErr))
	} else if n, err := o.records.Count(ctx); err != nil {
		o.logger.Debug("record count failed", zap.Error(err))
	} else {
		stored = n
	}

	start = time.Now()
	tuples, fetchErr := o.graphs.FetchNeighborhood(ctx, q)
	o.metrics.ObserveStage(metrics.StageFetch, time.Since(start))

	start = time.Now()
	nb := o.assembler.Assemble(tuples)
	o.metrics.ObserveStage(metrics.StageAssemble, time.Since(start))

	start = time.Now()
	l, err := o.engine.Compute(nb)
	o.metrics.ObserveStage(metrics.StageLayout, time.Since(start))
	if err != nil {
		o.logger.Warn("layout failed", zap.String("query", q), zap.Error(err))
		l = nil
	}

	o.session.Query = q
	o.session.Neighborhood = nb
	o.session.Layout = l
	o.session.Panels = Panels{
		Records:   recordsPanel(rec, lookupErr),
		GraphNode: graphNodePanel(nb, fetchErr),
		Stats:     statsPanel(nb, stored),
	}
	o.renderLocked()

	o.metrics.RecordSearch(outcome(nb, fetchErr))
	o.logger.Info("search complete",
		zap.String("query", q),
		zap.Int("nodes", nb.Len()),
		zap.Int("edges", len(nb.Edges)),
	)
	return o.viewLocked(), true
}

func outcome(nb *graph.Neighborhood, fetchErr error) string {
	switch {
	case errors.Is(fetchErr, graphstore.ErrConnection):
		return OutcomeConnectionFailed
	case fetchErr != nil:
		return OutcomeQueryFailed
	case nb.Empty():
		return OutcomeNotFound
	}
	return OutcomeOK
}

// HandleEvent applies a zoom event and redraws the current neighborhood
// with its existing layout.
func (o *Orchestrator) HandleEvent(_ context.Context, ev render.Event) View {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.session = Step(o.session, ev, o.zoom)
	o.metrics.RecordZoom(ev.Kind.String())
	o.renderLocked()
	return o.viewLocked()
}

func (o *Orchestrator) renderLocked() {
	start := time.Now()
	_, err := o.renderer.Render(o.region, o.session.Neighborhood, o.session.Layout, o.session.Zoom)
	o.metrics.ObserveStage(metrics.StageRender, time.Since(start))
	if err != nil {
		o.logger.Debug("graph panel fell back to an empty surface", zap.Error(err))
	}
}
