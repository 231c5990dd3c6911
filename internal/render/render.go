package render

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"math"
	"strconv"
	"text/template"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nicehiro/protgraph/internal/graph"
	"github.com/nicehiro/protgraph/internal/layout"
)

//go:embed templates/*
var templatesFS embed.FS

// Options are the base surface geometry at zoom 1.
type Options struct {
	Width      int
	Height     int
	NodeRadius float64
	Padding    float64
	FontSize   float64
}

// DefaultOptions returns the stock surface geometry.
func DefaultOptions() Options {
	return Options{Width: 800, Height: 600, NodeRadius: 10, Padding: 40, FontSize: 11}
}

// sceneData is what the SVG template draws
type sceneData struct {
	Width    int
	Height   int
	Zoom     float64
	FontSize float64
	Nodes    []nodeMark
	Edges    []edgeMark
}

type nodeMark struct {
	ID    string
	Label string
	X, Y  float64
	R     float64
	LY    float64
}

type edgeMark struct {
	Source, Target string
	Weight         float64
	Loop           bool
	X1, Y1, X2, Y2 float64
	C1X, C1Y       float64
	C2X, C2Y       float64
	LX, LY         float64
}

// Renderer draws neighborhoods into a Display.
type Renderer struct {
	opts    Options
	display *Display
	tmpl    *template.Template
	logger  *zap.Logger
}

// templateFuncs returns the template function map
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"num": func(v float64) string {
			return strconv.FormatFloat(v, 'f', 2, 64)
		},
		"weight": func(v float64) string {
			return strconv.FormatFloat(v, 'g', 4, 64)
		},
	}
}

// NewRenderer creates a renderer that attaches its surfaces to display.
func NewRenderer(opts Options, display *Display, logger *zap.Logger) (*Renderer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if display == nil {
		display = NewDisplay()
	}
	tmpl, err := template.New("").Funcs(templateFuncs()).ParseFS(templatesFS, "templates/graph.svg.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return &Renderer{opts: opts, display: display, tmpl: tmpl, logger: logger}, nil
}

// Display returns the display the renderer draws into.
func (r *Renderer) Display() *Display { return r.display }

// SetOptions replaces the base geometry for later renders.
func (r *Renderer) SetOptions(opts Options) { r.opts = opts }

// Render releases whatever region currently shows, then draws nb at the
// given zoom and attaches the new surface with a fresh toolbar. If drawing
// fails the region gets an empty surface and the error is returned with it.
func (r *Renderer) Render(region Region, nb *graph.Neighborhood, l *layout.Layout, zoom float64) (*Surface, error) {
	r.display.Release(region)

	s, err := r.draw(region, nb, l, zoom)
	if err != nil {
		r.logger.Warn("graph render failed, showing empty graph",
			zap.String("region", string(region)),
			zap.Float64("zoom", zoom),
			zap.Error(err))
		s = r.blank(region, zoom)
	}
	r.display.Attach(region, s, newToolbar(region))
	return s, err
}

func (r *Renderer) size(zoom float64) (int, int) {
	w := int(math.Round(float64(r.opts.Width) * zoom))
	h := int(math.Round(float64(r.opts.Height) * zoom))
	return max(w, 1), max(h, 1)
}

func (r *Renderer) draw(region Region, nb *graph.Neighborhood, l *layout.Layout, zoom float64) (*Surface, error) {
	if zoom <= 0 || math.IsNaN(zoom) || math.IsInf(zoom, 0) {
		return nil, fmt.Errorf("invalid zoom %v", zoom)
	}
	scene := r.scene(nb, l, zoom)

	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "graph.svg.tmpl", scene); err != nil {
		return nil, fmt.Errorf("failed to execute template: %w", err)
	}
	return &Surface{
		ID:     uuid.New(),
		Region: region,
		Width:  scene.Width,
		Height: scene.Height,
		Zoom:   zoom,
		SVG:    buf.Bytes(),
	}, nil
}

// blank is an empty but valid surface.
func (r *Renderer) blank(region Region, zoom float64) *Surface {
	if zoom <= 0 || math.IsNaN(zoom) || math.IsInf(zoom, 0) {
		zoom = 1
	}
	w, h := r.size(zoom)
	svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d"></svg>`, w, h, w, h)
	return &Surface{
		ID:     uuid.New(),
		Region: region,
		Width:  w,
		Height: h,
		Zoom:   zoom,
		SVG:    []byte(svg),
	}
}

// scene maps layout coordinates into the padded surface box. Nodes the
// layout has no position for are drawn at the center.
func (r *Renderer) scene(nb *graph.Neighborhood, l *layout.Layout, zoom float64) sceneData {
	w, h := r.size(zoom)
	pad := r.opts.Padding * zoom
	radius := r.opts.NodeRadius * zoom
	font := r.opts.FontSize * zoom

	sc := sceneData{
		Width:    w,
		Height:   h,
		Zoom:     zoom,
		FontSize: font,
		Nodes:    make([]nodeMark, 0),
		Edges:    make([]edgeMark, 0),
	}
	if nb.Empty() {
		return sc
	}

	lo, hi := l.Bounds()
	project := func(p layout.Position) (float64, float64) {
		return axis(p.X, lo.X, hi.X, pad, float64(w)-pad), axis(p.Y, lo.Y, hi.Y, pad, float64(h)-pad)
	}

	xs := make([]float64, nb.Len())
	ys := make([]float64, nb.Len())
	for i, n := range nb.Nodes {
		x, y := float64(w)/2, float64(h)/2
		if p, ok := l.At(i); ok {
			x, y = project(p)
		}
		xs[i], ys[i] = x, y
		sc.Nodes = append(sc.Nodes, nodeMark{
			ID:    n.ID,
			Label: n.Label,
			X:     x,
			Y:     y,
			R:     radius,
			LY:    y + radius + font,
		})
	}

	// parallel edges between the same pair get their weight labels stacked
	seen := make(map[[2]int]int)
	for _, e := range nb.Edges {
		key := [2]int{min(e.From, e.To), max(e.From, e.To)}
		k := seen[key]
		seen[key] = k + 1

		m := edgeMark{Source: e.Source, Target: e.Target, Weight: e.Weight}
		x, y := xs[e.From], ys[e.From]
		if e.From == e.To {
			m.Loop = true
			m.X1, m.Y1 = x-radius*0.7, y-radius*0.7
			m.X2, m.Y2 = x+radius*0.7, y-radius*0.7
			m.C1X, m.C1Y = x-3*radius, y-4*radius
			m.C2X, m.C2Y = x+3*radius, y-4*radius
			m.LX, m.LY = x, y-3.2*radius-float64(k)*font
			sc.Edges = append(sc.Edges, m)
			continue
		}

		tx, ty := xs[e.To], ys[e.To]
		dx, dy := tx-x, ty-y
		d := math.Hypot(dx, dy)
		m.X1, m.Y1, m.X2, m.Y2 = x, y, tx, ty
		nx, ny := 0.0, -1.0
		if d > 0 {
			ux, uy := dx/d, dy/d
			nx, ny = -uy, ux
			if d > 2*radius {
				m.X1, m.Y1 = x+ux*radius, y+uy*radius
				m.X2, m.Y2 = tx-ux*radius, ty-uy*radius
			}
		}
		off := font * (0.6 + 1.1*float64(k))
		m.LX = (x+tx)/2 + nx*off
		m.LY = (y+ty)/2 + ny*off
		sc.Edges = append(sc.Edges, m)
	}
	return sc
}

// axis maps v from [lo, hi] into [a, b], centering degenerate ranges.
func axis(v, lo, hi, a, b float64) float64 {
	if b < a {
		a, b = (a+b)/2, (a+b)/2
	}
	if hi-lo <= 0 {
		return (a + b) / 2
	}
	return a + (v-lo)/(hi-lo)*(b-a)
}

// ErrNoSurface is returned when a region has nothing to show.
var ErrNoSurface = errors.New("no surface")

// Current returns the SVG currently shown in region.
func (r *Renderer) Current(region Region) ([]byte, error) {
	s, ok := r.display.Surface(region)
	if !ok {
		return nil, ErrNoSurface
	}
	return s.SVG, nil
}
