// Package layout places neighborhood nodes in the plane.
package layout

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/graph/simple"

	"github.com/nicehiro/protgraph/internal/graph"
)

// Position represents a 2D coordinate
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Layout holds one position per neighborhood node, addressed by the
// node's dense index.
type Layout struct {
	Positions []Position
	ids       []string
}

// Len returns the number of placed nodes.
func (l *Layout) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Positions)
}

// At returns the position of node i.
func (l *Layout) At(i int) (Position, bool) {
	if l == nil || i < 0 || i >= len(l.Positions) {
		return Position{}, false
	}
	return l.Positions[i], true
}

// Lookup returns the position of the node with identity id.
func (l *Layout) Lookup(id string) (Position, bool) {
	if l == nil {
		return Position{}, false
	}
	for i, v := range l.ids {
		if v == id {
			return l.Positions[i], true
		}
	}
	return Position{}, false
}

// Bounds returns the bounding box of all positions.
func (l *Layout) Bounds() (min, max Position) {
	if l.Len() == 0 {
		return Position{}, Position{}
	}
	min = Position{X: math.Inf(1), Y: math.Inf(1)}
	max = Position{X: math.Inf(-1), Y: math.Inf(-1)}
	for _, p := range l.Positions {
		min.X = math.Min(min.X, p.X)
		min.Y = math.Min(min.Y, p.Y)
		max.X = math.Max(max.X, p.X)
		max.Y = math.Max(max.Y, p.Y)
	}
	return min, max
}

// Engine computes a layout for a neighborhood.
type Engine interface {
	Compute(nb *graph.Neighborhood) (*Layout, error)
}

// Algorithm names accepted by New.
const (
	AlgorithmKamadaKawai = "kamada-kawai"
	AlgorithmEades       = "eades"
)

// Options configure an Engine.
type Options struct {
	Algorithm     string
	MaxIterations int
	Epsilon       float64
}

// New returns the engine named by opts.Algorithm.
func New(opts Options) (Engine, error) {
	switch opts.Algorithm {
	case AlgorithmKamadaKawai, "":
		return &KamadaKawai{MaxIterations: opts.MaxIterations, Epsilon: opts.Epsilon}, nil
	case AlgorithmEades:
		return &Eades{Updates: opts.MaxIterations}, nil
	default:
		return nil, fmt.Errorf("unknown layout algorithm %q", opts.Algorithm)
	}
}

// undirected builds the connectivity graph used for placement. Direction,
// weight, parallel edges and self-loops do not affect positions.
func undirected(nb *graph.Neighborhood) *simple.UndirectedGraph {
	g := simple.NewUndirectedGraph()
	for i := range nb.Nodes {
		g.AddNode(simple.Node(i))
	}
	for _, e := range nb.Edges {
		if e.From == e.To {
			continue
		}
		g.SetEdge(g.NewEdge(simple.Node(e.From), simple.Node(e.To)))
	}
	return g
}

// trivial handles neighborhoods too small to optimize.
func trivial(nb *graph.Neighborhood) (*Layout, bool) {
	switch nb.Len() {
	case 0:
		return &Layout{Positions: []Position{}}, true
	case 1:
		return &Layout{Positions: []Position{{}}, ids: []string{nb.Nodes[0].ID}}, true
	}
	return nil, false
}

func identities(nb *graph.Neighborhood) []string {
	ids := make([]string, len(nb.Nodes))
	for i, n := range nb.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// normalize centers the positions on the origin and scales them so the
// largest coordinate magnitude is 1.
func normalize(pos []Position) {
	if len(pos) == 0 {
		return
	}
	var cx, cy float64
	for _, p := range pos {
		cx += p.X
		cy += p.Y
	}
	cx /= float64(len(pos))
	cy /= float64(len(pos))

	extent := 0.0
	for i := range pos {
		pos[i].X -= cx
		pos[i].Y -= cy
		extent = math.Max(extent, math.Max(math.Abs(pos[i].X), math.Abs(pos[i].Y)))
	}
	if extent == 0 || math.IsNaN(extent) || math.IsInf(extent, 0) {
		return
	}
	for i := range pos {
		pos[i].X /= extent
		pos[i].Y /= extent
	}
}
