package layout

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/nicehiro/protgraph/internal/graph"
)

// KamadaKawai is the spring layout of Kamada and Kawai (1989): every pair
// of nodes is joined by a spring whose rest length is proportional to the
// pair's graph distance, and nodes are moved one at a time by
// Newton-Raphson steps until the largest energy gradient falls below
// Epsilon or MaxIterations moves have been made.
//
// Pairs in different components are given the distance diameter+1, which
// keeps isolated nodes apart from each other and from the rest.
type KamadaKawai struct {
	MaxIterations int
	Epsilon       float64
	// InnerIterations bounds the Newton steps spent on one node.
	InnerIterations int
}

const (
	defaultMaxIterations = 500
	defaultEpsilon       = 1e-4
	defaultInner         = 20
	minSeparation        = 1e-9
)

// Compute implements Engine.
func (kk *KamadaKawai) Compute(nb *graph.Neighborhood) (*Layout, error) {
	if l, ok := trivial(nb); ok {
		return l, nil
	}
	n := nb.Len()
	dist := distances(nb)

	maxIter := kk.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}
	eps := kk.Epsilon
	if eps <= 0 {
		eps = defaultEpsilon
	}
	inner := kk.InnerIterations
	if inner <= 0 {
		inner = defaultInner
	}

	// spring lengths and strengths, n*n row-major
	diameter := 0.0
	for _, d := range dist {
		diameter = math.Max(diameter, d)
	}
	unit := 1.0 / diameter
	length := make([]float64, n*n)
	strength := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			d := dist[i*n+j]
			length[i*n+j] = unit * d
			strength[i*n+j] = 1 / (d * d)
		}
	}

	pos := initialCircle(n)
	s := &kkState{n: n, pos: pos, length: length, strength: strength}

	for iter := 0; iter < maxIter; {
		m, delta := s.worst()
		if delta < eps {
			break
		}
		for k := 0; k < inner && iter < maxIter; k++ {
			if !s.step(m) {
				break
			}
			iter++
			gx, gy := s.gradient(m)
			if math.Hypot(gx, gy) < eps {
				break
			}
		}
		// a node whose Hessian is singular is nudged so the loop cannot stall
		if gx, gy := s.gradient(m); math.Hypot(gx, gy) >= delta {
			s.pos[m] = r2.Add(s.pos[m], r2.Vec{X: jitter(), Y: jitter()})
			iter++
		}
	}

	out := make([]Position, n)
	for i, p := range s.pos {
		out[i] = Position{X: p.X, Y: p.Y}
	}
	normalize(out)
	return &Layout{Positions: out, ids: identities(nb)}, nil
}

// distances returns all-pairs graph distances, row-major. Unreachable pairs
// get diameter+1.
func distances(nb *graph.Neighborhood) []float64 {
	n := nb.Len()
	paths := path.DijkstraAllPaths(undirected(nb))

	dist := make([]float64, n*n)
	diameter := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			d := paths.Weight(int64(i), int64(j))
			dist[i*n+j] = d
			if !math.IsInf(d, 1) {
				diameter = math.Max(diameter, d)
			}
		}
	}
	for k, d := range dist {
		if math.IsInf(d, 1) || math.IsNaN(d) {
			dist[k] = diameter + 1
		}
	}
	return dist
}

// initialCircle spreads nodes on the unit circle with a little noise so
// symmetric graphs do not start at a saddle point.
func initialCircle(n int) []r2.Vec {
	pos := make([]r2.Vec, n)
	for i := range pos {
		theta := 2 * math.Pi * float64(i) / float64(n)
		pos[i] = r2.Vec{X: math.Cos(theta) + jitter(), Y: math.Sin(theta) + jitter()}
	}
	return pos
}

func jitter() float64 { return (rand.Float64() - 0.5) * 1e-3 }

type kkState struct {
	n        int
	pos      []r2.Vec
	length   []float64
	strength []float64
}

// gradient returns the partial derivatives of the energy for node m.
func (s *kkState) gradient(m int) (gx, gy float64) {
	pm := s.pos[m]
	for i := 0; i < s.n; i++ {
		if i == m {
			continue
		}
		d := r2.Sub(pm, s.pos[i])
		r := math.Max(r2.Norm(d), minSeparation)
		k, l := s.strength[m*s.n+i], s.length[m*s.n+i]
		gx += k * (d.X - l*d.X/r)
		gy += k * (d.Y - l*d.Y/r)
	}
	return gx, gy
}

// worst returns the node with the largest gradient norm.
func (s *kkState) worst() (int, float64) {
	best, bestDelta := 0, -1.0
	for m := 0; m < s.n; m++ {
		gx, gy := s.gradient(m)
		if d := math.Hypot(gx, gy); d > bestDelta {
			best, bestDelta = m, d
		}
	}
	return best, bestDelta
}

// step moves node m by one Newton-Raphson step. It reports false when the
// Hessian is singular.
func (s *kkState) step(m int) bool {
	pm := s.pos[m]
	var gx, gy, hxx, hxy, hyy float64
	for i := 0; i < s.n; i++ {
		if i == m {
			continue
		}
		d := r2.Sub(pm, s.pos[i])
		r := math.Max(r2.Norm(d), minSeparation)
		r3 := r * r * r
		k, l := s.strength[m*s.n+i], s.length[m*s.n+i]

		gx += k * (d.X - l*d.X/r)
		gy += k * (d.Y - l*d.Y/r)
		hxx += k * (1 - l*d.Y*d.Y/r3)
		hxy += k * (l * d.X * d.Y / r3)
		hyy += k * (1 - l*d.X*d.X/r3)
	}

	det := hxx*hyy - hxy*hxy
	if math.Abs(det) < 1e-12 || math.IsNaN(det) {
		return false
	}
	dx := (-gx*hyy + gy*hxy) / det
	dy := (-gy*hxx + gx*hxy) / det
	if math.IsNaN(dx) || math.IsNaN(dy) || math.IsInf(dx, 0) || math.IsInf(dy, 0) {
		return false
	}
	s.pos[m] = r2.Add(pm, r2.Vec{X: dx, Y: dy})
	return true
}
