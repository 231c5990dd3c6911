package layout

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/barneshut"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/nicehiro/protgraph/internal/graph"
)

// Eades force constants. Springs pull adjacent nodes toward unit length,
// every pair repels with inverse-square strength and a weak pull toward
// the origin keeps disconnected nodes in frame.
const (
	eadesSpring    = 2.0
	eadesLength    = 1.0
	eadesRepulsion = 1.0
	eadesGravity   = 0.02
	eadesRate      = 0.1
	eadesTheta     = 0.5
)

// Eades is the spring embedder of Eades (1984) with Barnes-Hut
// approximated repulsion. Each step's displacement is capped by a
// temperature that cools linearly, so dense graphs cannot blow up.
type Eades struct {
	Updates int
	Seed    uint64
}

type body struct{ pos r2.Vec }

func (b *body) Coord2() r2.Vec { return b.pos }
func (b *body) Mass() float64  { return 1 }

// Compute implements Engine.
func (e *Eades) Compute(nb *graph.Neighborhood) (*Layout, error) {
	if l, ok := trivial(nb); ok {
		return l, nil
	}
	updates := e.Updates
	if updates <= 0 {
		updates = defaultMaxIterations
	}

	n := nb.Len()
	var edges [][2]int
	it := undirected(nb).Edges()
	for it.Next() {
		ed := it.Edge()
		edges = append(edges, [2]int{int(ed.From().ID()), int(ed.To().ID())})
	}

	// distinct seeded start points; coincident bodies exert no force on each other
	rng := rand.New(rand.NewPCG(e.Seed, uint64(n)))
	radius := math.Sqrt(float64(n))
	bodies := make([]*body, n)
	particles := make([]barneshut.Particle2, n)
	for i := range bodies {
		a := 2 * math.Pi * float64(i) / float64(n)
		bodies[i] = &body{pos: r2.Vec{
			X: radius*math.Cos(a) + (rng.Float64()-0.5)*0.1,
			Y: radius*math.Sin(a) + (rng.Float64()-0.5)*0.1,
		}}
		particles[i] = bodies[i]
	}

	temp := radius / 2
	cool := temp / float64(updates)
	force := make([]r2.Vec, n)
	for step := 0; step < updates; step++ {
		plane, err := barneshut.NewPlane(particles)
		if err != nil {
			return nil, fmt.Errorf("eades: %w", err)
		}
		for i, b := range bodies {
			f := r2.Scale(-eadesRepulsion, plane.ForceOn(b, eadesTheta, barneshut.Gravity2))
			force[i] = r2.Sub(f, r2.Scale(eadesGravity, b.pos))
		}
		for _, ed := range edges {
			v := r2.Sub(bodies[ed[1]].pos, bodies[ed[0]].pos)
			d := r2.Norm(v)
			if d < minSeparation {
				continue
			}
			f := r2.Scale(eadesSpring*math.Log(d/eadesLength)/d, v)
			force[ed[0]] = r2.Add(force[ed[0]], f)
			force[ed[1]] = r2.Sub(force[ed[1]], f)
		}

		moved := 0.0
		for i, b := range bodies {
			f := r2.Scale(eadesRate, force[i])
			m := r2.Norm(f)
			if m == 0 || math.IsNaN(m) {
				continue
			}
			if m > temp {
				f = r2.Scale(temp/m, f)
				m = temp
			}
			b.pos = r2.Add(b.pos, f)
			moved = math.Max(moved, m)
		}
		if moved < defaultEpsilon {
			break
		}
		temp = math.Max(temp-cool, defaultEpsilon)
	}

	out := make([]Position, n)
	for i, b := range bodies {
		out[i] = Position{X: b.pos.X, Y: b.pos.Y}
	}
	normalize(out)
	return &Layout{Positions: out, ids: identities(nb)}, nil
}
