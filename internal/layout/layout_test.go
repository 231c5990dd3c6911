package layout

import (
	"fmt"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicehiro/protgraph/internal/graph"
)

func buildNeighborhood(ids []string, edges [][2]string) *graph.Neighborhood {
	nb := graph.NewNeighborhood("")
	if len(ids) > 0 {
		nb.Seed = ids[0]
	}
	for _, id := range ids {
		nb.AddNode(id, "")
	}
	for i, e := range edges {
		nb.AddEdge(e[0], e[1], 1, "INTERACTS_WITH", fmt.Sprintf("r%d", i))
	}
	return nb
}

func engines(t *testing.T) map[string]Engine {
	t.Helper()
	out := make(map[string]Engine)
	for _, name := range []string{AlgorithmKamadaKawai, AlgorithmEades} {
		e, err := New(Options{Algorithm: name, MaxIterations: 300})
		require.NoError(t, err)
		out[name] = e
	}
	return out
}

func assertValid(t *testing.T, nb *graph.Neighborhood, l *Layout) {
	t.Helper()
	require.NotNil(t, l)
	require.Equal(t, nb.Len(), l.Len(), "one position per node")
	for i, p := range l.Positions {
		assert.False(t, math.IsNaN(p.X) || math.IsNaN(p.Y), "node %d has NaN position", i)
		assert.False(t, math.IsInf(p.X, 0) || math.IsInf(p.Y, 0), "node %d has infinite position", i)
	}
}

func minPairDistance(l *Layout) float64 {
	best := math.Inf(1)
	for i := 0; i < len(l.Positions); i++ {
		for j := i + 1; j < len(l.Positions); j++ {
			a, b := l.Positions[i], l.Positions[j]
			best = math.Min(best, math.Hypot(a.X-b.X, a.Y-b.Y))
		}
	}
	return best
}

// starChain is a hub with spokes leaves plus a chain of links hanging off
// the last leaf, followed by isolated unconnected nodes.
func starChain(spokes, links, isolated int) ([]string, [][2]string) {
	ids := []string{"HUB"}
	var edges [][2]string
	prev := ""
	for i := 0; i < spokes; i++ {
		id := "S" + strconv.Itoa(i)
		ids = append(ids, id)
		edges = append(edges, [2]string{"HUB", id})
		prev = id
	}
	for i := 0; i < links; i++ {
		id := "C" + strconv.Itoa(i)
		ids = append(ids, id)
		edges = append(edges, [2]string{prev, id})
		prev = id
	}
	for i := 0; i < isolated; i++ {
		ids = append(ids, "I"+strconv.Itoa(i))
	}
	return ids, edges
}

func TestComputeShapes(t *testing.T) {
	bigIDs, bigEdges := starChain(40, 20, 0)
	mixedIDs, mixedEdges := starChain(40, 20, 20)
	denseIDs, denseEdges := starChain(80, 0, 5)

	tests := []struct {
		name  string
		ids   []string
		edges [][2]string
	}{
		{name: "pair", ids: []string{"A", "B"}, edges: [][2]string{{"A", "B"}}},
		{name: "triangle", ids: []string{"A", "B", "C"}, edges: [][2]string{{"A", "B"}, {"B", "C"}, {"C", "A"}}},
		{name: "star", ids: []string{"S", "A", "B", "C", "D"}, edges: [][2]string{{"S", "A"}, {"S", "B"}, {"S", "C"}, {"S", "D"}}},
		{name: "isolated nodes only", ids: []string{"A", "B", "C"}},
		{name: "component plus isolated", ids: []string{"A", "B", "C", "D"}, edges: [][2]string{{"A", "B"}, {"B", "C"}}},
		{name: "self loop and parallel edges", ids: []string{"A", "B"}, edges: [][2]string{{"A", "A"}, {"A", "B"}, {"A", "B"}, {"B", "A"}}},
		{name: "star and chain of 61", ids: bigIDs, edges: bigEdges},
		{name: "star and chain with isolated", ids: mixedIDs, edges: mixedEdges},
		{name: "dense hub", ids: denseIDs, edges: denseEdges},
	}

	for name, engine := range engines(t) {
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				nb := buildNeighborhood(tt.ids, tt.edges)
				l, err := engine.Compute(nb)
				require.NoError(t, err)
				assertValid(t, nb, l)
				assert.Greater(t, minPairDistance(l), 1e-3, "nodes must not overlap")
			})
		}
	}
}

func TestComputeTrivial(t *testing.T) {
	for name, engine := range engines(t) {
		t.Run(name, func(t *testing.T) {
			empty, err := engine.Compute(graph.NewNeighborhood(""))
			require.NoError(t, err)
			assert.Equal(t, 0, empty.Len())

			single := buildNeighborhood([]string{"P1"}, nil)
			l, err := engine.Compute(single)
			require.NoError(t, err)
			require.Equal(t, 1, l.Len())
			p, ok := l.Lookup("P1")
			require.True(t, ok)
			assert.Equal(t, Position{}, p)
		})
	}
}

func TestComputeRepeatable(t *testing.T) {
	nb := buildNeighborhood([]string{"A", "B", "C", "D"}, [][2]string{{"A", "B"}, {"B", "C"}, {"C", "D"}})
	for name, engine := range engines(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 2; i++ {
				l, err := engine.Compute(nb)
				require.NoError(t, err)
				assertValid(t, nb, l)
			}
		})
	}
}

func TestKamadaKawaiPreservesGraphDistance(t *testing.T) {
	// a path A-B-C-D: the ends should be further apart than neighbors
	nb := buildNeighborhood([]string{"A", "B", "C", "D"}, [][2]string{{"A", "B"}, {"B", "C"}, {"C", "D"}})
	l, err := (&KamadaKawai{MaxIterations: 1000}).Compute(nb)
	require.NoError(t, err)

	a, _ := l.Lookup("A")
	b, _ := l.Lookup("B")
	d, _ := l.Lookup("D")
	assert.Greater(t, math.Hypot(a.X-d.X, a.Y-d.Y), math.Hypot(a.X-b.X, a.Y-b.Y))
}

func TestNormalizedExtent(t *testing.T) {
	nb := buildNeighborhood([]string{"A", "B", "C"}, [][2]string{{"A", "B"}, {"B", "C"}})
	l, err := (&KamadaKawai{}).Compute(nb)
	require.NoError(t, err)

	min, max := l.Bounds()
	for _, v := range []float64{min.X, min.Y, max.X, max.Y} {
		assert.LessOrEqual(t, math.Abs(v), 1+1e-9)
	}
}

func TestNewUnknownAlgorithm(t *testing.T) {
	_, err := New(Options{Algorithm: "spectral"})
	assert.Error(t, err)

	e, err := New(Options{})
	require.NoError(t, err)
	assert.IsType(t, &KamadaKawai{}, e)
}

func TestLayoutNilSafe(t *testing.T) {
	var l *Layout
	assert.Equal(t, 0, l.Len())
	_, ok := l.At(0)
	assert.False(t, ok)
	_, ok = l.Lookup("A")
	assert.False(t, ok)
}

func TestEadesRepeatableWithSeed(t *testing.T) {
	ids, edges := starChain(30, 10, 3)
	nb := buildNeighborhood(ids, edges)
	e := &Eades{Updates: 200, Seed: 7}

	first, err := e.Compute(nb)
	require.NoError(t, err)
	second, err := e.Compute(nb)
	require.NoError(t, err)
	assert.Equal(t, first.Positions, second.Positions)
}

func TestEadesKeepsNeighborsCloser(t *testing.T) {
	// a path P0-P1-...-P9: the ends should be further apart than neighbors
	ids := make([]string, 10)
	var edges [][2]string
	for i := range ids {
		ids[i] = "P" + strconv.Itoa(i)
		if i > 0 {
			edges = append(edges, [2]string{ids[i-1], ids[i]})
		}
	}
	l, err := (&Eades{}).Compute(buildNeighborhood(ids, edges))
	require.NoError(t, err)

	first, _ := l.Lookup("P0")
	next, _ := l.Lookup("P1")
	last, _ := l.Lookup("P9")
	assert.Greater(t, math.Hypot(first.X-last.X, first.Y-last.Y), math.Hypot(first.X-next.X, first.Y-next.Y))
}
