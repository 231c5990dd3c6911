package graph

// RawNode is a node as returned by the graph store. ElementID is the
// store's internal id; Identity is the entry identifier shown to users.
type RawNode struct {
	ElementID string
	Identity  string
	Label     string
}

// RawRel is a relationship as returned by the graph store. Endpoints are
// element ids.
type RawRel struct {
	ElementID      string
	StartElementID string
	EndElementID   string
	Type           string
	Weight         float64
	HasWeight      bool
}

// RawTuple is one row of a neighborhood query. Mid, Rel and Far are nil
// when the seed has no neighbors or the hop-1 node has no qualifying
// relationship. SeedRels holds the relationships between Seed and Mid.
type RawTuple struct {
	Seed     RawNode
	Mid      *RawNode
	SeedRels []RawRel
	Rel      *RawRel
	Far      *RawNode
}

// DefaultWeight is used for relationships without a weight property.
const DefaultWeight = 1.0

// Assembler turns raw query rows into a Neighborhood.
//
// Only hop-2 relationships (hop-1 node to far node) become edges unless
// IncludeSeedEdges is set, in which case the seed↔hop-1 relationships are
// added too, oriented as stored.
type Assembler struct {
	IncludeSeedEdges bool
}

// Assemble builds a fresh Neighborhood. Empty input gives an empty one.
func (a Assembler) Assemble(tuples []RawTuple) *Neighborhood {
	seed := ""
	if len(tuples) > 0 {
		seed = tuples[0].Seed.Identity
	}
	nb := NewNeighborhood(seed)

	// element id -> identity, for resolving relationship endpoints
	ids := make(map[string]string)
	register := func(n *RawNode) bool {
		if n == nil || n.Identity == "" {
			return false
		}
		nb.AddNode(n.Identity, n.Label)
		if n.ElementID != "" {
			ids[n.ElementID] = n.Identity
		}
		return true
	}

	for i := range tuples {
		t := &tuples[i]
		hasSeed := register(&t.Seed)
		hasMid := register(t.Mid)
		hasFar := register(t.Far)

		if t.Rel != nil && hasMid && hasFar {
			src, dst := t.Mid.Identity, t.Far.Identity
			// Orientation follows the stored relationship when both ends resolve.
			if s, ok := ids[t.Rel.StartElementID]; ok {
				if d, ok := ids[t.Rel.EndElementID]; ok {
					src, dst = s, d
				}
			}
			nb.AddEdge(src, dst, weightOf(t.Rel), t.Rel.Type, t.Rel.ElementID)
		}

		if a.IncludeSeedEdges && hasSeed && hasMid {
			for _, r := range t.SeedRels {
				s, okS := ids[r.StartElementID]
				d, okD := ids[r.EndElementID]
				if !okS || !okD {
					continue
				}
				nb.AddEdge(s, d, weightOf(&r), r.Type, r.ElementID)
			}
		}
	}
	return nb
}

func weightOf(r *RawRel) float64 {
	if r.HasWeight {
		return r.Weight
	}
	return DefaultWeight
}
