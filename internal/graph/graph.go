package graph

import (
	"encoding/json"
)

// UnknownLabel is shown for nodes the store returned without a name.
const UnknownLabel = "Unknown"

// NodeRecord is one entity in a neighborhood.
type NodeRecord struct {
	ID    string
	Label string
}

// EdgeRecord is a directed, weighted edge. From and To index into
// Neighborhood.Nodes; Source and Target carry the same endpoints by identity.
type EdgeRecord struct {
	Source string
	Target string
	From   int
	To     int
	Weight float64
	Type   string
}

// Neighborhood is the deduplicated graph around a seed. Nodes are
// index-addressable so layout and render can work on dense arrays.
type Neighborhood struct {
	Seed  string
	Nodes []NodeRecord
	Edges []EdgeRecord

	index    map[string]int
	labeled  []bool
	edgeKeys map[string]struct{}
}

// NewNeighborhood returns an empty neighborhood for seed.
func NewNeighborhood(seed string) *Neighborhood {
	return &Neighborhood{
		Seed:     seed,
		Nodes:    make([]NodeRecord, 0),
		Edges:    make([]EdgeRecord, 0),
		index:    make(map[string]int),
		edgeKeys: make(map[string]struct{}),
	}
}

// AddNode registers id with get-or-create semantics and returns its index.
// An empty label means the store had none; a stored label replaces the
// default, but never another stored label.
func (n *Neighborhood) AddNode(id, label string) int {
	if i, ok := n.index[id]; ok {
		if label != "" && !n.labeled[i] {
			n.Nodes[i].Label = label
			n.labeled[i] = true
		}
		return i
	}

	rec := NodeRecord{ID: id, Label: label}
	if label == "" {
		rec.Label = UnknownLabel
	}
	n.Nodes = append(n.Nodes, rec)
	n.labeled = append(n.labeled, label != "")
	n.index[id] = len(n.Nodes) - 1
	return len(n.Nodes) - 1
}

// Index returns the dense index of id.
func (n *Neighborhood) Index(id string) (int, bool) {
	i, ok := n.index[id]
	return i, ok
}

// AddEdge appends a directed edge between two registered nodes. Edges with
// an unknown endpoint are dropped. A non-empty key identifies the backing
// relationship; a key seen before is ignored so repeated rows for the same
// relationship do not duplicate it, while distinct parallel relationships
// are kept.
func (n *Neighborhood) AddEdge(source, target string, weight float64, relType, key string) bool {
	from, ok := n.index[source]
	if !ok {
		return false
	}
	to, ok := n.index[target]
	if !ok {
		return false
	}
	if key != "" {
		if _, seen := n.edgeKeys[key]; seen {
			return false
		}
		n.edgeKeys[key] = struct{}{}
	}
	n.Edges = append(n.Edges, EdgeRecord{
		Source: source,
		Target: target,
		From:   from,
		To:     to,
		Weight: weight,
		Type:   relType,
	})
	return true
}

// Len returns the number of nodes.
func (n *Neighborhood) Len() int { return len(n.Nodes) }

// Empty reports whether the neighborhood has no nodes.
func (n *Neighborhood) Empty() bool { return n == nil || len(n.Nodes) == 0 }

// Degrees counts edge endpoints per node, self-loops counted twice.
func (n *Neighborhood) Degrees() []int {
	deg := make([]int, len(n.Nodes))
	for _, e := range n.Edges {
		deg[e.From]++
		deg[e.To]++
	}
	return deg
}

// Graph is the JSON view of a neighborhood.
type Graph struct {
	Seed  string      `json:"seed"`
	Nodes []GraphNode `json:"nodes"`
	Links []GraphLink `json:"links"`
}

// GraphNode represents a node in the graph
type GraphNode struct {
	ID        string   `json:"id"`
	Label     string   `json:"label"`
	LinkCount int      `json:"linkCount"`
	X         *float64 `json:"x,omitempty"`
	Y         *float64 `json:"y,omitempty"`
}

// GraphLink represents a link in the graph
type GraphLink struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight"`
	Type   string  `json:"type,omitempty"`
}

// Snapshot builds the JSON view. pos, when non-nil, supplies coordinates
// by node index.
func (n *Neighborhood) Snapshot(pos func(i int) (x, y float64, ok bool)) *Graph {
	g := &Graph{
		Nodes: make([]GraphNode, 0),
		Links: make([]GraphLink, 0),
	}
	if n == nil {
		return g
	}
	g.Seed = n.Seed

	deg := n.Degrees()
	for i, node := range n.Nodes {
		gn := GraphNode{ID: node.ID, Label: node.Label, LinkCount: deg[i]}
		if pos != nil {
			if x, y, ok := pos(i); ok {
				gn.X, gn.Y = &x, &y
			}
		}
		g.Nodes = append(g.Nodes, gn)
	}
	for _, e := range n.Edges {
		g.Links = append(g.Links, GraphLink{
			Source: e.Source,
			Target: e.Target,
			Weight: e.Weight,
			Type:   e.Type,
		})
	}
	return g
}

// ToJSON converts the graph to JSON
func (g *Graph) ToJSON() ([]byte, error) {
	return json.MarshalIndent(g, "", "  ")
}
