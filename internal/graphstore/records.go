package graphstore

import (
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/nicehiro/protgraph/internal/graph"
)

// toTuple maps one result row. Rows without a usable seed are skipped.
func toTuple(rec *neo4j.Record, s Settings) (graph.RawTuple, bool) {
	var t graph.RawTuple

	seedVal, _ := rec.Get("seed")
	seed, ok := seedVal.(neo4j.Node)
	if !ok {
		return t, false
	}
	t.Seed = toRawNode(seed, s)
	if t.Seed.Identity == "" {
		return t, false
	}

	if v, _ := rec.Get("mid"); v != nil {
		if n, ok := v.(neo4j.Node); ok {
			mid := toRawNode(n, s)
			t.Mid = &mid
		}
	}
	if v, _ := rec.Get("far"); v != nil {
		if n, ok := v.(neo4j.Node); ok {
			far := toRawNode(n, s)
			t.Far = &far
		}
	}
	if v, _ := rec.Get("r"); v != nil {
		if r, ok := v.(neo4j.Relationship); ok {
			rel := toRawRel(r, s)
			t.Rel = &rel
		}
	}
	if v, _ := rec.Get("seedRels"); v != nil {
		if list, ok := v.([]any); ok {
			for _, item := range list {
				if r, ok := item.(neo4j.Relationship); ok {
					t.SeedRels = append(t.SeedRels, toRawRel(r, s))
				}
			}
		}
	}
	return t, true
}

func toRawNode(n neo4j.Node, s Settings) graph.RawNode {
	raw := graph.RawNode{ElementID: n.ElementId}
	if v, ok := n.Props[s.IDProperty]; ok && v != nil {
		raw.Identity = fmt.Sprint(v)
	}
	if v, ok := n.Props[s.LabelProperty].(string); ok {
		raw.Label = v
	}
	return raw
}

func toRawRel(r neo4j.Relationship, s Settings) graph.RawRel {
	raw := graph.RawRel{
		ElementID:      r.ElementId,
		StartElementID: r.StartElementId,
		EndElementID:   r.EndElementId,
		Type:           r.Type,
	}
	raw.Weight, raw.HasWeight = toFloat(r.Props[s.WeightProperty])
	return raw
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}
