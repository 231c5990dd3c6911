package search

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/nicehiro/protgraph/internal/graph"
	"github.com/nicehiro/protgraph/internal/layout"
	"github.com/nicehiro/protgraph/internal/render"
)

// Session is the state of one interactive view: the current neighborhood
// and its layout, the zoom, and the text panels. A new search replaces the
// neighborhood and layout; zoom survives searches.
type Session struct {
	ID           uuid.UUID
	Query        string
	Neighborhood *graph.Neighborhood
	Layout       *layout.Layout
	Zoom         float64
	Panels       Panels
}

// NewSession returns an idle session at the given zoom.
func NewSession(zoom float64) Session {
	return Session{
		ID:           uuid.New(),
		Neighborhood: graph.NewNeighborhood(""),
		Layout:       &layout.Layout{Positions: []layout.Position{}},
		Zoom:         zoom,
		Panels:       idlePanels(),
	}
}

// Step applies a zoom event to s. Only the zoom changes; the neighborhood
// and layout are carried over untouched.
func Step(s Session, ev render.Event, zs render.ZoomSettings) Session {
	s.Zoom = zs.Apply(s.Zoom, ev)
	return s
}

// View is what a client sees after a search or an event.
type View struct {
	SessionID string           `json:"sessionId"`
	Query     string           `json:"query"`
	Zoom      float64          `json:"zoom"`
	Panels    Panels           `json:"panels"`
	Graph     *graph.Graph     `json:"graph"`
	SVG       string           `json:"svg"`
	Controls  []render.Control `json:"controls"`
}

func (s *Session) view(svg []byte, controls []render.Control) View {
	l := s.Layout
	return View{
		SessionID: s.ID.String(),
		Query:     s.Query,
		Zoom:      s.Zoom,
		Panels:    s.Panels,
		Graph: s.Neighborhood.Snapshot(func(i int) (float64, float64, bool) {
			p, ok := l.At(i)
			return p.X, p.Y, ok
		}),
		SVG:      string(svg),
		Controls: controls,
	}
}

// ToJSON converts the view to JSON
func (v View) ToJSON() ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
