package search

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/niklasfasching/go-org/org"

	"github.com/nicehiro/protgraph/internal/db"
	"github.com/nicehiro/protgraph/internal/graph"
	"github.com/nicehiro/protgraph/internal/graphstore"
)

// Messages shown in place of panel content.
const (
	MsgNoData           = "no data found"
	MsgConnectionFailed = "connection failed"
	MsgQueryFailed      = "query failed"
	MsgIdle             = "enter an identifier to search"
)

// Panel is one read-only text panel. Text is org markup; HTML is the same
// content rendered for the web page.
type Panel struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	HTML  string `json:"html"`
}

// Panels are the text panels of a session.
type Panels struct {
	Records   Panel `json:"records"`
	GraphNode Panel `json:"graphNode"`
	Stats     Panel `json:"stats"`
}

func idlePanels() Panels {
	return Panels{
		Records:   newPanel("Records", MsgIdle),
		GraphNode: newPanel("Graph node", MsgIdle),
		Stats:     newPanel("Stats", MsgIdle),
	}
}

func newPanel(title, text string) Panel {
	return Panel{Title: title, Text: text, HTML: orgHTML(text)}
}

// orgHTML renders org markup, falling back to the escaped source.
func orgHTML(text string) string {
	out, err := org.New().Parse(strings.NewReader(text), "").Write(org.NewHTMLWriter())
	if err != nil {
		return "<pre>" + htmlEscaper.Replace(text) + "</pre>"
	}
	return out
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&#34;", "'", "&#39;")

type item struct{ term, desc string }

// flatten folds stored text onto one line so it cannot open org blocks
// or keywords of its own.
func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func descList(items []item) string {
	var b strings.Builder
	for _, it := range items {
		desc := flatten(it.desc)
		if desc == "" {
			continue
		}
		fmt.Fprintf(&b, "- %s :: %s\n", it.term, desc)
	}
	return b.String()
}

// listPanel shows items as a description list. The HTML is written from
// an org tree built here rather than parsed from Text, so stored values
// are always escaped text and never markup.
func listPanel(title string, items []item) Panel {
	var entries []org.Node
	for _, it := range items {
		desc := flatten(it.desc)
		if desc == "" {
			continue
		}
		entries = append(entries, org.DescriptiveListItem{
			Bullet:  "-",
			Term:    []org.Node{org.Text{Content: it.term, IsRaw: true}},
			Details: []org.Node{org.Paragraph{Children: []org.Node{org.Text{Content: desc, IsRaw: true}}}},
		})
	}
	if len(entries) == 0 {
		return newPanel(title, MsgNoData)
	}

	doc := &org.Document{
		Configuration:  org.New(),
		BufferSettings: map[string]string{},
		Nodes:          []org.Node{org.List{Kind: "descriptive", Items: entries}},
	}
	text := descList(items)
	out, err := doc.Write(org.NewHTMLWriter())
	if err != nil {
		out = "<pre>" + htmlEscaper.Replace(text) + "</pre>"
	}
	return Panel{Title: title, Text: text, HTML: out}
}

// recordsPanel describes the document store outcome.
func recordsPanel(rec *db.Record, err error) Panel {
	switch {
	case errors.Is(err, db.ErrNotFound), err == nil && rec == nil:
		return newPanel("Records", MsgNoData)
	case err != nil:
		return newPanel("Records", MsgConnectionFailed)
	}
	length := ""
	if rec.Length > 0 {
		length = fmt.Sprintf("%d", rec.Length)
	}
	return listPanel("Records", []item{
		{"Entry", rec.Entry},
		{"Entry name", rec.EntryName},
		{"Protein names", rec.ProteinNames},
		{"Gene names", rec.GeneNames},
		{"Organism", rec.Organism},
		{"Length", length},
		{"Function", rec.Function},
	})
}

// fetchMessage maps a graph store error to a panel message.
func fetchMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, graphstore.ErrConnection):
		return MsgConnectionFailed
	default:
		return MsgQueryFailed
	}
}

// graphNodePanel summarizes the seed as the graph store returned it.
func graphNodePanel(nb *graph.Neighborhood, fetchErr error) Panel {
	if msg := fetchMessage(fetchErr); msg != "" {
		return newPanel("Graph node", msg)
	}
	if nb.Empty() {
		return newPanel("Graph node", MsgNoData)
	}
	i, ok := nb.Index(nb.Seed)
	if !ok {
		return newPanel("Graph node", MsgNoData)
	}
	seed := nb.Nodes[i]
	deg := nb.Degrees()
	return listPanel("Graph node", []item{
		{"Identity", seed.ID},
		{"Name", seed.Label},
		{"Neighbors", fmt.Sprintf("%d", nb.Len()-1)},
		{"Degree", fmt.Sprintf("%d", deg[i])},
	})
}

// Stats are summary figures of a neighborhood.
type Stats struct {
	Nodes      int
	Edges      int
	MeanDegree float64
	Hub        string
	HubDegree  int
	MinWeight  float64
	MaxWeight  float64
}

func computeStats(nb *graph.Neighborhood) Stats {
	var st Stats
	if nb.Empty() {
		return st
	}
	st.Nodes = nb.Len()
	st.Edges = len(nb.Edges)

	deg := nb.Degrees()
	total := 0
	for i, d := range deg {
		total += d
		if d > st.HubDegree {
			st.HubDegree = d
			st.Hub = nb.Nodes[i].Label
		}
	}
	st.MeanDegree = float64(total) / float64(st.Nodes)

	if st.Edges > 0 {
		st.MinWeight, st.MaxWeight = math.Inf(1), math.Inf(-1)
		for _, e := range nb.Edges {
			st.MinWeight = math.Min(st.MinWeight, e.Weight)
			st.MaxWeight = math.Max(st.MaxWeight, e.Weight)
		}
	}
	return st
}

// statsPanel summarizes the neighborhood and, when stored is not
// negative, the size of the document store.
func statsPanel(nb *graph.Neighborhood, stored int) Panel {
	var items []item
	if stored >= 0 {
		items = append(items, item{"Records in store", fmt.Sprintf("%d", stored)})
	}
	if nb.Empty() {
		if len(items) == 0 {
			return newPanel("Stats", MsgNoData)
		}
		return listPanel("Stats", items)
	}
	st := computeStats(nb)
	items = append(items,
		item{"Nodes", fmt.Sprintf("%d", st.Nodes)},
		item{"Edges", fmt.Sprintf("%d", st.Edges)},
		item{"Mean degree", fmt.Sprintf("%.2f", st.MeanDegree)},
	)
	if st.Hub != "" {
		items = append(items, item{"Top hub", fmt.Sprintf("%s (%d)", st.Hub, st.HubDegree)})
	}
	if st.Edges > 0 {
		items = append(items, item{"Weights", fmt.Sprintf("%g to %g", st.MinWeight, st.MaxWeight)})
	}
	return listPanel("Stats", items)
}
