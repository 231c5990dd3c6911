package render

import (
	"sync"

	"github.com/google/uuid"
)

// Region names a display panel.
type Region string

// RegionGraph is the graph panel.
const RegionGraph Region = "graph"

// Surface is one rendered SVG picture attached to a region.
type Surface struct {
	ID     uuid.UUID
	Region Region
	Width  int
	Height int
	Zoom   float64
	SVG    []byte

	disposed bool
}

// Disposed reports whether the surface has been released.
func (s *Surface) Disposed() bool { return s.disposed }

// Control is one toolbar button.
type Control struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Event Event  `json:"-"`
}

// Toolbar is the navigation affordance that accompanies a surface.
type Toolbar struct {
	ID       uuid.UUID
	Region   Region
	Controls []Control

	disposed bool
}

// Disposed reports whether the toolbar has been released.
func (t *Toolbar) Disposed() bool { return t.disposed }

func newToolbar(region Region) *Toolbar {
	return &Toolbar{
		ID:     uuid.New(),
		Region: region,
		Controls: []Control{
			{Name: ZoomIn.String(), Label: "+", Event: Event{Kind: ZoomIn}},
			{Name: ZoomOut.String(), Label: "−", Event: Event{Kind: ZoomOut}},
			{Name: ZoomReset.String(), Label: "reset", Event: Event{Kind: ZoomReset}},
		},
	}
}

// Display tracks the live surfaces and toolbars of every region.
type Display struct {
	mu       sync.Mutex
	surfaces map[Region][]*Surface
	toolbars map[Region][]*Toolbar
	onChange func(active int)
}

// NewDisplay creates an empty display.
func NewDisplay() *Display {
	return &Display{
		surfaces: make(map[Region][]*Surface),
		toolbars: make(map[Region][]*Toolbar),
	}
}

// OnChange registers fn to receive the total live surface count after
// every attach or release.
func (d *Display) OnChange(fn func(active int)) {
	d.mu.Lock()
	d.onChange = fn
	d.mu.Unlock()
}

// Release disposes every surface and toolbar attached to region.
func (d *Display) Release(region Region) {
	d.mu.Lock()
	for _, s := range d.surfaces[region] {
		s.disposed = true
		s.SVG = nil
	}
	for _, t := range d.toolbars[region] {
		t.disposed = true
	}
	delete(d.surfaces, region)
	delete(d.toolbars, region)
	fn, active := d.onChange, d.activeLocked()
	d.mu.Unlock()

	if fn != nil {
		fn(active)
	}
}

// Attach makes s and tb live in region. It does not release what was
// there before; callers release first.
func (d *Display) Attach(region Region, s *Surface, tb *Toolbar) {
	d.mu.Lock()
	if s != nil {
		d.surfaces[region] = append(d.surfaces[region], s)
	}
	if tb != nil {
		d.toolbars[region] = append(d.toolbars[region], tb)
	}
	fn, active := d.onChange, d.activeLocked()
	d.mu.Unlock()

	if fn != nil {
		fn(active)
	}
}

// Count returns the number of live surfaces in region.
func (d *Display) Count(region Region) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.surfaces[region])
}

// ToolbarCount returns the number of live toolbars in region.
func (d *Display) ToolbarCount(region Region) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.toolbars[region])
}

// Active returns the number of live surfaces across all regions.
func (d *Display) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.activeLocked()
}

func (d *Display) activeLocked() int {
	n := 0
	for _, ss := range d.surfaces {
		n += len(ss)
	}
	return n
}

// Surface returns the most recent live surface of region.
func (d *Display) Surface(region Region) (*Surface, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ss := d.surfaces[region]
	if len(ss) == 0 {
		return nil, false
	}
	return ss[len(ss)-1], true
}

// Toolbar returns the most recent live toolbar of region.
func (d *Display) Toolbar(region Region) (*Toolbar, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	tt := d.toolbars[region]
	if len(tt) == 0 {
		return nil, false
	}
	return tt[len(tt)-1], true
}
