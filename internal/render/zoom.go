package render

import "fmt"

// EventKind identifies a zoom interaction.
type EventKind int

const (
	ZoomIn EventKind = iota + 1
	ZoomOut
	Scroll
	ZoomReset
)

var eventNames = map[EventKind]string{
	ZoomIn:    "zoom_in",
	ZoomOut:   "zoom_out",
	Scroll:    "scroll",
	ZoomReset: "reset",
}

func (k EventKind) String() string {
	if s, ok := eventNames[k]; ok {
		return s
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// ParseEventKind maps a wire name ("zoom_in", "zoom_out", "scroll", "reset",
// or "in"/"out") to an EventKind.
func ParseEventKind(s string) (EventKind, error) {
	switch s {
	case "zoom_in", "in":
		return ZoomIn, nil
	case "zoom_out", "out":
		return ZoomOut, nil
	case "scroll":
		return Scroll, nil
	case "reset", "zoom_reset":
		return ZoomReset, nil
	}
	return 0, fmt.Errorf("unknown zoom event %q", s)
}

// Event is one user zoom interaction. Direction is only read for Scroll:
// positive zooms in, negative zooms out, zero does nothing.
type Event struct {
	Kind      EventKind
	Direction int
}

// ZoomSettings are the step sizes and floors of the zoom state machine.
// Buttons and the scroll wheel have separate steps and floors.
type ZoomSettings struct {
	Initial     float64
	ButtonStep  float64
	ButtonFloor float64
	ScrollStep  float64
	ScrollFloor float64
}

// DefaultZoomSettings returns the stock zoom behavior.
func DefaultZoomSettings() ZoomSettings {
	return ZoomSettings{
		Initial:     1.0,
		ButtonStep:  0.2,
		ButtonFloor: 0.2,
		ScrollStep:  0.1,
		ScrollFloor: 0.1,
	}
}

// Apply returns the zoom after ev. Zooming in is unbounded. Zooming out
// stops at the control's floor and never raises a zoom that is already
// below it.
func (zs ZoomSettings) Apply(z float64, ev Event) float64 {
	switch ev.Kind {
	case ZoomIn:
		return z + zs.ButtonStep
	case ZoomOut:
		return shrink(z, zs.ButtonStep, zs.ButtonFloor)
	case Scroll:
		switch {
		case ev.Direction > 0:
			return z + zs.ScrollStep
		case ev.Direction < 0:
			return shrink(z, zs.ScrollStep, zs.ScrollFloor)
		}
	case ZoomReset:
		return zs.Initial
	}
	return z
}

func shrink(z, step, floor float64) float64 {
	next := z - step
	if next < floor {
		return min(z, floor)
	}
	return next
}
