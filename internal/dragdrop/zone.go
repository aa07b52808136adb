package dragdrop

type ZoneState int

const (
	StateIdle ZoneState = iota
	StateDragging
	StateDropped
	StateCancelled
)

func (s ZoneState) String() string {
	switch s {
	case StateDragging:
		return "dragging"
	case StateDropped:
		return "dropped"
	case StateCancelled:
		return "cancelled"
	default:
		return "idle"
	}
}

// Zone is the drag binding of one rendered container. A zone whose container disappeared
// from the surface is torn down and never accepts gestures again.
type Zone struct {
	container Container
	state     ZoneState
	last      ZoneState
	bound     bool
}

func (z *Zone) Container() Container { return z.container }
func (z *Zone) State() ZoneState     { return z.state }

// LastOutcome is how the most recent gesture that started in this zone ended.
func (z *Zone) LastOutcome() ZoneState { return z.last }
func (z *Zone) Bound() bool            { return z.bound }

func (z *Zone) finish(outcome ZoneState) {
	z.state = StateIdle
	z.last = outcome
}

func (z *Zone) teardown() {
	z.bound = false
	z.state = StateIdle
}

// Event is a drag gesture step delivered to Controller.Dispatch.
type Event interface{ dragEvent() }

// DragStart picks up ItemID from the container with id ContainerID.
type DragStart struct {
	ContainerID string
	ItemID      string
}

// DragOver previews the dragged item at Index (among non-control nodes) of a container.
type DragOver struct {
	ContainerID string
	Index       int
}

// DragEnd releases the item. An empty ContainerID means it was released outside every zone.
type DragEnd struct {
	ContainerID string
	Index       int
}

type DragCancel struct{}

func (DragStart) dragEvent()  {}
func (DragOver) dragEvent()   {}
func (DragEnd) dragEvent()    {}
func (DragCancel) dragEvent() {}
