package sim

type EventType int

const (
	EventCrash EventType = iota
	EventComponentFailed
	EventSegmentRetired
	EventForkCommitted
	EventLaneChanged
)

// Event is a structured simulation outcome for game-flow code. Crashes are
// events, never errors.
type Event struct {
	Type      EventType
	Vehicle   int
	Tick      uint64
	Reason    CrashReason // EventCrash only
	Component string      // EventComponentFailed only
	Segment   int         // segment/fork events only
	Value     float64     // generic payload (e.g. lane index)
}

type EventHandler func(Event)

type EventBus struct {
	handlers map[EventType][]EventHandler
}

func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]EventHandler),
	}
}

func (eb *EventBus) Subscribe(t EventType, fn EventHandler) {
	eb.handlers[t] = append(eb.handlers[t], fn)
}

func (eb *EventBus) Emit(e Event) {
	for _, fn := range eb.handlers[e.Type] {
		fn(e)
	}
}
