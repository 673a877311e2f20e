package rule

// EventRegistry interns events by condition value.
//
// Exactly one Event exists per distinct Condition; two rules whose
// conditions compare equal structurally share it. The registry is owned
// by the Manager and relies on its serialization.
type EventRegistry struct {
	events map[Condition]*Event

	// order preserves registration order so snapshot dispatch is
	// deterministic across runs.
	order []Condition
}

// NewEventRegistry creates an empty event registry.
func NewEventRegistry() *EventRegistry {
	return &EventRegistry{events: make(map[Condition]*Event)}
}

// getOrCreate returns the event for a condition, creating it on first use.
func (r *EventRegistry) getOrCreate(cond Condition) *Event {
	if ev, ok := r.events[cond]; ok {
		return ev
	}
	ev := newEvent(cond)
	r.events[cond] = ev
	r.order = append(r.order, cond)
	return ev
}

// get returns the event for a condition, if registered.
func (r *EventRegistry) get(cond Condition) (*Event, bool) {
	ev, ok := r.events[cond]
	return ev, ok
}

// prune removes an event once its action list is empty.
func (r *EventRegistry) prune(cond Condition) {
	if _, ok := r.events[cond]; !ok {
		return
	}
	delete(r.events, cond)
	for i, c := range r.order {
		if c == cond {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// all returns the registered events in registration order.
func (r *EventRegistry) all() []*Event {
	out := make([]*Event, 0, len(r.order))
	for _, cond := range r.order {
		out = append(out, r.events[cond])
	}
	return out
}

// Len returns the number of distinct conditions registered.
func (r *EventRegistry) Len() int {
	return len(r.events)
}
