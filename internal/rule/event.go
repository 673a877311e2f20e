package rule

// Event is the live object behind one distinct condition.
//
// It holds the condition's current reading and derived boolean state,
// plus the ordered list of actions observing it. Attachment order is
// notification order. Events are owned by the Manager, which serializes
// all access; they carry no locking of their own.
type Event struct {
	cond Condition

	// currentValue is the latest numeric reading, or 1/0 for motion.
	currentValue float64

	// state starts Inactive (false). Actions are notified only when
	// it flips.
	state bool

	actions []Action
}

func newEvent(cond Condition) *Event {
	return &Event{cond: cond}
}

// Condition returns the event's structural identity.
func (e *Event) Condition() Condition {
	return e.cond
}

// State returns the current boolean state.
func (e *Event) State() bool {
	return e.state
}

// CurrentValue returns the latest reading the event evaluated.
func (e *Event) CurrentValue() float64 {
	return e.currentValue
}

// ActionCount returns the number of attached actions.
func (e *Event) ActionCount() int {
	return len(e.actions)
}

// attach appends an action to the notification list.
func (e *Event) attach(a Action) {
	e.actions = append(e.actions, a)
}

// detach removes the action with the given ID, preserving the order of
// the rest. Returns true when the action list is now empty and the
// event can be pruned.
func (e *Event) detach(actionID string) bool {
	for i, a := range e.actions {
		if a.ID() == actionID {
			e.actions = append(e.actions[:i], e.actions[i+1:]...)
			break
		}
	}
	return len(e.actions) == 0
}

// update recomputes the event's state from a snapshot.
//
// matched is false when the snapshot carries no reading for this
// event's metric and location; the event is untouched. changed is true
// only on a state flip - repeated confirmation of the same state never
// notifies.
func (e *Event) update(snap Snapshot) (changed, matched bool) {
	var newState bool

	switch e.cond.Metric {
	case MetricTemperature:
		v, ok := snap.Temp[e.cond.Location]
		if !ok {
			return false, false
		}
		e.currentValue = v
		newState = e.cond.holds(v)

	case MetricHumidity:
		v, ok := snap.Humidity[e.cond.Location]
		if !ok {
			return false, false
		}
		e.currentValue = v
		newState = e.cond.holds(v)

	case MetricMotion:
		v, ok := snap.Motion[e.cond.Location]
		if !ok {
			return false, false
		}
		if v {
			e.currentValue = 1
		} else {
			e.currentValue = 0
		}
		newState = v == e.cond.Expected

	default:
		return false, false
	}

	if newState == e.state {
		return false, true
	}
	e.state = newState
	return true, true
}
