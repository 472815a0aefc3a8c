package carpool

// Status is the lifecycle state of a carpool. Transitions are strictly
// forward: available -> full -> started -> closed. Closed is terminal.
type Status string

const (
	StatusAvailable Status = "available"
	StatusFull      Status = "full"
	StatusStarted   Status = "started"
	StatusClosed    Status = "closed"
)

// statusOrder gives each state its position in the linear lifecycle.
var statusOrder = map[Status]int{
	StatusAvailable: 0,
	StatusFull:      1,
	StatusStarted:   2,
	StatusClosed:    3,
}

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	_, ok := statusOrder[s]
	return ok
}

// CanTransitionTo reports whether moving from s to next is a legal single
// step of the lifecycle. No skips, no cycles.
func (s Status) CanTransitionTo(next Status) bool {
	cur, ok := statusOrder[s]
	if !ok {
		return false
	}
	nxt, ok := statusOrder[next]
	if !ok {
		return false
	}
	return nxt == cur+1
}

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusClosed
}

func (s Status) String() string {
	return string(s)
}
