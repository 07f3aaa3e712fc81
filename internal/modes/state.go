package modes

// State is the lifecycle state of a profile.
type State string

const (
	StateInactive     State = "inactive"
	StateActivating   State = "activating"
	StateActive       State = "active"
	StateDeactivating State = "deactivating"
	StateError        State = "error"
)

// transitions lists every legal edge of the lifecycle machine.
// Error is only left through a fresh activation attempt.
var transitions = map[State][]State{
	StateInactive:     {StateActivating},
	StateError:        {StateActivating},
	StateActivating:   {StateActive, StateError},
	StateActive:       {StateDeactivating},
	StateDeactivating: {StateInactive, StateError},
}

// CanTransition reports whether the machine allows moving from s to next.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer.
func (s State) String() string {
	if s == "" {
		return string(StateInactive)
	}
	return string(s)
}
