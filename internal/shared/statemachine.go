package shared

import "fmt"

// StateMachine is a closed set of statuses with the transitions allowed between them.
// Every status appears as a key; terminal statuses map to no targets.
type StateMachine[S ~string] struct {
	name  string
	edges map[S][]S
}

// NewStateMachine builds a machine for the named document type.
func NewStateMachine[S ~string](name string, edges map[S][]S) StateMachine[S] {
	return StateMachine[S]{name: name, edges: edges}
}

// Parse converts raw into a known status.
func (m StateMachine[S]) Parse(raw string) (S, error) {
	status := S(raw)
	if _, ok := m.edges[status]; !ok {
		return "", Invalid("unknown %s status %q", m.name, raw)
	}
	return status, nil
}

// Terminal reports whether no transition leaves status.
func (m StateMachine[S]) Terminal(status S) bool {
	return len(m.edges[status]) == 0
}

// Can reports whether current may move to target.
func (m StateMachine[S]) Can(current, target S) bool {
	for _, next := range m.edges[current] {
		if next == target {
			return true
		}
	}
	return false
}

// Validate checks a transition. Staying in the same non-terminal status is a no-op and
// allowed; terminal statuses reject every target, themselves included.
func (m StateMachine[S]) Validate(current, target S) error {
	if _, ok := m.edges[target]; !ok {
		return Invalid("unknown %s status %q", m.name, target)
	}
	if current == target && !m.Terminal(current) {
		return nil
	}
	if m.Can(current, target) {
		return nil
	}
	return fmt.Errorf("%w: %s cannot move from %s to %s", ErrInvalidTransition, m.name, current, target)
}
