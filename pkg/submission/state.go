package submission

// State of the submit cycle. Validating is transient and resolves within a
// single Submit call.
type State int

const (
	Idle State = iota
	Validating
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Validating:
		return "validating"
	default:
		return "unknown"
	}
}
