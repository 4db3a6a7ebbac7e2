package handler

// State is a step of the per connection session machine.
//
//	AwaitFrame -> Validating -> {Starting | Closing} -> AwaitFrame
//	any step   -> Terminated
type State int

const (
	StateAwaitFrame State = iota
	StateValidating
	StateStarting
	StateClosing
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateAwaitFrame:
		return "await_frame"
	case StateValidating:
		return "validating"
	case StateStarting:
		return "starting"
	case StateClosing:
		return "closing"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
