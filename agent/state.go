package agent

// State is the position of a turn in the dispatch loop.
type State int

const (
	// StateAwaitingModel: the conversation is ready for the next model call.
	StateAwaitingModel State = iota
	// StateExecutingTools: the last assistant message requested tools that
	// are being run.
	StateExecutingTools
	// StateDone: the model produced a final answer.
	StateDone
	// StateFailed: the iteration limit was hit or the model call failed.
	StateFailed
	// StateCancelled: the caller cancelled the turn.
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateAwaitingModel:
		return "awaiting_model"
	case StateExecutingTools:
		return "executing_tools"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateCancelled
}
