package relay

// State is the relay loop's lifecycle state.
type State int32

const (
	StateConnecting State = iota
	StateListening
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateListening:
		return "listening"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
