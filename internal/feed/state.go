package feed

// State is the connection state machine value. Exactly one instance exists
// per service; every transition is a compare-and-swap.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
	BackingOff
	Disposing
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case BackingOff:
		return "backing_off"
	case Disposing:
		return "disposing"
	default:
		return "unknown"
	}
}

// inProgress reports whether a connect attempt is underway somewhere.
func (s State) inProgress() bool {
	return s == Connecting || s == Reconnecting || s == BackingOff
}
