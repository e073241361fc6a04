package inference

// State is the artifact lifecycle state.
type State int32

const (
	// Unloaded means no artifact is available; every prediction fails.
	Unloaded State = iota
	// Loading means an artifact is being opened.
	Loading
	// Ready means predictions are served.
	Ready
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}
