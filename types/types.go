package types

type ConnState uint8

const (
	Idle ConnState = iota
	Connecting
	Connected
	Disconnected
)

func (s ConnState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

type Peer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Addr string `json:"addr"`
}

// Status is what the connection indicator shows. Err is set when the state
// change was caused by a failure.
type Status struct {
	State ConnState
	Peer  Peer
	Err   error
}

type ChatKind uint8

const (
	ChatAdded ChatKind = iota + 1
	ChatEdited
	ChatDeleted
	ChatCleared
)

type ChatEvent struct {
	Kind   ChatKind
	ID     string
	Sender string
	Body   string
	Own    bool
	// Replayed is set for events restored from history at startup.
	Replayed bool
}

type GalleryKind uint8

const (
	GalleryAdded GalleryKind = iota + 1
	// GalleryConfirmed is the peer acknowledging a file it saved.
	GalleryConfirmed
	GalleryDeleted
	GalleryCleared
)

type GalleryEvent struct {
	Kind GalleryKind
	ID   string
	Name string
	Path string
}
