package chat

import "github.com/siskocapital/finking/internal/models"

// EventKind describes what happened to a message
type EventKind int

const (
	MessageAdded EventKind = iota
	MessageRemoved
)

func (k EventKind) String() string {
	switch k {
	case MessageAdded:
		return "added"
	case MessageRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is delivered to listeners once per message lifecycle change.
// Index is the message position at the time of the change.
type Event struct {
	Kind    EventKind
	Index   int
	Message models.Message
}

// Listener receives session events in the order they happened.
// Listeners run synchronously and must not call Begin or Submit.
type Listener func(Event)

type subscription struct {
	id int
	fn Listener
}

// ChannelListener returns a listener that forwards events into a buffered
// channel, for surfaces that consume events from their own loop.
func ChannelListener(buffer int) (Listener, <-chan Event) {
	ch := make(chan Event, buffer)
	return func(e Event) {
		ch <- e
	}, ch
}
