package engine

// EventType classifies engine notifications.
type EventType string

const (
	EventSyncStarted   EventType = "sync_started"
	EventSyncFinished  EventType = "sync_finished"
	EventSyncFailed    EventType = "sync_failed"
	EventPersistFailed EventType = "persist_failed"
)

// Event is an asynchronous notice for the presentation layer. Mutations
// return quickly; failures on their background paths surface here
// instead of being silently dropped.
type Event struct {
	Type    EventType
	Message string
	Err     error
}

// Events returns the notification channel. The channel is buffered and
// never blocks the engine; a reader that falls behind loses the oldest
// unread notices, not mutations.
func (e *Engine) Events() <-chan Event {
	return e.events
}

func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
		// Drop one and retry so the newest notice survives.
		select {
		case <-e.events:
		default:
		}
		select {
		case e.events <- ev:
		default:
		}
	}
}
