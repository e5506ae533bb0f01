package flash

import "context"

// EventType names a flash lifecycle event.
type EventType string

const (
	// EventCommitted fires when a render buffer is handed to the next request.
	EventCommitted EventType = "committed"
	// EventEvicted fires when an execute buffer has been deleted.
	EventEvicted EventType = "evicted"
)

// Event describes one commit or eviction.
type Event struct {
	Type     EventType `json:"type"`
	Token    Token     `json:"token"`
	Entries  int       `json:"entries"`
	Redirect bool      `json:"redirect,omitempty"`
	At       int64     `json:"at"` // unix timestamp
}

// EventSink receives lifecycle events. Publish failures are logged and never
// fail the request.
type EventSink interface {
	PublishFlashEvent(ctx context.Context, event Event) error
}
