package lifecycle

import "github.com/whisper/flashscope/internal/flash"

// MessageQueue holds the messages queued during one request, in order.
type MessageQueue struct {
	entries []flash.MessageEntry
}

var _ flash.MessageList = (*MessageQueue)(nil)

// AddMessage queues msg for clientID. An empty clientID is a global message.
func (q *MessageQueue) AddMessage(clientID string, msg flash.Message) {
	q.entries = append(q.entries, flash.MessageEntry{ClientID: clientID, Message: msg})
}

// Messages returns a copy of every queued entry.
func (q *MessageQueue) Messages() []flash.MessageEntry {
	out := make([]flash.MessageEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

// ForClient returns the messages queued for clientID.
func (q *MessageQueue) ForClient(clientID string) []flash.Message {
	var out []flash.Message
	for _, e := range q.entries {
		if e.ClientID == clientID {
			out = append(out, e.Message)
		}
	}
	return out
}

// Global returns the messages not bound to a component.
func (q *MessageQueue) Global() []flash.Message {
	return q.ForClient("")
}

// Len returns the number of queued messages.
func (q *MessageQueue) Len() int { return len(q.entries) }
