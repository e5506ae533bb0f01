package flash

import (
	"context"
	"errors"
)

// Phase identifies a step of the request lifecycle. The order of the
// constants is the order in which a full postback runs.
type Phase int

const (
	PhaseRestoreView Phase = iota + 1
	PhaseApplyRequestValues
	PhaseProcessValidations
	PhaseUpdateModelValues
	PhaseInvokeApplication
	PhaseRenderResponse
)

// IsRender reports whether p belongs to the render portion of the lifecycle.
// Every phase before RENDER_RESPONSE is incoming.
func (p Phase) IsRender() bool {
	return p >= PhaseRenderResponse
}

func (p Phase) String() string {
	switch p {
	case PhaseRestoreView:
		return "RESTORE_VIEW"
	case PhaseApplyRequestValues:
		return "APPLY_REQUEST_VALUES"
	case PhaseProcessValidations:
		return "PROCESS_VALIDATIONS"
	case PhaseUpdateModelValues:
		return "UPDATE_MODEL_VALUES"
	case PhaseInvokeApplication:
		return "INVOKE_APPLICATION"
	case PhaseRenderResponse:
		return "RENDER_RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// Store is the per-client session store the flash scope is layered on. It
// has no namespace concept of its own.
type Store interface {
	// Get returns the value under key; ok is false when absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	// Keys lists every key of the client's session.
	Keys(ctx context.Context) ([]string, error)
}

// Cookies is the cookie transport between client and server.
//
// WriteCookie with maxAge 0 deletes the cookie; a negative maxAge writes a
// browser-session cookie.
type Cookies interface {
	ReadCookie(name string) (string, bool)
	WriteCookie(name, value string, maxAge int)
}

// Severity classifies a Message.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
	SeverityFatal Severity = "fatal"
)

// Message is a user-facing diagnostic queued during a request.
type Message struct {
	Severity Severity `json:"severity"`
	Summary  string   `json:"summary"`
	Detail   string   `json:"detail,omitempty"`
}

// MessageEntry is a Message together with the component it was queued for.
// An empty ClientID marks a global message.
type MessageEntry struct {
	ClientID string  `json:"clientId,omitempty"`
	Message  Message `json:"message"`
}

// MessageList is the request's message queue.
type MessageList interface {
	AddMessage(clientID string, msg Message)
	Messages() []MessageEntry
}

// Request is the view of the current request the flash scope needs.
// Cookies and Messages may return nil when the transport or the message
// facility is unavailable.
type Request interface {
	Phase() Phase
	IsPostback() bool
	Cookies() Cookies
	Messages() MessageList
}

var (
	// ErrUnsupportedOperation is returned by mutators of read-only views.
	ErrUnsupportedOperation = errors.New("flash: unsupported operation on read-only view")

	// ErrInvalidFlagValue is returned when a reserved flag key is written
	// with a non-boolean value.
	ErrInvalidFlagValue = errors.New("flash: reserved flag requires a bool value")
)
