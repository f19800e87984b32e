package events

import (
	"time"

	"github.com/AltairaLabs/SightKit/detection"
)

// EventType identifies the type of event emitted by the streaming client.
type EventType string

const (
	// EventSessionConnecting marks the start of a connect attempt.
	EventSessionConnecting EventType = "session.connecting"
	// EventSessionStreaming marks a completed handshake; frames follow.
	EventSessionStreaming EventType = "session.streaming"
	// EventSessionClosed marks the end of one attempt's transport.
	EventSessionClosed EventType = "session.closed"
	// EventReconnectScheduled marks a pending automatic reconnect.
	EventReconnectScheduled EventType = "session.reconnect_scheduled"
	// EventSessionDisconnected marks that the reconnect budget is exhausted.
	EventSessionDisconnected EventType = "session.disconnected"

	// EventFrameSent marks one transmitted frame.
	EventFrameSent EventType = "frame.sent"
	// EventFrameCaptureFailed marks a swallowed capture failure.
	EventFrameCaptureFailed EventType = "frame.capture_failed"

	// EventResultReceived carries a parsed detection result.
	EventResultReceived EventType = "result.received"
	// EventServiceError carries a status=error message from the service.
	EventServiceError EventType = "result.service_error"
	// EventProtocolError marks a discarded malformed message.
	EventProtocolError EventType = "result.protocol_error"

	// EventLanguageChanged marks a target language switch.
	EventLanguageChanged EventType = "lifecycle.language_changed"
	// EventLifecycleChanged marks a change of foreground or focus.
	EventLifecycleChanged EventType = "lifecycle.changed"
)

// EventData is implemented by all event payloads.
type EventData interface {
	eventData()
}

// Event is one published notification.
type Event struct {
	Type      EventType
	Timestamp time.Time
	SessionID string
	// Attempt is the connect attempt id the event belongs to, zero for
	// coordinator-level events.
	Attempt  uint64
	Language string
	Data     EventData
}

type baseEventData struct{}

func (baseEventData) eventData() {}

// SessionConnectingData is the payload of EventSessionConnecting.
type SessionConnectingData struct {
	baseEventData
	URL string
	// Reconnect is the number of consecutive reconnects before this attempt.
	Reconnect int
}

// SessionStreamingData is the payload of EventSessionStreaming.
type SessionStreamingData struct {
	baseEventData
	HandshakeDuration time.Duration
}

// SessionClosedData is the payload of EventSessionClosed.
type SessionClosedData struct {
	baseEventData
	// Requested is true when the close came from Stop.
	Requested bool
	Error     error
	Duration  time.Duration
}

// ReconnectScheduledData is the payload of EventReconnectScheduled.
type ReconnectScheduledData struct {
	baseEventData
	Reconnect int
	Delay     time.Duration
}

// SessionDisconnectedData is the payload of EventSessionDisconnected.
type SessionDisconnectedData struct {
	baseEventData
	Reconnects int
	LastError  error
}

// FrameSentData is the payload of EventFrameSent.
type FrameSentData struct {
	baseEventData
	Seq   uint64
	Bytes int
}

// FrameCaptureFailedData is the payload of EventFrameCaptureFailed.
type FrameCaptureFailedData struct {
	baseEventData
	Error error
}

// ResultReceivedData is the payload of EventResultReceived.
type ResultReceivedData struct {
	baseEventData
	Result *detection.Result
}

// ServiceErrorData is the payload of EventServiceError.
type ServiceErrorData struct {
	baseEventData
	Message string
}

// ProtocolErrorData is the payload of EventProtocolError.
type ProtocolErrorData struct {
	baseEventData
	Error error
	Size  int
}

// LanguageChangedData is the payload of EventLanguageChanged.
type LanguageChangedData struct {
	baseEventData
	From string
	To   string
}

// LifecycleChangedData is the payload of EventLifecycleChanged.
type LifecycleChangedData struct {
	baseEventData
	Foreground bool
	Focused    bool
}
