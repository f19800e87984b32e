package events

import (
	"time"

	"github.com/AltairaLabs/SightKit/detection"
)

// Emitter publishes events stamped with a session's identity.
type Emitter struct {
	bus       *EventBus
	sessionID string
	language  string
}

// NewEmitter creates a new event emitter. A nil bus yields an emitter that
// drops everything.
func NewEmitter(bus *EventBus, sessionID, language string) *Emitter {
	return &Emitter{bus: bus, sessionID: sessionID, language: language}
}

func (e *Emitter) emit(eventType EventType, attempt uint64, data EventData) {
	if e == nil || e.bus == nil {
		return
	}
	e.bus.Publish(&Event{
		Type:      eventType,
		Timestamp: time.Now(),
		SessionID: e.sessionID,
		Attempt:   attempt,
		Language:  e.language,
		Data:      data,
	})
}

// SessionConnecting emits the session.connecting event.
func (e *Emitter) SessionConnecting(attempt uint64, url string, reconnect int) {
	e.emit(EventSessionConnecting, attempt, SessionConnectingData{URL: url, Reconnect: reconnect})
}

// SessionStreaming emits the session.streaming event.
func (e *Emitter) SessionStreaming(attempt uint64, handshake time.Duration) {
	e.emit(EventSessionStreaming, attempt, SessionStreamingData{HandshakeDuration: handshake})
}

// SessionClosed emits the session.closed event.
func (e *Emitter) SessionClosed(attempt uint64, requested bool, err error, duration time.Duration) {
	e.emit(EventSessionClosed, attempt, SessionClosedData{Requested: requested, Error: err, Duration: duration})
}

// ReconnectScheduled emits the session.reconnect_scheduled event.
func (e *Emitter) ReconnectScheduled(attempt uint64, reconnect int, delay time.Duration) {
	e.emit(EventReconnectScheduled, attempt, ReconnectScheduledData{Reconnect: reconnect, Delay: delay})
}

// SessionDisconnected emits the session.disconnected event.
func (e *Emitter) SessionDisconnected(attempt uint64, reconnects int, lastErr error) {
	e.emit(EventSessionDisconnected, attempt, SessionDisconnectedData{Reconnects: reconnects, LastError: lastErr})
}

// FrameSent emits the frame.sent event.
func (e *Emitter) FrameSent(attempt, seq uint64, size int) {
	e.emit(EventFrameSent, attempt, FrameSentData{Seq: seq, Bytes: size})
}

// FrameCaptureFailed emits the frame.capture_failed event.
func (e *Emitter) FrameCaptureFailed(attempt uint64, err error) {
	e.emit(EventFrameCaptureFailed, attempt, FrameCaptureFailedData{Error: err})
}

// ResultReceived emits the result.received event.
func (e *Emitter) ResultReceived(attempt uint64, res *detection.Result) {
	e.emit(EventResultReceived, attempt, ResultReceivedData{Result: res})
}

// ServiceError emits the result.service_error event.
func (e *Emitter) ServiceError(attempt uint64, message string) {
	e.emit(EventServiceError, attempt, ServiceErrorData{Message: message})
}

// ProtocolError emits the result.protocol_error event.
func (e *Emitter) ProtocolError(attempt uint64, err error, size int) {
	e.emit(EventProtocolError, attempt, ProtocolErrorData{Error: err, Size: size})
}

// LanguageChanged emits the lifecycle.language_changed event.
func (e *Emitter) LanguageChanged(from, to string) {
	e.emit(EventLanguageChanged, 0, LanguageChangedData{From: from, To: to})
}

// LifecycleChanged emits the lifecycle.changed event.
func (e *Emitter) LifecycleChanged(foreground, focused bool) {
	e.emit(EventLifecycleChanged, 0, LifecycleChangedData{Foreground: foreground, Focused: focused})
}
