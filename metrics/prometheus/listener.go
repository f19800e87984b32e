package prometheus

import (
	"errors"

	"github.com/AltairaLabs/SightKit/detection"
	"github.com/AltairaLabs/SightKit/events"
	"github.com/AltairaLabs/SightKit/streaming"
)

// Close reasons for metric labels.
const (
	reasonRequested = "requested"
	reasonError     = "error"
	reasonRemote    = "remote"
)

// MetricsListener records streaming events as Prometheus metrics.
// Register it with an EventBus using SubscribeAll.
type MetricsListener struct{}

// NewMetricsListener creates a new MetricsListener.
func NewMetricsListener() *MetricsListener {
	return &MetricsListener{}
}

// Handle processes an event and records relevant metrics.
func (l *MetricsListener) Handle(event *events.Event) {
	switch data := event.Data.(type) {
	case events.SessionConnectingData:
		RecordAttemptStart(data.Reconnect > 0)
	case events.SessionClosedData:
		reason := reasonRemote
		switch {
		case data.Requested:
			reason = reasonRequested
		case data.Error != nil && !errors.Is(data.Error, streaming.ErrRemoteClosed):
			reason = reasonError
		}
		RecordAttemptEnd(reason, data.Duration.Seconds())
	case events.ReconnectScheduledData:
		RecordReconnectScheduled()
	case events.SessionDisconnectedData:
		RecordDisconnect()
	case events.FrameSentData:
		RecordFrameSent(event.Language, data.Bytes)
	case events.FrameCaptureFailedData:
		RecordCaptureFailure()
	case events.ResultReceivedData:
		RecordResult(detection.StatusSuccess)
	case events.ServiceErrorData:
		RecordResult(detection.StatusError)
	case events.ProtocolErrorData:
		RecordProtocolError()
	case events.LanguageChangedData:
		RecordLanguageChange(data.To)
	default:
		// Ignore events that don't have metrics
	}
}
