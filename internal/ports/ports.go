package ports

import (
	"context"

	"companion/internal/domain"
)

// Target identifies the backend endpoint for one connection.
type Target struct {
	URL      string
	DeviceID string
}

// Credentials authenticate the device once the socket is open.
// An empty string means "not provided".
type Credentials struct {
	IMEI       string
	AccountKey string
}

// Connection is one live bidirectional text-frame socket.
type Connection interface {
	// Send queues one text frame. Frames are written in call order.
	Send(frame string) error
	// Frames delivers inbound text frames in arrival order and is closed
	// once the socket stops reading.
	Frames() <-chan string
	// Wait blocks until the socket is fully closed and returns the
	// transport error that ended it, or nil for a clean close.
	Wait() error
	Close() error
}

// Dialer opens connections. A successful Dial is the "open" notification.
type Dialer interface {
	Dial(ctx context.Context, target Target) (Connection, error)
}

// AudioSink plays base64 encoded audio delivered by the device.
type AudioSink interface {
	Play(encoded string)
}

// RegistrationHandler is told when the server acknowledges a registration.
type RegistrationHandler interface {
	Registered(deviceID string, accountKey string, rawPayload string)
}

// AudioClip is a captured audio blob awaiting upload.
type AudioClip struct {
	MIMEType string
	Data     []byte
}

// AudioEncoder converts a clip into a data URI string.
type AudioEncoder interface {
	Encode(ctx context.Context, clip AudioClip) (string, error)
}

// EventSink observes session output in append order.
// Implementations must not call back into the session.
type EventSink interface {
	TranscriptAppended(entry domain.TranscriptEntry)
	DiagnosticLogged(line string)
	StatusChanged(status domain.Status)
}
