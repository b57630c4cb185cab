package domain

import "time"

// AuthState models the connection/authentication lifecycle of one session.
type AuthState string

const (
	AuthStateDisconnected   AuthState = "disconnected"
	AuthStateConnected      AuthState = "connected"
	AuthStateAuthenticating AuthState = "authenticating"
	AuthStateAuthenticated  AuthState = "authenticated"
)

// Origin identifies who produced a transcript entry.
type Origin string

const (
	OriginLocalUser Origin = "local-user"
	OriginRemote    Origin = "remote-device"
	OriginSystem    Origin = "system"
)

// PayloadKind identifies what a transcript entry carries.
type PayloadKind string

const (
	PayloadText  PayloadKind = "text"
	PayloadAudio PayloadKind = "audio"
	PayloadImage PayloadKind = "image"
)

// TranscriptEntry is one immutable record in the session transcript.
type TranscriptEntry struct {
	ID      string      `json:"id"`
	Seq     uint64      `json:"seq"`
	Origin  Origin      `json:"origin"`
	Kind    PayloadKind `json:"kind"`
	Content string      `json:"content"`
	At      time.Time   `json:"at"`
}

// Status summarizes the current session state.
type Status struct {
	State         AuthState `json:"state"`
	Connected     bool      `json:"connected"`
	Eligible      bool      `json:"eligible"`
	Authenticated bool      `json:"authenticated"`
	Target        string    `json:"target,omitempty"`
}
