package usecase

import (
	"context"
	"fmt"
	"strings"

	"companion/internal/domain"
	"companion/internal/ports"
	"companion/internal/wire"
)

// wavDataURIPrefix is the only audio format the server accepts.
const wavDataURIPrefix = "data:audio/wav"

// Logon sends the authentication envelope with the session credentials.
// It requires an open, eligible, unauthenticated connection.
func (s *Session) Logon() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logonLocked()
}

func (s *Session) logonLocked() bool {
	if s.current == nil || !s.eligible || s.authenticated {
		return false
	}
	if s.creds.IMEI == "" || s.creds.AccountKey == "" {
		s.logLocked("credentials not provided; skipping logon")
		return false
	}

	frame, err := wire.LogonCommand(s.creds.IMEI, s.creds.AccountKey)
	if err != nil || !s.sendLocked(wire.TypeLogon, frame) {
		return false
	}
	s.authenticating = true
	s.logLocked("sent logon " + wire.RedactedLogon())
	s.statusChangedLocked()
	return true
}

// SendText sends a chat message and records it as a local transcript entry.
func (s *Session) SendText(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.authenticatedLocked() {
		return false
	}

	frame, err := wire.MessageCommand(text)
	if err != nil || !s.sendLocked(wire.TypeMessage, frame) {
		return false
	}
	s.entryLocked(domain.OriginLocalUser, domain.PayloadText, text)
	s.logLocked(fmt.Sprintf("message sent (%d bytes)", len(text)))
	return true
}

// PushToTalk toggles push-to-talk. A non-empty image is recorded locally
// once the toggle carrying it has been sent.
func (s *Session) PushToTalk(active bool, image string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.authenticatedLocked() {
		return false
	}

	frame, err := wire.PTTCommand(active, image)
	if err != nil || !s.sendLocked(wire.TypePTT, frame) {
		return false
	}
	if image != "" {
		s.entryLocked(domain.OriginLocalUser, domain.PayloadImage, image)
	}
	s.logLocked(fmt.Sprintf("push-to-talk sent active=%t", active))
	return true
}

// SendAudio encodes clip as a data URI and uploads it. Encoding happens
// without holding the session lock; if the connection changed or closed
// meanwhile the upload is abandoned. Clips that do not encode to WAV are
// dropped without a diagnostic entry.
func (s *Session) SendAudio(ctx context.Context, clip ports.AudioClip) bool {
	s.mu.Lock()
	if !s.authenticatedLocked() || s.encoder == nil {
		s.mu.Unlock()
		return false
	}
	active := s.current
	s.mu.Unlock()

	uri, err := s.encoder.Encode(ctx, clip)
	if err != nil {
		s.logger.Warn().Err(err).Msg("audio encoding failed")
		return false
	}
	if !strings.HasPrefix(uri, wavDataURIPrefix) {
		s.logger.Warn().Str("prefix", uriPrefix(uri)).Msg("dropping audio that is not wav")
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != active || !s.authenticated {
		s.logger.Debug().Msg("connection changed while encoding audio; upload dropped")
		return false
	}

	frame, err := wire.AudioCommand(uri)
	if err != nil || !s.sendLocked(wire.TypeAudio, frame) {
		return false
	}
	s.logLocked(fmt.Sprintf("audio sent (%d bytes encoded)", len(uri)))
	return true
}

// Register relays a scanned registration code. It is only allowed before
// the device has authenticated.
func (s *Session) Register(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || !s.eligible || s.authenticated {
		return false
	}

	frame, err := wire.RegisterCommand(code)
	if err != nil || !s.sendLocked(wire.TypeRegister, frame) {
		return false
	}
	s.logLocked("registration code relayed")
	return true
}

// SendRaw writes text to the socket verbatim, regardless of auth state.
func (s *Session) SendRaw(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sendLocked("raw", text) {
		return false
	}
	s.logLocked(fmt.Sprintf("raw frame sent (%d bytes)", len(text)))
	return true
}

// StopMeeting tells the server the meeting has ended.
func (s *Session) StopMeeting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.authenticatedLocked() {
		return false
	}

	frame, err := wire.StopMeetingCommand()
	if err != nil || !s.sendLocked(wire.TypeMeeting, frame) {
		return false
	}
	s.logLocked("meeting stop sent")
	return true
}

func (s *Session) authenticatedLocked() bool {
	return s.current != nil && s.authenticated
}

// sendLocked writes one frame on the live connection. Send failures are
// recorded as transport errors; the close notification that follows
// performs the state reset.
func (s *Session) sendLocked(kind string, frame string) bool {
	if s.current == nil {
		return false
	}
	if err := s.current.conn.Send(frame); err != nil {
		s.transportErrorLocked(fmt.Errorf("send %s: %w", kind, err))
		return false
	}
	s.logger.Debug().Str("type", kind).Int("bytes", len(frame)).Msg("frame sent")
	return true
}

func uriPrefix(uri string) string {
	if i := strings.IndexByte(uri, ';'); i >= 0 {
		return uri[:i]
	}
	if len(uri) > 32 {
		return uri[:32]
	}
	return uri
}
