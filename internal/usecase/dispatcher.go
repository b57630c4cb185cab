package usecase

import (
	"fmt"

	"companion/internal/domain"
	"companion/internal/wire"
)

// dispatchLocked routes one inbound frame by its type tag. It returns an
// optional collaborator call that must run after mu is released.
func (s *Session) dispatchLocked(frame string) (effect func()) {
	env, err := wire.Decode(frame)
	if err != nil {
		s.logLocked(fmt.Sprintf("malformed envelope: %v", err))
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			s.logLocked(fmt.Sprintf("malformed %s envelope: %v", env.Type, r))
			effect = nil
		}
	}()

	switch env.Type {
	case wire.TypeLogon:
		s.handleLogonAckLocked(env)
	case wire.TypeMessage:
		return s.handleMessageLocked(env)
	case wire.TypePTT:
		return s.handlePTTLocked(env)
	case wire.TypeAudio:
		return s.handleAudioLocked(env)
	case wire.TypeRegister:
		return s.handleRegisterLocked(env)
	case wire.TypeLong:
		return s.handleLongLocked(env)
	case wire.TypeMeeting:
		return s.handleMeetingLocked(env)
	default:
		s.logLocked(fmt.Sprintf("unknown message type %q: %s", env.Type, env.CompactData()))
	}
	return nil
}

func (s *Session) handleLogonAckLocked(env wire.Envelope) {
	var result string
	decodeErr := env.DecodeData(&result)

	s.authenticating = false
	switch {
	case decodeErr != nil:
		s.logLocked(fmt.Sprintf("logon failed: %v", decodeErr))
	case result == wire.LogonSuccess:
		s.authenticated = true
		s.eligible = false
		s.logLocked("logon succeeded")
	default:
		s.logLocked(fmt.Sprintf("logon failed: %s", env.CompactData()))
	}
	s.statusChangedLocked()
}

func (s *Session) handleMessageLocked(env wire.Envelope) func() {
	var text string
	if !s.decodeLocked(env, &text) {
		return nil
	}
	s.entryLocked(domain.OriginRemote, domain.PayloadText, text)
	s.logLocked(fmt.Sprintf("message received (%d bytes)", len(text)))
	return nil
}

func (s *Session) handlePTTLocked(env wire.Envelope) func() {
	var payload wire.PTTPayload
	if !s.decodeLocked(env, &payload) {
		return nil
	}
	content := "Push-to-talk released"
	if payload.Active {
		content = "Push-to-talk pressed"
	}
	s.entryLocked(domain.OriginLocalUser, domain.PayloadAudio, content)
	s.logLocked(fmt.Sprintf("push-to-talk echo active=%t", payload.Active))
	return nil
}

func (s *Session) handleAudioLocked(env wire.Envelope) func() {
	var payload wire.AudioPayload
	if !s.decodeLocked(env, &payload) {
		return nil
	}
	if err := payload.Validate(); err != nil {
		s.logLocked(fmt.Sprintf("malformed audio envelope: %v", err))
		return nil
	}
	s.logLocked(fmt.Sprintf("audio received (%d bytes encoded)", len(payload.Audio)))

	sink := s.audio
	return func() { sink.Play(payload.Audio) }
}

func (s *Session) handleRegisterLocked(env wire.Envelope) func() {
	var ack wire.RegisterAck
	if !s.decodeLocked(env, &ack) {
		return nil
	}
	if ack.IMEI == "" || ack.AccountKey == "" {
		s.logLocked("malformed register envelope: missing imei or accountKey")
		return nil
	}
	raw := env.CompactData()
	s.logLocked(fmt.Sprintf("registration acknowledged for device %s", ack.IMEI))

	registrar := s.registrar
	return func() { registrar.Registered(ack.IMEI, ack.AccountKey, raw) }
}

func (s *Session) handleLongLocked(env wire.Envelope) func() {
	var images wire.LongPayload
	if !s.decodeLocked(env, &images) {
		return nil
	}
	s.entryLocked(domain.OriginRemote, domain.PayloadImage, images.Joined())
	s.logLocked(fmt.Sprintf("long image received (%d parts)", len(images)))
	return nil
}

func (s *Session) handleMeetingLocked(env wire.Envelope) func() {
	var payload wire.MeetingPayload
	if !s.decodeLocked(env, &payload) {
		return nil
	}
	if payload.Active {
		s.entryLocked(domain.OriginSystem, domain.PayloadText, "Meeting started")
	}
	s.logLocked(fmt.Sprintf("meeting active=%t", payload.Active))
	return nil
}

// decodeLocked decodes the payload for env's type, logging a malformed
// entry on failure. A null payload is malformed for every typed handler.
func (s *Session) decodeLocked(env wire.Envelope, out any) bool {
	if string(env.Data) == "null" {
		s.logLocked(fmt.Sprintf("malformed %s envelope: missing data", env.Type))
		return false
	}
	if err := env.DecodeData(out); err != nil {
		s.logLocked(err.Error())
		return false
	}
	return true
}
