// Package wire implements the {type, data} envelope carried in text frames.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Envelope type tags.
const (
	TypeLogon    = "logon"
	TypeMessage  = "message"
	TypePTT      = "ptt"
	TypeAudio    = "audio"
	TypeRegister = "register"
	TypeLong     = "long"
	TypeMeeting  = "meeting"
)

// LogonSuccess is the acknowledgment payload that marks a successful logon.
const LogonSuccess = "success"

var ErrMissingType = errors.New("envelope has no type")

// Envelope is the wire unit. Data stays raw until a handler decodes it
// for its declared type.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Encode serializes an envelope with the given type and payload.
func Encode(typ string, data any) (string, error) {
	if strings.TrimSpace(typ) == "" {
		return "", ErrMissingType
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s payload: %w", typ, err)
	}
	frame, err := json.Marshal(Envelope{Type: typ, Data: raw})
	if err != nil {
		return "", fmt.Errorf("failed to encode %s envelope: %w", typ, err)
	}
	return string(frame), nil
}

// Decode parses one text frame into an envelope.
func Decode(frame string) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(frame), &env); err != nil {
		return Envelope{}, fmt.Errorf("invalid envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, ErrMissingType
	}
	if len(env.Data) == 0 {
		env.Data = json.RawMessage("null")
	}
	return env, nil
}

// DecodeData unmarshals the envelope payload into out.
func (e Envelope) DecodeData(out any) error {
	if err := json.Unmarshal(e.Data, out); err != nil {
		return fmt.Errorf("malformed %s payload: %w", e.Type, err)
	}
	return nil
}

// CompactData returns the payload as compact JSON text.
func (e Envelope) CompactData() string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, e.Data); err != nil {
		return string(e.Data)
	}
	return buf.String()
}
