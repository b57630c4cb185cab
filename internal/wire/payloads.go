package wire

import (
	"encoding/json"
	"errors"
	"strings"
)

// LogonPayload is sent by the client to authenticate.
type LogonPayload struct {
	IMEI       string `json:"imei"`
	AccountKey string `json:"accountKey"`
}

// PTTPayload toggles push-to-talk, optionally carrying an image reference.
type PTTPayload struct {
	Active bool   `json:"active"`
	Image  string `json:"image,omitempty"`
}

// RegisterAck is the server's reply to a relayed registration code.
type RegisterAck struct {
	IMEI       string `json:"imei"`
	AccountKey string `json:"accountKey"`
}

// MeetingPayload signals meeting state. A bare boolean is accepted as
// shorthand for the active flag.
type MeetingPayload struct {
	Active bool `json:"active"`
}

func (p *MeetingPayload) UnmarshalJSON(data []byte) error {
	var bare bool
	if err := json.Unmarshal(data, &bare); err == nil {
		p.Active = bare
		return nil
	}
	type plain MeetingPayload
	var obj plain
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*p = MeetingPayload(obj)
	return nil
}

// AudioPayload carries base64 audio for playback. The server sends either
// a bare string or an object with an audio field.
type AudioPayload struct {
	Audio string `json:"audio"`
}

func (p *AudioPayload) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		p.Audio = bare
		return nil
	}
	type plain AudioPayload
	var obj plain
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*p = AudioPayload(obj)
	return nil
}

// LongPayload is an ordered list of image references.
type LongPayload []string

func (p LongPayload) Joined() string {
	return strings.Join(p, "\n")
}

var errEmptyAudio = errors.New("audio payload is empty")

// Validate reports whether the payload carries any audio.
func (p AudioPayload) Validate() error {
	if strings.TrimSpace(p.Audio) == "" {
		return errEmptyAudio
	}
	return nil
}
