package audio

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/wailsapp/mimetype"

	"companion/internal/ports"
)

var wavAliases = map[string]string{
	"audio/x-wav":    "audio/wav",
	"audio/wave":     "audio/wav",
	"audio/vnd.wave": "audio/wav",
}

// DataURIEncoder implements ports.AudioEncoder. Clips without a declared
// MIME type are sniffed from their leading bytes.
type DataURIEncoder struct{}

func NewDataURIEncoder() *DataURIEncoder {
	return &DataURIEncoder{}
}

func (e *DataURIEncoder) Encode(ctx context.Context, clip ports.AudioClip) (string, error) {
	if len(clip.Data) == 0 {
		return "", errors.New("audio clip is empty")
	}

	result := make(chan string, 1)
	go func() {
		mime := normalizeMIME(clip.MIMEType)
		if mime == "" {
			mime = normalizeMIME(mimetype.Detect(clip.Data).String())
		}
		result <- "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(clip.Data)
	}()

	select {
	case uri := <-result:
		return uri, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// LoadClip reads an audio file from disk.
func LoadClip(path string) (ports.AudioClip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ports.AudioClip{}, fmt.Errorf("failed to read audio file %q: %w", path, err)
	}
	return ports.AudioClip{
		MIMEType: normalizeMIME(mimetype.Detect(data).String()),
		Data:     data,
	}, nil
}

func normalizeMIME(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if i := strings.IndexByte(value, ';'); i >= 0 {
		value = strings.TrimSpace(value[:i])
	}
	if alias, ok := wavAliases[value]; ok {
		return alias
	}
	return value
}

// decodePayload accepts bare base64 or a base64 data URI.
func decodePayload(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if strings.HasPrefix(encoded, "data:") {
		comma := strings.IndexByte(encoded, ',')
		if comma < 0 {
			return nil, errors.New("data uri has no payload")
		}
		encoded = encoded[comma+1:]
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 audio: %w", err)
	}
	return data, nil
}
