package audio

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion/internal/ports"
)

// minimalWAV is a 44-byte RIFF/WAVE header with no samples.
var minimalWAV = []byte{
	'R', 'I', 'F', 'F', 36, 0, 0, 0, 'W', 'A', 'V', 'E',
	'f', 'm', 't', ' ', 16, 0, 0, 0, 1, 0, 1, 0,
	0x80, 0x3e, 0, 0, 0, 0x7d, 0, 0, 2, 0, 16, 0,
	'd', 'a', 't', 'a', 0, 0, 0, 0,
}

func TestEncodeUsesDeclaredMIME(t *testing.T) {
	t.Parallel()

	uri, err := NewDataURIEncoder().Encode(context.Background(), ports.AudioClip{MIMEType: "audio/x-wav", Data: []byte("abc")})
	require.NoError(t, err)
	assert.Equal(t, "data:audio/wav;base64,YWJj", uri)
}

func TestEncodeSniffsWAV(t *testing.T) {
	t.Parallel()

	uri, err := NewDataURIEncoder().Encode(context.Background(), ports.AudioClip{Data: minimalWAV})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "data:audio/wav;base64,"), uri)
}

func TestEncodeSniffsNonWAV(t *testing.T) {
	t.Parallel()

	uri, err := NewDataURIEncoder().Encode(context.Background(), ports.AudioClip{Data: []byte("plain words")})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "data:text/plain;base64,"), uri)
}

func TestEncodeRejectsEmptyClip(t *testing.T) {
	t.Parallel()

	_, err := NewDataURIEncoder().Encode(context.Background(), ports.AudioClip{})
	require.Error(t, err)
}

func TestLoadClip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, os.WriteFile(path, minimalWAV, 0o600))

	clip, err := LoadClip(path)
	require.NoError(t, err)
	assert.Equal(t, "audio/wav", clip.MIMEType)
	assert.Equal(t, minimalWAV, clip.Data)

	_, err = LoadClip(filepath.Join(t.TempDir(), "missing.wav"))
	require.Error(t, err)
}

func TestDecodePayload(t *testing.T) {
	t.Parallel()

	data, err := decodePayload("YWJj")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)

	data, err = decodePayload("data:audio/wav;base64,YWJj")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)

	_, err = decodePayload("data:audio/wav;base64")
	require.Error(t, err)

	_, err = decodePayload("!!!")
	require.Error(t, err)
}

func TestFFPlaySinkPipesAudioToCommand(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "played.bin")
	script := writeScript(t, "player.sh", "#!/usr/bin/env bash\ncat >> '"+out+"'\n")

	sink := NewFFPlaySink(script, zerolog.Nop())
	sink.Play(base64.StdEncoding.EncodeToString([]byte("one")))
	sink.Play("data:audio/wav;base64," + base64.StdEncoding.EncodeToString([]byte("two")))
	sink.Play("not base64 at all!")
	require.NoError(t, sink.Close())

	played, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "onetwo", string(played))

	sink.Play("YWJj")
}

func TestFFPlaySinkSurvivesCommandFailure(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "fail.sh", "#!/usr/bin/env bash\necho 'boom' 1>&2\nexit 1\n")
	sink := NewFFPlaySink(script, zerolog.Nop())
	sink.Play("YWJj")

	done := make(chan struct{})
	go func() {
		_ = sink.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sink did not drain after failure")
	}
}

func TestNormalizeMIME(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "audio/wav", normalizeMIME(" Audio/Wave "))
	assert.Equal(t, "text/plain", normalizeMIME("text/plain; charset=utf-8"))
	assert.Equal(t, "", normalizeMIME(""))
}

func writeScript(t *testing.T, name string, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o700))
	return path
}
