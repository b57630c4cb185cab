package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"companion/internal/domain"
)

func TestConsoleFormatsEntries(t *testing.T) {
	var buf bytes.Buffer
	c := newConsole(&buf, false)

	at := time.Date(2026, 3, 4, 9, 8, 7, 0, time.UTC)
	c.TranscriptAppended(domain.TranscriptEntry{Origin: domain.OriginRemote, Kind: domain.PayloadText, Content: "hello", At: at})
	c.TranscriptAppended(domain.TranscriptEntry{Origin: domain.OriginLocalUser, Kind: domain.PayloadAudio, Content: "Push-to-talk pressed", At: at})

	assert.Equal(t, "[09:08:07] device: hello\n[09:08:07] you [audio]: Push-to-talk pressed\n", buf.String())
}

func TestConsoleDiagnosticsOnlyWhenVerbose(t *testing.T) {
	var quiet, loud bytes.Buffer
	newConsole(&quiet, false).DiagnosticLogged("connected to wss://x")
	newConsole(&loud, true).DiagnosticLogged("connected to wss://x")

	assert.Zero(t, quiet.Len())
	assert.Contains(t, loud.String(), "connected to wss://x")
}

func TestConsolePrintsStateTransitionsOnce(t *testing.T) {
	var buf bytes.Buffer
	c := newConsole(&buf, false)

	c.StatusChanged(domain.Status{State: domain.AuthStateConnected})
	c.StatusChanged(domain.Status{State: domain.AuthStateConnected, Eligible: true})
	c.StatusChanged(domain.Status{State: domain.AuthStateAuthenticated})

	assert.Equal(t, "-- Connected; not logged on\n-- Logged on\n", buf.String())
}

func TestConsoleRegisteredKeepsLatestAndHidesKey(t *testing.T) {
	var buf bytes.Buffer
	c := newConsole(&buf, false)

	c.Registered("D2", "K2", `{"imei":"D2","accountKey":"K2"}`)
	c.Registered("D3", "K3", `{"imei":"D3","accountKey":"K3"}`)

	reg := <-c.registrations()
	assert.Equal(t, "D3", reg.deviceID)
	assert.Equal(t, "K3", reg.accountKey)
	assert.NotContains(t, buf.String(), "K2")
	assert.NotContains(t, buf.String(), "K3")
}

func TestStateMessage(t *testing.T) {
	cases := map[domain.AuthState]string{
		domain.AuthStateDisconnected:   "Disconnected",
		domain.AuthStateConnected:      "Connected; not logged on",
		domain.AuthStateAuthenticating: "Logging on...",
		domain.AuthStateAuthenticated:  "Logged on",
		domain.AuthState("weird"):      "weird",
	}
	for state, want := range cases {
		assert.Equal(t, want, stateMessage(state), "state %q", state)
	}
}

func TestRenderTranscriptEmpty(t *testing.T) {
	assert.Equal(t, "Transcript is empty", renderTranscript(nil))
}

func TestRenderTranscriptRows(t *testing.T) {
	out := renderTranscript([]domain.TranscriptEntry{
		{Seq: 12, Origin: domain.OriginRemote, Kind: domain.PayloadImage, Content: "img://1\nimg://2", At: time.Date(2026, 1, 2, 10, 0, 5, 0, time.UTC)},
		{Seq: 11, Origin: domain.OriginLocalUser, Kind: domain.PayloadText, Content: "hi", At: time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)},
	})

	for _, fragment := range []string{"Content", "12", "10:00:05", "img://1 | img://2", "device", "hi"} {
		assert.Contains(t, out, fragment)
	}
	assert.NotContains(t, out, "img://1\nimg://2", "image parts stay on one row")
}

func TestRenderStatusRows(t *testing.T) {
	out := renderStatus(domain.Status{State: domain.AuthStateConnected, Connected: true, Eligible: true})

	for _, fragment := range []string{"Connected; not logged on", "Logon eligible", "yes", "Authenticated", "no"} {
		assert.Contains(t, out, fragment)
	}
	assert.Contains(t, out, "Target")
	assert.NotContains(t, renderStatus(domain.Status{Target: "wss://device.example/ws"}), "│ -")
}
