package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion/internal/config"
	"companion/internal/domain"
)

func TestBuildWithoutPlayback(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Audio.Playback = false
	cfg.Server.URL = "wss://device.example/ws"
	cfg.Credentials = config.CredentialsConfig{IMEI: "D1", AccountKey: "K1"}

	services := Build(cfg, noopEventSink{}, nil, zerolog.Nop())
	require.NotNil(t, services.Session)
	assert.Nil(t, services.Playback)
	assert.Equal(t, "wss://device.example/ws", services.Target.URL)
	assert.Equal(t, "D1", services.Target.DeviceID, "device id falls back to the imei")
	assert.Equal(t, "D1", services.Creds.IMEI)
	assert.Equal(t, "K1", services.Creds.AccountKey)
	require.NoError(t, services.Close())
}

func TestBuildPrefersExplicitDeviceID(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Audio.Playback = false
	cfg.Server = config.ServerConfig{URL: "wss://device.example/ws", DeviceID: "D9"}
	cfg.Credentials = config.CredentialsConfig{IMEI: "D1", AccountKey: "K1"}

	services := Build(cfg, noopEventSink{}, nil, zerolog.Nop())
	defer services.Close()
	assert.Equal(t, "D9", services.Target.DeviceID)
}

func TestBuildConnectsAndAuthenticatesEndToEnd(t *testing.T) {
	t.Parallel()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("deviceId") != "D1" {
			http.Error(w, "missing device", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(payload) == `{"type":"logon","data":{"imei":"D1","accountKey":"K1"}}` {
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"logon","data":"success"}`))
			}
			if string(payload) == `{"type":"message","data":"hi"}` {
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"message","data":"hello back"}`))
			}
		}
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Audio.Playback = false
	cfg.Server = config.ServerConfig{URL: server.URL, DeviceID: "D1"}
	cfg.Credentials = config.CredentialsConfig{IMEI: "D1", AccountKey: "K1"}

	services := Build(cfg, noopEventSink{}, nil, zerolog.Nop())
	defer services.Close()

	require.NoError(t, services.Session.Connect(context.Background(), services.Target, services.Creds))
	waitFor(t, func() bool { return services.Session.Status().Authenticated })

	require.True(t, services.Session.SendText("hi"))
	waitFor(t, func() bool { return services.Session.Transcript()[0].Content == "hello back" })

	services.Session.Close()
	assert.Equal(t, domain.AuthStateDisconnected, services.Session.Status().State)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 3*time.Second, 5*time.Millisecond)
}

type noopEventSink struct{}

func (noopEventSink) TranscriptAppended(domain.TranscriptEntry) {}
func (noopEventSink) DiagnosticLogged(string)                   {}
func (noopEventSink) StatusChanged(domain.Status)               {}
