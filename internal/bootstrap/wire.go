package bootstrap

import (
	"github.com/rs/zerolog"

	"companion/internal/audio"
	"companion/internal/config"
	"companion/internal/ports"
	"companion/internal/transport/ws"
	"companion/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Session  *usecase.Session
	Config   config.Config
	Target   ports.Target
	Creds    ports.Credentials
	Playback *audio.FFPlaySink
}

// Close releases background workers owned by the graph.
func (s Services) Close() error {
	s.Session.Close()
	if s.Playback != nil {
		return s.Playback.Close()
	}
	return nil
}

// Build wires all backend dependencies for the given configuration.
func Build(cfg config.Config, eventSink ports.EventSink, registrar ports.RegistrationHandler, logger zerolog.Logger) Services {
	var sink ports.AudioSink
	var playback *audio.FFPlaySink
	if cfg.Audio.Playback {
		playback = audio.NewFFPlaySink(cfg.Audio.PlayerCommand, logger)
		sink = playback
	}

	var policy usecase.ReconnectPolicy = usecase.NoReconnect{}
	if cfg.Reconnect.MaxAttempts > 0 {
		policy = usecase.ExponentialBackoff{
			Initial:     cfg.Reconnect.InitialDelay(),
			Max:         cfg.Reconnect.MaxDelay(),
			Multiplier:  2,
			Jitter:      cfg.Reconnect.Jitter,
			MaxAttempts: cfg.Reconnect.MaxAttempts,
		}
	}

	session := usecase.NewSession(
		ws.NewDialer(ws.Config{
			HandshakeTimeout: cfg.Transport.HandshakeTimeout(),
			PingInterval:     cfg.Transport.PingInterval(),
			WriteTimeout:     cfg.Transport.WriteTimeout(),
		}, logger),
		sink,
		registrar,
		audio.NewDataURIEncoder(),
		eventSink,
		logger,
		usecase.Config{Reconnect: policy},
	)

	return Services{
		Session:  session,
		Config:   cfg,
		Target:   ports.Target{URL: cfg.Server.URL, DeviceID: cfg.DeviceID()},
		Creds:    ports.Credentials{IMEI: cfg.Credentials.IMEI, AccountKey: cfg.Credentials.AccountKey},
		Playback: playback,
	}
}
