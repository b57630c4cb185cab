package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"companion/internal/domain"
	"companion/internal/ports"
)

// Config controls session behavior.
type Config struct {
	Reconnect ReconnectPolicy
}

// Session owns exactly one device connection at a time together with its
// authentication state, transcript and diagnostic log. All state changes
// are serialized by mu, so inbound frames and outbound commands apply in
// the order they are observed.
type Session struct {
	dialer    ports.Dialer
	audio     ports.AudioSink
	registrar ports.RegistrationHandler
	encoder   ports.AudioEncoder
	events    ports.EventSink
	logger    zerolog.Logger
	reconnect ReconnectPolicy

	mu             sync.Mutex
	target         ports.Target
	creds          ports.Credentials
	current        *activeConn
	generation     uint64
	attempts       int
	eligible       bool
	authenticating bool
	authenticated  bool
	transcript     *transcript
	log            diagnosticLog

	// reconnectStop cancels the pending reconnect timer, if any.
	reconnectStop chan struct{}
	reconnects    sync.WaitGroup
}

type activeConn struct {
	conn          ports.Connection
	generation    uint64
	autoLogonDone bool
}

func NewSession(
	dialer ports.Dialer,
	audio ports.AudioSink,
	registrar ports.RegistrationHandler,
	encoder ports.AudioEncoder,
	events ports.EventSink,
	logger zerolog.Logger,
	cfg Config,
) *Session {
	if audio == nil {
		audio = discardAudio{}
	}
	if registrar == nil {
		registrar = ignoreRegistration{}
	}
	if events == nil {
		events = discardEvents{}
	}
	if cfg.Reconnect == nil {
		cfg.Reconnect = NoReconnect{}
	}
	return &Session{
		dialer:     dialer,
		audio:      audio,
		registrar:  registrar,
		encoder:    encoder,
		events:     events,
		logger:     logger.With().Str("component", "session").Logger(),
		reconnect:  cfg.Reconnect,
		transcript: newTranscript(),
	}
}

// Connect tears down any existing connection and opens a new one to target.
// An empty target URL leaves the session idle. Dial failures are recorded
// in the transcript and log before being returned.
func (s *Session) Connect(ctx context.Context, target ports.Target, creds ports.Credentials) error {
	s.mu.Lock()
	s.teardownLocked()
	s.stopReconnectLocked()
	s.generation++
	gen := s.generation
	s.target = target
	s.creds = creds
	s.attempts = 0
	s.mu.Unlock()

	if strings.TrimSpace(target.URL) == "" {
		s.logger.Debug().Msg("no target configured; staying idle")
		return nil
	}
	return s.dial(ctx, gen)
}

// Close tears down the active connection, if any, and cancels pending
// reconnects. It returns once no reconnect goroutine is left running.
func (s *Session) Close() {
	s.mu.Lock()
	s.teardownLocked()
	s.stopReconnectLocked()
	s.generation++
	s.mu.Unlock()

	s.reconnects.Wait()
}

// Status returns a snapshot of the connection and authentication state.
func (s *Session) Status() domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

// Transcript returns the transcript newest-first.
func (s *Session) Transcript() []domain.TranscriptEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.newestFirst()
}

// DiagnosticLog returns the log oldest-first.
func (s *Session) DiagnosticLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.snapshot()
}

func (s *Session) dial(ctx context.Context, gen uint64) error {
	s.mu.Lock()
	target := s.target
	s.mu.Unlock()

	conn, err := s.dialer.Dial(ctx, target)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		if conn != nil {
			_ = conn.Close()
		}
		return nil
	}
	if err != nil {
		s.transportErrorLocked(err)
		s.scheduleReconnectLocked(gen)
		return fmt.Errorf("failed to connect to %s: %w", target.URL, err)
	}

	active := &activeConn{conn: conn, generation: gen}
	s.current = active
	s.attempts = 0
	s.openedLocked(active)

	go s.pump(active)
	return nil
}

func (s *Session) pump(active *activeConn) {
	for frame := range active.conn.Frames() {
		s.handleFrame(active, frame)
	}
	s.handleClosed(active, active.conn.Wait())
}

func (s *Session) handleFrame(active *activeConn, frame string) {
	s.mu.Lock()
	if s.current != active {
		s.mu.Unlock()
		return
	}
	effect := s.dispatchLocked(frame)
	s.mu.Unlock()

	if effect != nil {
		s.runCollaborator(effect)
	}
}

func (s *Session) runCollaborator(call func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("collaborator panicked")
		}
	}()
	call()
}

func (s *Session) handleClosed(active *activeConn, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != active {
		return
	}
	if err != nil {
		s.transportErrorLocked(err)
	}
	s.current = nil
	s.closedLocked()
	s.scheduleReconnectLocked(active.generation)
}

func (s *Session) openedLocked(active *activeConn) {
	s.eligible = true
	s.authenticated = false
	s.authenticating = false
	s.entryLocked(domain.OriginSystem, domain.PayloadText, "Connected")
	s.logLocked(fmt.Sprintf("connected to %s", s.target.URL))
	s.statusChangedLocked()

	if active.autoLogonDone {
		return
	}
	active.autoLogonDone = true
	s.logonLocked()
}

// teardownLocked closes the live socket before anything new may be opened.
func (s *Session) teardownLocked() {
	if s.current == nil {
		return
	}
	conn := s.current.conn
	s.current = nil
	if err := conn.Close(); err != nil {
		s.logger.Debug().Err(err).Msg("close returned error during teardown")
	}
	s.closedLocked()
}

func (s *Session) closedLocked() {
	s.eligible = false
	s.authenticated = false
	s.authenticating = false
	s.entryLocked(domain.OriginSystem, domain.PayloadText, "Disconnected")
	s.logLocked("disconnected")
	s.statusChangedLocked()
}

func (s *Session) transportErrorLocked(err error) {
	s.entryLocked(domain.OriginSystem, domain.PayloadText, "Error: "+err.Error())
	s.logLocked(fmt.Sprintf("transport error: %v", err))
}

func (s *Session) scheduleReconnectLocked(gen uint64) {
	s.attempts++
	delay, ok := s.reconnect.Next(s.attempts)
	if !ok {
		return
	}
	s.logLocked(fmt.Sprintf("reconnecting in %s (attempt %d)", delay.Round(time.Millisecond), s.attempts))

	s.stopReconnectLocked()
	stop := make(chan struct{})
	s.reconnectStop = stop

	s.reconnects.Add(1)
	go func() {
		defer s.reconnects.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-stop:
			return
		}

		s.mu.Lock()
		stale := gen != s.generation || s.current != nil
		s.mu.Unlock()
		if stale {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case <-stop:
				cancel()
			case <-ctx.Done():
			}
		}()
		if err := s.dial(ctx, gen); err != nil {
			s.logger.Debug().Err(err).Msg("reconnect attempt failed")
		}
	}()
}

func (s *Session) stopReconnectLocked() {
	if s.reconnectStop != nil {
		close(s.reconnectStop)
		s.reconnectStop = nil
	}
}

func (s *Session) statusLocked() domain.Status {
	status := domain.Status{
		State:         domain.AuthStateDisconnected,
		Connected:     s.current != nil,
		Eligible:      s.eligible,
		Authenticated: s.authenticated,
		Target:        s.target.URL,
	}
	switch {
	case s.current == nil:
	case s.authenticated:
		status.State = domain.AuthStateAuthenticated
	case s.authenticating:
		status.State = domain.AuthStateAuthenticating
	default:
		status.State = domain.AuthStateConnected
	}
	return status
}

func (s *Session) statusChangedLocked() {
	s.events.StatusChanged(s.statusLocked())
}

func (s *Session) entryLocked(origin domain.Origin, kind domain.PayloadKind, content string) {
	entry := s.transcript.add(origin, kind, content)
	s.events.TranscriptAppended(entry)
}

// logLocked appends to the diagnostic log. Callers pass text that is
// already free of credentials.
func (s *Session) logLocked(line string) {
	s.log.add(line)
	s.logger.Info().Msg(line)
	s.events.DiagnosticLogged(line)
}

type discardAudio struct{}

func (discardAudio) Play(string) {}

type ignoreRegistration struct{}

func (ignoreRegistration) Registered(string, string, string) {}

type discardEvents struct{}

func (discardEvents) TranscriptAppended(domain.TranscriptEntry) {}
func (discardEvents) DiagnosticLogged(string)                   {}
func (discardEvents) StatusChanged(domain.Status)               {}
