package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"companion/internal/domain"
	"companion/internal/ports"
)

type fakeConn struct {
	mu         sync.Mutex
	frames     chan string
	sent       []string
	sendErr    error
	waitErr    error
	closeCalls int
	closed     bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan string, 32)}
}

func (f *fakeConn) Send(frame string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("connection closed")
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, frame)
	return nil
}

func (f *fakeConn) Frames() <-chan string { return f.frames }

func (f *fakeConn) Wait() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waitErr
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	if !f.closed {
		f.closed = true
		close(f.frames)
	}
	return nil
}

func (f *fakeConn) failSends(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendErr = err
}

func (f *fakeConn) push(frame string) {
	f.frames <- frame
}

// drop simulates the server closing the socket.
func (f *fakeConn) drop(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waitErr = err
	if !f.closed {
		f.closed = true
		close(f.frames)
	}
}

func (f *fakeConn) sentFrames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeConn) closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls
}

type fakeDialer struct {
	mu      sync.Mutex
	conns   []*fakeConn
	err     error
	targets []ports.Target
}

func (f *fakeDialer) Dial(_ context.Context, target ports.Target) (ports.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targets = append(f.targets, target)
	if f.err != nil {
		return nil, f.err
	}
	index := len(f.targets) - 1
	if index >= len(f.conns) {
		return nil, errors.New("no connection configured")
	}
	return f.conns[index], nil
}

func (f *fakeDialer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.targets)
}

type fakeAudioSink struct {
	mu     sync.Mutex
	played []string
}

func (f *fakeAudioSink) Play(encoded string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.played = append(f.played, encoded)
}

func (f *fakeAudioSink) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.played...)
}

type registration struct {
	deviceID   string
	accountKey string
	raw        string
}

type fakeRegistrar struct {
	mu    sync.Mutex
	calls []registration
}

func (f *fakeRegistrar) Registered(deviceID string, accountKey string, raw string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, registration{deviceID: deviceID, accountKey: accountKey, raw: raw})
}

func (f *fakeRegistrar) snapshot() []registration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]registration(nil), f.calls...)
}

type fakeEncoder struct {
	uri     string
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeEncoder) Encode(ctx context.Context, _ ports.AudioClip) (string, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.uri, f.err
}

type fakeEventSink struct {
	mu       sync.Mutex
	entries  []domain.TranscriptEntry
	lines    []string
	statuses []domain.Status
}

func (f *fakeEventSink) TranscriptAppended(entry domain.TranscriptEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
}

func (f *fakeEventSink) DiagnosticLogged(line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, line)
}

func (f *fakeEventSink) StatusChanged(status domain.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
}

func (f *fakeEventSink) snapshotEntries() []domain.TranscriptEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.TranscriptEntry(nil), f.entries...)
}

type fixedPolicy struct {
	delay time.Duration
	max   int
}

func (p fixedPolicy) Next(attempt int) (time.Duration, bool) {
	if attempt > p.max {
		return 0, false
	}
	return p.delay, true
}

type harness struct {
	session   *Session
	dialer    *fakeDialer
	audio     *fakeAudioSink
	registrar *fakeRegistrar
	encoder   *fakeEncoder
	events    *fakeEventSink
}

func newHarness(conns ...*fakeConn) *harness {
	return newHarnessWithConfig(Config{}, conns...)
}

func newHarnessWithConfig(cfg Config, conns ...*fakeConn) *harness {
	h := &harness{
		dialer:    &fakeDialer{conns: conns},
		audio:     &fakeAudioSink{},
		registrar: &fakeRegistrar{},
		encoder:   &fakeEncoder{uri: "data:audio/wav;base64,UklGRg=="},
		events:    &fakeEventSink{},
	}
	h.session = NewSession(h.dialer, h.audio, h.registrar, h.encoder, h.events, zerolog.Nop(), cfg)
	return h
}

var (
	testTarget = ports.Target{URL: "wss://device.example/ws", DeviceID: "D1"}
	testCreds  = ports.Credentials{IMEI: "D1", AccountKey: "K1"}
)

func (h *harness) connect(t *testing.T, creds ports.Credentials) {
	t.Helper()
	require.NoError(t, h.session.Connect(context.Background(), testTarget, creds))
}

// authenticate connects with valid credentials and acknowledges the logon.
func (h *harness) authenticate(t *testing.T, conn *fakeConn) {
	t.Helper()
	h.connect(t, testCreds)
	conn.push(`{"type":"logon","data":"success"}`)
	eventually(t, func() bool { return h.session.Status().Authenticated })
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 2*time.Millisecond)
}

func logContains(lines []string, fragment string) bool {
	for _, line := range lines {
		if strings.Contains(line, fragment) {
			return true
		}
	}
	return false
}
