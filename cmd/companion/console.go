package main

import (
	"fmt"
	"io"
	"sync"

	"companion/internal/domain"
	"companion/internal/ports"
)

// registration is a credential pair issued by the server after a
// successful register exchange.
type registration struct {
	deviceID   string
	accountKey string
}

// console renders session events to the terminal. It also receives
// registration callbacks and hands them to the connect loop.
//
// The session invokes the event methods while holding its own lock, so
// console never calls back into the session.
type console struct {
	mu         sync.Mutex
	out        io.Writer
	verbose    bool
	lastState  domain.AuthState
	registered chan registration
	timeFormat string
}

func newConsole(out io.Writer, verbose bool) *console {
	return &console{
		out:        out,
		verbose:    verbose,
		lastState:  domain.AuthStateDisconnected,
		registered: make(chan registration, 1),
		timeFormat: "15:04:05",
	}
}

var (
	_ ports.EventSink           = (*console)(nil)
	_ ports.RegistrationHandler = (*console)(nil)
)

func (c *console) TranscriptAppended(entry domain.TranscriptEntry) {
	c.printf("[%s] %s\n", entry.At.Format(c.timeFormat), formatEntry(entry))
}

func (c *console) DiagnosticLogged(line string) {
	if !c.verbose {
		return
	}
	c.printf("  · %s\n", line)
}

func (c *console) StatusChanged(status domain.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if status.State == c.lastState {
		return
	}
	c.lastState = status.State
	fmt.Fprintf(c.out, "-- %s\n", stateMessage(status.State))
}

// Registered forwards new credentials without blocking the session. Only
// the most recent pair matters, so a pending one is replaced.
func (c *console) Registered(deviceID string, accountKey string, _ string) {
	c.printf("-- registered as device %s\n", deviceID)
	next := registration{deviceID: deviceID, accountKey: accountKey}
	for {
		select {
		case c.registered <- next:
			return
		default:
		}
		select {
		case <-c.registered:
		default:
		}
	}
}

func (c *console) registrations() <-chan registration {
	return c.registered
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *console) println(line string) {
	c.printf("%s\n", line)
}

func stateMessage(state domain.AuthState) string {
	switch state {
	case domain.AuthStateDisconnected:
		return "Disconnected"
	case domain.AuthStateConnected:
		return "Connected; not logged on"
	case domain.AuthStateAuthenticating:
		return "Logging on..."
	case domain.AuthStateAuthenticated:
		return "Logged on"
	default:
		return string(state)
	}
}

func originLabel(origin domain.Origin) string {
	switch origin {
	case domain.OriginLocalUser:
		return "you"
	case domain.OriginRemote:
		return "device"
	case domain.OriginSystem:
		return "system"
	default:
		return string(origin)
	}
}

func formatEntry(entry domain.TranscriptEntry) string {
	label := originLabel(entry.Origin)
	if entry.Kind != domain.PayloadText {
		label = fmt.Sprintf("%s [%s]", label, entry.Kind)
	}
	return fmt.Sprintf("%s: %s", label, entry.Content)
}
