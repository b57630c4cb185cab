package main

import (
	"bufio"
	"context"
	"io"
	"strings"

	"companion/internal/audio"
	"companion/internal/domain"
	"companion/internal/ports"
)

// companionSession is the slice of usecase.Session the prompt drives.
type companionSession interface {
	Logon() bool
	SendText(text string) bool
	PushToTalk(active bool, image string) bool
	SendAudio(ctx context.Context, clip ports.AudioClip) bool
	Register(code string) bool
	SendRaw(text string) bool
	StopMeeting() bool
	Status() domain.Status
	Transcript() []domain.TranscriptEntry
	DiagnosticLog() []string
}

const helpText = `Type a message and press enter to send it. Commands:
  /ptt on|off [image]   toggle push-to-talk, optionally attaching an image URL
  /audio <file>         upload a WAV clip
  /register <code>      relay a registration code
  /raw <text>           send a frame verbatim
  /stop-meeting         end the current meeting
  /logon                retry logon with the configured credentials
  /transcript           show the transcript
  /log                  show the diagnostic log
  /status               show connection state
  /quit                 disconnect and exit`

type prompt struct {
	session  companionSession
	console  *console
	loadClip func(path string) (ports.AudioClip, error)
}

func newPrompt(session companionSession, out *console) *prompt {
	return &prompt{session: session, console: out, loadClip: audio.LoadClip}
}

// run reads lines from in until EOF, /quit, or ctx is done.
func (p *prompt) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if p.handle(ctx, line) {
				return nil
			}
		}
	}
}

// handle executes one input line and reports whether the prompt should exit.
func (p *prompt) handle(ctx context.Context, line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if !strings.HasPrefix(trimmed, "/") {
		p.report(p.session.SendText(trimmed), "message not sent: not logged on")
		return false
	}

	name, rest, _ := strings.Cut(trimmed, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(name) {
	case "/quit", "/exit":
		return true
	case "/help":
		p.console.println(helpText)
	case "/ptt":
		p.pushToTalk(rest)
	case "/audio":
		p.sendAudio(ctx, rest)
	case "/register":
		if rest == "" {
			p.console.println("usage: /register <code>")
			return false
		}
		p.report(p.session.Register(rest), "registration not sent: requires a connection that is not logged on")
	case "/raw":
		if rest == "" {
			p.console.println("usage: /raw <text>")
			return false
		}
		p.report(p.session.SendRaw(rest), "raw frame not sent: not connected")
	case "/stop-meeting":
		p.report(p.session.StopMeeting(), "meeting stop not sent: not logged on")
	case "/logon":
		p.report(p.session.Logon(), "logon not sent: requires a connection that is not logged on and credentials")
	case "/transcript":
		p.console.println(renderTranscript(p.session.Transcript()))
	case "/log":
		lines := p.session.DiagnosticLog()
		if len(lines) == 0 {
			p.console.println("Diagnostic log is empty")
			return false
		}
		p.console.println(strings.Join(lines, "\n"))
	case "/status":
		p.console.println(renderStatus(p.session.Status()))
	default:
		p.console.printf("unknown command %s (try /help)\n", name)
	}
	return false
}

func (p *prompt) pushToTalk(args string) {
	state, image, _ := strings.Cut(args, " ")
	var active bool
	switch strings.ToLower(state) {
	case "on":
		active = true
	case "off":
	default:
		p.console.println("usage: /ptt on|off [image]")
		return
	}
	p.report(p.session.PushToTalk(active, strings.TrimSpace(image)), "push-to-talk not sent: not logged on")
}

func (p *prompt) sendAudio(ctx context.Context, path string) {
	if path == "" {
		p.console.println("usage: /audio <file>")
		return
	}
	clip, err := p.loadClip(path)
	if err != nil {
		p.console.printf("audio not sent: %v\n", err)
		return
	}
	p.report(p.session.SendAudio(ctx, clip), "audio not sent: not logged on or not a WAV clip")
}

func (p *prompt) report(ok bool, failure string) {
	if !ok {
		p.console.println(failure)
	}
}
