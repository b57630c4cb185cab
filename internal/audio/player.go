package audio

import (
	"bytes"
	"errors"
	"os/exec"
	"sync"

	"github.com/rs/zerolog"
)

// FFPlaySink plays audio through an ffplay-compatible command. Clips are
// queued and played one at a time so they never overlap.
type FFPlaySink struct {
	command string
	logger  zerolog.Logger

	queue chan []byte
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

func NewFFPlaySink(command string, logger zerolog.Logger) *FFPlaySink {
	if command == "" {
		command = "ffplay"
	}
	s := &FFPlaySink{
		command: command,
		logger:  logger.With().Str("component", "playback").Logger(),
		queue:   make(chan []byte, 16),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// Play decodes and enqueues one clip. It never blocks the caller.
func (s *FFPlaySink) Play(encoded string) {
	data, err := decodePayload(encoded)
	if err != nil {
		s.logger.Warn().Err(err).Msg("discarding undecodable audio")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.logger.Debug().Msg("playback closed; audio discarded")
		return
	}
	select {
	case s.queue <- data:
	default:
		s.logger.Warn().Int("bytes", len(data)).Msg("playback queue full; audio discarded")
	}
}

// Close stops accepting audio and waits for queued clips to finish.
func (s *FFPlaySink) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	<-s.done
	return nil
}

func (s *FFPlaySink) run() {
	defer close(s.done)
	for data := range s.queue {
		if err := s.playOne(data); err != nil {
			s.logger.Warn().Err(err).Msg("playback failed")
		}
	}
}

func (s *FFPlaySink) playOne(data []byte) error {
	args := []string{
		"-nodisp",
		"-autoexit",
		"-hide_banner",
		"-loglevel", "warning",
		"-i", "-",
	}

	cmd := exec.Command(s.command, args...)
	var stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if detail := stringsTrimSpaceSafe(stderr.String()); detail != "" {
			return errors.Join(err, errors.New(detail))
		}
		return err
	}
	return nil
}

func stringsTrimSpaceSafe(input string) string {
	if input == "" {
		return input
	}
	return string(bytes.TrimSpace([]byte(input)))
}
