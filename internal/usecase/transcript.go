package usecase

import (
	"time"

	"github.com/google/uuid"

	"companion/internal/domain"
)

// transcript holds entries in insertion order; readers see them newest-first.
// Entries are never mutated or removed.
type transcript struct {
	entries []domain.TranscriptEntry
	seq     uint64
	newID   func() string
	now     func() time.Time
}

func newTranscript() *transcript {
	return &transcript{newID: uuid.NewString, now: time.Now}
}

func (t *transcript) add(origin domain.Origin, kind domain.PayloadKind, content string) domain.TranscriptEntry {
	t.seq++
	entry := domain.TranscriptEntry{
		ID:      t.newID(),
		Seq:     t.seq,
		Origin:  origin,
		Kind:    kind,
		Content: content,
		At:      t.now(),
	}
	t.entries = append(t.entries, entry)
	return entry
}

func (t *transcript) newestFirst() []domain.TranscriptEntry {
	out := make([]domain.TranscriptEntry, len(t.entries))
	for i, entry := range t.entries {
		out[len(t.entries)-1-i] = entry
	}
	return out
}

// diagnosticLog is an append-only, oldest-first narration of protocol events.
type diagnosticLog struct {
	lines []string
}

func (l *diagnosticLog) add(line string) {
	l.lines = append(l.lines, line)
}

func (l *diagnosticLog) snapshot() []string {
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}
