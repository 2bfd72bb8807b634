// Package transcript keeps the ordered log of finalized speech turns for a
// single call session.
package transcript

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerSystem    Speaker = "system"
	SpeakerAssistant Speaker = "assistant"
)

// ParseSpeaker maps a remote role onto a Speaker.
func ParseSpeaker(role string) (Speaker, error) {
	switch Speaker(role) {
	case SpeakerUser, SpeakerSystem, SpeakerAssistant:
		return Speaker(role), nil
	case "bot":
		// Some transports report the agent as "bot".
		return SpeakerAssistant, nil
	}
	return "", fmt.Errorf("unknown speaker role %q", role)
}

// Entry is a single finalized speech turn. Entries are values and are never
// changed after they are created.
type Entry struct {
	ID         string
	Speaker    Speaker
	Content    string
	ReceivedAt time.Time
}

func NewEntry(speaker Speaker, content string) Entry {
	return Entry{
		ID:         uuid.NewString(),
		Speaker:    speaker,
		Content:    content,
		ReceivedAt: time.Now(),
	}
}

// Transcript is an append-only ordered store of entries.
type Transcript struct {
	mu      sync.RWMutex
	entries []Entry
}

func New() *Transcript {
	return &Transcript{}
}

func (t *Transcript) Append(entry Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = append(t.entries, entry)
}

// Latest returns the most recently appended entry. The second return value
// is false when the transcript is empty.
func (t *Transcript) Latest() (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.entries) == 0 {
		return Entry{}, false
	}
	return t.entries[len(t.entries)-1], true
}

// All returns a point-in-time copy of every entry in insertion order.
func (t *Transcript) All() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return slices.Clone(t.entries)
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.entries)
}
