package events

import (
	"context"
	"strconv"
	"strings"
	"sync"
)

const (
	streamHistoryLimit = 2048
	streamBuffer       = 32
)

// Update is one committed event as seen by stream subscribers.
type Update struct {
	Sequence   uint64
	Cursor     string
	Type       string
	Attributes map[string]string
}

func cloneUpdate(u Update) Update {
	out := u
	if u.Attributes != nil {
		out.Attributes = make(map[string]string, len(u.Attributes))
		for k, v := range u.Attributes {
			out.Attributes[k] = v
		}
	}
	return out
}

// Stream fans committed events out to live subscribers and keeps a bounded
// history so reconnecting clients can resume from a cursor. Slow subscribers
// drop updates rather than block the publisher.
type Stream struct {
	mu      sync.Mutex
	seq     uint64
	nextID  uint64
	subs    map[uint64]chan Update
	history []Update
}

func NewStream() *Stream {
	return &Stream{subs: make(map[uint64]chan Update)}
}

// Emit implements the Emitter interface.
func (s *Stream) Emit(evt Event) {
	if s == nil || evt == nil || evt.Event() == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	update := Update{
		Sequence:   s.seq,
		Cursor:     strconv.FormatUint(s.seq, 10),
		Type:       evt.EventType(),
		Attributes: evt.Event().Attributes,
	}
	update = cloneUpdate(update)
	s.history = append(s.history, update)
	if len(s.history) > streamHistoryLimit {
		excess := len(s.history) - streamHistoryLimit
		trimmed := make([]Update, streamHistoryLimit)
		copy(trimmed, s.history[excess:])
		s.history = trimmed
	}
	for _, ch := range s.subs {
		select {
		case ch <- cloneUpdate(update):
		default:
		}
	}
}

// Subscribe registers a subscriber for updates after cursor. The backlog holds
// retained updates already past the cursor. The channel closes when cancel is
// called or ctx ends.
func (s *Stream) Subscribe(ctx context.Context, cursor string) (<-chan Update, func(), []Update) {
	var since uint64
	if trimmed := strings.TrimSpace(cursor); trimmed != "" {
		if parsed, err := strconv.ParseUint(trimmed, 10, 64); err == nil {
			since = parsed
		}
	}
	updates := make(chan Update, streamBuffer)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = updates
	backlog := make([]Update, 0, len(s.history))
	if cursor != "" {
		for _, entry := range s.history {
			if entry.Sequence > since {
				backlog = append(backlog, cloneUpdate(entry))
			}
		}
	}
	s.mu.Unlock()

	var once sync.Once
	done := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			close(done)
			s.mu.Lock()
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub)
			}
			s.mu.Unlock()
		})
	}
	if ctx != nil {
		go func() {
			select {
			case <-ctx.Done():
				cancel()
			case <-done:
			}
		}()
	}
	return updates, cancel, backlog
}

// Subscribers reports the number of live subscriptions.
func (s *Stream) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
