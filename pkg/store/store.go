// Package store holds the client-local message log: one ordered, append-only
// sequence per channel, merged idempotently from cache, push, poll, and
// optimistic sends.
//
// Every mutation and every dedup lookup happens under one mutex, so two
// racing deliveries can never both conclude "not a duplicate".
package store

import (
	"sort"
	"sync"

	"github.com/tickerdesk/chatsync/pkg/chat"
	"github.com/tickerdesk/chatsync/pkg/logger"
)

// Store is the per-channel message log.
type Store struct {
	mu       sync.Mutex
	channels map[string][]chat.Message
	// retired maps provisional ids to the canonical id that replaced them.
	// A retired id is never reused and any later delivery of it is a
	// duplicate of its canonical counterpart.
	retired map[string]string
	dedup   *DedupEngine
}

// New creates an empty store using the given dedup engine (nil for defaults).
func New(dedup *DedupEngine) *Store {
	if dedup == nil {
		dedup = NewDedupEngine(0)
	}
	return &Store{
		channels: make(map[string][]chat.Message),
		retired:  make(map[string]string),
		dedup:    dedup,
	}
}

// Seed loads a cached snapshot into a channel without touching the network.
// Semantically a merge: seeding twice, or seeding after live traffic, never
// duplicates anything.
func (s *Store) Seed(channelID string, cached []chat.Message) []chat.Message {
	return s.Merge(channelID, cached)
}

// Merge performs an idempotent union of incoming messages into the channel
// log and returns the messages that were actually inserted. Candidates are
// routed through the dedup engine one at a time, under the store lock, so a
// batch containing its own duplicates collapses too.
func (s *Store) Merge(channelID string, incoming []chat.Message) []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	var accepted []chat.Message
	for _, m := range incoming {
		if m.ID == "" {
			continue
		}
		m.ChannelID = channelID
		m = s.resolveRetired(m)
		if s.dedup.IsDuplicate(s.channels[channelID], m) {
			continue
		}
		s.insertLocked(channelID, m)
		accepted = append(accepted, m)
	}
	return accepted
}

// Replace swaps a provisional entry for its canonical counterpart, keeping
// its position unless the canonical timestamp demands reordering. The
// provisional id is retired permanently.
func (s *Store) Replace(provisionalID string, canonical chat.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	canonical.Provisional = false
	canonical.Failed = false
	s.retired[provisionalID] = canonical.ID

	msgs := s.channels[canonical.ChannelID]
	idx := indexOf(msgs, provisionalID)

	// A push or poll delivery may have landed the canonical copy first.
	if dup := indexOf(msgs, canonical.ID); dup >= 0 {
		if idx >= 0 {
			s.channels[canonical.ChannelID] = append(msgs[:idx], msgs[idx+1:]...)
		}
		return true
	}

	if idx < 0 {
		// Provisional already gone (moderation, reload). The write
		// persisted, so the canonical copy still becomes visible.
		s.insertLocked(canonical.ChannelID, canonical)
		return false
	}

	msgs[idx] = canonical
	if !orderedAt(msgs, idx) {
		msgs = append(msgs[:idx], msgs[idx+1:]...)
		s.channels[canonical.ChannelID] = msgs
		s.insertLocked(canonical.ChannelID, canonical)
	}
	return true
}

// Remove deletes a message by id, for external moderation actions.
func (s *Store) Remove(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for channelID, msgs := range s.channels {
		if idx := indexOf(msgs, messageID); idx >= 0 {
			s.channels[channelID] = append(msgs[:idx], msgs[idx+1:]...)
			return true
		}
	}
	return false
}

// MarkFailed flags a message (normally a provisional one whose durable write
// failed) without hiding it.
func (s *Store) MarkFailed(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for channelID, msgs := range s.channels {
		if idx := indexOf(msgs, messageID); idx >= 0 {
			s.channels[channelID][idx].Failed = true
			return true
		}
	}
	logger.WarnCF("store", "mark failed: message not found", map[string]any{"id": messageID})
	return false
}

// Messages returns a copy of the channel log in visible order.
func (s *Store) Messages(channelID string) []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.channels[channelID]
	out := make([]chat.Message, len(msgs))
	copy(out, msgs)
	return out
}

// Count returns the number of visible messages in a channel.
func (s *Store) Count(channelID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.channels[channelID])
}

// resolveRetired rewrites a retired provisional id to its canonical id so
// tier-1 dedup catches stale echoes of already-reconciled sends.
func (s *Store) resolveRetired(m chat.Message) chat.Message {
	if canonical, ok := s.retired[m.ID]; ok {
		m.ID = canonical
		m.Provisional = false
	}
	return m
}

// insertLocked places m at its sorted position: created-at ascending, ties
// broken by arrival order (first seen keeps the earlier slot).
func (s *Store) insertLocked(channelID string, m chat.Message) {
	msgs := s.channels[channelID]
	idx := sort.Search(len(msgs), func(i int) bool {
		return msgs[i].CreatedAt > m.CreatedAt
	})
	msgs = append(msgs, chat.Message{})
	copy(msgs[idx+1:], msgs[idx:])
	msgs[idx] = m
	s.channels[channelID] = msgs
}

func indexOf(msgs []chat.Message, id string) int {
	for i := range msgs {
		if msgs[i].ID == id {
			return i
		}
	}
	return -1
}

// orderedAt reports whether the entry at idx respects created-at ordering
// with both neighbors.
func orderedAt(msgs []chat.Message, idx int) bool {
	if idx > 0 && msgs[idx-1].CreatedAt > msgs[idx].CreatedAt {
		return false
	}
	if idx < len(msgs)-1 && msgs[idx+1].CreatedAt < msgs[idx].CreatedAt {
		return false
	}
	return true
}
