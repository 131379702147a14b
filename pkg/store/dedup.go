package store

import "github.com/tickerdesk/chatsync/pkg/chat"

// DefaultDedupWindowMs is the heuristic-match window. The same logical
// message can arrive via optimistic apply, push, and poll; its copies carry
// different ids until reconciliation, so an id check alone is not enough.
const DefaultDedupWindowMs = 3000

// DedupEngine decides whether a candidate message duplicates one already in
// a channel log.
type DedupEngine struct {
	// WindowMs bounds the timestamp distance for the heuristic match.
	WindowMs int64
}

// NewDedupEngine returns an engine with the given window, or the default
// when windowMs <= 0.
func NewDedupEngine(windowMs int64) *DedupEngine {
	if windowMs <= 0 {
		windowMs = DefaultDedupWindowMs
	}
	return &DedupEngine{WindowMs: windowMs}
}

// IsDuplicate runs the two-tier check:
//
//  1. exact id match against any existing message
//  2. heuristic: same channel, same sender, identical body, timestamps
//     within the window
//
// Callers must resolve retired provisional ids to their canonical ids
// before calling, so tier 1 also catches stale provisional echoes.
func (d *DedupEngine) IsDuplicate(existing []chat.Message, candidate chat.Message) bool {
	for i := range existing {
		if existing[i].ID == candidate.ID {
			return true
		}
	}
	for i := range existing {
		m := &existing[i]
		if m.ChannelID != candidate.ChannelID || m.SenderID != candidate.SenderID {
			continue
		}
		if m.Body != candidate.Body {
			continue
		}
		delta := candidate.CreatedAt - m.CreatedAt
		if delta < 0 {
			delta = -delta
		}
		if delta < d.WindowMs {
			return true
		}
	}
	return false
}
