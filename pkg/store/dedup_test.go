package store

import (
	"testing"

	"github.com/tickerdesk/chatsync/pkg/chat"
)

func TestIsDuplicate_ExactID(t *testing.T) {
	d := NewDedupEngine(0)
	existing := []chat.Message{msg("a", "u1", "hello", 1000)}

	if !d.IsDuplicate(existing, msg("a", "u2", "different body", 99_000)) {
		t.Error("exact id match should be a duplicate regardless of content")
	}
	if d.IsDuplicate(existing, msg("b", "u2", "different body", 99_000)) {
		t.Error("unrelated message flagged as duplicate")
	}
}

func TestIsDuplicate_HeuristicWindow(t *testing.T) {
	d := NewDedupEngine(3000)
	base := msg("a", "u1", "hello", 10_000)
	existing := []chat.Message{base}

	cases := []struct {
		name      string
		candidate chat.Message
		want      bool
	}{
		{"inside window", msg("b", "u1", "hello", 12_999), true},
		{"inside window before", msg("b", "u1", "hello", 7_001), true},
		{"at window boundary", msg("b", "u1", "hello", 13_000), false},
		{"different sender", msg("b", "u2", "hello", 10_001), false},
		{"different body", msg("b", "u1", "hello!", 10_001), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := d.IsDuplicate(existing, tc.candidate); got != tc.want {
				t.Errorf("IsDuplicate = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIsDuplicate_DifferentChannels(t *testing.T) {
	d := NewDedupEngine(3000)
	existing := []chat.Message{msg("a", "u1", "hello", 10_000)}
	candidate := msg("b", "u1", "hello", 10_001)
	candidate.ChannelID = "other"

	if d.IsDuplicate(existing, candidate) {
		t.Error("heuristic must not match across channels")
	}
}

func TestNewDedupEngine_DefaultWindow(t *testing.T) {
	if d := NewDedupEngine(0); d.WindowMs != DefaultDedupWindowMs {
		t.Errorf("default window = %d", d.WindowMs)
	}
	if d := NewDedupEngine(-5); d.WindowMs != DefaultDedupWindowMs {
		t.Errorf("negative window not defaulted: %d", d.WindowMs)
	}
	if d := NewDedupEngine(500); d.WindowMs != 500 {
		t.Errorf("explicit window = %d, want 500", d.WindowMs)
	}
}
