package store

import (
	"testing"

	"github.com/tickerdesk/chatsync/pkg/chat"
)

func msg(id, sender, body string, at int64) chat.Message {
	return chat.Message{ID: id, ChannelID: "general", SenderID: sender, Body: body, CreatedAt: at}
}

func ids(msgs []chat.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestMerge_Idempotent(t *testing.T) {
	s := New(nil)
	batch := []chat.Message{
		msg("a", "u1", "first", 1000),
		msg("b", "u2", "second", 2000),
	}

	if got := s.Merge("general", batch); len(got) != 2 {
		t.Fatalf("first merge accepted %d, want 2", len(got))
	}
	if got := s.Merge("general", batch); len(got) != 0 {
		t.Errorf("second merge accepted %d, want 0", len(got))
	}
	if s.Count("general") != 2 {
		t.Errorf("count = %d, want 2", s.Count("general"))
	}
}

func TestMerge_OrdersByCreatedAt(t *testing.T) {
	s := New(nil)
	s.Merge("general", []chat.Message{msg("c", "u1", "third", 3000)})
	s.Merge("general", []chat.Message{msg("a", "u1", "first", 1000)})
	s.Merge("general", []chat.Message{msg("b", "u1", "second", 2000)})

	got := ids(s.Messages("general"))
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestMerge_EqualTimestampsKeepArrivalOrder(t *testing.T) {
	s := New(nil)
	s.Merge("general", []chat.Message{msg("first-seen", "u1", "a", 5000)})
	s.Merge("general", []chat.Message{msg("second-seen", "u2", "b", 5000)})

	got := ids(s.Messages("general"))
	if got[0] != "first-seen" || got[1] != "second-seen" {
		t.Errorf("tie order = %v, want first-seen before second-seen", got)
	}
}

func TestMerge_BatchWithInternalDuplicates(t *testing.T) {
	s := New(nil)
	accepted := s.Merge("general", []chat.Message{
		msg("a", "u1", "hello", 1000),
		msg("a", "u1", "hello", 1000),
	})
	if len(accepted) != 1 {
		t.Errorf("accepted %d from self-duplicating batch, want 1", len(accepted))
	}
}

func TestMerge_SkipsEmptyID(t *testing.T) {
	s := New(nil)
	if got := s.Merge("general", []chat.Message{msg("", "u1", "x", 1000)}); len(got) != 0 {
		t.Errorf("empty-id message accepted")
	}
}

func TestReplace_SwapsInPlace(t *testing.T) {
	s := New(nil)
	prov := chat.NewProvisional("general", "me", "hi", nil)
	s.Merge("general", []chat.Message{prov})

	canonical := msg("srv-1", "me", "hi", prov.CreatedAt+50)
	if !s.Replace(prov.ID, canonical) {
		t.Fatal("Replace returned false")
	}

	msgs := s.Messages("general")
	if len(msgs) != 1 {
		t.Fatalf("count = %d, want 1", len(msgs))
	}
	if msgs[0].ID != "srv-1" || msgs[0].Provisional {
		t.Errorf("replacement wrong: %+v", msgs[0])
	}
}

func TestReplace_RetiredIDEchoIsDuplicate(t *testing.T) {
	s := New(nil)
	prov := chat.NewProvisional("general", "me", "hi", nil)
	s.Merge("general", []chat.Message{prov})
	s.Replace(prov.ID, msg("srv-1", "me", "hi", prov.CreatedAt))

	// A stale echo of the provisional id must collapse onto srv-1.
	echo := prov
	if got := s.Merge("general", []chat.Message{echo}); len(got) != 0 {
		t.Errorf("retired-id echo accepted: %v", ids(got))
	}
	if s.Count("general") != 1 {
		t.Errorf("count = %d, want 1", s.Count("general"))
	}
}

func TestReplace_CanonicalAlreadyDelivered(t *testing.T) {
	s := New(nil)
	prov := chat.NewProvisional("general", "me", "hi", nil)
	s.Merge("general", []chat.Message{prov})

	// Push lands the canonical copy before the write response returns. A far
	// timestamp keeps the heuristic from collapsing it, so both copies exist
	// when Replace runs.
	canonical := msg("srv-1", "me", "hi", prov.CreatedAt+10_000)
	s.Merge("general", []chat.Message{canonical})

	s.Replace(prov.ID, canonical)
	msgs := s.Messages("general")
	if len(msgs) != 1 || msgs[0].ID != "srv-1" {
		t.Errorf("expected single canonical entry, got %v", ids(msgs))
	}
}

func TestReplace_ProvisionalGone(t *testing.T) {
	s := New(nil)
	canonical := msg("srv-1", "me", "hi", 1000)
	if s.Replace("local:vanished", canonical) {
		t.Error("Replace should report the provisional missing")
	}
	if s.Count("general") != 1 {
		t.Error("canonical copy should still be inserted")
	}
}

func TestReplace_ReordersWhenTimestampMoves(t *testing.T) {
	s := New(nil)
	s.Merge("general", []chat.Message{msg("a", "u1", "early", 1000)})
	prov := chat.Message{ID: "local:x", ChannelID: "general", SenderID: "me", Body: "hi", CreatedAt: 500, Provisional: true}
	s.Merge("general", []chat.Message{prov})
	s.Merge("general", []chat.Message{msg("b", "u2", "late", 9000)})

	// Server clock places the canonical copy after "a".
	s.Replace("local:x", msg("srv-1", "me", "hi", 5000))

	got := ids(s.Messages("general"))
	want := []string{"a", "srv-1", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order after replace = %v, want %v", got, want)
		}
	}
}

func TestMarkFailed(t *testing.T) {
	s := New(nil)
	prov := chat.NewProvisional("general", "me", "hi", nil)
	s.Merge("general", []chat.Message{prov})

	if !s.MarkFailed(prov.ID) {
		t.Fatal("MarkFailed returned false")
	}
	msgs := s.Messages("general")
	if !msgs[0].Failed {
		t.Error("failed flag not set")
	}
	if len(msgs) != 1 {
		t.Error("failed message should stay visible")
	}
	if s.MarkFailed("nope") {
		t.Error("MarkFailed on unknown id should return false")
	}
}

func TestRemove(t *testing.T) {
	s := New(nil)
	s.Merge("general", []chat.Message{msg("a", "u1", "x", 1000)})
	if !s.Remove("a") {
		t.Fatal("Remove returned false")
	}
	if s.Count("general") != 0 {
		t.Error("message not removed")
	}
	if s.Remove("a") {
		t.Error("second Remove should return false")
	}
}

// The classic triple delivery: message "42" arrives via push, then again via
// the next poll sweep, then again from a cache seed. One visible copy.
func TestMerge_PushThenPollThenSeed(t *testing.T) {
	s := New(nil)
	m := msg("42", "u9", "the answer", 4200)

	s.Merge("general", []chat.Message{m})                           // push
	s.Merge("general", []chat.Message{m})                           // poll
	if got := s.Seed("general", []chat.Message{m}); len(got) != 0 { // cache
		t.Errorf("seed re-accepted: %v", ids(got))
	}
	if s.Count("general") != 1 {
		t.Errorf("count = %d, want exactly 1", s.Count("general"))
	}
}
