package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tickerdesk/chatsync/pkg/chat"
)

func TestFetchRecent_NormalizesVariants(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/channels/general/messages/recent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"a","channel_id":"general","sender_id":"u1","body":"snake","created_at":1700000000000},
			{"messageId":"b","channelId":"general","senderId":"u2","content":"camel","createdAt":1700000000},
			{"body":"dropped, no identity"}
		]`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "")
	if err != nil {
		t.Fatal(err)
	}
	msgs, err := c.FetchRecent(context.Background(), "general")
	if err != nil {
		t.Fatalf("FetchRecent: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("normalized %d messages, want 2 (unparseable dropped)", len(msgs))
	}
	if msgs[0].Body != "snake" || msgs[1].Body != "camel" {
		t.Errorf("bodies = %q, %q", msgs[0].Body, msgs[1].Body)
	}
	if msgs[0].CreatedAt != msgs[1].CreatedAt {
		t.Errorf("second-epoch timestamp not scaled: %d vs %d", msgs[0].CreatedAt, msgs[1].CreatedAt)
	}
}

func TestWrite_ReturnsCanonical(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("auth header = %q", got)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding write body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"srv-9","channel_id":"general","sender_id":"u1","body":"hello","created_at":1700000000000}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "tok-1")
	if err != nil {
		t.Fatal(err)
	}
	m, err := c.Write(context.Background(), "general", "hello", nil)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if m.ID != "srv-9" || m.Provisional {
		t.Errorf("canonical = %+v", m)
	}
}

func TestWrite_ServerErrorIsDurableWriteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "")
	_, err := c.Write(context.Background(), "general", "hello", nil)
	if chat.CodeOf(err) != chat.CodeDurableWriteFailed {
		t.Errorf("error = %v, want DURABLE_WRITE_FAILED", err)
	}
}

func TestWrite_ConnectionRefusedIsDurableWriteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	c, _ := NewClient(srv.URL, "")
	_, err := c.Write(context.Background(), "general", "hello", nil)
	if chat.CodeOf(err) != chat.CodeDurableWriteFailed {
		t.Errorf("error = %v, want DURABLE_WRITE_FAILED", err)
	}
}

func TestListChannels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/channels" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"general","display_name":"General","access_level":"open"},
			{"id":"signals","display_name":"Signals","access_level":"premium","locked":true}
		]`))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "")
	channels, err := c.ListChannels(context.Background())
	if err != nil {
		t.Fatalf("ListChannels: %v", err)
	}
	if len(channels) != 2 {
		t.Fatalf("channels = %d, want 2", len(channels))
	}
	if channels[1].AccessLevel != chat.AccessPremium || !channels[1].Locked {
		t.Errorf("channel fields wrong: %+v", channels[1])
	}
}

func TestProbe(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if !healthy {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "")
	if err := c.Probe(context.Background()); err != nil {
		t.Errorf("healthy probe errored: %v", err)
	}
	healthy = false
	if err := c.Probe(context.Background()); err == nil {
		t.Error("unhealthy probe should error")
	}
}

func TestNewClient_InvalidURL(t *testing.T) {
	if _, err := NewClient("http://bad url with spaces", ""); err == nil {
		t.Error("invalid base URL should be rejected")
	}
}
