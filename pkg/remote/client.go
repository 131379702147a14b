// Package remote is the HTTP client for the channel/message service: the
// durable write path, the poll fetch path, the session-start channel
// catalog, and the reachability probe used by the health monitor.
//
// The service assigns canonical ids and monotonically comparable timestamps;
// this client only normalizes its payloads, it never reorders them.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tickerdesk/chatsync/pkg/chat"
)

const defaultTimeout = 5 * time.Second

// Service is the interface the sync core consumes. The concrete Client
// below talks HTTP; tests substitute fakes.
type Service interface {
	FetchRecent(ctx context.Context, channelID string) ([]chat.Message, error)
	Write(ctx context.Context, channelID, body string, attachment *chat.Attachment) (chat.Message, error)
	ListChannels(ctx context.Context) ([]chat.Channel, error)
	Probe(ctx context.Context) error
}

// Client is the HTTP implementation of Service.
type Client struct {
	baseURL    *url.URL
	authToken  string
	httpClient *http.Client
}

// NewClient builds a client for the service at baseURL. authToken may be
// empty for anonymous read access during development.
func NewClient(baseURL, authToken string) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid remote base URL: %w", err)
	}
	return &Client{
		baseURL:    parsed,
		authToken:  authToken,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}, nil
}

// FetchRecent returns the service's recent messages for a channel, already
// normalized to the canonical shape. Used by the poll fallback and by the
// post-seed reconcile.
func (c *Client) FetchRecent(ctx context.Context, channelID string) ([]chat.Message, error) {
	var payloads []map[string]any
	path := fmt.Sprintf("/v1/channels/%s/messages/recent", url.PathEscape(channelID))
	if err := c.getJSON(ctx, path, &payloads); err != nil {
		return nil, err
	}

	msgs := make([]chat.Message, 0, len(payloads))
	for _, p := range payloads {
		m, err := chat.Normalize(p)
		if err != nil {
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

type writeRequest struct {
	Body       string           `json:"body"`
	Attachment *chat.Attachment `json:"attachment,omitempty"`
}

// Write persists a message server-side and returns the canonical copy. This
// is the durable path for the sender; push delivery is an optimization for
// other viewers only.
func (c *Client) Write(ctx context.Context, channelID, body string, attachment *chat.Attachment) (chat.Message, error) {
	reqBody, err := json.Marshal(writeRequest{Body: body, Attachment: attachment})
	if err != nil {
		return chat.Message{}, err
	}

	path := fmt.Sprintf("/v1/channels/%s/messages", url.PathEscape(channelID))
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(reqBody))
	if err != nil {
		return chat.Message{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return chat.Message{}, chat.NewError(chat.CodeDurableWriteFailed, "write request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return chat.Message{}, chat.NewError(chat.CodeDurableWriteFailed,
			fmt.Sprintf("write returned status %d", resp.StatusCode), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return chat.Message{}, chat.NewError(chat.CodeDurableWriteFailed, "reading write response", err)
	}
	return chat.ParseMessage(data)
}

// ListChannels fetches the channel catalog at session start.
func (c *Client) ListChannels(ctx context.Context) ([]chat.Channel, error) {
	var channels []chat.Channel
	if err := c.getJSON(ctx, "/v1/channels", &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

// Probe checks service reachability. Any 2xx counts as reachable; the
// health monitor interprets failures.
func (c *Client) Probe(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("probe returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	u := *c.baseURL
	u.Path, _ = url.JoinPath(c.baseURL.Path, path)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	return req, nil
}
