// Package client is a Go consumer of the Spur chat API, mirroring what the
// browser widget does: it keeps one opaque session token behind a TokenStore
// and passes it with every call.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Message struct {
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type SendResult struct {
	Reply     string `json:"reply"`
	SessionID string `json:"sessionId"`
}

type Client struct {
	baseURL string
	http    *http.Client
	store   TokenStore
}

func New(baseURL string, store TokenStore) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		store:   store,
	}
}

// SendMessage posts one user message. When no token is stored the request
// carries no sessionId and the server mints one, which is persisted for
// subsequent calls. Transport and HTTP failures propagate to the caller.
func (c *Client) SendMessage(ctx context.Context, text string) (SendResult, error) {
	var out SendResult

	body := map[string]string{"message": text}
	if token, ok := c.store.Get(); ok {
		body["sessionId"] = token
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return out, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat/message", bytes.NewReader(payload))
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return out, fmt.Errorf("send message HTTP %d: %s", resp.StatusCode, string(raw))
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, err
	}
	if out.SessionID != "" {
		if err := c.store.Set(out.SessionID); err != nil {
			return out, fmt.Errorf("failed to persist session token: %w", err)
		}
	}
	return out, nil
}

// GetHistory fetches the session transcript. With no stored token, or on any
// failure, it returns an empty slice: the history read is best-effort and
// never surfaces an error to the widget.
func (c *Client) GetHistory(ctx context.Context) []Message {
	token, ok := c.store.Get()
	if !ok {
		return []Message{}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/chat/history/"+token, nil)
	if err != nil {
		return []Message{}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return []Message{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return []Message{}
	}
	var msgs []Message
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		return []Message{}
	}
	if msgs == nil {
		msgs = []Message{}
	}
	return msgs
}
