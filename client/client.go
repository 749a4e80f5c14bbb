// Package client is a small Go client for the chat server, used by the
// terminal tester and by integration tests.
package client

import (
	"bytes"
	"chat-gen/sink"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

type authResponse struct {
	Token string `json:"token"`
}

// Register creates an account and keeps the returned session token for
// subsequent calls.
func (c *Client) Register(email, password string) error {
	return c.authenticate("/auth/register", email, password)
}

func (c *Client) Login(email, password string) error {
	return c.authenticate("/auth/login", email, password)
}

func (c *Client) authenticate(path, email, password string) error {
	var resp authResponse
	err := c.post(path, map[string]string{"email": email, "password": password}, &resp)
	if err != nil {
		return err
	}
	c.token = resp.Token
	return nil
}

type Chat struct {
	ID          string   `json:"id"`
	OwnerID     string   `json:"owner_id"`
	MemberIDs   []string `json:"member_ids"`
	CharacterID string   `json:"character_id"`
}

func (c *Client) CreateChat(memberIDs []string, characterID string) (Chat, error) {
	var created Chat
	err := c.post("/chats", map[string]any{
		"member_ids":   memberIDs,
		"character_id": characterID,
	}, &created)
	return created, err
}

// PostMessage asks for a generated reply. A nil error only means the
// request was acknowledged; the reply arrives on the subscription.
func (c *Client) PostMessage(chatID, message string, ephemeral bool) error {
	return c.post(fmt.Sprintf("/chats/%s/message", chatID), map[string]any{
		"message":   message,
		"ephemeral": ephemeral,
	}, nil)
}

func (c *Client) Retry(chatID, messageID, message string, ephemeral bool) error {
	return c.post(fmt.Sprintf("/chats/%s/messages/%s/retry", chatID, messageID), map[string]any{
		"message":   message,
		"ephemeral": ephemeral,
	}, nil)
}

type Message struct {
	ID       string `json:"id"`
	SenderID string `json:"sender_id"`
	Content  string `json:"content"`
	SentAt   int64  `json:"sent_at"`
}

type messagesResponse struct {
	Messages []Message `json:"messages"`
	Cursor   *string   `json:"cursor,omitempty"`
}

func (c *Client) GetMessages(chatID string, cursor *string) ([]Message, *string, error) {
	url := fmt.Sprintf("%s/chats/%s/messages", c.baseURL, chatID)
	if cursor != nil {
		url += "?cursor=" + *cursor
	}
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, err
	}
	var resp messagesResponse
	if err := c.do(req, &resp); err != nil {
		return nil, nil, err
	}
	return resp.Messages, resp.Cursor, nil
}

// Subscribe opens the websocket event stream for a chat. Events are
// delivered on the returned channel until the context is canceled or
// the server closes the stream.
func (c *Client) Subscribe(ctx context.Context, chatID string) (<-chan sink.WireEvent, error) {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) +
		fmt.Sprintf("/chats/%s/subscribe", chatID)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}

	events := make(chan sink.WireEvent)
	go func() {
		defer close(events)
		defer conn.Close()
		for {
			var evt sink.WireEvent
			if err := conn.ReadJSON(&evt); err != nil {
				return
			}
			select {
			case events <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	return events, nil
}

func (c *Client) post(path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
