package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/audiows/internal/logging"
	"github.com/muurk/audiows/internal/protocol"
	"github.com/muurk/audiows/internal/state"
)

const (
	// DefaultReplyTimeout bounds the wait for a reply to one request.
	DefaultReplyTimeout = 5 * time.Second

	handshakeTimeout = 2 * time.Second
	closeWait        = time.Second
)

var (
	// ErrRejected is returned when the server answers with an Error reply.
	ErrRejected = errors.New("server rejected message")

	// ErrClosed is returned by requests on a closed client.
	ErrClosed = errors.New("client is closed")
)

// Client is a connection to an audiows server. Requests are serialized: each
// one writes a frame and waits for its reply before the next is sent.
type Client struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	url     string
	timeout time.Duration
}

// Dial connects to the server at rawURL. A bare host:port is accepted and
// treated as ws://host:port/. timeout bounds each request's reply wait; zero
// means DefaultReplyTimeout.
func Dial(ctx context.Context, rawURL string, timeout time.Duration) (*Client, error) {
	u, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultReplyTimeout
	}

	d := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := d.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", u, err)
	}

	logging.Debug("Connected to server", zap.String("url", u))
	return &Client{conn: conn, url: u, timeout: timeout}, nil
}

// URL returns the normalized WebSocket URL the client is connected to.
func (c *Client) URL() string { return c.url }

// SetRecording starts or stops recording.
func (c *Client) SetRecording(on bool) error {
	return c.expectAck(protocol.NewCommand(on))
}

// SetAmplitude sets the amplitude. The server does not range check it.
func (c *Client) SetAmplitude(v float64) error {
	return c.expectAck(protocol.NewParameter(v))
}

// ClearAmplitude sends a Parameter with no amplitude, which the server
// acknowledges without changing state.
func (c *Client) ClearAmplitude() error {
	return c.expectAck(protocol.EmptyParameter())
}

func (c *Client) expectAck(msg protocol.ClientMessage) error {
	reply, err := c.Send(msg)
	if err != nil {
		return err
	}
	return ReplyError(reply)
}

// Send encodes msg, writes it and returns the server's reply.
func (c *Client) Send(msg protocol.ClientMessage) (protocol.ServerMessage, error) {
	frame, err := protocol.EncodeClient(msg)
	if err != nil {
		return nil, err
	}
	return c.SendRaw(frame)
}

// SendRaw writes frame verbatim as a text frame and returns the decoded reply.
// An Error reply is returned as a value, not as an error.
func (c *Client) SendRaw(frame []byte) (protocol.ServerMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, ErrClosed
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, err
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}
	logging.LogWebSocketMessage(c.url, "sent", websocket.TextMessage, frame)

	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, err
	}
	defer func() { _ = c.conn.SetReadDeadline(time.Time{}) }()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("waiting for reply: %w", err)
		}
		logging.LogWebSocketMessage(c.url, "received", messageType, data)
		if messageType != websocket.TextMessage {
			continue
		}
		reply, err := protocol.DecodeServer(data)
		if err != nil {
			return nil, fmt.Errorf("unexpected reply %q: %w", data, err)
		}
		return reply, nil
	}
}

// SendBinary writes a binary frame. The server never replies to these.
func (c *Client) SendBinary(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrClosed
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

// Close sends a normal close frame and closes the connection. Calling Close
// more than once is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait))
	err := c.conn.Close()
	c.conn = nil
	return err
}

// ReplyError converts an Error reply into an error wrapping ErrRejected.
func ReplyError(reply protocol.ServerMessage) error {
	switch r := reply.(type) {
	case protocol.Ack:
		return nil
	case protocol.Error:
		return fmt.Errorf("%w: %s", ErrRejected, r.Message)
	default:
		return fmt.Errorf("unexpected reply %v", reply)
	}
}

// NormalizeURL turns host:port or a ws:// URL into a ws:// URL with a path.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("server URL is empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "ws://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", raw, err)
	}
	switch u.Scheme {
	case "ws":
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported scheme %q (want ws)", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("server URL %q has no host", raw)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}

// State is the server's GET /state response.
type State struct {
	state.AudioState
	Connections int `json:"connections"`
}

// FetchState reads the current state over the server's HTTP side route.
func FetchState(ctx context.Context, rawURL string) (*State, error) {
	u, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	parsed, _ := url.Parse(u)
	parsed.Scheme = "http"
	parsed.Path = "/state"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch state: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: unexpected status %s", parsed, resp.Status)
	}

	var st State
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	return &st, nil
}
