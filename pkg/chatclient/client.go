// Package chatclient is the client-side facade over the chat service: one
// live socket connection per process, guarded emits, typed inbound events,
// and automatic reconnection. The UI talks to this surface instead of the
// transport's.
package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fasthttp/websocket"
	"go.uber.org/zap"

	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/crypto"
	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/wire"
)

// State is the connection state machine: Disconnected -> Connecting ->
// Connected, dropping into Backoff between reconnection attempts.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateBackoff
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateBackoff:
		return "backoff"
	default:
		return "disconnected"
	}
}

// Conn is the transport connection surface the client needs; satisfied by
// fasthttp/websocket connections and by test fakes.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens transport connections. The default dials a websocket.
type Dialer interface {
	Dial(ctx context.Context, rawURL string) (Conn, error)
}

type websocketDialer struct {
	timeout time.Duration
}

func (d websocketDialer) Dial(ctx context.Context, rawURL string) (Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	wd := websocket.Dialer{HandshakeTimeout: d.timeout}
	conn, resp, err := wd.DialContext(ctx, rawURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Config configures a Client.
type Config struct {
	// URL of the websocket endpoint, e.g. ws://host/v1/ws.
	URL string
	// Token is the session token; sent as a query parameter on the upgrade.
	Token string
	// UserID is this user's identity, announced with join-user on connect.
	UserID string
	// Secret, when set, enables end-to-end message encryption. Must match the
	// counterpart's secret; key derivation runs once here, not per message.
	Secret string
	// Handler receives inbound events. Optional.
	Handler Handler
	// Logger defaults to a no-op logger.
	Logger *zap.SugaredLogger

	// Dialer overrides the websocket dialer (tests).
	Dialer Dialer
	// DialTimeout bounds each connection attempt. Default 10s.
	DialTimeout time.Duration
	// MaxRetries caps automatic reconnection attempts. Default 5.
	MaxRetries int
	// InitialBackoff is the first retry delay, default 1s, growing
	// exponentially up to MaxBackoff (default 5s).
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Client keeps exactly one live connection. All methods are safe for
// concurrent use.
type Client struct {
	cfg    Config
	cipher *crypto.Cipher
	dialer Dialer
	log    *zap.SugaredLogger

	mu     sync.Mutex
	state  State
	conn   Conn
	gen    uint64 // bumps on every adopt/teardown so stale read loops exit quietly
	closed bool   // deliberate Disconnect

	writeMu sync.Mutex
}

// NewClient validates the config and derives the message key when a secret
// is configured.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" || cfg.UserID == "" {
		return nil, errors.New("chatclient: URL and UserID are required")
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}

	c := &Client{cfg: cfg, log: cfg.Logger}
	if cfg.Secret != "" {
		ciph, err := crypto.NewFromSecret(cfg.Secret)
		if err != nil {
			return nil, err
		}
		c.cipher = ciph
	}
	c.dialer = cfg.Dialer
	if c.dialer == nil {
		c.dialer = websocketDialer{timeout: cfg.DialTimeout}
	}
	return c, nil
}

// Connect is idempotent: a no-op while connected, connecting, or retrying.
// On success it announces join-user so the server can route to this user.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.closed = false
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		return fmt.Errorf("chatclient: connect: %w", err)
	}
	c.adopt(conn)
	return nil
}

// Disconnect tears the connection down. Safe to call when already
// disconnected; suppresses automatic reconnection until the next Connect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.closed = true
	c.state = StateDisconnected
	conn := c.conn
	c.conn = nil
	c.gen++
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) Connected() bool { return c.State() == StateConnected }

// SendMessage emits send-message, encrypting content first when a secret is
// configured. Sending while disconnected is an expected transient condition:
// it logs a warning and drops; the fallback coordinator owns the REST path.
func (c *Client) SendMessage(receiverID, content string) error {
	if c.cipher != nil {
		blob, err := c.cipher.Encrypt(content)
		if err != nil {
			return err
		}
		content = blob
	}
	return c.emit(wire.EventSendMessage, wire.SendMessage{
		SenderID:   c.cfg.UserID,
		ReceiverID: receiverID,
		Content:    content,
	})
}

// TypingStart signals the counterpart that this user started typing.
func (c *Client) TypingStart(receiverID string) {
	_ = c.emit(wire.EventTypingStart, wire.Typing{SenderID: c.cfg.UserID, ReceiverID: receiverID})
}

// TypingStop signals the counterpart that this user stopped typing.
func (c *Client) TypingStop(receiverID string) {
	_ = c.emit(wire.EventTypingStop, wire.Typing{SenderID: c.cfg.UserID, ReceiverID: receiverID})
}

// MarkMessagesRead marks the peer's messages to this user as read.
func (c *Client) MarkMessagesRead(peerID string) {
	_ = c.emit(wire.EventMarkRead, wire.MarkRead{SenderID: peerID, ReceiverID: c.cfg.UserID})
}

// RequestOnlineUsers asks for a presence snapshot, answered with an
// OnlineUsers event.
func (c *Client) RequestOnlineUsers() {
	_ = c.emit(wire.EventGetOnlineUsers, nil)
}

func (c *Client) dial(ctx context.Context) (Conn, error) {
	raw := c.cfg.URL
	if c.cfg.Token != "" {
		sep := "?"
		if u, err := url.Parse(raw); err == nil && u.RawQuery != "" {
			sep = "&"
		}
		raw += sep + "token=" + url.QueryEscape(c.cfg.Token)
	}
	return c.dialer.Dial(ctx, raw)
}

// adopt installs a fresh connection, starts its read loop, and announces the
// user identity. A Disconnect that landed while the dial was outstanding wins:
// the connection is closed instead of installed.
func (c *Client) adopt(conn Conn) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.state = StateConnected
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	go c.readLoop(conn, gen)
	_ = c.emit(wire.EventJoinUser, wire.JoinUser{UserID: c.cfg.UserID})
}

// emit is the guarded write: a silent (logged) no-op when disconnected.
func (c *Client) emit(event string, v any) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()
	if !connected || conn == nil {
		c.log.Warnw("not connected, dropping outbound event", "event", event)
		return nil
	}
	payload, err := wire.Encode(event, v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *Client) readLoop(conn Conn, gen uint64) {
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			c.onReadError(gen, err)
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		c.dispatch(data)
	}
}

func (c *Client) onReadError(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.gen || c.closed {
		// superseded connection or deliberate disconnect
		c.mu.Unlock()
		return
	}
	c.state = StateBackoff
	c.conn = nil
	c.gen++
	c.mu.Unlock()
	go c.reconnect(err)
}

// reconnect retries with exponential backoff until the retry budget runs
// out, then reports Disconnected and waits for an explicit Connect.
func (c *Client) reconnect(cause error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialBackoff
	bo.MaxInterval = c.cfg.MaxBackoff
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0

	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		time.Sleep(bo.NextBackOff())

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.state = StateConnecting
		c.mu.Unlock()

		conn, err := c.dial(context.Background())
		if err == nil {
			c.log.Infow("reconnected", "attempt", attempt)
			c.adopt(conn)
			return
		}
		c.log.Warnw("reconnect attempt failed", "attempt", attempt, "err", err)

		c.mu.Lock()
		c.state = StateBackoff
		c.mu.Unlock()
	}

	c.mu.Lock()
	c.state = StateDisconnected
	c.mu.Unlock()
	c.deliver(Disconnected{Err: cause})
}

func (c *Client) dispatch(data []byte) {
	var env wire.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return
	}
	switch env.Event {
	case wire.EventNewMessage:
		if m, ok := c.decodeMessage(env.Data); ok {
			c.deliver(c.decryptMessage(m, func(m Message, unavailable bool) Event {
				return NewMessage{Message: m, Unavailable: unavailable}
			}))
		}
	case wire.EventMessageSent:
		if m, ok := c.decodeMessage(env.Data); ok {
			c.deliver(c.decryptMessage(m, func(m Message, _ bool) Event {
				return MessageSent{Message: m}
			}))
		}
	case wire.EventUserTyping:
		var p wire.UserTyping
		if json.Unmarshal(env.Data, &p) == nil {
			c.deliver(UserTyping{UserID: p.UserID, Typing: p.Typing})
		}
	case wire.EventUserOnline:
		var p wire.PresenceChange
		if json.Unmarshal(env.Data, &p) == nil {
			c.deliver(UserOnline{UserID: p.UserID, LastSeen: p.LastSeen})
		}
	case wire.EventUserOffline:
		var p wire.PresenceChange
		if json.Unmarshal(env.Data, &p) == nil {
			c.deliver(UserOffline{UserID: p.UserID, LastSeen: p.LastSeen})
		}
	case wire.EventOnlineUsersList:
		var p wire.OnlineUsers
		if json.Unmarshal(env.Data, &p) == nil {
			c.deliver(OnlineUsers{UserIDs: p.UserIDs})
		}
	case wire.EventMessagesRead:
		var p wire.MessagesRead
		if json.Unmarshal(env.Data, &p) == nil {
			c.deliver(MessagesRead{
				SenderID:   p.SenderID,
				ReceiverID: p.ReceiverID,
				MessageIDs: p.MessageIDs,
				ReadAt:     p.ReadAt,
			})
		}
	}
}

func (c *Client) decodeMessage(data json.RawMessage) (Message, bool) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, false
	}
	return m, true
}

// decryptMessage decrypts the content in place. A decrypt failure never
// propagates: the message is delivered as unavailable and the session keeps
// running.
func (c *Client) decryptMessage(m Message, build func(Message, bool) Event) Event {
	if c.cipher == nil {
		return build(m, false)
	}
	plain, err := c.cipher.Decrypt(m.Content)
	if err != nil {
		c.log.Warnw("message decrypt failed", "id", m.ID, "err", err)
		m.Content = ""
		return build(m, true)
	}
	m.Content = plain
	return build(m, false)
}

func (c *Client) deliver(e Event) {
	if c.cfg.Handler != nil {
		c.cfg.Handler(e)
	}
}
