package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fasthttp/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/hub"
	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/metrics"
	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/presence"
	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/service"
	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/wire"
)

// Conn is the subset of the websocket connection the session needs. Both
// gofiber/websocket and fasthttp/websocket connections satisfy it; tests use
// a fake.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// Options bound the session's I/O behavior.
type Options struct {
	PingInterval    time.Duration
	WriteDeadline   time.Duration
	MaxMessageSize  int64
	EventsPerSecond int
}

func (o Options) withDefaults() Options {
	if o.PingInterval == 0 {
		o.PingInterval = 25 * time.Second
	}
	if o.WriteDeadline == 0 {
		o.WriteDeadline = 10 * time.Second
	}
	if o.MaxMessageSize == 0 {
		o.MaxMessageSize = 64 * 1024
	}
	if o.EventsPerSecond == 0 {
		o.EventsPerSecond = 25
	}
	return o
}

// Session is the server-side per-connection protocol handler. It owns the
// transport connection exclusively; the hub and presence tracker only ever
// see the user ID and the outbound queue. Lifecycle: connected (token bound)
// -> joined (addressable by user ID after join-user) -> closed.
type Session struct {
	conn    Conn
	userID  string // authenticated identity from the upgrade token
	joined  bool   // true once join-user bound this connection in the hub
	hub     *hub.Hub
	tracker *presence.Tracker
	chat    *service.Chat
	limiter *rate.Limiter
	send    chan []byte
	opts    Options
	log     *zap.SugaredLogger
}

func NewSession(conn Conn, userID string, h *hub.Hub, tr *presence.Tracker, chat *service.Chat, opts Options, log *zap.SugaredLogger) *Session {
	opts = opts.withDefaults()
	return &Session{
		conn:    conn,
		userID:  userID,
		hub:     h,
		tracker: tr,
		chat:    chat,
		limiter: rate.NewLimiter(rate.Limit(opts.EventsPerSecond), opts.EventsPerSecond),
		send:    make(chan []byte, 256),
		opts:    opts,
		log:     log,
	}
}

// Enqueue implements hub.Conn. Non-blocking: a slow consumer drops rather
// than stalling delivery to everyone else.
func (s *Session) Enqueue(payload []byte) bool {
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

// Run drives the session until the connection closes. Blocks; the caller is
// the websocket handler goroutine.
func (s *Session) Run(ctx context.Context) {
	metrics.Connections.Inc()
	defer metrics.Connections.Dec()

	done := make(chan struct{})
	go s.writePump(done)
	s.readPump(ctx)
	close(done)

	if s.joined {
		s.hub.Remove(s.userID, s)
		s.tracker.MarkOffline(s.userID)
	}
	_ = s.conn.Close()
}

func (s *Session) readPump(ctx context.Context) {
	pongWait := 2 * s.opts.PingInterval
	s.conn.SetReadLimit(s.opts.MaxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		if !s.limiter.Allow() {
			s.log.Warnw("event rate limit exceeded", "user", s.userID)
			continue
		}
		var env wire.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		s.handleEvent(ctx, env)
	}
}

func (s *Session) writePump(done <-chan struct{}) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()
	for {
		select {
		case <-done:
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return
		case payload := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteDeadline))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.opts.WriteDeadline)); err != nil {
				return
			}
		}
	}
}

func (s *Session) handleEvent(ctx context.Context, env wire.Envelope) {
	switch env.Event {
	case wire.EventJoinUser:
		var p wire.JoinUser
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		s.join(p.UserID)

	case wire.EventSendMessage:
		var p wire.SendMessage
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		// Sender identity comes from the authenticated session, never the
		// payload.
		if p.SenderID != "" && p.SenderID != s.userID {
			s.log.Warnw("sender id mismatch", "claimed", p.SenderID, "session", s.userID)
		}
		m, err := s.chat.Send(ctx, s.userID, p.ReceiverID, p.Content)
		if err != nil {
			s.log.Warnw("send-message failed", "user", s.userID, "err", err)
			return
		}
		metrics.MessagesSent.WithLabelValues("socket").Inc()
		s.reply(wire.EventMessageSent, m)

	case wire.EventTypingStart, wire.EventTypingStop:
		var p wire.Typing
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		// Transient: relayed to the counterpart only, never persisted.
		payload, err := wire.Encode(wire.EventUserTyping, wire.UserTyping{
			UserID: s.userID,
			Typing: env.Event == wire.EventTypingStart,
		})
		if err == nil {
			s.hub.SendToUser(p.ReceiverID, payload)
		}

	case wire.EventMarkRead:
		var p wire.MarkRead
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		// The reader is this session's user; the receipt goes to the
		// original sender inside the service.
		if _, err := s.chat.MarkRead(ctx, p.SenderID, s.userID); err != nil {
			s.log.Warnw("mark-messages-read failed", "user", s.userID, "err", err)
		}

	case wire.EventGetOnlineUsers:
		s.reply(wire.EventOnlineUsersList, wire.OnlineUsers{UserIDs: s.tracker.Snapshot()})

	default:
		// unknown events are ignored for forward compatibility
	}
}

func (s *Session) join(claimedID string) {
	if s.joined {
		return
	}
	if claimedID != "" && claimedID != s.userID {
		s.log.Warnw("join-user id mismatch", "claimed", claimedID, "session", s.userID)
		return
	}
	s.joined = true
	s.hub.Add(s.userID, s)
	s.tracker.MarkOnline(s.userID)
}

func (s *Session) reply(event string, v any) {
	payload, err := wire.Encode(event, v)
	if err != nil {
		return
	}
	if !s.Enqueue(payload) {
		s.log.Warnw("outbound queue full, dropping", "event", event, "user", s.userID)
	}
}
