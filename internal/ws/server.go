package ws

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/auth"
	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/hub"
	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/metrics"
	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/presence"
	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/service"
	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/wire"
)

// Server accepts websocket upgrades and hands each connection to a Session.
type Server struct {
	hub     *hub.Hub
	tracker *presence.Tracker
	chat    *service.Chat
	jv      *auth.Validator
	opts    Options
	log     *zap.SugaredLogger
}

func NewServer(h *hub.Hub, tr *presence.Tracker, chat *service.Chat, jv *auth.Validator, opts Options, log *zap.SugaredLogger) *Server {
	return &Server{hub: h, tracker: tr, chat: chat, jv: jv, opts: opts, log: log}
}

// Handle returns the fiber websocket handler. Auth is a session token in the
// query string because browsers cannot set headers on websocket upgrades.
func (s *Server) Handle() func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		token := conn.Query("token")
		if token == "" {
			_ = conn.Close()
			return
		}
		userID, err := s.jv.Validate(token)
		if err != nil {
			s.log.Warnw("ws auth failed", "err", err)
			_ = conn.Close()
			return
		}
		sess := NewSession(conn, userID, s.hub, s.tracker, s.chat, s.opts, s.log)
		sess.Run(context.Background())
	}
}

// PresenceNotifier adapts presence transitions into user-online/user-offline
// broadcasts to every connected client, and keeps the online-users gauge
// current. The tracker fires it only on 0->1 and 1->0 transitions, so a
// plain inc/dec tracks the online population.
func PresenceNotifier(h *hub.Hub, log *zap.SugaredLogger) presence.NotifyFunc {
	return func(st presence.Status) {
		event := wire.EventUserOffline
		if st.Online {
			event = wire.EventUserOnline
		}
		payload, err := wire.Encode(event, wire.PresenceChange{UserID: st.UserID, LastSeen: st.LastSeen})
		if err != nil {
			return
		}
		h.Broadcast(payload)
		if st.Online {
			metrics.OnlineUsers.Inc()
		} else {
			metrics.OnlineUsers.Dec()
		}
		log.Infow("presence change", "user", st.UserID, "online", st.Online)
	}
}
