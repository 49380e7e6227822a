package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"kmerwalk/internal/output"
	"kmerwalk/internal/writers"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period (must be less than pongWait).
	pingPeriod = (pongWait * 9) / 10
	// Subscribers only send control frames.
	maxMessageSize = 4 << 10
)

// events handles GET /session/events. Each graph mutation is sent as one
// api.EventV1 text frame. A subscriber that falls behind loses events (the
// seq field shows the gap) and should refetch /session/graph.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	// Subscribe first so nothing published after the handshake is missed.
	ch, cancel := s.engine.Subscribe(s.cfg.EventBuffer)
	defer cancel()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade", zap.Error(err))
		return
	}
	defer conn.Close()
	logger := s.logger.With(zap.String("remote", r.RemoteAddr))
	logger.Debug("event subscriber connected")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(maxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Debug("websocket read", zap.Error(err))
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(output.ToAPIEvent(ev, s.id)); err != nil {
				if !writers.IsPeerGone(err) && !errors.Is(err, websocket.ErrCloseSent) {
					logger.Warn("websocket write", zap.Error(err))
				}
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			logger.Debug("event subscriber left")
			return
		}
	}
}
