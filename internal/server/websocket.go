package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nicehiro/protgraph/internal/render"
)

// zoomRequest is a zoom event sent by the page.
type zoomRequest struct {
	Type      string `json:"type"`
	Direction int    `json:"direction,omitempty"`
}

// zoomResponse carries the redrawn graph back.
type zoomResponse struct {
	Zoom  float64 `json:"zoom,omitempty"`
	SVG   string  `json:"svg,omitempty"`
	Error string  `json:"error,omitempty"`
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     s.checkOrigin,
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range s.opts.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// handleWebSocket processes zoom events one message at a time. Each event
// is fully applied and redrawn before the next message is read.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	up := s.upgrader()
	ws, err := up.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade the websocket", zap.Error(err))
		return
	}
	defer ws.Close()
	s.logger.Debug("websocket client connected", zap.String("remote", r.RemoteAddr))

	for {
		var req zoomRequest
		if err := ws.ReadJSON(&req); err != nil {
			s.logger.Debug("websocket client disconnected", zap.Error(err))
			return
		}

		kind, err := render.ParseEventKind(req.Type)
		if err != nil {
			if err := ws.WriteJSON(zoomResponse{Error: err.Error()}); err != nil {
				return
			}
			continue
		}

		v := s.pipeline.HandleEvent(r.Context(), render.Event{Kind: kind, Direction: req.Direction})
		if err := ws.WriteJSON(zoomResponse{Zoom: v.Zoom, SVG: v.SVG}); err != nil {
			s.logger.Warn("failed to write websocket message", zap.Error(err))
			return
		}
	}
}
