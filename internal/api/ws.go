package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Endsi3g/AI-Assistant-Computer/internal/agent"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/tools"
)

// upgrader accepts any origin: the server binds to the user's own
// machine and carries no credentials worth hijacking.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

const wsWriteTimeout = 10 * time.Second

// wsFrame is the envelope for every server-to-client message on the
// agent socket.
type wsFrame struct {
	Type    string         `json:"type"` // step, summary, error
	Step    *agent.Step    `json:"step,omitempty"`
	Summary *agent.Summary `json:"summary,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// handleAgentWS streams agent runs over a WebSocket. The client sends
// {message, mode} requests; the server answers each with one frame per
// step followed by a summary frame.
func (s *Server) handleAgentWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	s.logger.Info("agent websocket connected", "remote", r.RemoteAddr)

	for {
		var req ChatRequest
		if err := conn.ReadJSON(&req); err != nil {
			s.logger.Debug("agent websocket closed", "error", err)
			return
		}
		if req.Message == "" {
			s.wsSend(conn, wsFrame{Type: "error", Error: "message is required"})
			continue
		}

		mode, err := s.resolveMode(req.Mode)
		if err != nil {
			s.wsSend(conn, wsFrame{Type: "error", Error: err.Error()})
			continue
		}

		s.streamRun(r.Context(), conn, req.Message, mode)
	}
}

// streamRun executes one agent run, forwarding steps to the socket.
// A dead socket stops the writes, never the drain: the loop's channel
// is always consumed to completion so the producer cannot block on a
// client that walked away.
func (s *Server) streamRun(ctx context.Context, conn *websocket.Conn, message string, mode tools.Mode) {
	var steps []agent.Step
	alive := true

	for step := range s.loop.Run(ctx, message, s.loop.History(), mode) {
		steps = append(steps, step)
		if alive {
			alive = s.wsSend(conn, wsFrame{Type: "step", Step: &step})
		}
	}

	if alive {
		summary := agent.Summarize(steps)
		s.wsSend(conn, wsFrame{Type: "summary", Summary: &summary})
	}
}

func (s *Server) wsSend(conn *websocket.Conn, frame wsFrame) bool {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(frame); err != nil {
		s.logger.Debug("websocket write failed", "error", err)
		return false
	}
	return true
}

// handleEventsWS streams the operational event bus to the client until
// it disconnects.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := s.bus.Subscribe(64)
	defer s.bus.Unsubscribe(ch)

	// Discard client frames; detect disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(event); err != nil {
				s.logger.Debug("event websocket write failed", "error", err)
				return
			}
		}
	}
}
