package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parleyhq/parley/controller"
	"github.com/parleyhq/parley/core/protocol"
	"github.com/parleyhq/parley/session"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPingInterval = 20 * time.Second

	wsMaxMessageBytes = 1 << 16
)

// clientFrame is a user turn submitted over the stream.
type clientFrame struct {
	Text string `json:"text"`
}

// serverFrame is one outbound stream event. Type is "delta" while a reply is
// being generated, "turn" when it is final, or "error".
type serverFrame struct {
	Type    string         `json:"type"`
	Text    string         `json:"text,omitempty"`
	Turn    *protocol.Turn `json:"turn,omitempty"`
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message,omitempty"`
}

// connWriter serializes frame and ping writes onto one websocket connection.
type connWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *connWriter) writeFrame(f serverFrame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return w.conn.WriteJSON(f)
}

func (w *connWriter) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(wsWriteTimeout))
}

// handleStream upgrades to a websocket and serves turns with streamed reply
// deltas. One in-flight turn at a time per connection; frames received while
// a turn is pending are rejected with session_busy by the controller.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(r.PathValue("id"))
	if !ok {
		s.writeError(w, r, errSessionNotFound)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsMaxMessageBytes)
	writer := &connWriter{conn: conn}

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := writer.ping(); err != nil {
					return
				}
			}
		}
	}()

	for {
		var frame clientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}

		turn, err := s.ctrl.SubmitTurnStream(r.Context(), sess, frame.Text, func(delta string) {
			_ = writer.writeFrame(serverFrame{Type: "delta", Text: delta})
		})

		switch {
		case err == nil:
			if turn == (protocol.Turn{}) {
				continue // blank input, nothing submitted
			}
			if werr := writer.writeFrame(serverFrame{Type: "turn", Turn: &turn}); werr != nil {
				return
			}
		case errors.Is(err, controller.ErrEmptyReply):
			if werr := writer.writeFrame(serverFrame{Type: "turn"}); werr != nil {
				return
			}
		case errors.Is(err, session.ErrClosed):
			_, code, msg := classify(err)
			_ = writer.writeFrame(serverFrame{Type: "error", Code: code, Message: msg})
			return
		default:
			_, code, msg := classify(err)
			if werr := writer.writeFrame(serverFrame{Type: "error", Code: code, Message: msg}); werr != nil {
				return
			}
		}
	}
}
