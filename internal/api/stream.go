package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/neuropayx/parley/internal/chat"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// streamConversation handles GET /api/v1/conversations/{id}/stream. It
// upgrades to a websocket, replays the backlog, then forwards live feed
// events, deduplicating by message id across the replay/live boundary. The
// feed subscription is torn down when the socket closes.
func (s *Server) streamConversation(w http.ResponseWriter, r *http.Request) {
	convID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events := make(chan chat.Message, 64)
	done := make(chan struct{})

	// Attach before the backlog read so nothing falls in the gap; the seen
	// set below absorbs the overlap.
	sub, err := s.feed.Subscribe(convID.String(), func(m chat.Message) {
		select {
		case <-done:
		case events <- m:
		default:
			s.logger.Warn("stream queue full, dropping event", "conversation", convID)
		}
	})
	if err != nil {
		s.logger.Error("stream subscribe failed", "conversation", convID, "error", err)
		return
	}
	defer sub.Cancel()

	// Read pump: we expect no client frames, but reading is what surfaces the
	// close.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	seen := make(map[uuid.UUID]struct{})
	backlog, err := s.store.ListMessages(r.Context(), convID, s.historyLimit)
	if err != nil {
		// Degraded but live, same contract as the view: empty start, new
		// messages still flow.
		s.logger.Warn("stream backlog load failed", "conversation", convID, "error", err)
	}
	for _, m := range backlog {
		seen[m.ID] = struct{}{}
		if err := writeMessage(conn, m); err != nil {
			return
		}
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case m := <-events:
			if m.ConversationID != convID {
				continue
			}
			if _, ok := seen[m.ID]; ok {
				continue
			}
			seen[m.ID] = struct{}{}
			if err := writeMessage(conn, m); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeMessage(conn *websocket.Conn, m chat.Message) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(m)
}
