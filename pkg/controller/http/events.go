package http

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/pilot/pkg/utils/errutil"
	"github.com/secmon-lab/pilot/pkg/utils/logging"
	"github.com/secmon-lab/pilot/pkg/utils/safe"
)

const eventWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Localhost-only surface; same-origin enforcement is not meaningful here
	CheckOrigin: func(*http.Request) bool { return true },
}

// eventMessage is the wire form of one live pipeline event
type eventMessage struct {
	Type       string    `json:"type"`
	At         time.Time `json:"at"`
	SessionID  string    `json:"session_id"`
	ChunkIndex int       `json:"chunk_index,omitempty"`
	Text       string    `json:"text,omitempty"`
	State      string    `json:"state,omitempty"`
	Item       string    `json:"item,omitempty"`
}

// handleEvents streams live session events over a websocket. The feed drops
// events for slow consumers instead of blocking the pipeline, so a client
// must treat the stream as lossy.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		http.Error(w, "no active session", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "websocket upgrade failed"), http.StatusBadRequest)
		return
	}
	defer safe.Close(r.Context(), conn)

	events, cancel := s.recorder.Feed().Subscribe()
	defer cancel()

	for ev := range events {
		msg := eventMessage{
			Type:       string(ev.Type),
			At:         ev.At,
			SessionID:  ev.SessionID.String(),
			ChunkIndex: ev.ChunkIndex,
			Text:       ev.Text,
			State:      ev.State,
		}
		if ev.Item != nil {
			msg.Item = ev.Item.Description
		}

		if err := conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout)); err != nil {
			return
		}
		if err := conn.WriteJSON(msg); err != nil {
			logging.From(r.Context()).Debug("event feed client gone", "error", err.Error())
			return
		}
	}

	// Feed closed: the session ended
	deadline := time.Now().Add(eventWriteTimeout)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
		deadline)
}
