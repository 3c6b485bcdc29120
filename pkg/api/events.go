package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rubiojr/serp/pkg/realtime"
	"github.com/rubiojr/serp/pkg/search"
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

type eventMessage struct {
	Type  string               `json:"type"`
	State *search.State        `json:"state,omitempty"`
	Event *realtime.StateEvent `json:"event,omitempty"`
}

// HandleEvents streams the session's state events over a websocket. The
// first message is an "init" message carrying the current state.
func (s *Server) HandleEvents(w http.ResponseWriter, r *http.Request) {
	id, o := s.session(w, r)

	conn, err := upgrader.Upgrade(w, r, w.Header())
	if err != nil {
		s.logger.Warnf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	listener, events := s.hub.Register(id)
	defer s.hub.Unregister(listener)

	state := o.State()
	if err := s.writeMessage(conn, eventMessage{Type: "init", State: &state}); err != nil {
		return
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := s.writeMessage(conn, eventMessage{Type: "event", Event: &ev}); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) writeMessage(conn *websocket.Conn, msg eventMessage) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Debugf("websocket write: %v", err)
		return err
	}
	return nil
}
