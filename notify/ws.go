package notify

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

var errChannelSaturated = errors.New("notify: channel buffer full")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin policy is enforced by the HTTP layer's CORS middleware.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsChannel adapts one websocket connection to the Channel interface.
// Sends go through a buffered queue drained by a single writer goroutine,
// so Publish never blocks on a slow socket.
type wsChannel struct {
	conn *websocket.Conn
	send chan Event
	done chan struct{}
}

// Send never blocks and never panics after teardown: the queue is left open
// and a racing Publish simply enqueues into a drained buffer.
func (c *wsChannel) Send(event Event) error {
	select {
	case <-c.done:
		return errChannelSaturated
	case c.send <- event:
		return nil
	default:
		return errChannelSaturated
	}
}

// HandleWS upgrades the request and keeps the connection subscribed until
// the client goes away. userID must already be authenticated by the caller.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("notify: websocket upgrade failed", slog.Any("err", err))
		return
	}

	ch := &wsChannel{
		conn: conn,
		send: make(chan Event, sendBuffer),
		done: make(chan struct{}),
	}
	h.Subscribe(userID, ch)

	go h.writePump(ch)
	h.readPump(ch, userID)
}

// readPump discards inbound frames (the protocol is server-push only) and
// tears the channel down once the peer disconnects.
func (h *Hub) readPump(ch *wsChannel, userID string) {
	defer func() {
		h.Unsubscribe(ch)
		close(ch.done)
	}()

	ch.conn.SetReadLimit(512)
	_ = ch.conn.SetReadDeadline(time.Now().Add(pongWait))
	ch.conn.SetPongHandler(func(string) error {
		return ch.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := ch.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("notify: websocket closed",
					slog.String("user_id", userID),
					slog.Any("err", err),
				)
			}
			return
		}
	}
}

func (h *Hub) writePump(ch *wsChannel) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = ch.conn.Close()
	}()

	for {
		select {
		case <-ch.done:
			_ = ch.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case event := <-ch.send:
			_ = ch.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ch.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = ch.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ch.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
