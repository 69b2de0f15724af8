package notify

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// writeWait bounds how long a single WS frame write (including pings) may
// block before the connection is considered dead, mirroring noisefs's
// webui client-channel pattern.
const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// clientMessage is the inbound control frame a WS client sends: either a
// group join/leave request or a heartbeat ping (spec §6.2:
// "{type: 'joinGroup'|'leaveGroup', groupName}", "client ping -> server
// pong").
type clientMessage struct {
	Type      string `json:"type"`
	GroupName string `json:"groupName"`
}

// ServeWS upgrades the connection and fans bus events for whatever groups
// the client joins out over the socket, grounded on noisefs's
// wsUpgrader/wsClients-channel pattern (announce-webui-simple/main.go)
// generalized from a single fixed channel to per-group membership.
func (b *Bus) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("notify: websocket upgrade failed", "err", err)
		return
	}
	subscriberID := uuid.NewString()
	defer func() {
		b.LeaveAll(subscriberID)
		conn.Close()
	}()

	out := make(chan Event, QueueSize)
	sink := func(ev Event) {
		select {
		case out <- ev:
		default:
		}
	}
	b.Join(subscriberID, GlobalGroup, sink)

	done := make(chan struct{})
	pong := make(chan struct{}, 1)
	go readLoop(conn, b, subscriberID, sink, pong, done)
	writeLoop(conn, out, pong, done)
}

func readLoop(conn *websocket.Conn, b *Bus, subscriberID string, sink func(Event), pong chan<- struct{}, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "joinGroup":
			if msg.GroupName != "" {
				b.Join(subscriberID, msg.GroupName, sink)
			}
		case "leaveGroup":
			if msg.GroupName != "" {
				b.Leave(subscriberID, msg.GroupName)
			}
		case "ping":
			select {
			case pong <- struct{}{}:
			default:
			}
		}
	}
}

func writeLoop(conn *websocket.Conn, out <-chan Event, pong <-chan struct{}, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev := <-out:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(toWireEvent(ev)); err != nil {
				return
			}
		case <-pong:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(map[string]string{"type": "pong"}); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
