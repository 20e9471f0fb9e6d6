// internal/httpserver/stream.go
//
// Websocket fan-out of session events.
//
// Hub is the presenter a session's loop talks to. It buffers events while a
// tick or command runs and, on Flush, sends them as one JSON frame to every
// connected client. Clients that fall behind are dropped rather than slowing
// the loop down.

package httpserver

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordeko/internal/game"
	"github.com/robalobadob/wordeko/internal/physics"
)

const (
	clientBuffer = 64
	writeWait    = 10 * time.Second
	pongWait     = time.Minute
	pingPeriod   = pongWait * 9 / 10
)

type event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type frame struct {
	Tick   uint64  `json:"tick"`
	Events []event `json:"events"`
}

type movePos struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

type Hub struct {
	mu      sync.Mutex
	pending []event
	moves   []movePos
	clients map[*client]struct{}
	closed  bool
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

var _ game.Presenter = (*Hub)(nil)
var _ game.Flusher = (*Hub)(nil)

func (h *Hub) push(typ string, data any) {
	h.mu.Lock()
	if len(h.clients) > 0 {
		h.pending = append(h.pending, event{Type: typ, Data: data})
	}
	h.mu.Unlock()
}

func (h *Hub) TokenAdded(e game.LetterEntity, pos physics.Vec) {
	h.push("spawn", game.LetterView{
		ID: e.ID, Letter: string(e.Letter), X: pos.X, Y: pos.Y, Radius: e.Radius, Selected: e.Selected,
	})
}

func (h *Hub) TokenRemoved(id int) { h.push("remove", map[string]int{"id": id}) }

func (h *Hub) TokenMoved(id int, pos physics.Vec) {
	h.mu.Lock()
	if len(h.clients) > 0 {
		h.moves = append(h.moves, movePos{ID: id, X: pos.X, Y: pos.Y})
	}
	h.mu.Unlock()
}

func (h *Hub) TokenMarked(id int, selected bool) {
	h.push("select", map[string]any{"id": id, "selected": selected})
}

func (h *Hub) WordChanged(word string)        { h.push("word", map[string]string{"word": word}) }
func (h *Hub) ScoreChanged(score int)         { h.push("score", map[string]int{"score": score}) }
func (h *Hub) MusicChanged(m game.MusicState) { h.push("music", m) }
func (h *Hub) Notify(n game.Notice)           { h.push("notice", n) }
func (h *Hub) GameOver(score int)             { h.push("gameover", map[string]int{"score": score}) }

// Flush sends everything buffered since the last flush as one frame.
func (h *Hub) Flush(tick uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.pending) == 0 && len(h.moves) == 0 {
		return
	}
	events := h.pending
	if len(h.moves) > 0 {
		events = append(events, event{Type: "move", Data: h.moves})
	}
	h.pending, h.moves = nil, nil

	data, err := json.Marshal(frame{Tick: tick, Events: events})
	if err != nil {
		log.Error().Err(err).Msg("marshal frame")
		return
	}
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.dropLocked(c)
		}
	}
}

// Clients reports how many sockets are attached.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.dropLocked(c)
	}
}

func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	h.dropLocked(c)
	h.mu.Unlock()
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Serve attaches conn and blocks until the client goes away or the hub is
// closed. view must run its callback on the session's loop goroutine so the
// snapshot frame is queued before any later event.
func (h *Hub) Serve(conn *websocket.Conn, view func(func(game.Snapshot)) error) {
	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	attached := false
	err := view(func(snap game.Snapshot) {
		data, err := json.Marshal(frame{Tick: snap.Tick, Events: []event{{Type: "snapshot", Data: snap}}})
		if err != nil {
			log.Error().Err(err).Msg("marshal snapshot")
			return
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.closed {
			return
		}
		c.send <- data
		h.clients[c] = struct{}{}
		attached = true
	})
	if err != nil || !attached {
		closeConn(conn, "session unavailable")
		return
	}

	go c.writePump()
	c.readPump()
	h.remove(c)
}

// readPump discards client messages; it exists to notice disconnects and pongs.
func (c *client) readPump() {
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				closeConn(c.conn, "bye")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func closeConn(conn *websocket.Conn, reason string) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason))
	_ = conn.Close()
}
