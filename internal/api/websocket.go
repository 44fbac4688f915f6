package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AaronLay10/protoflow/internal/events"
	"github.com/AaronLay10/protoflow/internal/player"
)

const (
	// Number of recent events to send on connection
	recentEventsCount = 50

	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The preview may be served from another origin during development.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsEventsHandler streams the event log: the recent backlog first, then
// every new event.
func wsEventsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}

	sub := events.Subscribe()

	var backlog [][]byte
	for _, e := range events.RecentEvents(recentEventsCount) {
		if data, err := json.Marshal(e); err == nil {
			backlog = append(backlog, data)
		}
	}

	out := make(chan []byte)
	stop := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case e, ok := <-sub:
				if !ok {
					return
				}
				data, err := json.Marshal(e)
				if err != nil {
					continue
				}
				select {
				case out <- data:
				case <-stop:
					return
				}
			case <-stop:
				return
			}
		}
	}()

	pump(conn, backlog, out)
	close(stop)
	events.Unsubscribe(sub)
}

// wsFramesHandler streams composed frames. Slow clients skip frames and
// always receive the newest one.
func (s *Server) wsFramesHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}

	sub := s.frames.subscribe()
	defer s.frames.unsubscribe(sub)

	var backlog [][]byte
	if data, err := json.Marshal(s.player.Frame()); err == nil {
		backlog = append(backlog, data)
	}
	pump(conn, backlog, sub)
}

// pump writes backlog and then everything from in until the peer goes away
// or in is closed. It owns conn and closes it.
func pump(conn *websocket.Conn, backlog [][]byte, in <-chan []byte) {
	defer conn.Close()

	for _, data := range backlog {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("ws write backlog failed: %v", err)
			return
		}
	}

	// Reader goroutine - handles pongs and close messages
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
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
		case <-done:
			return

		case data, ok := <-in:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("ws write failed: %v", err)
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

// frameHub fans frames out to websocket subscribers.
type frameHub struct {
	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

func newFrameHub() *frameHub {
	return &frameHub{subs: make(map[chan []byte]struct{})}
}

func (h *frameHub) subscribe() chan []byte {
	ch := make(chan []byte, 1)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *frameHub) unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

func (h *frameHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// publish never blocks: a full subscriber has its stale frame replaced.
func (h *frameHub) publish(f *player.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.subs) == 0 {
		return
	}
	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	for ch := range h.subs {
		select {
		case ch <- data:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- data:
			default:
			}
		}
	}
}
