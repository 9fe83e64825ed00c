// Package monitor implements the optional HTTP+WebSocket status server:
// a chi-routed snapshot endpoint plus a websocket relay of shard
// lifecycle events, enabled only when a bind address is configured.
package monitor

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Bus is the dispatcher-facing side: Publish records a shard transition
// and fans it out to every connected /stream client and into the
// /status snapshot.
type Bus struct {
	logger *logrus.Entry

	mu        sync.Mutex
	snapshots map[int]ShardSnapshot
	clients   map[chan Event]struct{}
}

// NewBus creates an empty event bus.
func NewBus(logger *logrus.Entry) *Bus {
	return &Bus{
		logger:    logger,
		snapshots: map[int]ShardSnapshot{},
		clients:   map[chan Event]struct{}{},
	}
}

// Publish records ev in the snapshot table and relays it to every
// currently-connected stream client, dropping the event for any client
// whose outbound buffer is full rather than blocking the dispatcher.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.snapshots[ev.ShardIndex] = ShardSnapshot{
		Index:    ev.ShardIndex,
		ShardID:  ev.ShardID,
		State:    ev.State,
		ExitCode: ev.ExitCode,
	}

	for ch := range b.clients {
		select {
		case ch <- ev:
		default:
			if b.logger != nil {
				b.logger.Warn("monitor stream buffer full, dropping event")
			}
		}
	}
}

func (b *Bus) subscribe() chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Bus) unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.clients, ch)
	b.mu.Unlock()
	close(ch)
}

func (b *Bus) snapshot() []ShardSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ShardSnapshot, 0, len(b.snapshots))
	for _, s := range b.snapshots {
		out = append(out, s)
	}
	return out
}

// Server is the chi-routed HTTP+WebSocket monitor.
type Server struct {
	bus    *Bus
	logger *logrus.Entry
	http   *http.Server
}

// New builds a monitor server bound to addr, exposing bus's state.
func New(addr string, bus *Bus, logger *logrus.Entry) *Server {
	r := chi.NewRouter()
	s := &Server{bus: bus, logger: logger}

	r.Get("/status", s.handleStatus)
	r.Get("/stream", s.handleStream)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe runs the monitor server until it errors or is shut down.
func (s *Server) ListenAndServe() error {
	if s.logger != nil {
		s.logger.WithField("addr", s.http.Addr).Info("monitor listening")
	}
	return s.http.ListenAndServe()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.bus.snapshot())
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.WithError(err).Error("monitor websocket upgrade failed")
		}
		return
	}
	defer conn.Close()

	ch := s.bus.subscribe()
	defer s.bus.unsubscribe(ch)

	for ev := range ch {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}
