package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"realmclock.ai/internal/protocol"
	"realmclock.ai/internal/sim/multiworld"
)

const (
	outQueue     = 256
	writeTimeout = 5 * time.Second
	readTimeout  = 60 * time.Second
)

// Server streams published world events to observers. Each observer picks the worlds it wants
// in HELLO; an empty list means every world.
type Server struct {
	log      *log.Logger
	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu   sync.RWMutex
	subs map[string]*subscriber
}

type subscriber struct {
	id     string
	worlds map[string]bool
	out    chan protocol.EventMsg
	// cursor is only touched by the connection's writer goroutine.
	cursor  uint64
	dropped atomic.Uint64
}

func (s *subscriber) wants(worldID string) bool {
	return len(s.worlds) == 0 || s.worlds[worldID]
}

func NewServer(logger *log.Logger) *Server {
	return &Server{
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		subs: map[string]*subscriber{},
	}
}

// Publish implements multiworld.EventSink. Slow observers lose events instead of stalling
// the runtime.
func (s *Server) Publish(ev multiworld.PublishedEvent) error {
	if err := protocol.ValidateEvent(ev.Event); err != nil {
		return fmt.Errorf("ws publish: %w", err)
	}
	msg := protocol.EventMsg{
		Type:            protocol.TypeEvent,
		ProtocolVersion: protocol.Version,
		WorldID:         ev.WorldID,
		ObservedAt:      ev.ObservedAt.UTC().Format(time.RFC3339Nano),
		Event:           ev.Event,
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		if !sub.wants(ev.WorldID) {
			continue
		}
		select {
		case sub.out <- msg:
		default:
			sub.dropped.Add(1)
		}
	}
	return nil
}

// Observers reports the number of connected observers.
func (s *Server) Observers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sub := s.handshake(conn)
		if sub == nil {
			return
		}
		s.mu.Lock()
		s.subs[sub.id] = sub
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.subs, sub.id)
			s.mu.Unlock()
			if n := sub.dropped.Load(); n > 0 && s.log != nil {
				s.log.Printf("observer=%s dropped=%d", sub.id, n)
			}
		}()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case msg := <-sub.out:
					sub.cursor++
					msg.Cursor = sub.cursor
					if err := writeJSON(conn, msg); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop: observers only send control frames; reading keeps pongs and close
		// frames flowing.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) *subscriber {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return nil
	}

	sub := &subscriber{
		id:     fmt.Sprintf("O%d", s.nextID.Add(1)),
		worlds: map[string]bool{},
		out:    make(chan protocol.EventMsg, outQueue),
	}
	ids := make([]string, 0, len(hello.WorldIDs))
	for _, id := range hello.WorldIDs {
		id = strings.TrimSpace(id)
		if id == "" || sub.worlds[id] {
			continue
		}
		sub.worlds[id] = true
		ids = append(ids, id)
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		ObserverID:      sub.id,
		WorldIDs:        ids,
	}
	if err := writeJSON(conn, welcome); err != nil {
		return nil
	}
	name := hello.ObserverName
	if name == "" {
		name = "observer"
	}
	if s.log != nil {
		s.log.Printf("observer=%s name=%s worlds=%v", sub.id, name, ids)
	}
	return sub
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
