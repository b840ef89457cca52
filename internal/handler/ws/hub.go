package ws

import (
	"context"
	"encoding/json"
	"sync"

	"PanelSync/internal/domain/models"
	drepo "PanelSync/internal/domain/repository"
	smetrics "PanelSync/internal/service/metrics"
	xlogger "PanelSync/pkg/logger"

	"github.com/gorilla/websocket"
)

// client is one pointer stream connection. send is never closed; done
// signals the writer to stop. gestures is owned by the read loop.
type client struct {
	id       string
	canvas   string
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	once     sync.Once
	gestures map[string]struct{}
}

func newClient(id, canvas string, conn *websocket.Conn, buffer int) *client {
	return &client{
		id:       id,
		canvas:   canvas,
		conn:     conn,
		send:     make(chan []byte, buffer),
		done:     make(chan struct{}),
		gestures: make(map[string]struct{}),
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// reply queues a frame, waiting for room unless the connection is gone.
func (c *client) reply(f Frame) {
	b, err := json.Marshal(f)
	if err != nil {
		return
	}
	select {
	case c.send <- b:
	case <-c.done:
	}
}

// Hub pushes canvas events to the connections watching that canvas.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*client]struct{}
	closed bool
	log    *xlogger.Logger
}

func NewHub(log *xlogger.Logger) *Hub {
	if log == nil {
		log = xlogger.NewNop()
	}
	return &Hub{subs: make(map[string]map[*client]struct{}), log: log}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set, ok := h.subs[c.canvas]
	if !ok {
		set = make(map[*client]struct{})
		h.subs[c.canvas] = set
	}
	set[c] = struct{}{}
	smetrics.StreamConnections.Inc()
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[c.canvas]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.subs, c.canvas)
	}
	smetrics.StreamConnections.Dec()
}

// Subscribers returns the number of connections watching canvasID.
func (h *Hub) Subscribers(canvasID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[canvasID])
}

// Publish hands ev to every subscriber of its canvas. A subscriber whose
// buffer is full misses the event.
func (h *Hub) Publish(_ context.Context, ev *models.CanvasEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := h.subs[ev.CanvasID]
	if len(set) == 0 {
		return nil
	}
	b, err := json.Marshal(Frame{Type: FrameEvent, Panel: ev.PanelID, Event: ev})
	if err != nil {
		return err
	}
	for c := range set {
		select {
		case c.send <- b:
		default:
			smetrics.StreamEventsDropped.Inc()
			h.log.Debug("stream event dropped",
				xlogger.String("conn", c.id),
				xlogger.String("canvas", c.canvas),
				xlogger.String("type", string(ev.Type)),
			)
		}
	}
	return nil
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	var all []*client
	for _, set := range h.subs {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.Unlock()
	for _, c := range all {
		c.close()
	}
	return nil
}

var _ drepo.EventPublisher = (*Hub)(nil)
