package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"PanelSync/internal/domain/models"
	"PanelSync/internal/service/ratelimit"
	smetrics "PanelSync/internal/service/metrics"
	"PanelSync/internal/usecase"
	xlogger "PanelSync/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// Frame types.
const (
	FrameBeginResize = "begin_resize"
	FrameBeginDrag   = "begin_drag"
	FrameMove        = "move"
	FrameEnd         = "end"
	FrameFocus       = "focus"

	FrameAck       = "ack"
	FrameRect      = "rect"
	FrameCommitted = "committed"
	FrameFocused   = "focused"
	FrameEvent     = "event"
	FrameError     = "error"
)

// Frame is the JSON message exchanged on the pointer stream in both
// directions.
type Frame struct {
	Type    string              `json:"type"`
	Panel   string              `json:"panel,omitempty"`
	Handle  models.Handle       `json:"handle,omitempty"`
	X       int                 `json:"x,omitempty"`
	Y       int                 `json:"y,omitempty"`
	Rect    *models.Rect        `json:"rect,omitempty"`
	ZIndex  int                 `json:"z_index,omitempty"`
	Event   *models.CanvasEvent `json:"event,omitempty"`
	Code    string              `json:"code,omitempty"`
	Message string              `json:"message,omitempty"`
}

// GestureService is the dispatcher surface the pointer stream drives.
type GestureService interface {
	Focus(ctx context.Context, canvasID, panelID string) (models.PanelView, error)
	BeginResize(ctx context.Context, canvasID, panelID string, h models.Handle, origin models.Point) error
	BeginDrag(ctx context.Context, canvasID, panelID string, origin models.Point) error
	PointerMoved(ctx context.Context, canvasID, panelID string, p models.Point) (models.Rect, error)
	EndResize(ctx context.Context, canvasID, panelID string) (models.Rect, error)
}

type Config struct {
	ReadBufferSize  int
	WriteBufferSize int
	MaxMessageBytes int64
	PingInterval    time.Duration
	FrameBurst      float64 // move frames per connection
	FrameRate       float64
	SendBuffer      int
	FrameTimeout    time.Duration
}

// PointerStream carries high-rate gesture frames over a websocket. Move
// frames beyond the per-connection rate are dropped; the next accepted move
// supersedes them. Begin, end and focus frames are never throttled.
type PointerStream struct {
	cfg      Config
	svc      GestureService
	hub      *Hub
	limiter  *ratelimit.Limiter
	upgrader websocket.Upgrader
	log      *xlogger.Logger
}

func NewPointerStream(cfg Config, svc GestureService, hub *Hub, log *xlogger.Logger) *PointerStream {
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = 4096
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.FrameBurst <= 0 {
		cfg.FrameBurst = 120
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = 120
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	if cfg.FrameTimeout <= 0 {
		cfg.FrameTimeout = 5 * time.Second
	}
	if log == nil {
		log = xlogger.NewNop()
	}
	smetrics.Register()
	return &PointerStream{
		cfg:     cfg,
		svc:     svc,
		hub:     hub,
		limiter: ratelimit.New(cfg.FrameBurst, cfg.FrameRate),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log,
	}
}

func (s *PointerStream) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/canvases/:canvas", s.Serve)
}

// Serve upgrades the request and runs the connection until it closes.
func (s *PointerStream) Serve(c echo.Context) error {
	canvasID := c.Param("canvas")
	if canvasID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "canvas is required")
	}
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already written the error response
		s.log.Warn("stream upgrade failed", xlogger.String("canvas", canvasID), xlogger.Error(err))
		return nil
	}

	cl := newClient(uuid.NewString(), canvasID, conn, s.cfg.SendBuffer)
	if !s.hub.register(cl) {
		cl.close()
		return nil
	}
	s.log.Info("stream connected", xlogger.String("conn", cl.id), xlogger.String("canvas", canvasID))

	go s.writeLoop(cl)
	s.readLoop(c.Request().Context(), cl)
	s.releaseGestures(cl)

	s.hub.unregister(cl)
	s.limiter.Forget(cl.id)
	cl.close()
	s.log.Info("stream closed", xlogger.String("conn", cl.id), xlogger.String("canvas", canvasID))
	return nil
}

func (s *PointerStream) readLoop(ctx context.Context, cl *client) {
	wait := 2 * s.cfg.PingInterval
	cl.conn.SetReadLimit(s.cfg.MaxMessageBytes)
	_ = cl.conn.SetReadDeadline(time.Now().Add(wait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		_, b, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("stream read", xlogger.String("conn", cl.id), xlogger.Error(err))
			}
			return
		}
		_ = cl.conn.SetReadDeadline(time.Now().Add(wait))

		var f Frame
		if err := json.Unmarshal(b, &f); err != nil {
			smetrics.StreamFrames.WithLabelValues("invalid", "rejected").Inc()
			cl.reply(Frame{Type: FrameError, Code: "ERR_BAD_FRAME", Message: err.Error()})
			continue
		}
		if f.Type == FrameMove && !s.limiter.Allow(cl.id) {
			smetrics.StreamFrames.WithLabelValues(f.Type, "throttled").Inc()
			continue
		}
		s.handle(ctx, cl, f)
	}
}

func (s *PointerStream) handle(parent context.Context, cl *client, f Frame) {
	ctx, cancel := context.WithTimeout(parent, s.cfg.FrameTimeout)
	defer cancel()

	var (
		out Frame
		err error
	)
	p := models.Point{X: f.X, Y: f.Y}
	switch f.Type {
	case FrameBeginResize:
		err = s.svc.BeginResize(ctx, cl.canvas, f.Panel, f.Handle, p)
		out = Frame{Type: FrameAck, Panel: f.Panel}
	case FrameBeginDrag:
		err = s.svc.BeginDrag(ctx, cl.canvas, f.Panel, p)
		out = Frame{Type: FrameAck, Panel: f.Panel}
	case FrameMove:
		var r models.Rect
		r, err = s.svc.PointerMoved(ctx, cl.canvas, f.Panel, p)
		out = Frame{Type: FrameRect, Panel: f.Panel, Rect: &r}
	case FrameEnd:
		var r models.Rect
		r, err = s.svc.EndResize(ctx, cl.canvas, f.Panel)
		out = Frame{Type: FrameCommitted, Panel: f.Panel, Rect: &r}
	case FrameFocus:
		var v models.PanelView
		v, err = s.svc.Focus(ctx, cl.canvas, f.Panel)
		out = Frame{Type: FrameFocused, Panel: f.Panel, ZIndex: v.ZIndex}
	default:
		smetrics.StreamFrames.WithLabelValues("unknown", "rejected").Inc()
		cl.reply(Frame{Type: FrameError, Panel: f.Panel, Code: "ERR_BAD_FRAME", Message: "unknown frame type " + f.Type})
		return
	}

	switch f.Type {
	case FrameBeginResize, FrameBeginDrag:
		if err == nil {
			cl.gestures[f.Panel] = struct{}{}
		}
	case FrameEnd:
		delete(cl.gestures, f.Panel)
	}

	if err != nil {
		smetrics.StreamFrames.WithLabelValues(f.Type, "failed").Inc()
		cl.reply(Frame{Type: FrameError, Panel: f.Panel, Code: errorCode(err), Message: err.Error()})
		return
	}
	smetrics.StreamFrames.WithLabelValues(f.Type, "ok").Inc()
	cl.reply(out)
}

// releaseGestures ends every gesture the connection left open, as if the
// pointer had been released when the socket went away.
func (s *PointerStream) releaseGestures(cl *client) {
	for panelID := range cl.gestures {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.FrameTimeout)
		r, err := s.svc.EndResize(ctx, cl.canvas, panelID)
		cancel()
		if err != nil {
			if errorCode(err) != "ERR_NO_GESTURE" && errorCode(err) != "ERR_NOT_FOUND" {
				s.log.Warn("release gesture failed",
					xlogger.String("conn", cl.id),
					xlogger.String("panel", panelID),
					xlogger.Error(err),
				)
			}
			continue
		}
		smetrics.StreamFrames.WithLabelValues(FrameEnd, "released").Inc()
		s.log.Debug("gesture released on close",
			xlogger.String("conn", cl.id),
			xlogger.String("panel", panelID),
			xlogger.String("rect", r.String()),
		)
	}
	clear(cl.gestures)
}

func (s *PointerStream) writeLoop(cl *client) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-cl.done:
			return
		case b := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(s.cfg.FrameTimeout))
			if err := cl.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				cl.close()
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(s.cfg.FrameTimeout))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				cl.close()
				return
			}
		}
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, usecase.ErrCanvasNotFound), errors.Is(err, usecase.ErrPanelNotFound):
		return "ERR_NOT_FOUND"
	case errors.Is(err, usecase.ErrNoActiveGesture):
		return "ERR_NO_GESTURE"
	case errors.Is(err, usecase.ErrInvalidHandle):
		return "ERR_BAD_HANDLE"
	case errors.Is(err, usecase.ErrDispatcherDone):
		return "ERR_UNAVAILABLE"
	default:
		return "ERR_INTERNAL"
	}
}
