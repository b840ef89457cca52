package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	models "PanelSync/internal/domain/models"
	domrepo "PanelSync/internal/domain/repository"
	"PanelSync/internal/usecase"
	xhttp "PanelSync/pkg/http"
	xlogger "PanelSync/pkg/logger"

	"github.com/labstack/echo/v4"
)

// CanvasService is the dispatcher surface the HTTP layer drives.
type CanvasService interface {
	OpenCanvas(ctx context.Context, canvasID string) (models.CanvasView, error)
	Snapshot(ctx context.Context, canvasID string) (models.CanvasView, error)
	AddPanel(ctx context.Context, canvasID string, def models.PanelDefinition) (models.PanelView, error)
	RemovePanel(ctx context.Context, canvasID, panelID string) error
	Focus(ctx context.Context, canvasID, panelID string) (models.PanelView, error)
	BeginResize(ctx context.Context, canvasID, panelID string, h models.Handle, origin models.Point) error
	BeginDrag(ctx context.Context, canvasID, panelID string, origin models.Point) error
	PointerMoved(ctx context.Context, canvasID, panelID string, p models.Point) (models.Rect, error)
	EndResize(ctx context.Context, canvasID, panelID string) (models.Rect, error)
	SetGroup(ctx context.Context, canvasID, panelID, group string) (usecase.GroupResult, error)
	SetInstrument(ctx context.Context, canvasID, panelID string, inst *models.Instrument) ([]string, error)
	SelectInstrument(ctx context.Context, canvasID, panelID string, q usecase.SelectQuery, selectOnThis bool) ([]string, bool, error)
	BroadcastPrice(ctx context.Context, canvasID, panelID string, price float64) ([]string, error)
}

// CanvasEchoHandler exposes canvas commands over HTTP.
type CanvasEchoHandler struct {
	logger *xlogger.Logger
	svc    CanvasService
	search domrepo.InstrumentSearch
	events domrepo.EventStore
}

// NewCanvasEchoHandler builds the handler. search and events are optional;
// their routes answer 503 when absent.
func NewCanvasEchoHandler(logger *xlogger.Logger, svc CanvasService, search domrepo.InstrumentSearch, events domrepo.EventStore) *CanvasEchoHandler {
	if logger == nil {
		logger = xlogger.NewNop()
	}
	return &CanvasEchoHandler{logger: logger, svc: svc, search: search, events: events}
}

func (h *CanvasEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/instruments/search", h.Search)

	cv := g.Group("/canvases/:canvas")
	cv.GET("", h.Snapshot)
	cv.POST("/open", h.Open)
	cv.GET("/events", h.Events)
	cv.POST("/panels", h.AddPanel)

	p := cv.Group("/panels/:panel")
	p.DELETE("", h.RemovePanel)
	p.POST("/focus", h.Focus)
	p.POST("/resize/begin", h.BeginResize)
	p.POST("/drag/begin", h.BeginDrag)
	p.POST("/pointer", h.Pointer)
	p.POST("/gesture/end", h.EndGesture)
	p.PUT("/group", h.SetGroup)
	p.PUT("/instrument", h.SetInstrument)
	p.POST("/select", h.Select)
	p.POST("/price", h.Price)
}

func (h *CanvasEchoHandler) Snapshot(c echo.Context) error {
	req := &models.CanvasPath{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	view, err := h.svc.Snapshot(c.Request().Context(), req.CanvasID)
	if err != nil {
		return h.fail(c, "snapshot", err)
	}
	return xhttp.SuccessResponse(c, view)
}

func (h *CanvasEchoHandler) Open(c echo.Context) error {
	req := &models.CanvasPath{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	view, err := h.svc.OpenCanvas(c.Request().Context(), req.CanvasID)
	if err != nil {
		return h.fail(c, "open canvas", err)
	}
	return xhttp.SuccessResponse(c, view)
}

func (h *CanvasEchoHandler) AddPanel(c echo.Context) error {
	req := &models.AddPanelRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	view, err := h.svc.AddPanel(c.Request().Context(), req.CanvasID, req.PanelDefinition)
	if err != nil {
		return h.fail(c, "add panel", err)
	}
	return xhttp.CreatedResponse(c, view)
}

func (h *CanvasEchoHandler) RemovePanel(c echo.Context) error {
	req := &models.PanelPath{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.svc.RemovePanel(c.Request().Context(), req.CanvasID, req.PanelID); err != nil {
		return h.fail(c, "remove panel", err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *CanvasEchoHandler) Focus(c echo.Context) error {
	req := &models.PanelPath{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	view, err := h.svc.Focus(c.Request().Context(), req.CanvasID, req.PanelID)
	if err != nil {
		return h.fail(c, "focus", err)
	}
	return xhttp.SuccessResponse(c, view)
}

func (h *CanvasEchoHandler) BeginResize(c echo.Context) error {
	req := &models.BeginResizeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	origin := models.Point{X: req.X, Y: req.Y}
	if err := h.svc.BeginResize(c.Request().Context(), req.CanvasID, req.PanelID, req.Handle, origin); err != nil {
		return h.fail(c, "begin resize", err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *CanvasEchoHandler) BeginDrag(c echo.Context) error {
	req := &models.PointerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	origin := models.Point{X: req.X, Y: req.Y}
	if err := h.svc.BeginDrag(c.Request().Context(), req.CanvasID, req.PanelID, origin); err != nil {
		return h.fail(c, "begin drag", err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *CanvasEchoHandler) Pointer(c echo.Context) error {
	req := &models.PointerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rect, err := h.svc.PointerMoved(c.Request().Context(), req.CanvasID, req.PanelID, models.Point{X: req.X, Y: req.Y})
	if err != nil {
		return h.fail(c, "pointer", err)
	}
	return xhttp.SuccessResponse(c, rect)
}

func (h *CanvasEchoHandler) EndGesture(c echo.Context) error {
	req := &models.PanelPath{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rect, err := h.svc.EndResize(c.Request().Context(), req.CanvasID, req.PanelID)
	if err != nil {
		return h.fail(c, "end gesture", err)
	}
	return xhttp.SuccessResponse(c, rect)
}

func (h *CanvasEchoHandler) SetGroup(c echo.Context) error {
	req := &models.GroupRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.svc.SetGroup(c.Request().Context(), req.CanvasID, req.PanelID, req.Group)
	if err != nil {
		return h.fail(c, "set group", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *CanvasEchoHandler) SetInstrument(c echo.Context) error {
	req := &models.InstrumentRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	affected, err := h.svc.SetInstrument(c.Request().Context(), req.CanvasID, req.PanelID, req.Instrument)
	if err != nil {
		return h.fail(c, "set instrument", err)
	}
	return xhttp.SuccessResponse(c, map[string]any{"affected": affected})
}

func (h *CanvasEchoHandler) Select(c echo.Context) error {
	req := &models.SelectRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	q := usecase.SelectQuery{InstrumentID: req.InstrumentID, Symbol: req.Symbol}
	affected, found, err := h.svc.SelectInstrument(c.Request().Context(), req.CanvasID, req.PanelID, q, !req.SiblingsOnly)
	if err != nil {
		return h.fail(c, "select instrument", err)
	}
	if affected == nil {
		affected = []string{}
	}
	return xhttp.SuccessResponse(c, map[string]any{"found": found, "affected": affected})
}

func (h *CanvasEchoHandler) Price(c echo.Context) error {
	req := &models.PriceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	affected, err := h.svc.BroadcastPrice(c.Request().Context(), req.CanvasID, req.PanelID, req.Price)
	if err != nil {
		return h.fail(c, "broadcast price", err)
	}
	if affected == nil {
		affected = []string{}
	}
	return xhttp.SuccessResponse(c, map[string]any{"affected": affected})
}

func (h *CanvasEchoHandler) Events(c echo.Context) error {
	req := &models.EventsQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.events == nil {
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("event archive is disabled"))
	}
	now := time.Now()
	from := xhttp.ParseTimeDefault(req.From, now.Add(-24*time.Hour))
	to := xhttp.ParseTimeDefault(req.To, now)
	if to.Before(from) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("to must not be before from").
			WithParam("from", from).WithParam("to", to))
	}

	rows, err := h.events.Query(c.Request().Context(), req.CanvasID, from, to, req.Limit)
	if err != nil {
		h.logger.Error("event query failed", xlogger.String("canvas", req.CanvasID), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("event archive unavailable").WithError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *CanvasEchoHandler) Search(c echo.Context) error {
	req := &models.SearchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.search == nil {
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("instrument search is disabled"))
	}
	res, err := h.search.Search(c.Request().Context(), req.Q)
	if err != nil {
		h.logger.Warn("instrument search failed", xlogger.String("q", req.Q), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("instrument search unavailable").WithError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, res)
}

func (h *CanvasEchoHandler) fail(c echo.Context, op string, err error) error {
	appErr := mapError(err)
	if appErr.Status >= 500 {
		h.logger.Error(op+" failed", xlogger.Error(err))
	} else {
		h.logger.Debug(op+" rejected", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func mapError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, usecase.ErrCanvasNotFound), errors.Is(err, usecase.ErrPanelNotFound):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, usecase.ErrPanelExists):
		return xhttp.ConflictError(err.Error()).WithError(err)
	case errors.Is(err, usecase.ErrNoActiveGesture):
		return xhttp.NewAppError("ERR_NO_GESTURE", "panel", err.Error(), http.StatusConflict).WithError(err)
	case errors.Is(err, usecase.ErrInvalidGroup):
		return xhttp.NewAppError("ERR_BAD_GROUP", "group", err.Error(), http.StatusBadRequest).WithError(err)
	case errors.Is(err, usecase.ErrInvalidHandle):
		return xhttp.NewAppError("ERR_BAD_HANDLE", "handle", err.Error(), http.StatusBadRequest).WithError(err)
	case errors.Is(err, usecase.ErrDispatcherDone),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return xhttp.UnavailableError(err.Error()).WithError(err)
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
}
