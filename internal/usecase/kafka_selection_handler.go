package usecase

import (
	"context"
	"encoding/json"
	"errors"

	"PanelSync/internal/domain/models"
	domrepo "PanelSync/internal/domain/repository"
	pkgkafka "PanelSync/pkg/kafka"
	applogger "PanelSync/pkg/logger"
)

// Selector is the part of the dispatcher the selection handler drives.
type Selector interface {
	SelectInstrument(ctx context.Context, canvasID, panelID string, q SelectQuery, selectOnThis bool) ([]string, bool, error)
}

// KafkaSelectionHandler applies instrument selections made by other
// applications to the addressed panel.
type KafkaSelectionHandler struct {
	topic    string
	selector Selector
	metrics  domrepo.Metrics
	log      *applogger.Logger
}

func NewKafkaSelectionHandler(topic string, selector Selector, metrics domrepo.Metrics, log *applogger.Logger) *KafkaSelectionHandler {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if log == nil {
		log = applogger.NewNop()
	}
	return &KafkaSelectionHandler{topic: topic, selector: selector, metrics: metrics, log: log}
}

func (h *KafkaSelectionHandler) Topic() string { return h.topic }

// Handle applies one selection. Messages addressing an unknown canvas or
// panel are acknowledged and dropped.
func (h *KafkaSelectionHandler) Handle(ctx context.Context, b []byte) error {
	var sel models.InstrumentSelection
	if err := json.Unmarshal(b, &sel); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if sel.CanvasID == "" || sel.PanelID == "" {
		h.metrics.RecordError("selection_invalid")
		return nil
	}

	affected, found, err := h.selector.SelectInstrument(ctx, sel.CanvasID, sel.PanelID,
		SelectQuery{InstrumentID: sel.InstrumentID, Symbol: sel.Symbol}, sel.SelectOnThis)
	switch {
	case errors.Is(err, ErrCanvasNotFound), errors.Is(err, ErrPanelNotFound):
		h.log.Debug("selection for unknown panel dropped",
			applogger.String("canvas", sel.CanvasID),
			applogger.String("panel", sel.PanelID),
		)
		return nil
	case err != nil:
		h.metrics.RecordError("selection_apply")
		return err
	case !found:
		h.log.Debug("selection instrument not found",
			applogger.String("id", sel.InstrumentID),
			applogger.String("symbol", sel.Symbol),
		)
		return nil
	}
	h.log.Info("selection applied",
		applogger.String("canvas", sel.CanvasID),
		applogger.String("panel", sel.PanelID),
		applogger.Strings("affected", affected),
	)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaSelectionHandler)(nil)
