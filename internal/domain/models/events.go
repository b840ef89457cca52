package models

import "time"

// EventType classifies canvas events published for other consumers.
type EventType string

const (
	EventPanelAdded          EventType = "panel_added"
	EventPanelRemoved        EventType = "panel_removed"
	EventPanelFocused        EventType = "panel_focused"
	EventGeometryCommitted   EventType = "geometry_committed"
	EventGroupChanged        EventType = "group_changed"
	EventInstrumentBroadcast EventType = "instrument_broadcast"
	EventPriceBroadcast      EventType = "price_broadcast"
)

// CanvasEvent is the payload published after a state change settles.
// Note: transport encoding lives in the repository layer.
type CanvasEvent struct {
	Type         EventType `json:"type"`
	CanvasID     string    `json:"canvas_id"`
	PanelID      string    `json:"panel_id"`
	Timestamp    time.Time `json:"ts"`
	Rect         *Rect     `json:"rect,omitempty"`
	ZIndex       int       `json:"z_index,omitempty"`
	Group        GroupTag  `json:"group,omitempty"`
	InstrumentID string    `json:"instrument_id,omitempty"`
	Price        float64   `json:"price,omitempty"`
	Affected     []string  `json:"affected,omitempty"`
}

// InstrumentSelection is an externally sourced request to bind an
// instrument to a panel, e.g. from a terminal or an alert engine.
type InstrumentSelection struct {
	CanvasID     string `json:"canvas_id"`
	PanelID      string `json:"panel_id"`
	InstrumentID string `json:"instrument_id"`
	Symbol       string `json:"symbol"`
	SelectOnThis bool   `json:"select_on_this"`
}

// SearchResult is the shape the instrument search collaborator returns.
type SearchResult struct {
	ExactMatch    *Instrument  `json:"exact_match,omitempty"`
	SymbolMatches []Instrument `json:"symbol_matches"`
	NameMatches   []Instrument `json:"name_matches"`
}
