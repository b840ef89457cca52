package models

// Requests for canvas HTTP endpoints. Defined in domain for consistency and reuse.
// Path parameters bind through the param tag and never from the body.

type CanvasPath struct {
	CanvasID string `param:"canvas" json:"-" validate:"required,max=128"`
}

type PanelPath struct {
	CanvasID string `param:"canvas" json:"-" validate:"required,max=128"`
	PanelID  string `param:"panel" json:"-" validate:"required,max=128"`
}

type AddPanelRequest struct {
	CanvasID string `param:"canvas" json:"-" validate:"required,max=128"`
	PanelDefinition
}

type PointerRequest struct {
	PanelPath
	X int `json:"x"`
	Y int `json:"y"`
}

type BeginResizeRequest struct {
	PanelPath
	Handle Handle `json:"handle" validate:"required,oneof=top right bottom left ne se sw nw"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
}

type GroupRequest struct {
	PanelPath
	Group string `json:"group" validate:"omitempty,oneof=1 2 3 4 5 6 7 8 9"`
}

type InstrumentRequest struct {
	PanelPath
	Instrument *Instrument `json:"instrument" validate:"omitempty"`
}

type SelectRequest struct {
	PanelPath
	InstrumentID string `json:"instrument_id"`
	Symbol       string `json:"symbol" validate:"required_without=InstrumentID"`
	SiblingsOnly bool   `json:"siblings_only"`
}

type PriceRequest struct {
	PanelPath
	Price float64 `json:"price" validate:"gt=0"`
}

type EventsQuery struct {
	CanvasID string `param:"canvas" json:"-" validate:"required,max=128"`
	From     string `query:"from" json:"from"`
	To       string `query:"to" json:"to"`
	Limit    int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}

type SearchRequest struct {
	Q string `query:"q" json:"q" validate:"required,min=1,max=64"`
}
