package models

import "fmt"

const (
	DefaultMinWidth  = 275
	DefaultMinHeight = 395
)

// GroupTag links panels for synchronized instrument selection.
// The empty tag means the panel belongs to no group.
type GroupTag string

const NoGroup GroupTag = ""

// ParseGroupTag accepts "1".."9" or the empty string.
func ParseGroupTag(s string) (GroupTag, error) {
	if s == "" {
		return NoGroup, nil
	}
	if len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
		return GroupTag(s), nil
	}
	return NoGroup, fmt.Errorf("group tag must be 1..9 or empty, got %q", s)
}

// IsSet reports whether the tag names a group.
func (g GroupTag) IsSet() bool { return g != NoGroup }

// SyncState guards instrument assignment against re-entrant broadcast.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncBroadcasting
	SyncImporting
)

func (s SyncState) String() string {
	switch s {
	case SyncIdle:
		return "idle"
	case SyncBroadcasting:
		return "broadcasting"
	case SyncImporting:
		return "importing"
	default:
		return "unknown"
	}
}

// Instrument is a tradable instrument bound to a panel. ID is opaque.
type Instrument struct {
	ID       string `json:"id" validate:"required"`
	Symbol   string `json:"symbol" validate:"required"`
	FullName string `json:"full_name"`
	Type     string `json:"type"` // asset class: stock, bond, future, crypto...
	ISIN     string `json:"isin,omitempty"`
	Exchange string `json:"exchange,omitempty"`
	Currency string `json:"currency,omitempty"`
}

// SameInstrument compares two possibly nil instruments by id.
func SameInstrument(a, b *Instrument) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}

// InstrumentID returns the id of i, or "" for nil.
func InstrumentID(i *Instrument) string {
	if i == nil {
		return ""
	}
	return i.ID
}

// Panel is a single movable, resizable widget on a canvas.
type Panel struct {
	ID           string
	Kind         string
	Rect         Rect
	MinWidth     int
	MinHeight    int
	ZIndex       int
	Group        GroupTag
	Instrument   *Instrument
	AcceptsPrice bool
	Price        float64
	Sync         SyncState
}

// PanelDefinition is the configuration record a panel is created from.
type PanelDefinition struct {
	ID            string      `json:"id"`
	Kind          string      `json:"kind" validate:"required"`
	MinWidth      int         `json:"min_width" validate:"gte=0"`
	MinHeight     int         `json:"min_height" validate:"gte=0"`
	DefaultWidth  int         `json:"default_width" validate:"gte=0"`
	DefaultHeight int         `json:"default_height" validate:"gte=0"`
	X             int         `json:"x" validate:"gte=0"`
	Y             int         `json:"y" validate:"gte=0"`
	Width         int         `json:"width" validate:"gte=0"`
	Height        int         `json:"height" validate:"gte=0"`
	ZIndex        int         `json:"z_index" validate:"gte=0"`
	Group         GroupTag    `json:"group" validate:"omitempty,oneof=1 2 3 4 5 6 7 8 9"`
	AcceptsPrice  bool        `json:"accepts_price"`
	Instrument    *Instrument `json:"instrument,omitempty"`
}

// Size resolves the initial panel size: saved size first, then the
// definition default, then the minimum.
func (d PanelDefinition) Size() (int, int) {
	minW, minH := d.MinWidth, d.MinHeight
	if minW <= 0 {
		minW = DefaultMinWidth
	}
	if minH <= 0 {
		minH = DefaultMinHeight
	}
	w, h := d.Width, d.Height
	if w <= 0 {
		w = d.DefaultWidth
	}
	if w <= 0 {
		w = minW
	}
	if h <= 0 {
		h = d.DefaultHeight
	}
	if h <= 0 {
		h = minH
	}
	return max(w, minW), max(h, minH)
}

// PanelView is the read-only projection returned to callers.
type PanelView struct {
	ID           string      `json:"id"`
	Kind         string      `json:"kind"`
	Rect         Rect        `json:"rect"`
	MinWidth     int         `json:"min_width"`
	MinHeight    int         `json:"min_height"`
	ZIndex       int         `json:"z_index"`
	Group        GroupTag    `json:"group,omitempty"`
	Instrument   *Instrument `json:"instrument,omitempty"`
	AcceptsPrice bool        `json:"accepts_price"`
	Price        float64     `json:"price,omitempty"`
}

// View copies the panel into its projection.
func (p *Panel) View() PanelView {
	v := PanelView{
		ID:           p.ID,
		Kind:         p.Kind,
		Rect:         p.Rect,
		MinWidth:     p.MinWidth,
		MinHeight:    p.MinHeight,
		ZIndex:       p.ZIndex,
		Group:        p.Group,
		AcceptsPrice: p.AcceptsPrice,
		Price:        p.Price,
	}
	if p.Instrument != nil {
		inst := *p.Instrument
		v.Instrument = &inst
	}
	return v
}

// CanvasView is a snapshot of a canvas.
type CanvasView struct {
	ID     string      `json:"id"`
	ZIndex int         `json:"z_index"`
	Panels []PanelView `json:"panels"`
}
