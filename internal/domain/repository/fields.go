package repository

import (
	"strconv"

	"PanelSync/internal/domain/models"
)

// Panel document field names.
const (
	FieldKind         = "kind"
	FieldX            = "x"
	FieldY            = "y"
	FieldWidth        = "width"
	FieldHeight       = "height"
	FieldMinWidth     = "minWidth"
	FieldMinHeight    = "minHeight"
	FieldZIndex       = "zIndex"
	FieldGroup        = "group"
	FieldInstrumentID = "instrumentId"
	FieldAcceptsPrice = "acceptsPrice"
)

// Fields is a partial panel document. A nil value clears the field.
type Fields map[string]any

// FieldWrite is one entry of a batch upsert, keyed by panel.
type FieldWrite struct {
	PanelID string
	Fields  Fields
}

// GeometryFields returns the fields written when a gesture ends.
func GeometryFields(r models.Rect) Fields {
	return Fields{
		FieldX:      r.X,
		FieldY:      r.Y,
		FieldWidth:  r.Width,
		FieldHeight: r.Height,
	}
}

// GroupFields returns the group field, nil when unset.
func GroupFields(g models.GroupTag) Fields {
	if !g.IsSet() {
		return Fields{FieldGroup: nil}
	}
	return Fields{FieldGroup: string(g)}
}

// InstrumentFields returns the instrument reference field.
func InstrumentFields(i *models.Instrument) Fields {
	if i == nil {
		return Fields{FieldInstrumentID: nil}
	}
	return Fields{FieldInstrumentID: i.ID}
}

// PanelFields returns the full document for a freshly created panel.
func PanelFields(p *models.Panel) Fields {
	f := GeometryFields(p.Rect)
	f[FieldKind] = p.Kind
	f[FieldMinWidth] = p.MinWidth
	f[FieldMinHeight] = p.MinHeight
	f[FieldZIndex] = p.ZIndex
	f[FieldAcceptsPrice] = p.AcceptsPrice
	for k, v := range GroupFields(p.Group) {
		f[k] = v
	}
	for k, v := range InstrumentFields(p.Instrument) {
		f[k] = v
	}
	return f
}

// StoredPanel is a panel document read back from the store.
type StoredPanel struct {
	ID     string
	Fields map[string]string
}

// Definition converts the stored document into a panel definition.
// InstrumentID is returned separately; the caller resolves it.
func (s StoredPanel) Definition() (models.PanelDefinition, string) {
	atoi := func(k string) int {
		v, err := strconv.Atoi(s.Fields[k])
		if err != nil {
			return 0
		}
		return v
	}
	group, err := models.ParseGroupTag(s.Fields[FieldGroup])
	if err != nil {
		group = models.NoGroup
	}
	accepts, _ := strconv.ParseBool(s.Fields[FieldAcceptsPrice])
	return models.PanelDefinition{
		ID:           s.ID,
		Kind:         s.Fields[FieldKind],
		MinWidth:     atoi(FieldMinWidth),
		MinHeight:    atoi(FieldMinHeight),
		X:            atoi(FieldX),
		Y:            atoi(FieldY),
		Width:        atoi(FieldWidth),
		Height:       atoi(FieldHeight),
		ZIndex:       atoi(FieldZIndex),
		Group:        group,
		AcceptsPrice: accepts,
	}, s.Fields[FieldInstrumentID]
}
