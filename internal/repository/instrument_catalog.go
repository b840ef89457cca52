package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"PanelSync/internal/domain/models"
	drepo "PanelSync/internal/domain/repository"
	"PanelSync/internal/service/cache"
	"PanelSync/pkg/docstore"
)

const (
	instrumentCollection = "instruments"
	symbolIndex          = "instruments/by_symbol"
)

// InstrumentCatalog stores instruments as documents and resolves them by id
// or symbol. Hits and misses are cached for ttl.
type InstrumentCatalog struct {
	store docstore.Store
	cache *cache.TTLCache[*models.Instrument]
}

// NewInstrumentCatalog creates a catalog over store.
func NewInstrumentCatalog(store docstore.Store, ttl time.Duration, maxEntries int) *InstrumentCatalog {
	return &InstrumentCatalog{
		store: store,
		cache: cache.NewTTLCache[*models.Instrument](ttl, maxEntries),
	}
}

// Put stores inst and indexes it by upper-cased symbol. A previous symbol
// of the same id is unindexed.
func (c *InstrumentCatalog) Put(ctx context.Context, inst models.Instrument) error {
	if inst.ID == "" || inst.Symbol == "" {
		return fmt.Errorf("instrument needs id and symbol")
	}
	sym := symbolKey(inst.Symbol)
	if err := c.unindexPrevious(ctx, inst.ID, sym); err != nil {
		return err
	}
	fields := map[string]any{
		"symbol":    inst.Symbol,
		"full_name": inst.FullName,
		"type":      inst.Type,
		"isin":      inst.ISIN,
		"exchange":  inst.Exchange,
		"currency":  inst.Currency,
	}
	if err := c.store.Upsert(ctx, instrumentCollection, inst.ID, fields); err != nil {
		return fmt.Errorf("store instrument %s: %w", inst.ID, err)
	}
	if err := c.store.Upsert(ctx, symbolIndex, sym, map[string]any{"id": inst.ID}); err != nil {
		return fmt.Errorf("index symbol %s: %w", inst.Symbol, err)
	}
	stored := inst
	c.cache.Set("id:"+inst.ID, &stored)
	c.cache.Set("sym:"+sym, &stored)
	return nil
}

func (c *InstrumentCatalog) unindexPrevious(ctx context.Context, id, sym string) error {
	prev, err := c.load(ctx, id)
	if err != nil || prev == nil {
		return err
	}
	old := symbolKey(prev.Symbol)
	if old == "" || old == sym {
		return nil
	}
	idx, err := c.store.Get(ctx, symbolIndex, old)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
	case err != nil:
		return fmt.Errorf("symbol index %s: %w", old, err)
	case idx["id"] == id:
		// the old symbol may since belong to another instrument
		if err := c.store.Delete(ctx, symbolIndex, old); err != nil {
			return fmt.Errorf("unindex symbol %s: %w", old, err)
		}
	}
	c.cache.Delete("sym:" + old)
	return nil
}

// PutAll stores every instrument of a search result.
func (c *InstrumentCatalog) PutAll(ctx context.Context, res *models.SearchResult) error {
	if res == nil {
		return nil
	}
	all := make([]models.Instrument, 0, 1+len(res.SymbolMatches)+len(res.NameMatches))
	if res.ExactMatch != nil {
		all = append(all, *res.ExactMatch)
	}
	all = append(all, res.SymbolMatches...)
	all = append(all, res.NameMatches...)
	for _, inst := range all {
		if err := c.Put(ctx, inst); err != nil {
			return err
		}
	}
	return nil
}

// FindByID returns (nil, nil) when the id is unknown.
func (c *InstrumentCatalog) FindByID(ctx context.Context, id string) (*models.Instrument, error) {
	if id == "" {
		return nil, nil
	}
	key := "id:" + id
	if inst, ok := c.cache.Get(key); ok {
		return inst, nil
	}
	inst, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, inst)
	return inst, nil
}

// FindBySymbol matches symbols case-insensitively.
func (c *InstrumentCatalog) FindBySymbol(ctx context.Context, symbol string) (*models.Instrument, error) {
	sym := symbolKey(symbol)
	if sym == "" {
		return nil, nil
	}
	key := "sym:" + sym
	if inst, ok := c.cache.Get(key); ok {
		return inst, nil
	}
	idx, err := c.store.Get(ctx, symbolIndex, sym)
	if errors.Is(err, docstore.ErrNotFound) {
		c.cache.Set(key, nil)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("symbol index %s: %w", sym, err)
	}
	inst, err := c.load(ctx, idx["id"])
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, inst)
	return inst, nil
}

func (c *InstrumentCatalog) load(ctx context.Context, id string) (*models.Instrument, error) {
	doc, err := c.store.Get(ctx, instrumentCollection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load instrument %s: %w", id, err)
	}
	return &models.Instrument{
		ID:       id,
		Symbol:   doc["symbol"],
		FullName: doc["full_name"],
		Type:     doc["type"],
		ISIN:     doc["isin"],
		Exchange: doc["exchange"],
		Currency: doc["currency"],
	}, nil
}

func symbolKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

var _ drepo.InstrumentFinder = (*InstrumentCatalog)(nil)
