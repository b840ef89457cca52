package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PanelSync/internal/domain/models"
	drepo "PanelSync/internal/domain/repository"
	applogger "PanelSync/pkg/logger"
)

type envelope struct {
	ctx   context.Context
	cmd   Command
	reply chan result
}

type result struct {
	value any
	err   error
}

// Dispatcher owns every open canvas and executes commands one at a time on
// a single goroutine. Lookups that block on I/O run in the caller.
type Dispatcher struct {
	canvases map[string]*Canvas
	opts     CanvasOptions
	deps     Deps
	reader   drepo.PanelReader
	finder   drepo.InstrumentFinder

	cmds     chan envelope
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewDispatcher creates a dispatcher. reader and finder may be nil, in which
// case OpenCanvas seeds empty canvases and SelectInstrument finds nothing.
func NewDispatcher(opts CanvasOptions, deps Deps, reader drepo.PanelReader, finder drepo.InstrumentFinder, queue int) *Dispatcher {
	deps.fill()
	if queue <= 0 {
		queue = 64
	}
	return &Dispatcher{
		canvases: make(map[string]*Canvas),
		opts:     opts,
		deps:     deps,
		reader:   reader,
		finder:   finder,
		cmds:     make(chan envelope, queue),
		done:     make(chan struct{}),
	}
}

// Start launches the dispatch loop.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.loop()
	d.deps.Logger.Info("dispatcher started", applogger.Int("queue", cap(d.cmds)))
}

// Stop ends the loop after the command in flight. Queued commands fail
// with ErrDispatcherDone.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.done)
	})
	d.wg.Wait()
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			d.drain()
			return
		case env := <-d.cmds:
			d.run(env)
		}
	}
}

func (d *Dispatcher) run(env envelope) {
	if err := env.ctx.Err(); err != nil {
		env.reply <- result{err: err}
		return
	}
	start := time.Now()
	v, err := env.cmd.execute(env.ctx, d)
	d.deps.Metrics.RecordLatency(env.cmd.Name(), time.Since(start).Seconds())
	env.reply <- result{value: v, err: err}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case env := <-d.cmds:
			env.reply <- result{err: ErrDispatcherDone}
		default:
			return
		}
	}
}

// Dispatch submits cmd and waits for its result.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (any, error) {
	env := envelope{ctx: ctx, cmd: cmd, reply: make(chan result, 1)}
	select {
	case <-d.done:
		return nil, ErrDispatcherDone
	case <-ctx.Done():
		return nil, ctx.Err()
	case d.cmds <- env:
	}
	select {
	case r := <-env.reply:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-d.done:
		d.wg.Wait()
		select {
		case r := <-env.reply:
			return r.value, r.err
		default:
			return nil, ErrDispatcherDone
		}
	}
}

func (d *Dispatcher) canvas(id string) (*Canvas, error) {
	c, ok := d.canvases[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCanvasNotFound, id)
	}
	return c, nil
}

func (d *Dispatcher) canvasOrCreate(id string) *Canvas {
	if c, ok := d.canvases[id]; ok {
		return c
	}
	c := NewCanvas(id, d.opts, d.deps)
	d.canvases[id] = c
	return c
}

// OpenCanvas restores a canvas from the store. Stored instrument references
// are resolved before the panels are installed; unknown ids are dropped.
func (d *Dispatcher) OpenCanvas(ctx context.Context, canvasID string) (models.CanvasView, error) {
	var defs []models.PanelDefinition
	if d.reader != nil {
		stored, err := d.reader.LoadPanels(ctx, canvasID)
		if err != nil {
			return models.CanvasView{}, fmt.Errorf("load canvas %s: %w", canvasID, err)
		}
		defs = make([]models.PanelDefinition, 0, len(stored))
		for _, sp := range stored {
			def, instID := sp.Definition()
			if instID != "" {
				def.Instrument = d.lookup(ctx, instID, "")
			}
			defs = append(defs, def)
		}
	}
	v, err := d.Dispatch(ctx, seedCanvas{CanvasID: canvasID, Definitions: defs})
	if err != nil {
		return models.CanvasView{}, err
	}
	return v.(models.CanvasView), nil
}

// SelectQuery identifies an instrument by id or, failing that, by symbol.
type SelectQuery struct {
	InstrumentID string
	Symbol       string
}

// SelectInstrument resolves q and applies it. With selectOnThis the panel
// itself takes the instrument and broadcasts it; otherwise only the other
// members of its group receive it. An unresolved query is a no-op and
// returns found == false.
func (d *Dispatcher) SelectInstrument(ctx context.Context, canvasID, panelID string, q SelectQuery, selectOnThis bool) (affected []string, found bool, err error) {
	inst := d.lookup(ctx, q.InstrumentID, q.Symbol)
	if inst == nil {
		return nil, false, nil
	}
	var v any
	if selectOnThis {
		v, err = d.Dispatch(ctx, SetInstrument{CanvasID: canvasID, PanelID: panelID, Instrument: inst})
	} else {
		v, err = d.Dispatch(ctx, PushToGroup{CanvasID: canvasID, PanelID: panelID, Instrument: inst})
	}
	if err != nil {
		return nil, true, err
	}
	ids, _ := v.([]string)
	return ids, true, nil
}

func (d *Dispatcher) lookup(ctx context.Context, id, symbol string) *models.Instrument {
	if d.finder == nil {
		return nil
	}
	var (
		inst *models.Instrument
		err  error
	)
	if id != "" {
		inst, err = d.finder.FindByID(ctx, id)
	}
	if inst == nil && err == nil && symbol != "" {
		inst, err = d.finder.FindBySymbol(ctx, symbol)
	}
	if err != nil {
		d.deps.Metrics.RecordError("instrument_lookup")
		d.deps.Logger.Warn("instrument lookup failed",
			applogger.String("id", id),
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return nil
	}
	return inst
}

// Typed wrappers used by the transports.

func (d *Dispatcher) AddPanel(ctx context.Context, canvasID string, def models.PanelDefinition) (models.PanelView, error) {
	v, err := d.Dispatch(ctx, AddPanel{CanvasID: canvasID, Definition: def})
	if err != nil {
		return models.PanelView{}, err
	}
	return v.(models.PanelView), nil
}

func (d *Dispatcher) RemovePanel(ctx context.Context, canvasID, panelID string) error {
	_, err := d.Dispatch(ctx, RemovePanel{CanvasID: canvasID, PanelID: panelID})
	return err
}

func (d *Dispatcher) Focus(ctx context.Context, canvasID, panelID string) (models.PanelView, error) {
	v, err := d.Dispatch(ctx, FocusPanel{CanvasID: canvasID, PanelID: panelID})
	if err != nil {
		return models.PanelView{}, err
	}
	return v.(models.PanelView), nil
}

func (d *Dispatcher) BeginResize(ctx context.Context, canvasID, panelID string, h models.Handle, origin models.Point) error {
	_, err := d.Dispatch(ctx, BeginResize{CanvasID: canvasID, PanelID: panelID, Handle: h, Origin: origin})
	return err
}

func (d *Dispatcher) BeginDrag(ctx context.Context, canvasID, panelID string, origin models.Point) error {
	_, err := d.Dispatch(ctx, BeginDrag{CanvasID: canvasID, PanelID: panelID, Origin: origin})
	return err
}

func (d *Dispatcher) PointerMoved(ctx context.Context, canvasID, panelID string, p models.Point) (models.Rect, error) {
	v, err := d.Dispatch(ctx, PointerMoved{CanvasID: canvasID, PanelID: panelID, Pointer: p})
	if err != nil {
		return models.Rect{}, err
	}
	return v.(models.Rect), nil
}

func (d *Dispatcher) EndResize(ctx context.Context, canvasID, panelID string) (models.Rect, error) {
	v, err := d.Dispatch(ctx, EndResize{CanvasID: canvasID, PanelID: panelID})
	if err != nil {
		return models.Rect{}, err
	}
	return v.(models.Rect), nil
}

func (d *Dispatcher) SetGroup(ctx context.Context, canvasID, panelID, group string) (GroupResult, error) {
	v, err := d.Dispatch(ctx, SetGroup{CanvasID: canvasID, PanelID: panelID, Group: group})
	if err != nil {
		return GroupResult{}, err
	}
	return v.(GroupResult), nil
}

func (d *Dispatcher) SetInstrument(ctx context.Context, canvasID, panelID string, inst *models.Instrument) ([]string, error) {
	v, err := d.Dispatch(ctx, SetInstrument{CanvasID: canvasID, PanelID: panelID, Instrument: inst})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func (d *Dispatcher) BroadcastPrice(ctx context.Context, canvasID, panelID string, price float64) ([]string, error) {
	v, err := d.Dispatch(ctx, BroadcastPrice{CanvasID: canvasID, PanelID: panelID, Price: price})
	if err != nil {
		return nil, err
	}
	ids, _ := v.([]string)
	return ids, nil
}

func (d *Dispatcher) Snapshot(ctx context.Context, canvasID string) (models.CanvasView, error) {
	v, err := d.Dispatch(ctx, SnapshotCanvas{CanvasID: canvasID})
	if err != nil {
		return models.CanvasView{}, err
	}
	return v.(models.CanvasView), nil
}

var _ Selector = (*Dispatcher)(nil)
