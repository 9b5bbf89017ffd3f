package window

import (
	"context"
	"sync"
	"time"

	"github.com/je4/mediashell/pkg/settings"
	"github.com/je4/mediashell/pkg/view"
	"github.com/je4/utils/v2/pkg/zLogger"
)

// Driver is the native window access the controller needs. The embedded
// view's surface implements it.
type Driver interface {
	GetWindowBounds(ctx context.Context) (view.WindowBounds, error)
	SetWindowBounds(ctx context.Context, bounds view.WindowBounds, hasPosition bool) error
	SetBackgroundColor(ctx context.Context, darkMode bool) error
	Done() <-chan struct{}
}

type EventKind string

const (
	EventResize     EventKind = "resize"
	EventMaximize   EventKind = "maximize"
	EventUnmaximize EventKind = "unmaximize"
	EventClose      EventKind = "close"
)

type Listener func(kind EventKind, state settings.DisplayState)

// Subscription is one registered window listener, released individually or
// in one pass on teardown.
type Subscription struct {
	released bool
	kinds    []EventKind
	listener Listener
	window   *HostWindow
}

func (sub *Subscription) Release() {
	sub.window.mutex.Lock()
	defer sub.window.mutex.Unlock()
	sub.released = true
}

// HostWindow owns the native window: it restores persisted bounds at
// startup, watches the window for move/resize/maximize transitions (the
// browser pushes no window events, so it polls) and persists every change.
// It is the only writer of the DisplayState record.
type HostWindow struct {
	driver   Driver
	store    *settings.Store
	logger   zLogger.ZLogger
	interval time.Duration

	mutex     sync.Mutex
	state     settings.DisplayState
	listeners []*Subscription
}

func NewHostWindow(driver Driver, store *settings.Store, logger zLogger.ZLogger) *HostWindow {
	return &HostWindow{
		driver:   driver,
		store:    store,
		logger:   logger,
		interval: 500 * time.Millisecond,
		state:    settings.DefaultState(),
	}
}

// Restore loads the persisted state and applies it to the window. Without a
// stored position the window manager places the window itself.
func (window *HostWindow) Restore(ctx context.Context) settings.DisplayState {
	state := window.store.Load()
	window.mutex.Lock()
	window.state = state
	window.mutex.Unlock()

	bounds := view.WindowBounds{
		Width:     state.Width,
		Height:    state.Height,
		Maximized: state.IsMaximized,
	}
	hasPosition := state.X != nil && state.Y != nil
	if hasPosition {
		bounds.X = *state.X
		bounds.Y = *state.Y
	}
	if err := window.driver.SetWindowBounds(ctx, bounds, hasPosition); err != nil {
		window.logger.Error().Err(err).Msg("cannot restore window bounds")
	}
	return state
}

// State returns a copy of the current DisplayState.
func (window *HostWindow) State() settings.DisplayState {
	window.mutex.Lock()
	defer window.mutex.Unlock()
	return window.state
}

// Update mutates the DisplayState under the window's lock and persists the
// result. All preference toggles funnel through here.
func (window *HostWindow) Update(mutate func(state *settings.DisplayState)) settings.DisplayState {
	window.mutex.Lock()
	mutate(&window.state)
	state := window.state
	window.mutex.Unlock()
	window.store.Save(state)
	return state
}

// On registers a listener for the given event kinds (all kinds when empty).
func (window *HostWindow) On(listener Listener, kinds ...EventKind) *Subscription {
	sub := &Subscription{kinds: kinds, listener: listener, window: window}
	window.mutex.Lock()
	window.listeners = append(window.listeners, sub)
	window.mutex.Unlock()
	return sub
}

// ReleaseAll drops every registered listener in one pass.
func (window *HostWindow) ReleaseAll() {
	window.mutex.Lock()
	defer window.mutex.Unlock()
	for _, sub := range window.listeners {
		sub.released = true
	}
	window.listeners = nil
}

func (window *HostWindow) emit(kind EventKind, state settings.DisplayState) {
	window.mutex.Lock()
	active := make([]*Subscription, 0, len(window.listeners))
	for _, sub := range window.listeners {
		if sub.released {
			continue
		}
		if len(sub.kinds) == 0 {
			active = append(active, sub)
			continue
		}
		for _, k := range sub.kinds {
			if k == kind {
				active = append(active, sub)
				break
			}
		}
	}
	window.mutex.Unlock()
	for _, sub := range active {
		sub.listener(kind, state)
	}
}

// Watch polls the window bounds and synthesizes resize/maximize/unmaximize
// events from the transitions. It returns when the context ends or the
// window closes, persisting the final state either way.
func (window *HostWindow) Watch(ctx context.Context) error {
	ticker := time.NewTicker(window.interval)
	defer ticker.Stop()

	prev, err := window.driver.GetWindowBounds(ctx)
	if err != nil {
		window.logger.Debug().Err(err).Msg("cannot read initial window bounds")
	}
	for {
		select {
		case <-ctx.Done():
			window.persist()
			return nil
		case <-window.driver.Done():
			window.logger.Info().Msg("window closed")
			window.persist()
			window.emit(EventClose, window.State())
			return nil
		case <-ticker.C:
			cur, err := window.driver.GetWindowBounds(ctx)
			if err != nil {
				window.logger.Debug().Err(err).Msg("cannot read window bounds")
				continue
			}
			if cur == prev {
				continue
			}
			// a pure move emits no event but still gets persisted
			events := classify(prev, cur)
			state := window.Update(func(s *settings.DisplayState) {
				applyBounds(s, cur)
			})
			for _, kind := range events {
				window.emit(kind, state)
			}
			prev = cur
		}
	}
}

// SetBackground switches the window background for theme changes.
func (window *HostWindow) SetBackground(ctx context.Context, darkMode bool) {
	if err := window.driver.SetBackgroundColor(ctx, darkMode); err != nil {
		window.logger.Error().Err(err).Msg("cannot switch window background")
	}
}

func (window *HostWindow) persist() {
	window.store.Save(window.State())
}

// classify derives the lifecycle events between two bounds snapshots.
func classify(prev view.WindowBounds, cur view.WindowBounds) []EventKind {
	events := []EventKind{}
	if cur.Maximized && !prev.Maximized {
		events = append(events, EventMaximize)
	}
	if !cur.Maximized && prev.Maximized {
		events = append(events, EventUnmaximize)
	}
	if cur.Width != prev.Width || cur.Height != prev.Height {
		events = append(events, EventResize)
	}
	return events
}

// applyBounds folds a bounds snapshot into the persisted record. Maximized
// geometry is not recorded, unmaximize has to restore the floating bounds.
func applyBounds(state *settings.DisplayState, cur view.WindowBounds) {
	state.IsMaximized = cur.Maximized
	if cur.Maximized {
		return
	}
	state.Width = cur.Width
	state.Height = cur.Height
	x := cur.X
	y := cur.Y
	state.X = &x
	state.Y = &y
}
