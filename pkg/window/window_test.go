package window

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/je4/mediashell/pkg/settings"
	"github.com/je4/mediashell/pkg/view"
	"github.com/je4/utils/v2/pkg/zLogger"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeDriver struct {
	mutex    sync.Mutex
	bounds   view.WindowBounds
	applied  []view.WindowBounds
	done     chan struct{}
	doneOnce sync.Once
}

func newFakeDriver(bounds view.WindowBounds) *fakeDriver {
	return &fakeDriver{bounds: bounds, done: make(chan struct{})}
}

func (f *fakeDriver) GetWindowBounds(ctx context.Context) (view.WindowBounds, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.bounds, nil
}

func (f *fakeDriver) SetWindowBounds(ctx context.Context, bounds view.WindowBounds, hasPosition bool) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.applied = append(f.applied, bounds)
	f.bounds = bounds
	return nil
}

func (f *fakeDriver) SetBackgroundColor(ctx context.Context, darkMode bool) error {
	return nil
}

func (f *fakeDriver) Done() <-chan struct{} {
	return f.done
}

func (f *fakeDriver) setBounds(bounds view.WindowBounds) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.bounds = bounds
}

func (f *fakeDriver) close() {
	f.doneOnce.Do(func() { close(f.done) })
}

func testWindow(t *testing.T, driver Driver) *HostWindow {
	t.Helper()
	logger := zerolog.Nop()
	zlogger := zLogger.ZLogger(&logger)
	store := settings.NewStore(t.TempDir(), zlogger)
	window := NewHostWindow(driver, store, zlogger)
	window.interval = 5 * time.Millisecond
	return window
}

func TestClassify(t *testing.T) {
	floating := view.WindowBounds{X: 10, Y: 20, Width: 1200, Height: 800}
	for _, tc := range []struct {
		name string
		prev view.WindowBounds
		cur  view.WindowBounds
		want []EventKind
	}{
		{"no change", floating, floating, []EventKind{}},
		{"move only", floating, view.WindowBounds{X: 50, Y: 60, Width: 1200, Height: 800}, []EventKind{}},
		{"resize", floating, view.WindowBounds{X: 10, Y: 20, Width: 1000, Height: 700}, []EventKind{EventResize}},
		{"maximize", floating, view.WindowBounds{Width: 1920, Height: 1080, Maximized: true}, []EventKind{EventMaximize, EventResize}},
		{"unmaximize", view.WindowBounds{Width: 1920, Height: 1080, Maximized: true}, floating, []EventKind{EventUnmaximize, EventResize}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, classify(tc.prev, tc.cur))
		})
	}
}

func TestApplyBoundsSkipsMaximizedGeometry(t *testing.T) {
	state := settings.DefaultState()
	applyBounds(&state, view.WindowBounds{X: 30, Y: 40, Width: 1000, Height: 700})
	require.Equal(t, 1000, state.Width)
	require.Equal(t, 700, state.Height)
	require.NotNil(t, state.X)
	require.Equal(t, 30, *state.X)

	applyBounds(&state, view.WindowBounds{Width: 1920, Height: 1080, Maximized: true})
	require.True(t, state.IsMaximized)
	// floating geometry survives the maximize
	require.Equal(t, 1000, state.Width)
	require.Equal(t, 700, state.Height)
}

func TestRestoreAppliesPersistedBounds(t *testing.T) {
	driver := newFakeDriver(view.WindowBounds{Width: 800, Height: 600})
	window := testWindow(t, driver)

	x, y := 15, 25
	window.store.Save(settings.DisplayState{Width: 1400, Height: 900, X: &x, Y: &y, IsDarkMode: true})
	state := window.Restore(context.Background())

	require.Equal(t, 1400, state.Width)
	require.Len(t, driver.applied, 1)
	require.Equal(t, view.WindowBounds{X: 15, Y: 25, Width: 1400, Height: 900}, driver.applied[0])
}

func TestWatchEmitsResizeAndPersists(t *testing.T) {
	driver := newFakeDriver(view.WindowBounds{X: 0, Y: 0, Width: 1200, Height: 800})
	window := testWindow(t, driver)
	window.Restore(context.Background())

	resized := make(chan settings.DisplayState, 1)
	window.On(func(kind EventKind, state settings.DisplayState) {
		select {
		case resized <- state:
		default:
		}
	}, EventResize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = window.Watch(ctx)
	}()

	driver.setBounds(view.WindowBounds{X: 0, Y: 0, Width: 1000, Height: 700})
	select {
	case state := <-resized:
		require.Equal(t, 1000, state.Width)
		require.Equal(t, 700, state.Height)
	case <-time.After(2 * time.Second):
		t.Fatal("no resize event")
	}

	cancel()
	<-done
	require.Equal(t, 1000, window.store.Load().Width)
}

func TestWatchEmitsCloseWhenWindowDies(t *testing.T) {
	driver := newFakeDriver(view.WindowBounds{Width: 1200, Height: 800})
	window := testWindow(t, driver)

	closed := make(chan struct{})
	window.On(func(kind EventKind, state settings.DisplayState) {
		close(closed)
	}, EventClose)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = window.Watch(context.Background())
	}()
	driver.close()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("no close event")
	}
	<-done
}

func TestReleasedListenerStopsFiring(t *testing.T) {
	driver := newFakeDriver(view.WindowBounds{Width: 1200, Height: 800})
	window := testWindow(t, driver)

	fired := 0
	sub := window.On(func(kind EventKind, state settings.DisplayState) { fired++ })
	window.emit(EventResize, settings.DefaultState())
	require.Equal(t, 1, fired)

	sub.Release()
	window.emit(EventResize, settings.DefaultState())
	require.Equal(t, 1, fired)
}
