package shell

import (
	"context"
	"sync"

	"emperror.dev/errors"
	"github.com/je4/mediashell/pkg/automation"
	"github.com/je4/mediashell/pkg/bridge"
	"github.com/je4/mediashell/pkg/region"
	"github.com/je4/mediashell/pkg/settings"
	"github.com/je4/mediashell/pkg/view"
	"github.com/je4/mediashell/pkg/window"
	"github.com/je4/utils/v2/pkg/zLogger"
	"golang.org/x/sync/errgroup"
)

// Options is the fully resolved runtime configuration of the shell.
type Options struct {
	ServiceURL     string
	LocalAddr      string
	RegionEndpoint string
	ServiceDomains []string
	AuthDomains    []string
	Kiosk          bool
	Debug          bool
	PurgeCache     bool
	DRMProbe       bool
	NTPServer      string
	SettingsDir    string
	BrowserOpts    map[string]interface{}
}

type transportEngine interface {
	ClickControl(ctx context.Context, control automation.Control) *automation.Outcome
	AttemptAutoPlay(ctx context.Context, pageURL string) *automation.Outcome
	CancelInflight()
}

type contentSurface interface {
	Create(ctx context.Context) error
	Reload(ctx context.Context) error
	Navigate(ctx context.Context, rawURL string) error
	UpdateBounds(ctx context.Context, width int, height int) view.Rect
	ConsoleLog() []string
	Screenshot(ctx context.Context, width int, height int, sigma float64) ([]byte, string, error)
	ProtectedContentStatus() view.ProtectedContentStatus
	Destroy()
	Done() <-chan struct{}
}

// App owns the lifecycle of the whole shell: region resolution, the embedded
// view surface, the host window and the control bridge. It implements
// bridge.Controller, so every control surface operation funnels through here.
type App struct {
	opts     Options
	logger   zLogger.ZLogger
	store    *settings.Store
	resolver *region.Resolver
	filter   *view.DomainFilter

	surface contentSurface
	engine  transportEngine
	window  *window.HostWindow
	bridge  *bridge.Server

	runCtx     context.Context
	runCancel  context.CancelFunc
	group      *errgroup.Group
	regionInfo *region.Info

	shutdownOnce sync.Once
	done         chan struct{}
}

func NewApp(opts Options, logger zLogger.ZLogger) (*App, error) {
	if opts.SettingsDir == "" {
		opts.SettingsDir = settings.DefaultDir()
	}
	filter, err := view.NewDomainFilter(append(opts.ServiceDomains, opts.AuthDomains...)...)
	if err != nil {
		return nil, errors.Wrap(err, "cannot build domain filter")
	}
	return &App{
		opts:     opts,
		logger:   logger,
		store:    settings.NewStore(opts.SettingsDir, logger),
		resolver: region.NewResolver(opts.RegionEndpoint, logger),
		filter:   filter,
		done:     make(chan struct{}),
	}, nil
}

// Startup brings the shell up: resolve the region, create the browser
// surface at the regional endpoint, restore the persisted window and start
// the control bridge. A failed surface creation is the only fatal path.
func (app *App) Startup(ctx context.Context) error {
	app.runCtx, app.runCancel = context.WithCancel(ctx)

	app.regionInfo = app.resolver.Detect(app.runCtx)

	surface := view.NewSurface(view.Config{
		StartURL:    app.regionInfo.ResolvedEndpoint,
		ServiceURL:  app.opts.ServiceURL,
		BridgeAddr:  app.opts.LocalAddr,
		Kiosk:       app.opts.Kiosk,
		PurgeCache:  app.opts.PurgeCache,
		DRMProbe:    app.opts.DRMProbe,
		NTPServer:   app.opts.NTPServer,
		BrowserOpts: app.opts.BrowserOpts,
		Filter:      app.filter,
		DarkMode:    func() bool { return app.window.State().IsDarkMode },
		MiniPlayer:  func() bool { return app.window.State().IsMiniPlayer },
		OnPageLoad:  app.onPageLoad,
	}, app.logger)
	app.surface = surface
	app.engine = automation.NewEngine(surface, app.logger)
	app.window = window.NewHostWindow(surface, app.store, app.logger)

	if err := surface.Create(app.runCtx); err != nil {
		return errors.Wrap(err, "cannot create view surface")
	}
	state := app.window.Restore(app.runCtx)
	app.surface.UpdateBounds(app.runCtx, state.Width, state.Height)
	app.window.SetBackground(app.runCtx, state.IsDarkMode)

	app.window.On(func(kind window.EventKind, state settings.DisplayState) {
		app.surface.UpdateBounds(app.runCtx, state.Width, state.Height)
	}, window.EventResize, window.EventMaximize, window.EventUnmaximize)
	app.window.On(func(kind window.EventKind, state settings.DisplayState) {
		go app.Shutdown()
	}, window.EventClose)

	group, gctx := errgroup.WithContext(app.runCtx)
	app.group = group
	group.Go(func() error {
		return app.window.Watch(gctx)
	})

	srv, err := bridge.NewServer(app.opts.LocalAddr, app, app.opts.Debug, app.logger)
	if err != nil {
		return errors.Wrap(err, "cannot create bridge server")
	}
	app.bridge = srv
	if err := srv.Start(nil); err != nil {
		return errors.Wrap(err, "cannot start bridge server")
	}
	return nil
}

// onPageLoad fires after every completed page load. Playback starts only on
// destinations that actually hold playable content.
func (app *App) onPageLoad(pageURL string) {
	if !automation.PlayableDestination(pageURL) {
		app.logger.Debug().Msgf("no auto play for %s", pageURL)
		return
	}
	go app.engine.AttemptAutoPlay(app.runCtx, pageURL)
}

// Region reports the resolved service region, nil before Startup.
func (app *App) Region() *region.Info {
	return app.regionInfo
}

// Done is closed when the shell has shut down, either through Shutdown or
// because the user closed the window.
func (app *App) Done() <-chan struct{} {
	return app.done
}

// Shutdown tears the shell down in reverse startup order and persists the
// final window state. Safe to call more than once.
func (app *App) Shutdown() {
	app.shutdownOnce.Do(func() {
		app.logger.Info().Msg("shutting down")
		if app.window != nil {
			app.window.ReleaseAll()
		}
		if app.bridge != nil {
			if err := app.bridge.Stop(); err != nil {
				app.logger.Error().Err(err).Msg("cannot stop bridge server")
			}
		}
		if app.engine != nil {
			app.engine.CancelInflight()
		}
		if app.runCancel != nil {
			app.runCancel()
		}
		if app.group != nil {
			if err := app.group.Wait(); err != nil {
				app.logger.Error().Err(err).Msg("watcher terminated with error")
			}
		}
		if app.surface != nil {
			app.surface.Destroy()
		}
		close(app.done)
	})
}

// bridge.Controller implementation

func (app *App) PlayPause(ctx context.Context) *automation.Outcome {
	return app.engine.ClickControl(ctx, automation.ControlPlayPause)
}

func (app *App) NextTrack(ctx context.Context) *automation.Outcome {
	return app.engine.ClickControl(ctx, automation.ControlNext)
}

func (app *App) PreviousTrack(ctx context.Context) *automation.Outcome {
	return app.engine.ClickControl(ctx, automation.ControlPrevious)
}

// SetVolume acknowledges the request and does nothing else, volume stays
// with the OS mixer.
func (app *App) SetVolume(level int) {
	app.logger.Info().Msgf("volume request %d acknowledged", level)
}

func (app *App) ToggleMiniPlayer(ctx context.Context) bool {
	state := app.window.Update(func(s *settings.DisplayState) {
		s.IsMiniPlayer = !s.IsMiniPlayer
	})
	app.surface.UpdateBounds(ctx, state.Width, state.Height)
	app.logger.Info().Msgf("mini player: %v", state.IsMiniPlayer)
	return state.IsMiniPlayer
}

// ToggleDarkMode flips the theme and reloads the page, the stylesheet
// override is injected on load.
func (app *App) ToggleDarkMode(ctx context.Context) bool {
	state := app.window.Update(func(s *settings.DisplayState) {
		s.IsDarkMode = !s.IsDarkMode
	})
	app.window.SetBackground(ctx, state.IsDarkMode)
	if err := app.surface.Reload(ctx); err != nil {
		app.logger.Error().Err(err).Msg("cannot reload after theme change")
	}
	app.logger.Info().Msgf("dark mode: %v", state.IsDarkMode)
	return state.IsDarkMode
}

func (app *App) Navigate(ctx context.Context, rawURL string) error {
	return app.surface.Navigate(ctx, rawURL)
}

func (app *App) AppState() bridge.AppState {
	state := app.window.State()
	return bridge.AppState{
		IsDarkMode:       state.IsDarkMode,
		IsMiniPlayer:     state.IsMiniPlayer,
		ProtectedContent: app.surface.ProtectedContentStatus(),
	}
}

func (app *App) ConsoleLog() []string {
	return app.surface.ConsoleLog()
}

func (app *App) Snapshot(ctx context.Context, width int, height int, sigma float64) ([]byte, string, error) {
	return app.surface.Screenshot(ctx, width, height, sigma)
}

var _ bridge.Controller = (*App)(nil)
