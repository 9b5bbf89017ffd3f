package view

import (
	"context"
	"os"
	"sync"
	"time"

	"emperror.dev/errors"
	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/security"
	"github.com/chromedp/chromedp"
	"github.com/je4/mediashell/pkg/automation"
	"github.com/je4/utils/v2/pkg/zLogger"
)

type State string

const (
	StateUninitialized State = "uninitialized"
	StateCreating      State = "creating"
	StateLoaded        State = "loaded"
	StateReloading     State = "reloading"
	StateDestroyed     State = "destroyed"
)

// the hosted service gates features by client identity, so the surface
// always reports a desktop browser
const desktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

const pageLoadTimeout = 30 * time.Second

// Config describes one embedded content surface. DarkMode and MiniPlayer
// read the persisted preference, OnPageLoad is called after every completed
// page load and in-page navigation.
type Config struct {
	StartURL    string
	ServiceURL  string
	BridgeAddr  string
	Kiosk       bool
	PurgeCache  bool
	DRMProbe    bool
	NTPServer   string
	BrowserOpts map[string]interface{}
	Filter      *DomainFilter
	DarkMode    func() bool
	MiniPlayer  func() bool
	OnPageLoad  func(pageURL string)
}

// Subscription is one registered event handler on the surface. All handles
// are released in one pass on Destroy, individual handles can be released
// earlier.
type Subscription struct {
	name     string
	released bool
	handler  func(ev interface{})
}

// Surface owns the embedded content surface: an isolated browser session
// rendering the hosted service. Every external call degrades on failure,
// only Create may fail hard.
type Surface struct {
	config Config
	logger zLogger.ZLogger

	mutex       sync.Mutex
	state       State
	allocCancel context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc
	subs        []*Subscription
	currentURL  string
	userDataDir string
	protected   *ProtectedContentStatus
	probeOnce   sync.Once

	console *consoleRing
}

var _ automation.ScriptRunner = (*Surface)(nil)

func NewSurface(config Config, logger zLogger.ZLogger) *Surface {
	return &Surface{
		config:  config,
		logger:  logger,
		state:   StateUninitialized,
		console: newConsoleRing(200),
	}
}

func (surface *Surface) State() State {
	surface.mutex.Lock()
	defer surface.mutex.Unlock()
	return surface.state
}

func (surface *Surface) transition(from State, to State) error {
	surface.mutex.Lock()
	defer surface.mutex.Unlock()
	if surface.state != from {
		return errors.Errorf("illegal state transition %s -> %s", surface.state, to)
	}
	surface.state = to
	return nil
}

func (surface *Surface) setState(state State) {
	surface.mutex.Lock()
	defer surface.mutex.Unlock()
	surface.state = state
}

// Create allocates the isolated session, configures permissions, identity
// and the navigation filter, and navigates to the start URL. A browser that
// cannot start is the one unrecoverable error of the shell.
func (surface *Surface) Create(ctx context.Context) error {
	if err := surface.transition(StateUninitialized, StateCreating); err != nil {
		return err
	}

	userDataDir, err := os.MkdirTemp("", "mediashell-session-")
	if err != nil {
		surface.setState(StateUninitialized)
		return errors.Wrap(err, "cannot create session directory")
	}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for key, value := range surface.config.BrowserOpts {
		opts = append(opts, chromedp.Flag(key, value))
	}
	// session isolation, client identity and autoplay gating override
	// whatever the options table says
	opts = append(opts,
		chromedp.UserDataDir(userDataDir),
		chromedp.UserAgent(desktopUserAgent),
		chromedp.Flag("headless", false),
		chromedp.Flag("incognito", true),
		chromedp.Flag("autoplay-policy", "no-user-gesture-required"),
	)
	if surface.config.Kiosk {
		opts = append(opts, chromedp.Flag("kiosk", true), chromedp.Flag("app", surface.config.StartURL))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, v ...interface{}) {
		surface.logger.Debug().Msgf("browser: "+format, v...)
	}))

	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		_ = os.RemoveAll(userDataDir)
		surface.setState(StateUninitialized)
		return errors.Wrap(err, "cannot start browser")
	}

	surface.mutex.Lock()
	surface.userDataDir = userDataDir
	surface.allocCancel = allocCancel
	surface.browserCtx = browserCtx
	surface.cancel = cancel
	surface.mutex.Unlock()

	surface.registerListeners(browserCtx)

	tasks := chromedp.Tasks{
		security.SetIgnoreCertificateErrors(false),
		cdpbrowser.ResetPermissions(),
		cdpbrowser.GrantPermissions(GrantedPermissions()).WithOrigin(surface.config.ServiceURL),
	}
	if surface.config.PurgeCache {
		tasks = append(tasks, network.ClearBrowserCache())
	}
	if err := chromedp.Run(browserCtx, tasks); err != nil {
		surface.logger.Error().Err(err).Msg("cannot configure session, continuing degraded")
	}

	if err := chromedp.Run(browserCtx, chromedp.Navigate(surface.config.StartURL)); err != nil {
		surface.logger.Error().Err(err).Msgf("cannot navigate to %s", surface.config.StartURL)
	}
	surface.setCurrentURL(surface.config.StartURL)
	surface.setState(StateLoaded)
	return nil
}

func (surface *Surface) registerListeners(browserCtx context.Context) {
	chromedp.ListenTarget(browserCtx, surface.dispatch)

	surface.subscribe("page-load", func(ev interface{}) {
		switch ev := ev.(type) {
		case *page.EventLoadEventFired:
			go surface.handlePageLoad("")
		case *page.EventNavigatedWithinDocument:
			go surface.handlePageLoad(ev.URL)
		}
	})
	surface.subscribe("navigation-filter", func(ev interface{}) {
		switch ev := ev.(type) {
		case *page.EventWindowOpen:
			go surface.handlePopup(ev.URL)
		case *page.EventFrameRequestedNavigation:
			// child frames (ads, auth widgets) navigate third party
			// content without leaving the surface
			if !surface.isMainFrame(ev.FrameID) {
				return
			}
			if !surface.allowedInSurface(ev.URL) {
				go surface.handleForeignNavigation(ev.URL)
			}
		}
	})
	surface.subscribe("console", func(ev interface{}) {
		switch ev := ev.(type) {
		case *cdpruntime.EventConsoleAPICalled:
			surface.console.Write("console.%s: %s", ev.Type, formatConsoleArgs(ev.Args))
		case *cdpruntime.EventExceptionThrown:
			surface.console.Write("exception: %s", formatException(ev.ExceptionDetails))
		}
	})
}

func (surface *Surface) subscribe(name string, handler func(ev interface{})) *Subscription {
	sub := &Subscription{name: name, handler: handler}
	surface.mutex.Lock()
	surface.subs = append(surface.subs, sub)
	surface.mutex.Unlock()
	return sub
}

func (surface *Surface) dispatch(ev interface{}) {
	surface.mutex.Lock()
	active := make([]*Subscription, 0, len(surface.subs))
	for _, sub := range surface.subs {
		if !sub.released {
			active = append(active, sub)
		}
	}
	surface.mutex.Unlock()
	for _, sub := range active {
		sub.handler(ev)
	}
}

func (surface *Surface) releaseSubscriptions() {
	surface.mutex.Lock()
	defer surface.mutex.Unlock()
	for _, sub := range surface.subs {
		sub.released = true
	}
	surface.subs = nil
}

func (surface *Surface) browserContext() context.Context {
	surface.mutex.Lock()
	defer surface.mutex.Unlock()
	return surface.browserCtx
}

func (surface *Surface) CurrentURL() string {
	surface.mutex.Lock()
	defer surface.mutex.Unlock()
	return surface.currentURL
}

func (surface *Surface) setCurrentURL(url string) {
	surface.mutex.Lock()
	defer surface.mutex.Unlock()
	surface.currentURL = url
}

// run executes actions against the surface's browser context while
// honoring the caller's cancellation. A cancelled caller abandons the
// action, the browser finishes it on its own.
func (surface *Surface) run(ctx context.Context, actions ...chromedp.Action) error {
	browserCtx := surface.browserContext()
	if browserCtx == nil {
		return errors.New("surface not created")
	}
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(browserCtx, actions...)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunScript implements automation.ScriptRunner.
func (surface *Surface) RunScript(ctx context.Context, script string, out interface{}) error {
	return surface.run(ctx, chromedp.Evaluate(script, out, func(p *cdpruntime.EvaluateParams) *cdpruntime.EvaluateParams {
		return p.WithAwaitPromise(true).WithReturnByValue(true)
	}))
}

// isMainFrame reports whether id is the surface's top level frame, whose id
// equals the page target's id.
func (surface *Surface) isMainFrame(id cdp.FrameID) bool {
	browserCtx := surface.browserContext()
	if browserCtx == nil {
		return false
	}
	chromeCtx := chromedp.FromContext(browserCtx)
	if chromeCtx == nil || chromeCtx.Target == nil {
		return false
	}
	return id == cdp.FrameID(chromeCtx.Target.TargetID)
}

func (surface *Surface) allowedInSurface(rawURL string) bool {
	if surface.config.Filter == nil {
		return true
	}
	return surface.config.Filter.Allowed(rawURL)
}

// handlePopup routes a window.open target: in-family targets replace the
// surface content, everything else goes to the default browser.
func (surface *Surface) handlePopup(rawURL string) {
	if surface.allowedInSurface(rawURL) {
		if err := surface.run(context.Background(), chromedp.Navigate(rawURL)); err != nil {
			surface.logger.Error().Err(err).Msgf("cannot open %s in surface", rawURL)
		}
		return
	}
	surface.logger.Info().Msgf("delivering %s to the default browser", rawURL)
	if err := openExternal(rawURL); err != nil {
		surface.logger.Error().Err(err).Msg("external delivery failed")
	}
}

// Navigate loads rawURL in the surface when the domain filter allows it,
// otherwise the URL goes to the default browser.
func (surface *Surface) Navigate(ctx context.Context, rawURL string) error {
	if !surface.allowedInSurface(rawURL) {
		surface.logger.Info().Msgf("delivering %s to the default browser", rawURL)
		return openExternal(rawURL)
	}
	if err := surface.run(ctx, chromedp.Navigate(rawURL)); err != nil {
		return errors.Wrapf(err, "cannot navigate to %s", rawURL)
	}
	return nil
}

// handleForeignNavigation bounces a disallowed main-frame navigation:
// external delivery for the target, then back to where the surface was.
func (surface *Surface) handleForeignNavigation(rawURL string) {
	surface.logger.Info().Msgf("blocking in-surface navigation to %s", rawURL)
	if err := openExternal(rawURL); err != nil {
		surface.logger.Error().Err(err).Msg("external delivery failed")
	}
	current := surface.CurrentURL()
	if current == "" {
		current = surface.config.StartURL
	}
	if err := surface.run(context.Background(), chromedp.Navigate(current)); err != nil {
		surface.logger.Error().Err(err).Msgf("cannot return surface to %s", current)
	}
}

// handlePageLoad runs the per-load sequence: login probe, theme override,
// control bar overlay, error guard, the one time protected content probe
// and the synthetic gesture. Every step degrades on failure.
func (surface *Surface) handlePageLoad(pageURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), pageLoadTimeout)
	defer cancel()

	if pageURL == "" {
		if err := surface.run(ctx, chromedp.Location(&pageURL)); err != nil {
			surface.logger.Debug().Err(err).Msg("cannot read page location")
		}
	}
	if pageURL != "" {
		surface.setCurrentURL(pageURL)
	}

	var probe loginProbe
	if err := surface.RunScript(ctx, loginProbeScript, &probe); err != nil {
		surface.logger.Debug().Err(err).Msg("login probe failed")
	} else {
		surface.logger.Info().Msgf("login state: loggedIn=%v via %s", probe.LoggedIn, probe.Source)
	}

	if surface.config.DarkMode != nil && surface.config.DarkMode() {
		surface.injectStylesheet(ctx, darkStylesheetID, darkThemeCSS)
	}

	surface.applyOverlay(ctx)

	var guarded bool
	if err := surface.RunScript(ctx, errorGuardScript, &guarded); err != nil {
		surface.logger.Debug().Err(err).Msg("cannot install error guard")
	}

	if surface.config.DRMProbe {
		surface.probeProtectedContent(ctx)
	}

	if err := surface.simulateGesture(ctx); err != nil {
		surface.logger.Debug().Err(err).Msg("cannot simulate user gesture")
	}

	if surface.config.OnPageLoad != nil && pageURL != "" {
		surface.config.OnPageLoad(pageURL)
	}
}

func (surface *Surface) injectStylesheet(ctx context.Context, id string, css string) {
	script, err := automation.WrapScript(stylesheetBody, stylesheetArgs{ID: id, CSS: css})
	if err != nil {
		surface.logger.Error().Err(err).Msg("cannot build stylesheet script")
		return
	}
	var ok bool
	if err := surface.RunScript(ctx, script, &ok); err != nil {
		surface.logger.Debug().Err(err).Msgf("cannot inject stylesheet %s", id)
	}
}

func (surface *Surface) applyOverlay(ctx context.Context) {
	mini := surface.config.MiniPlayer != nil && surface.config.MiniPlayer()
	dark := surface.config.DarkMode != nil && surface.config.DarkMode()
	bar := ControlBarHeight
	if mini {
		bar = MiniPlayerBarHeight
	}
	script, err := automation.WrapScript(overlayBody, overlayArgs{
		Bridge:    surface.config.BridgeAddr,
		BarHeight: bar,
		Dark:      dark,
	})
	if err != nil {
		surface.logger.Error().Err(err).Msg("cannot build overlay script")
		return
	}
	var ok bool
	if err := surface.RunScript(ctx, script, &ok); err != nil {
		surface.logger.Debug().Err(err).Msg("cannot apply control bar overlay")
	}
}

// a real input event pair, the page's autoplay policy wants a user gesture
func (surface *Surface) simulateGesture(ctx context.Context) error {
	return surface.run(ctx,
		input.DispatchMouseEvent(input.MousePressed, 4, 4).WithButton(input.Left).WithClickCount(1),
		input.DispatchMouseEvent(input.MouseReleased, 4, 4).WithButton(input.Left).WithClickCount(1),
		input.DispatchKeyEvent(input.KeyDown).WithKey("Shift"),
		input.DispatchKeyEvent(input.KeyUp).WithKey("Shift"),
	)
}

// UpdateBounds recomputes the content rectangle below the control bar and
// reapplies the overlay inset. The returned rectangle is what the embedded
// content occupies.
func (surface *Surface) UpdateBounds(ctx context.Context, width int, height int) Rect {
	mini := surface.config.MiniPlayer != nil && surface.config.MiniPlayer()
	rect := ContentBounds(width, height, mini)
	surface.applyOverlay(ctx)
	return rect
}

// Reload re-navigates to the current URL. Style injection happens on load,
// so a theme change needs a reload rather than a hot patch.
func (surface *Surface) Reload(ctx context.Context) error {
	if err := surface.transition(StateLoaded, StateReloading); err != nil {
		return err
	}
	url := surface.CurrentURL()
	err := surface.run(ctx, chromedp.Navigate(url))
	surface.setState(StateLoaded)
	if err != nil {
		return errors.Wrapf(err, "cannot reload %s", url)
	}
	return nil
}

// Destroy releases every registered subscription before tearing down the
// browser contexts, so no handler outlives the surface it references.
func (surface *Surface) Destroy() {
	surface.mutex.Lock()
	if surface.state == StateDestroyed {
		surface.mutex.Unlock()
		return
	}
	surface.state = StateDestroyed
	cancel := surface.cancel
	allocCancel := surface.allocCancel
	userDataDir := surface.userDataDir
	surface.cancel = nil
	surface.allocCancel = nil
	surface.browserCtx = nil
	surface.mutex.Unlock()

	surface.releaseSubscriptions()
	if cancel != nil {
		cancel()
	}
	if allocCancel != nil {
		allocCancel()
	}
	if userDataDir != "" {
		if err := os.RemoveAll(userDataDir); err != nil {
			surface.logger.Error().Err(err).Msgf("cannot remove session directory %s", userDataDir)
		}
	}
	surface.logger.Info().Msg("surface destroyed")
}

// ConsoleLog returns the buffered page console lines.
func (surface *Surface) ConsoleLog() []string {
	return surface.console.Lines()
}

// WindowBounds is the native window rectangle as the browser reports it.
type WindowBounds struct {
	X         int
	Y         int
	Width     int
	Height    int
	Maximized bool
}

func (surface *Surface) GetWindowBounds(ctx context.Context) (WindowBounds, error) {
	var result WindowBounds
	err := surface.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, bounds, err := cdpbrowser.GetWindowForTarget().Do(ctx)
		if err != nil {
			return errors.Wrap(err, "cannot get window bounds")
		}
		result = WindowBounds{
			X:         int(bounds.Left),
			Y:         int(bounds.Top),
			Width:     int(bounds.Width),
			Height:    int(bounds.Height),
			Maximized: bounds.WindowState == cdpbrowser.WindowStateMaximized,
		}
		return nil
	}))
	return result, err
}

// SetWindowBounds applies size, optional position and the maximized state.
// Without a position the window stays where the window manager put it.
func (surface *Surface) SetWindowBounds(ctx context.Context, b WindowBounds, hasPosition bool) error {
	return surface.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		id, _, err := cdpbrowser.GetWindowForTarget().Do(ctx)
		if err != nil {
			return errors.Wrap(err, "cannot get window id")
		}
		if b.Maximized {
			return errors.Wrap(
				cdpbrowser.SetWindowBounds(id, &cdpbrowser.Bounds{WindowState: cdpbrowser.WindowStateMaximized}).Do(ctx),
				"cannot maximize window")
		}
		bounds := &cdpbrowser.Bounds{
			Width:       int64(b.Width),
			Height:      int64(b.Height),
			WindowState: cdpbrowser.WindowStateNormal,
		}
		if hasPosition {
			bounds.Left = int64(b.X)
			bounds.Top = int64(b.Y)
		}
		return errors.Wrap(cdpbrowser.SetWindowBounds(id, bounds).Do(ctx), "cannot set window bounds")
	}))
}

// backgroundColor is the window background for the given theme, matching the
// injected stylesheet so resizes do not flash white in dark mode.
func backgroundColor(darkMode bool) *cdp.RGBA {
	if darkMode {
		return &cdp.RGBA{R: 18, G: 18, B: 18, A: 1}
	}
	return &cdp.RGBA{R: 245, G: 245, B: 245, A: 1}
}

func (surface *Surface) SetBackgroundColor(ctx context.Context, darkMode bool) error {
	return errors.Wrap(
		surface.run(ctx, emulation.SetDefaultBackgroundColorOverride().WithColor(backgroundColor(darkMode))),
		"cannot set background color")
}

// Done closes when the browser context ends, regularly or because the user
// closed the window.
func (surface *Surface) Done() <-chan struct{} {
	browserCtx := surface.browserContext()
	if browserCtx == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return browserCtx.Done()
}

func formatConsoleArgs(args []*cdpruntime.RemoteObject) string {
	parts := ""
	for i, arg := range args {
		if i > 0 {
			parts += " "
		}
		if arg.Value != nil {
			parts += string(arg.Value)
		} else {
			parts += arg.Description
		}
	}
	return parts
}

func formatException(details *cdpruntime.ExceptionDetails) string {
	if details == nil {
		return "unknown"
	}
	if details.Exception != nil && details.Exception.Description != "" {
		return details.Exception.Description
	}
	return details.Text
}
