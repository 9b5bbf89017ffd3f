package automation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/je4/utils/v2/pkg/zLogger"
)

// ScriptRunner executes a script in the embedded page and decodes the JSON
// completion value into out. The embedded view surface implements this.
type ScriptRunner interface {
	RunScript(ctx context.Context, script string, out interface{}) error
}

// Diagnostics is the page census collected when auto play gives up.
type Diagnostics struct {
	URL                string `json:"url"`
	ReadyState         string `json:"readyState"`
	Title              string `json:"title"`
	TotalCandidates    int    `json:"totalCandidates"`
	MatchingCandidates int    `json:"matchingCandidates"`
	ListItemCount      int    `json:"listItemCount"`
}

// Outcome is the result record of every automation operation. Failures are
// values, nothing beyond this boundary throws.
type Outcome struct {
	Success         bool         `json:"success"`
	Error           bool         `json:"error,omitempty"`
	TrackFound      bool         `json:"trackFound"`
	Skipped         bool         `json:"skipped,omitempty"`
	Message         string       `json:"message"`
	MatchedSelector string       `json:"matchedSelector,omitempty"`
	Diagnostics     *Diagnostics `json:"diagnostics,omitempty"`
}

// Engine drives playback in the embedded page through injected scripts. It
// remembers the last processed page URL, so a load event fired twice for the
// same page starts playback once.
type Engine struct {
	runner         ScriptRunner
	logger         zLogger.ZLogger
	pollInterval   time.Duration
	maxAttempts    int
	loadTimeout    time.Duration
	secondaryDelay time.Duration
	spacebarDelay  time.Duration

	mutex          sync.Mutex
	lastURL        string
	cancelInflight context.CancelFunc
}

func NewEngine(runner ScriptRunner, logger zLogger.ZLogger) *Engine {
	return &Engine{
		runner:         runner,
		logger:         logger,
		pollInterval:   250 * time.Millisecond,
		maxAttempts:    60,
		loadTimeout:    5 * time.Second,
		secondaryDelay: 500 * time.Millisecond,
		spacebarDelay:  time.Second,
	}
}

// LastProcessedURL returns the navigation memento. It is overwritten on
// every new page and never cleared.
func (engine *Engine) LastProcessedURL() string {
	engine.mutex.Lock()
	defer engine.mutex.Unlock()
	return engine.lastURL
}

// CancelInflight aborts a running auto play attempt, if any.
func (engine *Engine) CancelInflight() {
	engine.mutex.Lock()
	defer engine.mutex.Unlock()
	if engine.cancelInflight != nil {
		engine.cancelInflight()
	}
}

// ClickControl clicks the first matching selector for the given transport
// control. One pass over the list, no polling, no retries.
func (engine *Engine) ClickControl(ctx context.Context, control Control) *Outcome {
	selectors, ok := controlSelectors[control]
	if !ok {
		return &Outcome{Success: false, Error: true, Message: fmt.Sprintf("unknown control %q", control)}
	}
	res, err := engine.runClick(ctx, selectors)
	if err != nil {
		engine.logger.Error().Err(err).Msgf("cannot click %s control", control)
		return &Outcome{Success: false, Error: true, Message: err.Error()}
	}
	if !res.Clicked {
		return &Outcome{Success: false, Message: fmt.Sprintf("no %s control found", control)}
	}
	engine.logger.Debug().Msgf("clicked %s control via %s", control, res.Selector)
	return &Outcome{Success: true, TrackFound: true, Message: fmt.Sprintf("clicked %s control", control), MatchedSelector: res.Selector}
}

// AttemptAutoPlay starts playback on the page at pageURL. A repeated load
// event for the already processed URL is skipped, a still running attempt
// for a previous page is cancelled first.
func (engine *Engine) AttemptAutoPlay(ctx context.Context, pageURL string) *Outcome {
	engine.mutex.Lock()
	if pageURL != "" && pageURL == engine.lastURL {
		engine.mutex.Unlock()
		engine.logger.Debug().Msgf("auto play already ran for %s", pageURL)
		return &Outcome{Success: true, Skipped: true, Message: "page already processed"}
	}
	engine.lastURL = pageURL
	if engine.cancelInflight != nil {
		engine.cancelInflight()
	}
	ctx, cancel := context.WithCancel(ctx)
	engine.cancelInflight = cancel
	engine.mutex.Unlock()
	defer cancel()

	outcome := engine.autoPlay(ctx)
	if outcome.Success {
		engine.logger.Info().Msgf("auto play: %s", outcome.Message)
	} else {
		engine.logger.Info().Msgf("auto play failed: %s", outcome.Message)
	}
	return outcome
}

func (engine *Engine) autoPlay(ctx context.Context) *Outcome {
	if err := engine.waitDocumentReady(ctx); err != nil {
		if ctx.Err() != nil {
			return &Outcome{Success: false, Message: "auto play cancelled"}
		}
		// proceed anyway, the play button may already be there
		engine.logger.Debug().Err(err).Msg("document not ready, polling anyway")
	}
	for attempt := 0; attempt < engine.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := engine.sleep(ctx, engine.pollInterval); err != nil {
				return &Outcome{Success: false, Message: "auto play cancelled"}
			}
		}
		res, err := engine.runClick(ctx, autoPlaySelectors)
		if err != nil {
			if ctx.Err() != nil {
				return &Outcome{Success: false, Message: "auto play cancelled"}
			}
			return &Outcome{Success: false, Error: true, Message: err.Error()}
		}
		if res.Clicked {
			engine.followUp(ctx)
			return &Outcome{Success: true, TrackFound: true, Message: "playback started", MatchedSelector: res.Selector}
		}
	}
	return &Outcome{
		Success:     false,
		TrackFound:  false,
		Message:     fmt.Sprintf("no playable item found after %d attempts", engine.maxAttempts),
		Diagnostics: engine.collectDiagnostics(ctx),
	}
}

func (engine *Engine) waitDocumentReady(ctx context.Context) error {
	deadline := time.Now().Add(engine.loadTimeout)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var state string
		if err := engine.runner.RunScript(ctx, documentReadyScript, &state); err != nil {
			engine.logger.Debug().Err(err).Msg("cannot probe document state")
		} else if state == "complete" {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.Errorf("document not complete after %v", engine.loadTimeout)
		}
		if err := engine.sleep(ctx, engine.pollInterval); err != nil {
			return err
		}
	}
}

// followUp nudges a player that matched but did not start: a second click on
// the global toggle while its label still says paused, then a spacebar to
// the document. Failures here are logged only, the primary click counts.
func (engine *Engine) followUp(ctx context.Context) {
	if err := engine.sleep(ctx, engine.secondaryDelay); err != nil {
		return
	}
	script, err := WrapScript(toggleIfPausedBody, toggleArgs{Selectors: controlSelectors[ControlPlayPause], Labels: pausedLabels})
	if err != nil {
		engine.logger.Error().Err(err).Msg("cannot build toggle script")
		return
	}
	var res clickResult
	if err := engine.runner.RunScript(ctx, script, &res); err != nil {
		engine.logger.Debug().Err(err).Msg("secondary toggle click failed")
	} else if res.Clicked {
		engine.logger.Debug().Msgf("secondary toggle click via %s", res.Selector)
	}
	if err := engine.sleep(ctx, engine.spacebarDelay-engine.secondaryDelay); err != nil {
		return
	}
	var ok bool
	if err := engine.runner.RunScript(ctx, spacebarScript, &ok); err != nil {
		engine.logger.Debug().Err(err).Msg("spacebar dispatch failed")
	}
}

func (engine *Engine) runClick(ctx context.Context, selectors []string) (*clickResult, error) {
	script, err := WrapScript(clickBody, clickArgs{Selectors: selectors})
	if err != nil {
		return nil, err
	}
	var res clickResult
	if err := engine.runner.RunScript(ctx, script, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (engine *Engine) collectDiagnostics(ctx context.Context) *Diagnostics {
	script, err := WrapScript(diagnosticsBody, diagnosticsArgs{Pattern: playLabelPattern, ListSelectors: listItemSelectors})
	if err != nil {
		engine.logger.Error().Err(err).Msg("cannot build diagnostics script")
		return nil
	}
	var diag Diagnostics
	if err := engine.runner.RunScript(ctx, script, &diag); err != nil {
		engine.logger.Debug().Err(err).Msg("cannot collect diagnostics")
		return nil
	}
	return &diag
}

func (engine *Engine) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
