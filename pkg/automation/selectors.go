package automation

// Control identifies one transport control of the player bar.
type Control string

const (
	ControlPlayPause Control = "playPause"
	ControlNext      Control = "next"
	ControlPrevious  Control = "previous"
)

// Selector lists run from the current frontend markup down to legacy
// fallbacks: test ids first, then accessibility labels, then the class names
// of older frontend revisions, then generic catch-alls. Order matters, the
// first match wins.

var controlSelectors = map[Control][]string{
	ControlPlayPause: {
		`button[data-test-id="player-play-pause"]`,
		`button[data-testid="control-button-playpause"]`,
		`button[aria-label="Play"]`,
		`button[aria-label="Pause"]`,
		`.player-controls__play`,
		`.player-bar .btn-play`,
	},
	ControlNext: {
		`button[data-test-id="player-next"]`,
		`button[data-testid="control-button-skip-forward"]`,
		`button[aria-label="Next track"]`,
		`button[aria-label="Next"]`,
		`.player-controls__next`,
		`.player-bar .btn-next`,
	},
	ControlPrevious: {
		`button[data-test-id="player-previous"]`,
		`button[data-testid="control-button-skip-back"]`,
		`button[aria-label="Previous track"]`,
		`button[aria-label="Previous"]`,
		`.player-controls__previous`,
		`.player-bar .btn-previous`,
	},
}

var autoPlaySelectors = []string{
	`button[data-test-id="play-button"]`,
	`button[data-testid="entity-play-button"]`,
	`button[aria-label="Play"]`,
	`button[aria-label^="Play "]`,
	`button.play-button`,
	`.entity-controls__play`,
	`.track-list .button-play`,
	`[role="button"][title*="Play"]`,
}

var listItemSelectors = []string{
	`[data-test-id="track-row"]`,
	`.track-list__item`,
	`[role="row"]`,
}

// a global toggle labeled "play" means the player is currently paused
var pausedLabels = []string{"play"}

const playLabelPattern = "play"
