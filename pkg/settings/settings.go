package settings

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/je4/utils/v2/pkg/zLogger"
)

const (
	DefaultWidth  = 1200
	DefaultHeight = 800
	MinWidth      = 800
	MinHeight     = 600
)

// DisplayState is the persisted window/view preference record. X and Y are
// nil when the window has never been positioned by the user.
type DisplayState struct {
	Width        int  `json:"width"`
	Height       int  `json:"height"`
	X            *int `json:"x,omitempty"`
	Y            *int `json:"y,omitempty"`
	IsMaximized  bool `json:"isMaximized"`
	IsDarkMode   bool `json:"isDarkMode"`
	IsMiniPlayer bool `json:"isMiniPlayer"`
}

func DefaultState() DisplayState {
	return DisplayState{
		Width:        DefaultWidth,
		Height:       DefaultHeight,
		IsMaximized:  false,
		IsDarkMode:   true,
		IsMiniPlayer: false,
	}
}

// Clamp enforces the minimal usable window size.
func (state *DisplayState) Clamp() {
	if state.Width < MinWidth {
		state.Width = MinWidth
	}
	if state.Height < MinHeight {
		state.Height = MinHeight
	}
}

// Store reads and writes the DisplayState below a fixed per-user directory.
// Load and Save never fail: any problem falls back to defaults respectively
// gets logged and swallowed, so a broken state file can never block startup
// or shutdown.
type Store struct {
	path   string
	logger zLogger.ZLogger
}

func NewStore(dir string, logger zLogger.ZLogger) *Store {
	return &Store{
		path:   filepath.Join(dir, "display-state.json"),
		logger: logger,
	}
}

// DefaultDir returns the per-user settings directory.
func DefaultDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "mediashell")
	}
	return filepath.Join(dir, "mediashell")
}

func (store *Store) Path() string {
	return store.path
}

func (store *Store) Load() DisplayState {
	state := DefaultState()
	data, err := os.ReadFile(store.path)
	if err != nil {
		if !os.IsNotExist(err) {
			store.logger.Error().Err(err).Msgf("cannot read display state %s", store.path)
		}
		return state
	}
	// unmarshal into the default record, so absent keys keep their default
	if err := json.Unmarshal(data, &state); err != nil {
		store.logger.Error().Err(err).Msgf("cannot parse display state %s", store.path)
		return DefaultState()
	}
	state.Clamp()
	return state
}

func (store *Store) Save(state DisplayState) {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		store.logger.Error().Err(err).Msg("cannot marshal display state")
		return
	}
	if err := os.MkdirAll(filepath.Dir(store.path), 0o755); err != nil {
		store.logger.Error().Err(err).Msgf("cannot create settings folder %s", filepath.Dir(store.path))
		return
	}
	if err := os.WriteFile(store.path, data, 0o644); err != nil {
		store.logger.Error().Err(err).Msgf("cannot write display state %s", store.path)
	}
}
