package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/je4/utils/v2/pkg/zLogger"
	"github.com/rs/zerolog"
)

func testLogger() zLogger.ZLogger {
	logger := zerolog.Nop()
	return zLogger.ZLogger(&logger)
}

func TestLoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "does", "not", "exist"), testLogger())
	state := store.Load()
	if state != DefaultState() {
		t.Errorf("expected default state, got %+v", state)
	}
	if state.Width != 1200 || state.Height != 800 {
		t.Errorf("unexpected default size %dx%d", state.Width, state.Height)
	}
	if !state.IsDarkMode || state.IsMaximized || state.IsMiniPlayer {
		t.Errorf("unexpected default flags %+v", state)
	}
}

func TestLoadMalformed(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, testLogger())
	if err := os.WriteFile(store.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if state := store.Load(); state != DefaultState() {
		t.Errorf("expected default state for malformed file, got %+v", state)
	}
}

func TestLoad(t *testing.T) {
	for _, tc := range []struct {
		name    string
		content string
		check   func(t *testing.T, state DisplayState)
	}{
		{
			name:    "clamps small sizes",
			content: `{"width": 300, "height": 200}`,
			check: func(t *testing.T, state DisplayState) {
				if state.Width != MinWidth || state.Height != MinHeight {
					t.Errorf("expected %dx%d, got %dx%d", MinWidth, MinHeight, state.Width, state.Height)
				}
			},
		},
		{
			name:    "absent dark mode stays on",
			content: `{"width": 1600, "height": 900, "isMiniPlayer": true}`,
			check: func(t *testing.T, state DisplayState) {
				if !state.IsDarkMode {
					t.Error("expected dark mode default true")
				}
				if !state.IsMiniPlayer {
					t.Error("expected mini player true")
				}
			},
		},
		{
			name:    "explicit dark mode off",
			content: `{"isDarkMode": false}`,
			check: func(t *testing.T, state DisplayState) {
				if state.IsDarkMode {
					t.Error("expected dark mode off")
				}
				if state.Width != DefaultWidth {
					t.Errorf("expected default width, got %d", state.Width)
				}
			},
		},
		{
			name:    "position kept",
			content: `{"width": 1000, "height": 700, "x": 40, "y": -10, "isMaximized": true}`,
			check: func(t *testing.T, state DisplayState) {
				if state.X == nil || *state.X != 40 {
					t.Errorf("unexpected x %v", state.X)
				}
				if state.Y == nil || *state.Y != -10 {
					t.Errorf("unexpected y %v", state.Y)
				}
				if !state.IsMaximized {
					t.Error("expected maximized")
				}
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			store := NewStore(dir, testLogger())
			if err := os.WriteFile(store.Path(), []byte(tc.content), 0o644); err != nil {
				t.Fatal(err)
			}
			tc.check(t, store.Load())
		})
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "mediashell")
	store := NewStore(dir, testLogger())
	x, y := 120, 80
	state := DisplayState{Width: 1440, Height: 900, X: &x, Y: &y, IsDarkMode: false, IsMiniPlayer: true}
	store.Save(state)
	loaded := store.Load()
	if loaded.Width != 1440 || loaded.Height != 900 || loaded.IsDarkMode || !loaded.IsMiniPlayer {
		t.Errorf("roundtrip mismatch: %+v", loaded)
	}
	if loaded.X == nil || *loaded.X != 120 || loaded.Y == nil || *loaded.Y != 80 {
		t.Errorf("position lost: %+v", loaded)
	}
}

func TestSaveUnwritableSwallowed(t *testing.T) {
	dir := t.TempDir()
	// a file where the settings folder should be
	blocker := filepath.Join(dir, "blocked")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := NewStore(filepath.Join(blocker, "sub"), testLogger())
	store.Save(DefaultState()) // must not panic
	if state := store.Load(); state != DefaultState() {
		t.Errorf("expected defaults after failed save, got %+v", state)
	}
}
