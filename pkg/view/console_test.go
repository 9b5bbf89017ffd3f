package view

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConsoleRingKeepsLines(t *testing.T) {
	console := newConsoleRing(10)
	console.Write("error: %s", "playback stalled")
	console.Write("warn: buffering")

	lines := console.Lines()
	require.Contains(t, lines, "error: playback stalled")
	require.Contains(t, lines, "warn: buffering")
}

func TestConsoleRingSuppressesLyricsErrors(t *testing.T) {
	console := newConsoleRing(10)
	console.Write("TypeError: Cannot read lyrics of undefined")
	console.Write("Lyrics provider returned 503")
	console.Write("error: playback stalled")

	lines := console.Lines()
	require.Len(t, lines, 1)
	require.Equal(t, "error: playback stalled", lines[0])
}

func TestSuppressedConsole(t *testing.T) {
	require.True(t, suppressedConsole("https://cdn.example.com/lyrics.bundle.js:1 failed"))
	require.True(t, suppressedConsole("LYRICS fetch aborted"))
	require.False(t, suppressedConsole("media decode error"))
}
