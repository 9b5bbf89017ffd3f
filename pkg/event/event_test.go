package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventRoundtrip(t *testing.T) {
	for _, tc := range []struct {
		name string
		data DataInterface
	}{
		{"volume", &VolumeMessage{Volume: 42}},
		{"navigate", &NavigateMessage{URL: "https://music.example.com/de/"}},
		{"result ok", &ResultMessage{Success: true, MatchedSelector: ".play"}},
		{"result failed", &ResultMessage{Success: false, Error: true, Message: "no control found"}},
		{"state", &StateMessage{IsDarkMode: true, IsMiniPlayer: false}},
		{"string", NewGenericStringMessage(TypeStringMessage, "hello")},
	} {
		t.Run(tc.name, func(t *testing.T) {
			evt, err := NewEvent(tc.data, "shell", "token123")
			require.NoError(t, err)
			require.Equal(t, tc.data.Type(), evt.GetType())

			raw, err := json.Marshal(evt)
			require.NoError(t, err)
			var parsed Event
			require.NoError(t, json.Unmarshal(raw, &parsed))

			decoded, err := parsed.Decode()
			require.NoError(t, err)
			require.Equal(t, tc.data.Type(), decoded.Type())
			require.Equal(t, tc.data.String(), decoded.String())
		})
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	evt := &Event{Type: TypeSetVolume, Data: json.RawMessage(`"not an object"`)}
	_, err := evt.Decode()
	require.Error(t, err)
}

func TestUnknownTypeDecodesAsString(t *testing.T) {
	evt := &Event{Type: EventType("something-else"), Data: json.RawMessage(`"payload"`)}
	decoded, err := evt.Decode()
	require.NoError(t, err)
	require.Equal(t, "payload", decoded.String())
}
