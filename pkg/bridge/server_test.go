package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/je4/mediashell/pkg/automation"
	"github.com/je4/mediashell/pkg/event"
	"github.com/je4/mediashell/pkg/view"
	"github.com/je4/utils/v2/pkg/zLogger"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	mutex      sync.Mutex
	calls      []string
	darkMode   bool
	miniPlayer bool
	volume     int
	navigated  string
}

func (f *fakeController) record(name string) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeController) recorded() []string {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]string{}, f.calls...)
}

func (f *fakeController) PlayPause(ctx context.Context) *automation.Outcome {
	f.record("playpause")
	return &automation.Outcome{Success: true, MatchedSelector: ".play-button"}
}

func (f *fakeController) NextTrack(ctx context.Context) *automation.Outcome {
	f.record("next")
	return &automation.Outcome{Success: false, Message: "no control found"}
}

func (f *fakeController) PreviousTrack(ctx context.Context) *automation.Outcome {
	f.record("previous")
	return &automation.Outcome{Success: true}
}

func (f *fakeController) SetVolume(level int) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.volume = level
}

func (f *fakeController) ToggleMiniPlayer(ctx context.Context) bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.miniPlayer = !f.miniPlayer
	return f.miniPlayer
}

func (f *fakeController) ToggleDarkMode(ctx context.Context) bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.darkMode = !f.darkMode
	return f.darkMode
}

func (f *fakeController) Navigate(ctx context.Context, url string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.navigated = url
	return nil
}

func (f *fakeController) AppState() AppState {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return AppState{
		IsDarkMode:   f.darkMode,
		IsMiniPlayer: f.miniPlayer,
		ProtectedContent: view.ProtectedContentStatus{
			Available: true,
			Message:   "widevine available",
		},
	}
}

func (f *fakeController) ConsoleLog() []string {
	return []string{"line one", "line two"}
}

func (f *fakeController) Snapshot(ctx context.Context, width int, height int, sigma float64) ([]byte, string, error) {
	return []byte("not really a png"), "image/png", nil
}

func testServer(t *testing.T) (*Server, *fakeController) {
	t.Helper()
	logger := zerolog.Nop()
	controller := &fakeController{}
	srv, err := NewServer("localhost:0", controller, false, zLogger.ZLogger(&logger))
	require.NoError(t, err)
	return srv, controller
}

func TestTransportRoutes(t *testing.T) {
	srv, controller := testServer(t)
	router := srv.router()

	for _, tc := range []struct {
		path        string
		wantSuccess bool
	}{
		{"/api/playpause", true},
		{"/api/next", false},
		{"/api/previous", true},
	} {
		t.Run(tc.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, tc.path, nil)
			router.ServeHTTP(w, req)
			require.Equal(t, http.StatusOK, w.Code)

			var result event.ResultMessage
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
			require.Equal(t, tc.wantSuccess, result.Success)
		})
	}
	require.Equal(t, []string{"playpause", "next", "previous"}, controller.recorded())
}

func TestVolumeValidation(t *testing.T) {
	srv, controller := testServer(t)
	router := srv.router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/volume", bytes.NewBufferString(`{"volume":55}`))
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 55, controller.volume)

	for _, body := range []string{`{"volume":120}`, `{"volume":-1}`, `not json`} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/volume", bytes.NewBufferString(body))
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusBadRequest, w.Code, "body %s", body)
	}
	require.Equal(t, 55, controller.volume)
}

func TestToggleRoutesReportNewValue(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/darkmode", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, true, resp["isDarkMode"])

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/darkmode", nil))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, false, resp["isDarkMode"])

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/miniplayer", nil))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, true, resp["isMiniPlayer"])
}

func TestStateRoute(t *testing.T) {
	srv, controller := testServer(t)
	controller.darkMode = true
	router := srv.router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var state AppState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	require.True(t, state.IsDarkMode)
	require.False(t, state.IsMiniPlayer)
	require.True(t, state.ProtectedContent.Available)
}

func TestConsoleLogRoute(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/log", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Lines []string `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, []string{"line one", "line two"}, resp.Lines)
}

func TestSnapshotRoute(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/snapshot?width=320&sigma=2.5", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "image/png", w.Header().Get("Content-Type"))
	require.Equal(t, "not really a png", w.Body.String())
}

func TestControlPage(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/control/living-room", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "living-room")
	require.Contains(t, w.Body.String(), "/ws/living-room")
}

func dialWS(t *testing.T, ts *httptest.Server, name string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/" + name
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	return conn
}

func readEvent(t *testing.T, comm *event.Communication) (event.DataInterface, error) {
	t.Helper()
	evt, err := comm.Receive()
	if err != nil {
		return nil, err
	}
	return evt.Decode()
}

func TestWebsocketTransportRoundtrip(t *testing.T) {
	srv, controller := testServer(t)
	ts := httptest.NewServer(srv.router())
	defer ts.Close()

	logger := zerolog.Nop()
	conn := dialWS(t, ts, "remote")
	defer conn.Close()
	comm := event.NewCommunication(conn, "remote", zLogger.ZLogger(&logger))

	require.NoError(t, comm.Send(event.NewGenericStringMessage(event.TypePlayPause, ""), "shell", "tok"))
	data, err := readEvent(t, comm)
	require.NoError(t, err)
	result, ok := data.(*event.ResultMessage)
	require.True(t, ok)
	require.True(t, result.Success)
	require.Equal(t, ".play-button", result.MatchedSelector)
	require.Equal(t, []string{"playpause"}, controller.recorded())
}

func TestWebsocketVolumeAndState(t *testing.T) {
	srv, controller := testServer(t)
	ts := httptest.NewServer(srv.router())
	defer ts.Close()

	logger := zerolog.Nop()
	conn := dialWS(t, ts, "remote")
	defer conn.Close()
	comm := event.NewCommunication(conn, "remote", zLogger.ZLogger(&logger))

	require.NoError(t, comm.Send(&event.VolumeMessage{Volume: 70}, "shell", ""))
	data, err := readEvent(t, comm)
	require.NoError(t, err)
	result, ok := data.(*event.ResultMessage)
	require.True(t, ok)
	require.True(t, result.Success)
	require.Equal(t, 70, controller.volume)

	require.NoError(t, comm.Send(&event.VolumeMessage{Volume: 150}, "shell", ""))
	data, err = readEvent(t, comm)
	require.NoError(t, err)
	result, ok = data.(*event.ResultMessage)
	require.True(t, ok)
	require.True(t, result.Error)
}

func TestWebsocketStateBroadcastOnToggle(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.router())
	defer ts.Close()

	logger := zerolog.Nop()
	conn := dialWS(t, ts, "remote")
	defer conn.Close()
	comm := event.NewCommunication(conn, "remote", zLogger.ZLogger(&logger))

	require.NoError(t, comm.Send(event.NewGenericStringMessage(event.TypeDarkMode, ""), "shell", ""))
	data, err := readEvent(t, comm)
	require.NoError(t, err)
	state, ok := data.(*event.StateMessage)
	require.True(t, ok)
	require.True(t, state.IsDarkMode)
}

func TestWebsocketNavigate(t *testing.T) {
	srv, controller := testServer(t)
	ts := httptest.NewServer(srv.router())
	defer ts.Close()

	logger := zerolog.Nop()
	conn := dialWS(t, ts, "remote")
	defer conn.Close()
	comm := event.NewCommunication(conn, "remote", zLogger.ZLogger(&logger))

	require.NoError(t, comm.Send(&event.NavigateMessage{URL: "https://music.example.com/de/"}, "shell", ""))
	data, err := readEvent(t, comm)
	require.NoError(t, err)
	result, ok := data.(*event.ResultMessage)
	require.True(t, ok)
	require.True(t, result.Success)
	require.Equal(t, "https://music.example.com/de/", controller.navigated)
}

func TestWebsocketUnknownOperation(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.router())
	defer ts.Close()

	logger := zerolog.Nop()
	conn := dialWS(t, ts, "remote")
	defer conn.Close()
	comm := event.NewCommunication(conn, "remote", zLogger.ZLogger(&logger))

	require.NoError(t, comm.Send(event.NewGenericStringMessage(event.EventType("eject"), ""), "shell", ""))
	data, err := readEvent(t, comm)
	require.NoError(t, err)
	result, ok := data.(*event.ResultMessage)
	require.True(t, ok)
	require.True(t, result.Error)
	require.Contains(t, result.Message, "eject")
}

type syncBuffer struct {
	mutex sync.Mutex
	buf   bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.buf.String()
}

func TestReadLoopEndsOnServerSideClose(t *testing.T) {
	srv, _ := testServer(t)
	out := &syncBuffer{}
	logger := zerolog.New(out)
	srv.logger = zLogger.ZLogger(&logger)
	ts := httptest.NewServer(srv.router())
	defer ts.Close()

	conn := dialWS(t, ts, "remote")
	defer conn.Close()
	require.Eventually(t, func() bool {
		srv.connsMu.Lock()
		defer srv.connsMu.Unlock()
		return len(srv.conns) == 1
	}, 2*time.Second, 10*time.Millisecond)

	srv.closeConns()

	// a spinning read loop would log the same read error over and over
	time.Sleep(300 * time.Millisecond)
	require.LessOrEqual(t, strings.Count(out.String(), "cannot read event"), 1)
}

func TestReplacingNamedConnection(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.router())
	defer ts.Close()

	first := dialWS(t, ts, "remote")
	defer first.Close()
	second := dialWS(t, ts, "remote")
	defer second.Close()

	// give the server a moment to register the replacement
	require.Eventually(t, func() bool {
		srv.connsMu.Lock()
		defer srv.connsMu.Unlock()
		return len(srv.conns) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
