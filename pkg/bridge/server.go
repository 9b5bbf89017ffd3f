package bridge

import (
	"context"
	"crypto/tls"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/je4/mediashell/pkg/automation"
	"github.com/je4/mediashell/pkg/event"
	"github.com/je4/mediashell/pkg/view"
	"github.com/je4/utils/v2/pkg/zLogger"
)

//go:embed templates
var embeddedFS embed.FS

// AppState is the read model handed to control surfaces.
type AppState struct {
	IsDarkMode       bool                        `json:"isDarkMode"`
	IsMiniPlayer     bool                        `json:"isMiniPlayer"`
	ProtectedContent view.ProtectedContentStatus `json:"protectedContentStatus"`
}

// Controller is everything the control bar may do. Exactly these operations
// mutate or read application state, the bridge adds nothing of its own.
type Controller interface {
	PlayPause(ctx context.Context) *automation.Outcome
	NextTrack(ctx context.Context) *automation.Outcome
	PreviousTrack(ctx context.Context) *automation.Outcome
	SetVolume(level int)
	ToggleMiniPlayer(ctx context.Context) bool
	ToggleDarkMode(ctx context.Context) bool
	Navigate(ctx context.Context, url string) error
	AppState() AppState
	ConsoleLog() []string
	Snapshot(ctx context.Context, width int, height int, sigma float64) ([]byte, string, error)
}

func NewServer(addr string, controller Controller, debug bool, logger zLogger.ZLogger) (*Server, error) {
	templateFS, err := fs.Sub(embeddedFS, "templates")
	if err != nil {
		return nil, errors.Wrap(err, "cannot access embedded templates")
	}
	return &Server{
		addr:       addr,
		controller: controller,
		upgrader:   websocket.Upgrader{},
		logger:     logger,
		debug:      debug,
		templates:  make(map[string]*template.Template),
		templateFS: templateFS,
		conns:      make(map[string]*bridgeConn),
	}, nil
}

// Server is the narrow local control surface: REST routes and a websocket
// for the injected control bar and external remotes. Handlers answer with a
// success/failure envelope, nothing here panics through gin.
type Server struct {
	addr       string
	controller Controller
	upgrader   websocket.Upgrader
	srv        *http.Server
	logger     zLogger.ZLogger
	wg         sync.WaitGroup
	debug      bool
	templates  map[string]*template.Template
	templateFS fs.FS
	conns      map[string]*bridgeConn
	connsMu    sync.Mutex
}

func (srv *Server) getTemplate(name string) (*template.Template, error) {
	if tmpl, ok := srv.templates[name]; ok {
		return tmpl, nil
	}
	tmpl, err := template.New(name).ParseFS(srv.templateFS, name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse template %s", name)
	}
	if !srv.debug {
		srv.templates[name] = tmpl
	}
	return tmpl, nil
}

func (srv *Server) router() *gin.Engine {
	if !srv.debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	// the injected control bar calls the loopback bridge from the service
	// origin
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"*"},
		AllowHeaders:     []string{"*"},
		AllowCredentials: true,
		AllowWebSockets:  true,
	}))

	router.POST("/api/playpause", srv.transport(srv.controller.PlayPause))
	router.POST("/api/next", srv.transport(srv.controller.NextTrack))
	router.POST("/api/previous", srv.transport(srv.controller.PreviousTrack))
	router.POST("/api/volume", srv.volume)
	router.POST("/api/miniplayer", srv.toggleMiniPlayer)
	router.POST("/api/darkmode", srv.toggleDarkMode)
	router.GET("/api/state", srv.state)
	router.GET("/api/log", srv.consoleLog)
	router.GET("/api/snapshot", srv.snapshot)
	router.GET("/control/:name", srv.controlPage)
	router.GET("/ws/:name", srv.ws)
	return router
}

func (srv *Server) transport(op func(ctx context.Context) *automation.Outcome) gin.HandlerFunc {
	return func(c *gin.Context) {
		outcome := op(c.Request.Context())
		c.JSON(http.StatusOK, resultFromOutcome(outcome))
	}
}

// acknowledged but intentionally a no-op, volume belongs to the OS mixer
func (srv *Server) volume(c *gin.Context) {
	var req struct {
		Volume int `json:"volume"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "volume must be a number"})
		return
	}
	if req.Volume < 0 || req.Volume > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "volume must be between 0 and 100"})
		return
	}
	srv.controller.SetVolume(req.Volume)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (srv *Server) toggleMiniPlayer(c *gin.Context) {
	value := srv.controller.ToggleMiniPlayer(c.Request.Context())
	srv.broadcastState()
	c.JSON(http.StatusOK, gin.H{"status": "ok", "isMiniPlayer": value})
}

func (srv *Server) toggleDarkMode(c *gin.Context) {
	value := srv.controller.ToggleDarkMode(c.Request.Context())
	srv.broadcastState()
	c.JSON(http.StatusOK, gin.H{"status": "ok", "isDarkMode": value})
}

func (srv *Server) state(c *gin.Context) {
	c.JSON(http.StatusOK, srv.controller.AppState())
}

func (srv *Server) consoleLog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"lines": srv.controller.ConsoleLog()})
}

func (srv *Server) snapshot(c *gin.Context) {
	width, _ := strconv.Atoi(c.DefaultQuery("width", "0"))
	height, _ := strconv.Atoi(c.DefaultQuery("height", "0"))
	sigma, _ := strconv.ParseFloat(c.DefaultQuery("sigma", "0"), 64)
	buf, mime, err := srv.controller.Snapshot(c.Request.Context(), width, height, sigma)
	if err != nil {
		srv.logger.Error().Err(err).Msg("cannot create snapshot")
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}
	c.Data(http.StatusOK, mime, buf)
}

func (srv *Server) controlPage(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		name = "noname"
	}
	controlTemplate, err := srv.getTemplate("control.gohtml")
	if err != nil {
		srv.logger.Error().Err(err).Msg("failed to get template control.gohtml")
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	if err := controlTemplate.Execute(c.Writer, struct{ Addr, Name string }{
		Addr: "ws://" + c.Request.Host + "/ws/" + name,
		Name: name,
	}); err != nil {
		srv.logger.Error().Err(err).Msg("failed to execute template")
	}
}

func (srv *Server) Start(tlsConfig *tls.Config) error {
	srv.srv = &http.Server{
		Addr:      srv.addr,
		Handler:   srv.router(),
		TLSConfig: tlsConfig,
	}
	srv.wg.Add(1)
	go func() {
		defer srv.wg.Done()
		if tlsConfig == nil {
			srv.logger.Info().Msgf("starting bridge on http://%s", srv.addr)
			if err := srv.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				srv.logger.Error().Err(err).Msg("bridge server error")
			} else {
				srv.logger.Info().Msg("bridge server closed")
			}
		} else {
			srv.logger.Info().Msgf("starting bridge on https://%s", srv.addr)
			if err := srv.srv.ListenAndServeTLS("", ""); !errors.Is(err, http.ErrServerClosed) {
				srv.logger.Error().Err(err).Msg("bridge server error")
			} else {
				srv.logger.Info().Msg("bridge server closed")
			}
		}
	}()
	return nil
}

func (srv *Server) Stop() error {
	if srv.srv == nil {
		return errors.New("server not started")
	}
	srv.logger.Info().Msg("stopping bridge")
	srv.closeConns()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.srv.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "failed to shutdown bridge")
	}
	srv.wg.Wait()
	return nil
}

func resultFromOutcome(outcome *automation.Outcome) *event.ResultMessage {
	return &event.ResultMessage{
		Success:         outcome.Success,
		Error:           outcome.Error,
		Message:         outcome.Message,
		MatchedSelector: outcome.MatchedSelector,
	}
}
