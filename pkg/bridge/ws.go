package bridge

import (
	"fmt"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/je4/mediashell/pkg/event"
)

// bridgeConn is one named control surface connection. gorilla connections
// tolerate a single writer only, so every outgoing frame goes through sendEvent.
type bridgeConn struct {
	name  string
	conn  *websocket.Conn
	mutex sync.Mutex
}

func (c *bridgeConn) sendEvent(evt *event.Event) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if err := c.conn.WriteJSON(evt); err != nil {
		return errors.Wrapf(err, "cannot send event to %s", c.name)
	}
	return nil
}

func (c *bridgeConn) send(data event.DataInterface, token string) error {
	evt, err := event.NewEvent(data, c.name, token)
	if err != nil {
		return errors.Wrapf(err, "cannot create event: %v", data)
	}
	evt.Source = "shell"
	return c.sendEvent(evt)
}

func (srv *Server) addConn(c *bridgeConn) {
	srv.connsMu.Lock()
	old, ok := srv.conns[c.name]
	srv.conns[c.name] = c
	srv.connsMu.Unlock()
	if ok {
		srv.logger.Warn().Msgf("replacing connection %s", c.name)
		_ = old.conn.Close()
	}
}

func (srv *Server) removeConn(c *bridgeConn) {
	srv.connsMu.Lock()
	defer srv.connsMu.Unlock()
	if cur, ok := srv.conns[c.name]; ok && cur == c {
		delete(srv.conns, c.name)
	}
}

func (srv *Server) closeConns() {
	srv.connsMu.Lock()
	conns := make([]*bridgeConn, 0, len(srv.conns))
	for _, c := range srv.conns {
		conns = append(conns, c)
	}
	srv.conns = make(map[string]*bridgeConn)
	srv.connsMu.Unlock()
	for _, c := range conns {
		srv.logger.Info().Msgf("closing connection %s", c.name)
		if err := c.conn.Close(); err != nil {
			srv.logger.Error().Err(err).Msgf("failed to close connection %s", c.name)
		}
	}
}

// broadcastState pushes the current preference state to every connected
// control surface.
func (srv *Server) broadcastState() {
	state := srv.controller.AppState()
	msg := &event.StateMessage{
		IsDarkMode:   state.IsDarkMode,
		IsMiniPlayer: state.IsMiniPlayer,
	}
	srv.connsMu.Lock()
	conns := make([]*bridgeConn, 0, len(srv.conns))
	for _, c := range srv.conns {
		conns = append(conns, c)
	}
	srv.connsMu.Unlock()
	for _, c := range conns {
		if err := c.send(msg, ""); err != nil {
			srv.logger.Error().Err(err).Msgf("cannot push state to %s", c.name)
		}
	}
}

func (srv *Server) upgrade(ctx *gin.Context, name string, pingInterval time.Duration) (*websocket.Conn, error) {
	conn, err := srv.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upgrade connection")
	}
	conn.SetCloseHandler(func(code int, text string) error {
		srv.logger.Debug().Msgf("connection closed from remote %s[%s]: %d %s", name, ctx.Request.RemoteAddr, code, text)
		return nil
	})
	conn.SetPingHandler(func(appData string) error {
		srv.logger.Debug().Msgf("received ping from client %s[%s]: %s", name, ctx.Request.RemoteAddr, appData)
		return nil
	})
	conn.SetPongHandler(func(appData string) error {
		srv.logger.Debug().Msgf("received pong from client %s[%s]: %s", name, ctx.Request.RemoteAddr, appData)
		return nil
	})
	go func() {
		for {
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second)); err != nil {
				srv.logger.Debug().Err(err).Msgf("failed to send ping to %s", name)
				return
			}
			select {
			case <-time.After(pingInterval):
			case <-ctx.Request.Context().Done():
				return
			}
		}
	}()
	return conn, nil
}

func (srv *Server) ws(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		name = "noname"
	}
	conn, err := srv.upgrade(c, name, 10*time.Second)
	if err != nil {
		srv.logger.Error().Err(err).Msg("failed to upgrade connection")
		return
	}
	bc := &bridgeConn{name: name, conn: conn}
	srv.addConn(bc)
	defer srv.removeConn(bc)
	srv.logger.Info().Msgf("control surface connected: %s", name)

	for {
		var evt event.Event
		if err := conn.ReadJSON(&evt); err != nil {
			// any read error ends the connection, gorilla keeps returning
			// the same error once the conn is gone
			if websocket.IsCloseError(errors.Cause(err), websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) ||
				websocket.IsUnexpectedCloseError(errors.Cause(err), websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				srv.logger.Debug().Err(err).Msgf("connection closed: %s", name)
			} else {
				srv.logger.Error().Err(err).Msgf("cannot read event from %s", name)
			}
			return
		}
		srv.handleEvent(c, bc, &evt)
	}
}

// handleEvent maps one incoming websocket event onto the controller. Every
// transport operation answers the sender with a result message, failures are
// payload, never a dropped connection.
func (srv *Server) handleEvent(c *gin.Context, bc *bridgeConn, evt *event.Event) {
	ctx := c.Request.Context()
	switch evt.Type {
	case event.TypePlayPause:
		srv.reply(bc, evt, resultFromOutcome(srv.controller.PlayPause(ctx)))
	case event.TypeNextTrack:
		srv.reply(bc, evt, resultFromOutcome(srv.controller.NextTrack(ctx)))
	case event.TypePreviousTrack:
		srv.reply(bc, evt, resultFromOutcome(srv.controller.PreviousTrack(ctx)))
	case event.TypeSetVolume:
		data, err := evt.Decode()
		if err != nil {
			srv.logger.Error().Err(err).Msgf("cannot decode volume event from %s", bc.name)
			srv.reply(bc, evt, &event.ResultMessage{Error: true, Message: "invalid volume payload"})
			return
		}
		msg, ok := data.(*event.VolumeMessage)
		if !ok || msg.Volume < 0 || msg.Volume > 100 {
			srv.reply(bc, evt, &event.ResultMessage{Error: true, Message: "volume must be between 0 and 100"})
			return
		}
		srv.controller.SetVolume(msg.Volume)
		srv.reply(bc, evt, &event.ResultMessage{Success: true, Message: "volume acknowledged"})
	case event.TypeMiniPlayer:
		srv.controller.ToggleMiniPlayer(ctx)
		srv.broadcastState()
	case event.TypeDarkMode:
		srv.controller.ToggleDarkMode(ctx)
		srv.broadcastState()
	case event.TypeNavigate:
		data, err := evt.Decode()
		if err != nil {
			srv.logger.Error().Err(err).Msgf("cannot decode navigate event from %s", bc.name)
			srv.reply(bc, evt, &event.ResultMessage{Error: true, Message: "invalid navigate payload"})
			return
		}
		msg, ok := data.(*event.NavigateMessage)
		if !ok {
			srv.reply(bc, evt, &event.ResultMessage{Error: true, Message: "invalid navigate payload"})
			return
		}
		if err := srv.controller.Navigate(ctx, msg.URL); err != nil {
			srv.reply(bc, evt, &event.ResultMessage{Error: true, Message: err.Error()})
			return
		}
		srv.reply(bc, evt, &event.ResultMessage{Success: true, Message: msg.URL})
	case event.TypeAppState:
		state := srv.controller.AppState()
		srv.reply(bc, evt, &event.StateMessage{
			IsDarkMode:   state.IsDarkMode,
			IsMiniPlayer: state.IsMiniPlayer,
		})
	case event.TypeResult, event.TypeStateChanged:
		// outbound-only types, a client echoing them back is ignored
	default:
		srv.logger.Debug().Msgf("unhandled event type %s from %s", evt.Type, bc.name)
		srv.reply(bc, evt, &event.ResultMessage{Error: true, Message: fmt.Sprintf("unknown operation %s", evt.Type)})
	}
}

func (srv *Server) reply(bc *bridgeConn, evt *event.Event, data event.DataInterface) {
	if err := bc.send(data, evt.Token); err != nil {
		srv.logger.Error().Err(err).Msgf("cannot answer %s", bc.name)
	}
}
