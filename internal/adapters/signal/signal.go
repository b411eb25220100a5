package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/barflow/internal/app/orch"
	"github.com/dkeye/barflow/internal/core"
	"github.com/dkeye/barflow/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

type Options struct {
	SendBuffer int
	PingPeriod time.Duration
	ReadLimit  int64
}

type SignalWSController struct {
	Orch    *orch.Orchestrator
	Limiter *JoinLimiter
	opts    Options
}

func NewSignalWSController(o *orch.Orchestrator, limiter *JoinLimiter, opts Options) *SignalWSController {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 32
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 54 * time.Second
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = 32768
	}
	return &SignalWSController{Orch: o, Limiter: limiter, opts: opts}
}

// WsSignalConn is the push side of one socket. Frames queue in send and
// the write pump drains them.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

var _ core.SignalConnection = (*WsSignalConn)(nil)

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnectionClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

type WelcomePayload struct {
	Connection domain.Connection     `json:"connection"`
	Roles      []domain.Role         `json:"roles"`
	Presence   core.PresenceSnapshot `json:"presence"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and runs the socket until either side
// goes away or ctx is canceled. name seeds the display name, usually from
// the cookie session.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context, name string) {
	id := domain.NewConnectionID()
	token := c.GetString("client_token")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(id)).Str("client", token).Msg("new WS connection")

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.opts.SendBuffer),
	}

	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Registry.Attach(id, conn, cancel)
	if name != "" {
		if _, err := ctl.Orch.Registry.Rename(id, name); err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("session name ignored")
		}
	}

	if m, ok := ctl.Orch.Registry.Lookup(id); ok {
		ctl.send(conn, core.Event{
			Type:    core.EventWelcome,
			Message: "Connected to the bar",
			Payload: WelcomePayload{
				Connection: m.Conn,
				Roles:      domain.Roles,
				Presence:   core.NewPresenceSnapshot(ctl.Orch.Registry.MembershipCounts()),
			},
		})
	}

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, id, conn)
}

func (ctl *SignalWSController) send(c *WsSignalConn, ev core.Event) {
	if err := ctl.Orch.Router.SendTo(core.Member{Signal: c}, ev); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("type", string(ev.Type)).Msg("send")
	}
}

type errorPayload struct {
	Code string `json:"code"`
}

func (ctl *SignalWSController) sendError(c *WsSignalConn, code, message string) {
	ctl.send(c, core.Event{
		Type:    core.EventError,
		Message: message,
		Payload: errorPayload{Code: code},
	})
}
