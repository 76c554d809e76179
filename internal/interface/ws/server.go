// Package ws serves the live sync protocol over websockets: subscriptions to publications,
// method calls and identity changes, multiplexed on one connection per client.
package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-social-sync/internal/application"
	"github.com/oksasatya/go-social-sync/internal/livequery"
	"github.com/oksasatya/go-social-sync/pkg/helpers"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 1 << 20
)

var activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "sync_sessions_active",
	Help: "Open live sync connections",
})

// Identifier resolves an access token to a user id.
type Identifier interface {
	Identify(ctx context.Context, accessToken string) (string, error)
}

type Server struct {
	Gateway    *application.Gateway
	Publisher  *livequery.Publisher
	Auth       Identifier
	Logger     *logrus.Logger
	SendBuffer int
	Upgrader   websocket.Upgrader

	sessions *xsync.MapOf[string, *Session]
}

func NewServer(gw *application.Gateway, pub *livequery.Publisher, auth Identifier, logger *logrus.Logger, sendBuffer int) *Server {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Server{
		Gateway:    gw,
		Publisher:  pub,
		Auth:       auth,
		Logger:     logger,
		SendBuffer: sendBuffer,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		sessions: xsync.NewMapOf[string, *Session](),
	}
}

// identify returns the user behind token, or "" for anonymous callers.
func (s *Server) identify(ctx context.Context, token string) string {
	if token == "" || s.Auth == nil {
		return ""
	}
	uid, err := s.Auth.Identify(ctx, token)
	if err != nil {
		return ""
	}
	return uid
}

// AllowOrigins restricts browser connections to the listed origins. Requests without
// an Origin header come from non-browser clients and are accepted. An empty list or a
// "*" entry accepts every origin.
func (s *Server) AllowOrigins(origins ...string) {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			s.Upgrader.CheckOrigin = func(*http.Request) bool { return true }
			return
		}
		allowed[strings.ToLower(strings.TrimRight(o, "/"))] = true
	}
	if len(allowed) == 0 {
		s.Upgrader.CheckOrigin = func(*http.Request) bool { return true }
		return
	}
	s.Upgrader.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[strings.ToLower(origin)]
	}
}

// Handle upgrades the request. A valid access token on the request signs the
// connection in; otherwise it starts anonymous.
func (s *Server) Handle(c *gin.Context) {
	caller := s.identify(c.Request.Context(), helpers.Token(c))
	conn, err := s.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).Warn("websocket upgrade failed")
		}
		return
	}
	s.serve(conn, caller)
}

func (s *Server) serve(conn *websocket.Conn, caller string) {
	ctx, cancel := context.WithCancel(context.Background())
	sess := &Session{
		ID:     ulid.Make().String(),
		server: s,
		conn:   conn,
		send:   make(chan []byte, s.SendBuffer),
		ctx:    ctx,
		cancel: cancel,
		caller: caller,
		subs:   map[string]*subscription{},
	}
	sess.box = livequery.NewMergeBox(dataSink{sess})
	s.sessions.Store(sess.ID, sess)
	activeSessions.Inc()
	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{"session": sess.ID, "user_id": caller}).Debug("sync session opened")
	}

	go sess.writePump()
	go sess.readPump()
}

func (s *Server) unregister(sess *Session) {
	if _, ok := s.sessions.LoadAndDelete(sess.ID); ok {
		activeSessions.Dec()
	}
}

// Sessions returns the number of open connections.
func (s *Server) Sessions() int {
	return s.sessions.Size()
}

// Shutdown closes every open connection.
func (s *Server) Shutdown() {
	s.sessions.Range(func(_ string, sess *Session) bool {
		sess.close()
		return true
	})
}
