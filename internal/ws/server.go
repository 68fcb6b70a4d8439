package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"zensyncgo/internal/roomstate"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Options tunes the per-connection transport.
type Options struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration // must be < PongWait
	MaxMessageSize int64
	SendBuffer     int
	// RequireRoomExists rejects the upgrade for rooms the directory does not know.
	RequireRoomExists bool
	// AllowedOrigins limits browser handshakes; empty or "*" allows any origin.
	AllowedOrigins []string
}

func DefaultOptions() Options {
	return Options{
		WriteWait:         10 * time.Second,
		PongWait:          60 * time.Second,
		PingPeriod:        54 * time.Second,
		MaxMessageSize:    512,
		SendBuffer:        64,
		RequireRoomExists: true,
	}
}

type WsServer struct {
	hub      *Hub
	opts     Options
	upgrader websocket.Upgrader
}

func NewWsServer(h *Hub, opts Options) *WsServer {
	def := DefaultOptions()
	if opts.WriteWait <= 0 {
		opts.WriteWait = def.WriteWait
	}
	if opts.PongWait <= 0 {
		opts.PongWait = def.PongWait
	}
	if opts.PingPeriod <= 0 || opts.PingPeriod >= opts.PongWait {
		opts.PingPeriod = opts.PongWait * 9 / 10
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = def.MaxMessageSize
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = def.SendBuffer
	}
	s := &WsServer{hub: h, opts: opts}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// checkOrigin accepts non-browser clients (no Origin header) and any origin
// listed in AllowedOrigins.
func (s *WsServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range s.opts.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// Handle is the gin entry-point for GET /ws/:kind/:roomId.
func (s *WsServer) Handle(ginCtx *gin.Context) {
	kind, err := roomstate.ParseKind(ginCtx.Param("kind"))
	if err != nil {
		ginCtx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	roomID := strings.TrimSpace(ginCtx.Param("roomId"))
	if roomID == "" {
		ginCtx.JSON(http.StatusBadRequest, gin.H{"error": "roomId is required"})
		return
	}

	if s.opts.RequireRoomExists && !s.roomExists(ginCtx.Request.Context(), kind, roomID) {
		ginCtx.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}

	identity := identityFrom(ginCtx)

	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}

	connID := uuid.NewString()
	conn := newClientConn(connID, rawConn, s.opts)
	go conn.writePump()

	sess := NewSession(connID, kind, roomID, identity, conn)
	m := s.hub.Attach(sess)
	zap.L().Debug("ws.open",
		zap.String("conn", connID),
		zap.String("kind", kind.String()),
		zap.String("room", roomID),
		zap.Bool("participant", identity != nil))

	go s.reader(m, conn)
}

// roomExists fails open: a directory outage must not lock everyone out.
func (s *WsServer) roomExists(ctx context.Context, kind roomstate.Kind, roomID string) bool {
	dir := s.hub.cfg.Directory
	if dir == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, s.hub.cfg.LookupTimeout)
	defer cancel()
	ok, err := dir.RoomExists(ctx, kind, roomID)
	if err != nil {
		zap.L().Warn("ws.room_lookup", zap.String("room", roomID), zap.Error(err))
		return true
	}
	return ok
}

// identityFrom reads the upstream-authenticated identity. Without a user id
// the connection is an observer.
func identityFrom(c *gin.Context) *Identity {
	userID := firstNonEmpty(c.GetHeader("X-User-Id"), c.Query("userId"))
	if userID == "" {
		return nil
	}
	name := firstNonEmpty(c.GetHeader("X-Display-Name"), c.Query("displayName"), c.Query("username"), userID)
	return &Identity{UserID: userID, DisplayName: name}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func (s *WsServer) reader(m *Membership, conn *clientConn) {
	defer func() {
		m.Leave()
		_ = conn.Close()
		zap.L().Debug("ws.close", zap.String("conn", conn.id))
	}()

	raw := conn.rawConn
	raw.SetReadLimit(s.opts.MaxMessageSize)
	_ = raw.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	})

	for {
		mt, data, err := raw.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				zap.L().Debug("ws.read", zap.String("conn", conn.id), zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		m.Handle(string(data))
	}
}
