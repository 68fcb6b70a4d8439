package http_server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"zensyncgo/internal/http/roomhandler"
	"zensyncgo/internal/services/rooms"
	"zensyncgo/internal/ws"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

type httpServer struct {
	listenPort     uint16
	allowedOrigins []string
	srv            http.Server
	ln             net.Listener
	roomService    rooms.IRoomService
	wsSrv          *ws.WsServer
	hub            *ws.Hub
	ctx            context.Context
}

func NewHttpServer(ctx context.Context, listenPort uint16, allowedOrigins []string,
	wsSrv *ws.WsServer, hub *ws.Hub, roomService rooms.IRoomService) *httpServer {
	return &httpServer{
		listenPort:     listenPort,
		allowedOrigins: allowedOrigins,
		wsSrv:          wsSrv,
		hub:            hub,
		roomService:    roomService,
		ctx:            ctx,
	}
}

// Handler builds the gin engine wrapped in the CORS layer.
func (h *httpServer) Handler() http.Handler {
	routerEngine := gin.New()

	routerEngine.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))
	routerEngine.Use(ginzap.RecoveryWithZap(zap.L(), true))

	routerEngine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	routerEngine.GET("/stats", func(c *gin.Context) {
		liveRooms, sessions := h.hub.Stats()
		c.JSON(http.StatusOK, gin.H{"rooms": liveRooms, "sessions": sessions})
	})

	// websocket endpoint
	routerEngine.GET("/ws/:kind/:roomId", h.wsSrv.Handle)

	// REST API
	if h.roomService != nil {
		roomhandler.New(h.roomService).Register(routerEngine)
	}

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: h.allowedOrigins,
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(routerEngine)
}

// Start blocks serving until Dispose is called.
func (h *httpServer) Start() error {
	var err error
	listenAddr := fmt.Sprintf(":%d", h.listenPort)
	h.ln, err = net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}

	h.srv = http.Server{
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	zap.L().Info("http.listen", zap.String("addr", listenAddr))

	if err := h.srv.Serve(h.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Dispose gracefully shuts the HTTP server down.
// It waits up to 10 s for in-flight requests to finish.
func (h *httpServer) Dispose() error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(h.ctx), 10*time.Second)
	defer cancel()

	if err := h.srv.Shutdown(ctx); err != nil {
		zap.L().Error("http_dispose", zap.Error(err))
		return err
	}
	return nil
}
