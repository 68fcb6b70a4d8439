package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"zensyncgo/internal/config"
	"zensyncgo/internal/database/db_client"
	"zensyncgo/internal/database/db_migrate"
	"zensyncgo/internal/http/http_server"
	"zensyncgo/internal/janitor"
	"zensyncgo/internal/presence"
	"zensyncgo/internal/redis/redis_client"
	"zensyncgo/internal/redis/redis_functions"
	"zensyncgo/internal/services/rooms"
	"zensyncgo/internal/syncpresence"
	"zensyncgo/internal/ws"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer func() { _ = Log.Sync() }()
	zap.ReplaceGlobals(Log)

	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if !cfg.LogDevelopment {
		if prod, err := zap.NewProduction(); err == nil {
			Log = prod
			zap.ReplaceGlobals(Log)
		}
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Redis
	redisClient, err := redis_client.NewRedisClient(cfg.RedisHost, int(cfg.RedisPort), cfg.RedisPassword, cfg.RedisDb)
	if err != nil {
		Log.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()

	if err := redis_functions.LoadAll(ctx, redisClient); err != nil {
		Log.Fatal("load-redis-funcs", zap.Error(err))
	}

	// 4. Postgres + schema
	pgDb, err := db_client.Open(ctx, cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
	if err != nil {
		Log.Fatal("pg-open", zap.Error(err))
	}
	defer pgDb.Close()

	if err := db_migrate.Migrate(ctx, pgDb); err != nil {
		Log.Fatal("pg-migrate", zap.Error(err))
	}

	// 5. Room directory
	roomService := rooms.NewRoomService(redisClient, pgDb, cfg.DirectoryCacheTTL)

	// 6. Background: presence recorder, stream -> Postgres mirror, stale-room janitor
	clock := clockwork.NewRealClock()
	recorder := presence.NewRecorder(redisClient, clock, 0)
	go recorder.Run(ctx)
	go syncpresence.Run(ctx, redisClient, pgDb)
	go janitor.Run(ctx, roomService, clock, cfg.JanitorInterval, cfg.JanitorGrace)

	// 7. Live rooms
	hub := ws.NewHub(ws.HubConfig{
		Clock:         clock,
		TickInterval:  cfg.TimerTickInterval,
		StrictNumbers: cfg.StrictNumericCommands,
		LookupTimeout: cfg.DirectoryLookupTimeout,
		Directory:     roomService,
		Presence:      recorder,
	})
	wsSrv := ws.NewWsServer(hub, ws.Options{
		WriteWait:         cfg.WsWriteWait,
		PongWait:          cfg.WsPongWait,
		PingPeriod:        cfg.WsPingPeriod,
		MaxMessageSize:    cfg.WsMaxMessageSize,
		SendBuffer:        cfg.WsSendBuffer,
		RequireRoomExists: cfg.RequireRoomExists,
		AllowedOrigins:    cfg.CorsAllowedOrigins,
	})

	// 8. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, cfg.CorsAllowedOrigins, wsSrv, hub, roomService)
	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			Log.Error("http server stopped", zap.Error(err))
		}
	case <-ctx.Done():
		Log.Info("shutdown signal received")
		_ = httpServer.Dispose()
	}

	// 9. Drop every live room and its timer
	hub.Close()
	Log.Info("bye")
}
