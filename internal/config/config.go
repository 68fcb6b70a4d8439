package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	RedisHost     string `env:"REDIS_HOST"     envDefault:"localhost"`
	RedisPort     uint16 `env:"REDIS_PORT"     envDefault:"6379" validate:"min=1000,max=65535"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDb       int    `env:"REDIS_DB"       envDefault:"0"    validate:"min=0,max=15"`

	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"zensync"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"zensync"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"zensync"`

	HttpServerPort     uint16   `env:"HTTP_SERVER_PORT"     envDefault:"8081" validate:"min=1000,max=65535"`
	CorsAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"    envSeparator:","`
	LogDevelopment     bool     `env:"LOG_DEVELOPMENT"      envDefault:"true"`

	TimerTickInterval      time.Duration `env:"TIMER_TICK_INTERVAL"      envDefault:"1s"   validate:"gt=0"`
	StrictNumericCommands  bool          `env:"STRICT_NUMERIC_COMMANDS"  envDefault:"false"`
	RequireRoomExists      bool          `env:"REQUIRE_ROOM_EXISTS"      envDefault:"true"`
	DirectoryLookupTimeout time.Duration `env:"DIRECTORY_LOOKUP_TIMEOUT" envDefault:"2s"   validate:"gt=0"`
	DirectoryCacheTTL      time.Duration `env:"DIRECTORY_CACHE_TTL"      envDefault:"5m"   validate:"gte=0"`

	WsWriteWait      time.Duration `env:"WS_WRITE_WAIT"       envDefault:"10s" validate:"gt=0"`
	WsPongWait       time.Duration `env:"WS_PONG_WAIT"        envDefault:"60s" validate:"gt=0"`
	WsPingPeriod     time.Duration `env:"WS_PING_PERIOD"      envDefault:"54s" validate:"gt=0,ltfield=WsPongWait"`
	WsMaxMessageSize int64         `env:"WS_MAX_MESSAGE_SIZE" envDefault:"512" validate:"min=16"`
	WsSendBuffer     int           `env:"WS_SEND_BUFFER"      envDefault:"64"  validate:"min=1"`

	JanitorInterval time.Duration `env:"JANITOR_INTERVAL" envDefault:"10m" validate:"gt=0"`
	JanitorGrace    time.Duration `env:"JANITOR_GRACE"    envDefault:"1h"  validate:"gte=0"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	validate := validator.New()
	if err = validate.Struct(cfg); err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
