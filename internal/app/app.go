package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/devoverflow-hq/chat-service/internal/chat"
	"github.com/devoverflow-hq/chat-service/internal/config"
	"github.com/devoverflow-hq/chat-service/internal/db"
	"github.com/devoverflow-hq/chat-service/internal/http/api/chatapi"
	"github.com/devoverflow-hq/chat-service/internal/ratelimit"
	"github.com/devoverflow-hq/chat-service/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// shutdownGrace bounds how long in-flight requests get on shutdown.
const shutdownGrace = 10 * time.Second

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the chat API server with database-backed components.
func RunServer(ctx context.Context, cfg config.AppConfig, port int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	jwtCfg, _ := config.LoadJWTConfig(configPath)
	if jwtCfg.Secret == "" {
		return fmt.Errorf("missing jwt secret (set %s or `jwt.secret` in config file)", config.EnvJWTSecret)
	}
	realtimeCfg, _ := config.LoadRealtimeConfig(configPath)
	chatCfg, _ := config.LoadChatConfig(configPath)

	var publisher realtime.Publisher = realtime.NopPublisher{}
	if realtimeCfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     realtimeCfg.RedisAddr,
			Password: realtimeCfg.RedisPassword,
			DB:       realtimeCfg.RedisDB,
		})
		publisher = realtime.NewRedisPublisher(client, realtimeCfg.ChannelPrefix)
		log.WithField("addr", realtimeCfg.RedisAddr).Info("realtime publisher using redis")
	} else {
		log.Info("no redis configured, realtime broadcasts disabled")
	}

	svc := chat.NewService(conn, publisher)
	authorizer := realtime.NewAuthorizer(realtimeCfg.AppKey, realtimeCfg.Secret)
	limiter := ratelimit.NewManager(ratelimit.Config{
		RedisAddr:     realtimeCfg.RedisAddr,
		RedisPassword: realtimeCfg.RedisPassword,
		RedisDB:       realtimeCfg.RedisDB,
		Prefix:        "chat:ratelimit",
	}, nil, nil)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	chatapi.RegisterChatRoutes(engine, conn, svc, jwtCfg, chatCfg, authorizer, limiter)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("chat server listening")
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			errCh <- errServe
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return <-errCh
	case errServe := <-errCh:
		return errServe
	}
}
