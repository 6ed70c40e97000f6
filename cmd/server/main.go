package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	minigrant "go.pilab.hu/minigrant"
	echoapi "go.pilab.hu/minigrant/api/echo"
	"go.pilab.hu/minigrant/cache"
	redistore "go.pilab.hu/minigrant/cache/redis"
	"go.pilab.hu/minigrant/client"
	"go.pilab.hu/minigrant/config"
	"go.pilab.hu/minigrant/internal/audit"
	"go.pilab.hu/minigrant/mongodb"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	initLogger(cfg)
	log.Info().
		Str("http_port", cfg.HTTPPort).
		Str("mongo_db_name", cfg.MongoDBName).
		Str("log_level", cfg.LogLevel).
		Bool("redis_cache", cfg.RedisAddr != "").
		Msg("Starting minigrant server")

	ctx := context.Background()
	if err := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize MongoDB connection")
	}
	db := mongodb.GetDB()

	identityRepo, err := mongodb.NewIdentityRepositoryMongo(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize IdentityRepository")
	}
	clientRepo, err := mongodb.NewClientRepositoryMongo(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize ClientRepository")
	}
	tokenRepo, err := mongodb.NewTokenRepositoryMongo(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize TokenRepository")
	}

	tokenCache := newTokenCache(cfg)

	clientService := client.NewClientService(clientRepo)
	tokenService := minigrant.NewTokenService(tokenRepo, tokenCache, cfg.AccessTokenTTL(), cfg.RefreshTokenTTL())
	resolver := minigrant.NewResolver(identityRepo)
	userHook := minigrant.NewIdentityUserHook(resolver)

	grant := minigrant.NewGrant(
		clientService,
		minigrant.NewScopeService(),
		tokenService,
		userHook,
		audit.NewLogger(cfg.OtelServiceName),
		cfg.AccessTokenTTL(),
	)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	echoapi.NewTokenAPI(grant).RegisterRoutes(e)

	go func() {
		log.Info().Msgf("HTTP server listening on port %s", cfg.HTTPPort)
		if err := e.Start(":" + cfg.HTTPPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if err := mongodb.Disconnect(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("MongoDB disconnect error")
	}

	log.Info().Msg("Server gracefully stopped")
}

func initLogger(cfg *config.ServerConfig) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
		log.Warn().
			Str("configured_log_level", cfg.LogLevel).
			Msg("Invalid LOG_LEVEL configured, defaulting to 'info'")
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// newTokenCache prefers redis when an address is configured so validation
// survives process restarts; otherwise it falls back to the in-process store.
func newTokenCache(cfg *config.ServerConfig) cache.TokenStore {
	if cfg.RedisAddr == "" {
		return cache.NewMemoryTokenStore(cfg.TokenCacheTTL())
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
	return redistore.NewTokenStore(rdb, "minigrant")
}
