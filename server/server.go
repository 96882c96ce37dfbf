package server

import (
	"context"
	"database/sql"
	"net/http"

	migrate "github.com/Veetaha/snowpity/db"
	"github.com/Veetaha/snowpity/env"
	"github.com/Veetaha/snowpity/service/deviantart"
	"github.com/Veetaha/snowpity/service/logger"
	"github.com/Veetaha/snowpity/service/persist/postgres"
	"github.com/Veetaha/snowpity/service/platform"
	"github.com/Veetaha/snowpity/service/resolver"
	"github.com/Veetaha/snowpity/service/rpc"
	sentryutil "github.com/Veetaha/snowpity/service/sentry"
	"github.com/Veetaha/snowpity/service/telegram"
	"github.com/Veetaha/snowpity/service/twitter"
	"github.com/Veetaha/snowpity/service/uploader"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Init initializes the bot server.
func Init() {
	SetDefaults()

	initSentry()

	db := postgres.MustCreateClient()
	if err := migrate.RunDBMigration(db); err != nil {
		logger.For(nil).Fatalf("failed to run db migration: %s", err)
	}

	router := CoreInit(db)

	http.Handle("/", router)
}

// CoreInit wires the full pipeline onto a router. Abstracted from Init so the
// test server can reuse it with its own database handle.
func CoreInit(db *sql.DB) *gin.Engine {
	logger.For(nil).Info("initializing server...")

	if env.GetString(context.Background(), "ENV") != "production" {
		gin.SetMode(gin.DebugMode)
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLoggerOptions(func(l *logrus.Logger) {
			l.SetFormatter(&logrus.JSONFormatter{})
		})
	}

	registry, res, tg := NewPipeline(db)

	router := gin.Default()
	handlersInit(router, newHandler(tg, registry, res, env.GetString(context.Background(), "TELEGRAM_BOT_TOKEN")))

	return router
}

// NewPipeline builds the resolve pipeline shared by the server and the
// prewarm tool: adapters, upload engine and coalescer over the given cache
// database. The returned telegram client is the single rate-limited client
// every component shares.
func NewPipeline(db *sql.DB) (*platform.Registry, *resolver.Resolver, *telegram.Client) {
	ctx := context.Background()
	httpClient := rpc.NewHTTPClient()

	tg := telegram.NewClient(env.GetString(ctx, "TELEGRAM_BOT_TOKEN"))

	adapters := []platform.Adapter{platform.NewBooruAdapter(httpClient)}
	if bearer := env.GetString(ctx, "TWITTER_BEARER_TOKEN"); bearer != "" {
		adapters = append(adapters, platform.NewTwitterAdapter(twitter.NewClient(bearer)))
	}
	if viper.GetBool("DEVIANTART_ENABLED") {
		adapters = append(adapters, platform.NewDeviantArtAdapter(deviantart.NewClient()))
	}
	registry := platform.NewRegistry(adapters...)

	up := uploader.New(tg, httpClient, env.GetInt64(ctx, "TELEGRAM_MEDIA_CACHE_CHAT_ID"))
	res := resolver.New(registry, up, postgres.NewTgMediaCacheRepository(db))

	return registry, res, tg
}

func handlersInit(router *gin.Engine, h *handler) {
	router.GET("/alive", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "alive"})
	})
	router.POST("/updates/:token", h.handleUpdate)
}

// SetDefaults seeds the viper environment defaults. Every entry point calls
// it before touching configuration.
func SetDefaults() {
	viper.SetDefault("ENV", "local")
	viper.SetDefault("PORT", 8080)
	viper.SetDefault("POSTGRES_HOST", "0.0.0.0")
	viper.SetDefault("POSTGRES_PORT", 5432)
	viper.SetDefault("POSTGRES_USER", "postgres")
	viper.SetDefault("POSTGRES_PASSWORD", "")
	viper.SetDefault("POSTGRES_DB", "postgres")
	viper.SetDefault("SENTRY_DSN", "")
	viper.SetDefault("TELEGRAM_BOT_TOKEN", "")
	viper.SetDefault("TELEGRAM_MEDIA_CACHE_CHAT_ID", 0)
	viper.SetDefault("TWITTER_BEARER_TOKEN", "")
	viper.SetDefault("DEVIANTART_ENABLED", true)
	viper.SetDefault("DERPIBOORU_API_KEY", "")
	viper.SetDefault("FURBOORU_API_KEY", "")

	viper.AutomaticEnv()

	env.RegisterValidation("TELEGRAM_BOT_TOKEN", "required")
	env.RegisterValidation("TELEGRAM_MEDIA_CACHE_CHAT_ID", "required")
	env.RegisterValidation("POSTGRES_HOST", "required")
}

func initSentry() {
	dsn := env.GetString(context.Background(), "SENTRY_DSN")
	if dsn == "" {
		logger.For(nil).Info("skipping sentry init")
		return
	}

	logger.For(nil).Info("initializing sentry...")
	if err := sentryutil.Init(dsn, env.GetString(context.Background(), "ENV")); err != nil {
		logger.For(nil).Fatalf("failed to start sentry: %s", err)
	}
}
