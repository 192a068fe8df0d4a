// Command server runs the HomeFixerKhulna Messenger bot: the webhook that
// answers customers and the admin API over the captured leads.
//
// @title                       HomeFixerKhulna Messenger Bot API
// @version                     1.0
// @description                 Messenger webhook and admin API for the HomeFixerKhulna page bot.
// @BasePath                    /api/v1
// @schemes                     http https
//
// @securityDefinitions.apikey  ApiKeyAuth
// @in                          header
// @name                        X-API-Key
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gorm.io/gorm"

	"github.com/tbourn/go-messenger-bot/docs"
	"github.com/tbourn/go-messenger-bot/internal/config"
	"github.com/tbourn/go-messenger-bot/internal/dedupe"
	httpapi "github.com/tbourn/go-messenger-bot/internal/http"
	"github.com/tbourn/go-messenger-bot/internal/http/handlers"
	"github.com/tbourn/go-messenger-bot/internal/llm"
	"github.com/tbourn/go-messenger-bot/internal/messenger"
	"github.com/tbourn/go-messenger-bot/internal/observability"
	"github.com/tbourn/go-messenger-bot/internal/replies"
	"github.com/tbourn/go-messenger-bot/internal/repo"
	"github.com/tbourn/go-messenger-bot/internal/services"
	"github.com/tbourn/go-messenger-bot/internal/sheets"
	"github.com/tbourn/go-messenger-bot/internal/speech"
	"github.com/tbourn/go-messenger-bot/internal/sysutil"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	// eventTimeout bounds one webhook event end to end (transcription,
	// LLM call and sends).
	eventTimeout   = 2 * time.Minute
	shutdownWindow = 15 * time.Second
	sinkTimeout    = 10 * time.Second
	maxReplyRunes  = 1800
	maxResolveText = 2000
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	sysutil.SetupLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty)
	ver := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)
	log.Info().Str("version", ver).Str("port", cfg.Port).Msg("starting messenger bot")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.SetupOTel(ctx, cfg.OTEL, ver)
	if err != nil {
		return fmt.Errorf("setup otel: %w", err)
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer closeDB(db)
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	table, err := loadReplies(cfg.RepliesPath)
	if err != nil {
		return err
	}

	// Outbound HTTP is traced like inbound.
	outbound := otelhttp.NewTransport(http.DefaultTransport)

	var gen llm.Generator
	if cfg.LLM.Enabled() {
		g, err := llm.NewGemini(ctx, cfg.LLM)
		if err != nil {
			return err
		}
		defer g.Close()
		gen = g
		log.Info().Str("model", cfg.LLM.Model).Msg("llm tier enabled")
	}

	var transcriber speech.Transcriber
	if cfg.Speech.Enabled {
		transcriber = speech.NewWhisper(cfg.Speech, &http.Client{Transport: outbound})
		log.Info().Str("model", cfg.Speech.Model).Msg("voice transcription enabled")
	}

	var sinks []services.LeadSink
	if cfg.Sheets.Enabled {
		a, err := sheets.NewAppender(ctx, cfg.Sheets)
		if err != nil {
			return err
		}
		sinks = append(sinks, a)
		log.Info().Str("range", cfg.Sheets.Range).Msg("spreadsheet lead log enabled")
	}

	store, closeStore, err := newDedupeStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.Messenger.AppSecret == "" {
		log.Warn().Msg("FB_APP_SECRET not set; webhook signatures are not verified")
	}
	sender := messenger.NewClient(cfg.Messenger.GraphAPIBase, cfg.Messenger.GraphAPIVersion, cfg.Messenger.PageAccessToken,
		&http.Client{Transport: outbound, Timeout: cfg.Messenger.SendTimeout})

	resolver := &services.Resolver{
		Table:         table,
		LLM:           gen,
		MaxReplyRunes: maxReplyRunes,
		MaxTextRunes:  maxResolveText,
	}
	leads := &services.LeadService{DB: db, Sinks: sinks, SinkTimeout: sinkTimeout}
	convs := services.NewConversationService(db, services.RepoShim{})
	bot := &services.BotService{
		Resolver:      resolver,
		Sender:        sender,
		Transcriber:   transcriber,
		Leads:         leads,
		Conversations: convs,
		Dedupe:        store,
		MessageTTL:    cfg.Dedupe.MessageTTL,
		GreetingTTL:   cfg.Dedupe.GreetingTTL,
		GreetNewUsers: cfg.GreetNewUsers,
	}

	dispatcher := services.NewDispatcher(bot.HandleMessaging, cfg.Workers, cfg.QueueSize, eventTimeout)
	dispatcher.Start()

	gin.SetMode(cfg.GinMode)
	docs.SwaggerInfo.BasePath = cfg.APIBasePath
	docs.SwaggerInfo.Version = ver

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		Config:  cfg,
		Admin:   handlers.New(leads, convs, resolver, table),
		Webhook: handlers.NewWebhookHandler(cfg.Messenger.VerifyToken, dispatcher),
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("webhook", cfg.WebhookPath).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWindow)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("dispatcher did not drain in time")
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("tracer shutdown")
	}
	log.Info().Msg("bye")
	return nil
}

func loadReplies(path string) (*replies.Table, error) {
	if path == "" {
		t := replies.Default()
		log.Info().Int("entries", t.Len()).Msg("using embedded reply table")
		return t, nil
	}
	t, err := replies.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load replies: %w", err)
	}
	log.Info().Str("path", path).Int("entries", t.Len()).Msg("reply table loaded")
	return t, nil
}

// newDedupeStore builds the configured backend and its cleanup func.
func newDedupeStore(ctx context.Context, cfg config.Config, db *gorm.DB) (dedupe.Store, func(), error) {
	switch cfg.Dedupe.Backend {
	case "redis":
		rs := dedupe.NewRedis(cfg.Redis)
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, nil, err
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("dedupe backend: redis")
		return rs, func() {
			if err := rs.Close(); err != nil {
				log.Warn().Err(err).Msg("failed closing redis")
			}
		}, nil
	case "sqlite":
		log.Info().Msg("dedupe backend: sqlite")
		return dedupe.NewSQL(db), func() {}, nil
	default:
		log.Info().Int("max_entries", cfg.Dedupe.MaxEntries).Msg("dedupe backend: memory")
		return dedupe.NewMemory(cfg.Dedupe.MaxEntries), func() {}, nil
	}
}

func closeDB(db *gorm.DB) {
	if err := repo.Close(db); err != nil {
		log.Warn().Err(err).Msg("db close")
	}
}
