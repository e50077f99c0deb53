package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fjod/storefront/internal/cartstore"
	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/checkout"
	"github.com/fjod/storefront/internal/config"
	h "github.com/fjod/storefront/internal/http"
	"github.com/fjod/storefront/internal/journal"
	"github.com/fjod/storefront/internal/logger"
	"github.com/fjod/storefront/internal/notify"
	"github.com/fjod/storefront/internal/publisher"
	"github.com/fjod/storefront/internal/session"
	"github.com/fjod/storefront/internal/store/backend"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}
	logger.Setup(cfg.AppName, cfg.LogLevel)
	log.Info().Str("store", cfg.StoreBackend).Str("cart_store", cfg.CartStore).Str("relay", cfg.EmailRelay).Msg("storefront starting")

	ctx := context.Background()
	var wg sync.WaitGroup

	docs, err := backend.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open document store")
	}
	defer docs.Close(context.Background())

	slots, closeSlots, err := openCartStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open cart store")
	}
	defer closeSlots()

	cat := catalog.New(docs)
	if err := cat.Load(ctx); err != nil {
		// The catalog stays empty until the next refresh succeeds.
		log.Warn().Err(err).Msg("initial catalog load failed")
	}

	relay := notify.NewBreakerRelay(newRelay(cfg), notify.BreakerSettings{
		Name:        "email-relay",
		OpenTimeout: 30 * time.Second,
	})
	notifier := notify.NewNotifier(relay, notify.Templates{
		Customer: cfg.CustomerTemplate,
		Admin:    cfg.AdminTemplate,
	}, cfg.AdminEmail)

	bgCtx, bgCancel := context.WithCancel(context.Background())

	var opts []checkout.Option
	var admin *h.AdminHandler
	if cfg.JournalEnabled {
		creds := &journal.Credentials{
			Host:              cfg.DBHost,
			Port:              cfg.DBPort,
			User:              cfg.DBUser,
			Password:          cfg.DBPassword,
			DBName:            cfg.DBName,
			MigrationsDirPath: cfg.MigrationsPath,
		}

		repo, err := journal.NewRepository(creds)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to journal database")
		}
		defer repo.Close()

		if err := repo.RunMigrations(creds); err != nil {
			log.Fatal().Err(err).Msg("failed to run journal migrations")
		}
		log.Info().Msg("journal migrations completed")

		opts = append(opts, checkout.WithRecorder(journal.NewRecorder(repo)))
		admin = h.NewAdminHandler(repo, cfg.RequestTimeout)
		if cfg.AdminToken == "" {
			log.Warn().Msg("ADMIN_TOKEN is empty, admin routes will reject every request")
		}

		if brokers := cfg.Brokers(); len(brokers) > 0 {
			poller := publisher.NewOutboxPoller(repo, cfg.KafkaTopic, brokers...)
			defer poller.Close()
			wg.Add(1)
			go func() {
				defer wg.Done()
				poller.Run(bgCtx)
			}()
			log.Info().Strs("brokers", brokers).Str("topic", cfg.KafkaTopic).Msg("outbox poller started")
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		cat.Run(bgCtx, cfg.CatalogRefreshInterval)
	}()

	sessions := session.NewRegistry(cat, slots, cfg.SessionIdleTTL)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sessions.Run(bgCtx, cfg.SessionSweepInterval)
	}()

	orchestrator := checkout.NewOrchestrator(docs, docs, notifier, opts...)

	router := h.NewRouter(h.Handlers{
		Products: h.NewProductHandler(cat, cfg.FeaturedCount, cfg.SearchPage, cfg.RequestTimeout),
		Cart:     h.NewCartHandler(sessions, cat, cfg.FeaturedCount),
		Checkout: h.NewCheckoutHandler(sessions, orchestrator, cfg.RequestTimeout),
		Admin:    admin,
	}, h.RouterConfig{
		RequestTimeout: cfg.RequestTimeout,
		AdminToken:     cfg.AdminToken,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("storefront listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down storefront...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	bgCancel()

	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneChan)
	}()

	select {
	case <-doneChan:
		log.Info().Msg("background workers stopped cleanly")
	case <-shutdownCtx.Done():
		log.Warn().Msg("background workers did not stop in time")
	}
	log.Info().Msg("storefront stopped")
}

func openCartStore(ctx context.Context, cfg config.Config) (cartstore.Store, func(), error) {
	if cfg.CartStore != "redis" {
		return cartstore.NewMemoryStore(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, err
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("redis ping succeeded")
	return cartstore.NewRedisStore(client, cfg.CartSlotTTL), func() { client.Close() }, nil
}

func newRelay(cfg config.Config) notify.Relay {
	switch cfg.EmailRelay {
	case "emailjs":
		return notify.NewEmailJSRelay(notify.EmailJSConfig{
			Endpoint:   cfg.EmailJSEndpoint,
			ServiceID:  cfg.EmailJSServiceID,
			PublicKey:  cfg.EmailJSPublicKey,
			PrivateKey: cfg.EmailJSPrivateKey,
		})
	case "sendgrid":
		return notify.NewSendGridRelay(cfg.SendGridAPIKey, cfg.MailFrom)
	default:
		return notify.LogRelay{}
	}
}
