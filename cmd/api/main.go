package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	domain "github.com/roastline/api/internal/domain"
	"github.com/roastline/api/internal/handlers"
	"github.com/roastline/api/internal/notifications"
	"github.com/roastline/api/internal/payments"
	"github.com/roastline/api/internal/platform/auth"
	"github.com/roastline/api/internal/platform/config"
	pfirestore "github.com/roastline/api/internal/platform/firestore"
	"github.com/roastline/api/internal/platform/idempotency"
	"github.com/roastline/api/internal/platform/jobs"
	"github.com/roastline/api/internal/platform/observability"
	firestoreRepo "github.com/roastline/api/internal/repositories/firestore"
	"github.com/roastline/api/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			logger.Fatal("invalid configuration", zap.Strings("fields", invalid.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	registry, err := firestoreRepo.NewRegistry(firestoreProvider, firestoreRepo.RegistryConfig{
		Currency: cfg.Shipping.Currency,
		ShippingDefaults: domain.ShippingSettings{
			DeliveryFeeMinorUnits: cfg.Shipping.DeliveryFeeMinorUnits,
			FreeShippingThreshold: cfg.Shipping.FreeShippingThreshold,
			FreeShippingEnabled:   cfg.Shipping.FreeShippingEnabled,
		},
	})
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
		APIKey: cfg.PSP.StripeAPIKey,
		Logger: payments.StripeLogger(observability.EventLogger(logger.Named("payments"))),
		Clock:  time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise stripe provider", zap.Error(err))
	}
	paymentManager, err := payments.NewManager(stripeProvider)
	if err != nil {
		logger.Fatal("failed to initialise payment manager", zap.Error(err))
	}
	psp, err := paymentManager.Provider("stripe")
	if err != nil {
		logger.Fatal("failed to resolve payment provider", zap.Error(err))
	}

	pricingService, err := services.NewPricingService(services.PricingServiceDeps{
		Catalog:             registry.Catalog(),
		Settings:            registry.Settings(),
		Currency:            cfg.Shipping.Currency,
		ToleranceMinorUnits: cfg.Shipping.PriceToleranceMinorUnit,
		Logger:              observability.EventLogger(logger.Named("pricing")),
	})
	if err != nil {
		logger.Fatal("failed to initialise pricing service", zap.Error(err))
	}

	checkoutService, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Pricing:  pricingService,
		Payments: psp,
		Clock:    time.Now,
		Logger:   observability.EventLogger(logger.Named("checkout")),
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout service", zap.Error(err))
	}

	invoiceService, err := services.NewInvoiceService(services.InvoiceServiceDeps{
		Invoices: registry.Invoices(),
		Clock:    time.Now,
		Logger:   observability.EventLogger(logger.Named("invoices")),
	})
	if err != nil {
		logger.Fatal("failed to initialise invoice service", zap.Error(err))
	}

	settingsService, err := services.NewSettingsService(services.SettingsServiceDeps{
		Settings: registry.Settings(),
		Clock:    time.Now,
		Logger:   observability.EventLogger(logger.Named("settings")),
	})
	if err != nil {
		logger.Fatal("failed to initialise settings service", zap.Error(err))
	}

	var notifier services.NotificationDispatcher
	if strings.TrimSpace(cfg.Mail.BrevoAPIKey) != "" {
		dispatcher, err := notifications.NewBrevoDispatcher(notifications.BrevoDispatcherConfig{
			APIKey:      cfg.Mail.BrevoAPIKey,
			SenderName:  cfg.Mail.SenderName,
			SenderEmail: cfg.Mail.SenderEmail,
			Logger:      observability.EventLogger(logger.Named("mail")),
		})
		if err != nil {
			logger.Fatal("failed to initialise mail dispatcher", zap.Error(err))
		}
		notifier = dispatcher
	} else {
		logger.Warn("mail: brevo api key not configured; order emails disabled")
	}

	var events services.OrderEventPublisher
	var orderTopic *pubsub.Topic
	if topicName := strings.TrimSpace(cfg.Events.OrderEventTopic); topicName != "" {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
		orderTopic = pubsubClient.Topic(topicName)
		publisher, err := jobs.NewPubSubOrderPublisher(orderTopic)
		if err != nil {
			logger.Fatal("failed to initialise order event publisher", zap.Error(err))
		}
		events = publisher
	} else {
		logger.Warn("events: order topic not configured; lifecycle events disabled")
	}

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:   registry.Orders(),
		Invoices: invoiceService,
		Payments: psp,
		Notifier: notifier,
		Events:   events,
		Clock:    time.Now,
		Logger:   observability.EventLogger(logger.Named("orders")),
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	if strings.TrimSpace(cfg.Security.AdminJWTSecret) == "" {
		logger.Fatal("admin jwt secret is required")
	}
	sessions, err := auth.NewSessionManager(auth.SessionManagerConfig{
		Secret:     []byte(cfg.Security.AdminJWTSecret),
		CookieName: cfg.Security.AdminCookie,
		Secure:     !strings.EqualFold(cfg.Security.Environment, "local"),
	})
	if err != nil {
		logger.Fatal("failed to initialise session manager", zap.Error(err))
	}

	var authHandlers *handlers.AuthHandlers
	if strings.TrimSpace(cfg.Security.AdminAPIKey) != "" {
		issuer, err := handlers.NewSessionIssuer(sessions, cfg.Security.AdminAPIKey)
		if err != nil {
			logger.Fatal("failed to initialise session issuer", zap.Error(err))
		}
		authHandlers = handlers.NewAuthHandlers(issuer)
	} else {
		logger.Warn("auth: admin api key not configured; admin login disabled")
	}

	idempotencyStore := idempotency.NewFirestoreStore(firestoreClient)
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	var cleanupTicker *time.Ticker
	if cfg.Idempotency.CleanupInterval > 0 {
		cleanupTicker = time.NewTicker(cfg.Idempotency.CleanupInterval)
		cleanupWG.Add(1)
		go func() {
			defer cleanupWG.Done()
			cleanupLogger := logger.Named("idempotency")
			for {
				select {
				case <-cleanupTicker.C:
					runCtx, cancel := context.WithTimeout(cleanupCtx, time.Minute)
					removed, err := idempotencyStore.CleanupExpired(runCtx, time.Now().UTC(), cfg.Idempotency.CleanupBatchSize)
					cancel()
					if err != nil {
						cleanupLogger.Error("idempotency cleanup error", zap.Error(err))
						continue
					}
					if removed > 0 {
						cleanupLogger.Info("idempotency cleanup removed records", zap.Int("count", removed))
					}
				case <-cleanupCtx.Done():
					return
				}
			}
		}()
	}

	checkoutHandlers := handlers.NewCheckoutHandlers(checkoutService, orderService)
	adminOrderHandlers := handlers.NewAdminOrderHandlers(orderService)
	adminInvoiceHandlers := handlers.NewAdminInvoiceHandlers(invoiceService)
	adminSettingsHandlers := handlers.NewAdminSettingsHandlers(settingsService)

	logWebhookEvent := observability.EventLogger(logger.Named("webhooks"))
	webhookHandlers, err := handlers.NewWebhookHandlers(handlers.WebhookHandlersConfig{
		StripeWebhookSecret: cfg.PSP.StripeWebhookSecret,
		Orders:              orderService,
		Clock:               time.Now,
		Logger: func(r *http.Request, event string, fields map[string]any) {
			logWebhookEvent(r.Context(), event, fields)
		},
	})
	if err != nil {
		logger.Fatal("failed to initialise webhook handlers", zap.Error(err))
	}

	healthOpts := []handlers.HealthOption{
		handlers.WithHealthVersion(buildVersion(), cfg.Security.Environment),
		handlers.WithHealthStartedAt(startedAt),
		handlers.WithReadinessCheck("firestore", firestorePing(firestoreClient)),
	}
	if orderTopic != nil {
		healthOpts = append(healthOpts, handlers.WithReadinessCheck("pubsub", pubsubPing(orderTopic)))
	}
	healthHandlers := handlers.NewHealthHandlers(healthOpts...)

	opts := []handlers.Option{
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger.Named("http")),
			observability.RecoveryMiddleware(logger.Named("http")),
			observability.RequestLoggerMiddleware(cfg.Firestore.ProjectID),
		),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithCheckoutRoutes(checkoutHandlers.Routes),
		handlers.WithCheckoutMiddlewares(idempotencyMiddleware),
		handlers.WithAdminRoutes(func(r chi.Router) {
			adminOrderHandlers.Routes(r)
			adminInvoiceHandlers.Routes(r)
			adminSettingsHandlers.Routes(r)
		}),
		handlers.WithAdminMiddlewares(auth.RequireAdmin(sessions)),
		handlers.WithWebhookRoutes(webhookHandlers.Routes),
	}
	if authHandlers != nil {
		opts = append(opts, handlers.WithAuthRoutes(authHandlers.Routes))
	}

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("roastline api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	if cleanupTicker != nil {
		cleanupTicker.Stop()
	}
	cleanupCancel()
	cleanupWG.Wait()

	if orderTopic != nil {
		orderTopic.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildVersion() string {
	if version := strings.TrimSpace(os.Getenv("API_BUILD_VERSION")); version != "" {
		return version
	}
	return "dev"
}

// firestorePing probes the datastore by asking for the first collection; an
// empty database answers iterator.Done, which still proves connectivity.
func firestorePing(client *firestore.Client) handlers.ReadinessCheck {
	return func(ctx context.Context) error {
		iter := client.Collections(ctx)
		if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
			return err
		}
		return nil
	}
}

func pubsubPing(topic *pubsub.Topic) handlers.ReadinessCheck {
	return func(ctx context.Context) error {
		exists, err := topic.Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("topic %s does not exist", topic.ID())
		}
		return nil
	}
}
