package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"shortstay/internal/app/commands"
	availabilityapp "shortstay/internal/app/handlers/availability"
	bookingapp "shortstay/internal/app/handlers/booking"
	"shortstay/internal/app/middleware"
	appoutbox "shortstay/internal/app/outbox"
	"shortstay/internal/app/policies"
	"shortstay/internal/app/queries"
	"shortstay/internal/app/schedule"
	"shortstay/internal/app/services/reconcile"
	"shortstay/internal/app/uow"
	domainlistings "shortstay/internal/domain/listings"
	domainpayments "shortstay/internal/domain/payments"
	"shortstay/internal/infra/broker/kafka"
	rediscache "shortstay/internal/infra/cache/redis"
	"shortstay/internal/infra/config"
	mongodb "shortstay/internal/infra/db/mongo"
	"shortstay/internal/infra/gateway/paystack"
	"shortstay/internal/infra/gateway/stripe"
	ginserver "shortstay/internal/infra/http/gin"
	"shortstay/internal/infra/notify"
	"shortstay/internal/infra/obs"
	infraoutbox "shortstay/internal/infra/outbox"
	"shortstay/internal/infra/storage/memory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	app, err := buildApplication(cfg, logger)
	if err != nil {
		logger.Error("application wiring failed", "error", err)
		os.Exit(1)
	}
	defer app.close()

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: app.ready,
	}, app.handlers)

	fixturesPath := getenv("LISTING_FIXTURES", defaultFixturesPath())
	if err := loadListingFixtures(ctx, app.listings, fixturesPath, cfg.DefaultPrepDays, logger); err != nil {
		logger.Warn("listing fixtures load failed", "error", err, "path", fixturesPath)
	}

	go func() {
		if err := app.expirer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("expiry worker stopped", "error", err)
		}
	}()
	if app.outboxWorker != nil {
		go func() {
			if err := app.outboxWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("outbox worker stopped", "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageMode, "provider", cfg.PaymentProvider)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers     ginserver.Handlers
	listings     domainlistings.Repository
	expirer      *schedule.Expirer
	outboxWorker *infraoutbox.Worker
	ready        func() error
	cleanup      []func()
}

func (a *application) close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
}

func buildApplication(cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{ready: func() error { return nil }}

	paystackClient := paystack.New(cfg.PaystackBaseURL, cfg.PaystackSecretKey)
	stripeClient := stripe.New(cfg.StripeBaseURL, cfg.StripeSecretKey)
	gateways := map[domainpayments.Provider]policies.PaymentGateway{
		domainpayments.ProviderPaystack: paystackClient,
		domainpayments.ProviderStripe:   stripeClient,
	}
	provider := domainpayments.Provider(cfg.PaymentProvider)

	var cache policies.CalendarCache
	if cfg.RedisAddr != "" {
		redisClient := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		cache = rediscache.NewCalendarCache(redisClient, cfg.CalendarTTL)
		app.cleanup = append(app.cleanup, func() { _ = redisClient.Close() })
	}

	var notifier policies.Notifier
	if cfg.MailerBaseURL != "" {
		notifier = notify.NewMailer(cfg.MailerBaseURL, cfg.MailerAPIKey, cfg.MailerFrom)
	}

	var (
		factory uow.UoWFactory
		box     appoutbox.Outbox
		idStore middleware.IdempotencyStore
	)
	switch cfg.StorageMode {
	case "mongo":
		client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("mongo connect: %w", err)
		}
		app.cleanup = append(app.cleanup, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Close(closeCtx)
		})
		app.ready = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return client.Ping(pingCtx)
		}

		mongoFactory := mongodb.NewFactory(client.DB)
		factory = mongoFactory
		app.listings = mongoFactory.ListingsRepo
		idStore = mongodb.NewIdempotencyStore(client.DB)

		store := infraoutbox.NewStore(client.DB)
		box = store
		if len(cfg.KafkaBrokers) > 0 {
			producer, err := kafka.NewProducer(cfg.KafkaBrokers, "shortstay-outbox")
			if err != nil {
				return nil, fmt.Errorf("kafka producer: %w", err)
			}
			app.cleanup = append(app.cleanup, func() { _ = producer.Close() })
			app.outboxWorker = &infraoutbox.Worker{
				Store:       store,
				Producer:    producer,
				Interval:    cfg.OutboxPollInterval,
				TopicPrefix: cfg.KafkaTopicPrefix,
				Backoff:     cfg.RetryBackoff,
				Logger:      logger,
			}
		} else {
			logger.Warn("no kafka brokers configured, outbox records will accumulate")
		}
	default:
		memFactory := memory.NewFactory()
		factory = memFactory
		app.listings = memFactory.ListingsRepo
		box = memory.NewOutbox()
		idStore = memory.NewIdempotencyStore()
	}

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler(commandBus, bookingapp.RequestBookingCommand{}.Key(), &bookingapp.RequestBookingHandler{
		UoWFactory: factory,
		Gateways:   gateways,
		Provider:   provider,
		Outbox:     box,
		RequestTTL: cfg.BookingRequestTTL,
	})
	commands.RegisterHandler(commandBus, bookingapp.ApproveBookingCommand{}.Key(), &bookingapp.ApproveBookingHandler{
		UoWFactory: factory,
		Gateways:   gateways,
		Provider:   provider,
		Outbox:     box,
		Notifier:   notifier,
	})
	commands.RegisterHandler(commandBus, bookingapp.DeclineBookingCommand{}.Key(), &bookingapp.DeclineBookingHandler{
		UoWFactory: factory,
		Outbox:     box,
		Notifier:   notifier,
	})
	commands.RegisterHandler(commandBus, bookingapp.CancelBookingCommand{}.Key(), &bookingapp.CancelBookingHandler{
		UoWFactory: factory,
		Outbox:     box,
		Cache:      cache,
	})

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler(queryBus, availabilityapp.GetCalendarQuery{}.Key(), &availabilityapp.GetCalendarHandler{
		UoWFactory: factory,
		Cache:      cache,
	})
	queries.RegisterHandler(queryBus, availabilityapp.ValidateStayQuery{}.Key(), &availabilityapp.ValidateStayHandler{
		UoWFactory: factory,
	})
	queries.RegisterHandler(queryBus, availabilityapp.NextCheckoutQuery{}.Key(), &availabilityapp.NextCheckoutHandler{
		UoWFactory:  factory,
		HorizonDays: cfg.SearchHorizonDays,
	})
	queries.RegisterHandler(queryBus, bookingapp.GetBookingQuery{}.Key(), &bookingapp.GetBookingHandler{
		UoWFactory: factory,
	})

	commandBusWithMiddleware := middleware.ChainCommands(
		commandBus,
		middleware.Idempotency(idStore),
		middleware.Transaction(factory),
		middleware.OutboxFlush(box),
	)

	reconciler := &reconcile.Service{
		UoWFactory: factory,
		Gateways:   gateways,
		Notifier:   notifier,
		Outbox:     box,
		Cache:      cache,
		Logger:     logger,
	}

	app.expirer = &schedule.Expirer{
		UoWFactory: factory,
		Outbox:     box,
		Interval:   cfg.ExpirySweepEvery,
		Logger:     logger,
	}

	app.handlers = ginserver.Handlers{
		Booking: ginserver.BookingHandler{
			Commands: commandBusWithMiddleware,
			Queries:  queryBus,
		},
		Availability: ginserver.AvailabilityHandler{
			Queries: queryBus,
		},
		Webhooks: ginserver.WebhookHandler{
			Reconciler:      reconciler,
			PaystackClient:  paystackClient,
			StripeSecret:    cfg.StripeWebhookKey,
			StripeTolerance: cfg.StripeTolerance,
			Logger:          logger,
		},
	}
	return app, nil
}

type listingFixture struct {
	ID          string `json:"id"`
	HostID      string `json:"host_id"`
	HostEmail   string `json:"host_email"`
	Title       string `json:"title"`
	City        string `json:"city"`
	Currency    string `json:"currency"`
	NightlyRate int64  `json:"nightly_rate"`
	MinNights   int    `json:"min_nights"`
	MaxNights   int    `json:"max_nights"`
	PrepDays    int    `json:"prep_days"`
	InstantBook bool   `json:"instant_book"`
	Active      *bool  `json:"active"`
}

func loadListingFixtures(ctx context.Context, repo domainlistings.Repository, path string, defaultPrepDays int, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("listing fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	var fixtures []listingFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}

	for _, fx := range fixtures {
		active := true
		if fx.Active != nil {
			active = *fx.Active
		}
		prepDays := fx.PrepDays
		if prepDays == 0 {
			prepDays = defaultPrepDays
		}
		listing := &domainlistings.Listing{
			ID:          domainlistings.ListingID(fx.ID),
			HostID:      fx.HostID,
			HostEmail:   fx.HostEmail,
			Title:       fx.Title,
			City:        fx.City,
			Currency:    fx.Currency,
			NightlyRate: fx.NightlyRate,
			Policy: domainlistings.BookingPolicy{
				MinNights: fx.MinNights,
				MaxNights: fx.MaxNights,
				PrepDays:  prepDays,
			},
			InstantBook: fx.InstantBook,
			Active:      active,
		}
		if listing.ID == "" || listing.NightlyRate <= 0 {
			logger.Error("fixture invalid", "listing_id", fx.ID)
			continue
		}
		if err := repo.Save(ctx, listing); err != nil {
			logger.Error("cannot store fixture listing", "listing_id", fx.ID, "error", err)
			continue
		}
		logger.Info("listing fixture imported", "listing_id", listing.ID)
	}
	return nil
}

func defaultFixturesPath() string {
	return filepath.Join("data", "listings.json")
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
