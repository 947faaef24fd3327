package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/NasaVasa/shopalerts/internal/config"
	"github.com/NasaVasa/shopalerts/internal/delivery/httpapi"
	"github.com/NasaVasa/shopalerts/internal/delivery/telegram"
	"github.com/NasaVasa/shopalerts/internal/domain"
	"github.com/NasaVasa/shopalerts/internal/infra/catalog"
	"github.com/NasaVasa/shopalerts/internal/infra/db"
	"github.com/NasaVasa/shopalerts/internal/infra/log"
	"github.com/NasaVasa/shopalerts/internal/infra/mail"
	"github.com/NasaVasa/shopalerts/internal/infra/memory"
	"github.com/NasaVasa/shopalerts/internal/infra/metrics"
	"github.com/NasaVasa/shopalerts/internal/usecase"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg       config.Config
	server    *http.Server
	scheduler *usecase.AlertScheduler
	bot       *telegram.Bot
	feed      *usecase.CatalogFeed
	logger    *zap.Logger
	cleanupFn func() error
}

type repositories struct {
	users    domain.UserRepository
	products domain.ProductRepository
	alerts   domain.AlertRepository
	health   func(ctx context.Context) error
	close    func() error
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := log.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	repos, err := openRepositories(cfg, logger)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.New(registry)

	senders := make(map[domain.Channel]domain.Sender)
	if cfg.EmailEnabled() {
		emailSender, err := mail.NewSender(mail.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}, logger)
		if err != nil {
			return nil, errors.Join(err, repos.close())
		}
		senders[domain.ChannelEmail] = emailSender
	} else {
		logger.Warn("smtp not configured, email notifications disabled")
	}

	var api *tgbotapi.BotAPI
	if cfg.TelegramEnabled() {
		api, err = telegram.NewAPI(cfg.TelegramBotToken, cfg.TelegramRequestTimeout)
		if err != nil {
			return nil, errors.Join(err, repos.close())
		}
		senders[domain.ChannelTelegram] = telegram.NewSender(telegram.WithRequestTimeout(api, cfg.TelegramSendTimeout), logger)
	} else {
		logger.Warn("telegram bot token not set, bot and telegram notifications disabled")
	}

	dispatcher := usecase.NewNotificationDispatcher(
		repos.alerts,
		repos.users,
		repos.products,
		senders,
		usecase.DispatcherConfig{
			SendTimeout:   cfg.NotifySendTimeout,
			RatePerSecond: cfg.NotifyRatePerSecond,
			Burst:         cfg.NotifyBurst,
			FrontendURL:   cfg.FrontendURL,
		},
		recorder,
		logger,
	)
	executor := usecase.NewTriggerExecutor(repos.alerts, repos.products, dispatcher, cfg.AlertRefreshCurrentPrice, recorder, logger)
	scheduler := usecase.NewAlertScheduler(executor, dispatcher, repos.alerts, usecase.SchedulerConfig{
		CheckInterval:        cfg.AlertCheckInterval,
		NotificationInterval: cfg.NotificationInterval,
		CleanupInterval:      cfg.CleanupInterval,
		Warmup:               cfg.SchedulerWarmup,
		RetentionDays:        cfg.AlertRetentionDays,
	}, recorder, logger)

	userUC := usecase.NewUserUsecase(repos.users)
	alertUC := usecase.NewAlertUsecase(repos.users, repos.alerts, repos.products)
	productUC := usecase.NewProductUsecase(repos.products, executor, logger)

	var catalogClient domain.CatalogClient
	if cfg.CatalogBaseURL != "" {
		catalogClient = catalog.NewClient(cfg.CatalogBaseURL, cfg.CatalogTimeout, logger)
	}
	catalogSync := usecase.NewCatalogSync(catalogClient, repos.products, productUC, cfg.CatalogDefaultQuantity, logger)

	var feed *usecase.CatalogFeed
	if cfg.CatalogFeedURL != "" {
		factory := catalog.NewFeedFactory(cfg.CatalogFeedURL, cfg.CatalogFeedReadTimeout, logger)
		feed = usecase.NewCatalogFeed(factory, repos.products, productUC, logger)
	}

	var bot *telegram.Bot
	if api != nil {
		bot = telegram.NewBot(api, telegram.NewHandlers(userUC, alertUC, logger), cfg.TelegramPollTimeout)
	}

	handler := httpapi.NewHandler(httpapi.Deps{
		Users:         userUC,
		Alerts:        alertUC,
		Products:      productUC,
		Catalog:       catalogSync,
		Scheduler:     scheduler,
		Notifications: dispatcher,
		RetentionDays: cfg.AlertRetentionDays,
		Health:        repos.health,
	}, logger)
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewRouter(handler, metricsHandler, cfg.HTTPRequestTimeout, logger),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	return &App{
		cfg:       cfg,
		server:    server,
		scheduler: scheduler,
		bot:       bot,
		feed:      feed,
		logger:    logger,
		cleanupFn: repos.close,
	}, nil
}

func openRepositories(cfg config.Config, logger *zap.Logger) (repositories, error) {
	if cfg.UseMemoryStore() {
		logger.Warn("using in-memory store, data is lost on restart")
		store := memory.NewStore()
		return repositories{
			users:    store.Users,
			products: store.Products,
			alerts:   store.Alerts,
			close:    func() error { return nil },
		}, nil
	}

	dbConn, err := db.Open(cfg, logger)
	if err != nil {
		return repositories{}, err
	}
	sqlDB, err := dbConn.DB()
	if err != nil {
		return repositories{}, err
	}
	return repositories{
		users:    db.NewUserRepository(dbConn),
		products: db.NewProductRepository(dbConn),
		alerts:   db.NewAlertRepository(dbConn),
		health:   sqlDB.PingContext,
		close:    sqlDB.Close,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Info("shopalerts service starting", zap.String("http_addr", a.cfg.HTTPAddr))

	g, ctx := errgroup.WithContext(ctx)

	a.scheduler.Start(ctx)

	g.Go(func() error {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.HTTPShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	if a.bot != nil {
		g.Go(func() error { return a.bot.Start(ctx) })
	}
	if a.feed != nil {
		g.Go(func() error { return a.feed.Run(ctx) })
	}

	a.logger.Info("shopalerts service started")
	return g.Wait()
}

func (a *App) Shutdown() {
	a.logger.Info("shopalerts service shutting down")
	a.scheduler.Stop()
	if !a.scheduler.Wait(a.cfg.SchedulerStopTimeout) {
		a.logger.Warn("scheduler jobs still running at shutdown", zap.Duration("timeout", a.cfg.SchedulerStopTimeout))
	}
	if a.cleanupFn != nil {
		if err := a.cleanupFn(); err != nil {
			a.logger.Warn("failed to close database", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
