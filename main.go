package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	alertapp "iot-climate-monitor/internal/alerts/application"
	alerts "iot-climate-monitor/internal/alerts/domain"
	alertrepo "iot-climate-monitor/internal/alerts/infrastructure/postgres"
	alerthttp "iot-climate-monitor/internal/alerts/interfaces/http"
	alertnotify "iot-climate-monitor/internal/alerts/notify"
	analyticsapp "iot-climate-monitor/internal/analytics/application"
	analyticsmemory "iot-climate-monitor/internal/analytics/infrastructure/memory"
	analyticsrepo "iot-climate-monitor/internal/analytics/infrastructure/postgres"
	analyticsredis "iot-climate-monitor/internal/analytics/infrastructure/redis"
	analyticshttp "iot-climate-monitor/internal/analytics/interfaces/http"
	apihttp "iot-climate-monitor/internal/api/http"
	"iot-climate-monitor/internal/config"
	"iot-climate-monitor/internal/live"
	"iot-climate-monitor/internal/logging"
	mdapp "iot-climate-monitor/internal/masterdata/application"
	masterdata "iot-climate-monitor/internal/masterdata/domain"
	masterdatarepo "iot-climate-monitor/internal/masterdata/infrastructure/postgres"
	mdhttp "iot-climate-monitor/internal/masterdata/interfaces/http"
	"iot-climate-monitor/internal/observability/metrics"
	"iot-climate-monitor/internal/platform/postgres"
	"iot-climate-monitor/internal/storage/memory"
	telemetryapp "iot-climate-monitor/internal/telemetry/application"
	telemetry "iot-climate-monitor/internal/telemetry/domain"
	telemetryrepo "iot-climate-monitor/internal/telemetry/infrastructure/postgres"
	telemetryhttp "iot-climate-monitor/internal/telemetry/interfaces/http"
	telemetrymqtt "iot-climate-monitor/internal/telemetry/interfaces/mqtt"
	userapp "iot-climate-monitor/internal/users/application"
	users "iot-climate-monitor/internal/users/domain"
	userrepo "iot-climate-monitor/internal/users/infrastructure/postgres"
	userhttp "iot-climate-monitor/internal/users/interfaces/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format, "climate-monitor")
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("storage init error", zap.Error(err))
	}
	if store.db != nil {
		defer store.db.Close()
	}
	metrics.Init(store.db, logger)

	jwtSecret := []byte(cfg.JWT.Secret)
	if len(jwtSecret) == 0 {
		jwtSecret = []byte(uuid.NewString())
		logger.Warn("JWT_SECRET not set; using an ephemeral secret, tokens will not survive a restart")
	}

	hub := live.NewHub(logger)
	go hub.Run(ctx)

	broker := alerthttp.NewSSEBroker()
	notifiers := []alertapp.AlertNotifier{broker, hub}
	var outbound []*alertnotify.AsyncNotifier
	startAsync := func(name string, next alertapp.AlertNotifier) {
		async, err := alertnotify.NewAsyncNotifier(name, next, alertnotify.WithAsyncLogger(logger))
		if err != nil {
			logger.Fatal("alert notifier error", zap.Error(err))
		}
		go async.Run(ctx)
		outbound = append(outbound, async)
		notifiers = append(notifiers, async)
	}
	if n := buildWebhookNotifier(cfg, logger); n != nil {
		startAsync("webhook", n)
	}
	if len(cfg.Kafka.Brokers) > 0 {
		writer, err := alertnotify.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.AlertTopic)
		if err != nil {
			logger.Fatal("kafka writer error", zap.Error(err))
		}
		kafkaPublisher, err := alertnotify.NewKafkaPublisher(writer, logger)
		if err != nil {
			logger.Fatal("kafka publisher error", zap.Error(err))
		}
		defer func() { _ = kafkaPublisher.Close() }()
		startAsync("kafka", kafkaPublisher)
	}

	dedupe, err := alerts.ParseDedupePolicy(cfg.AlertDedupe)
	if err != nil {
		logger.Fatal("alert dedupe policy error", zap.Error(err))
	}
	alertService, err := alertapp.NewService(store.alerts, alerts.Thresholds{
		TemperatureHigh: cfg.Thresholds.TemperatureHigh,
		HumidityHigh:    cfg.Thresholds.HumidityHigh,
	},
		alertapp.WithDedupe(dedupe),
		alertapp.WithNotifier(alertnotify.NewMultiNotifier(notifiers...)),
		alertapp.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal("alert service error", zap.Error(err))
	}

	roomService, err := mdapp.NewRoomService(store.rooms)
	if err != nil {
		logger.Fatal("room service error", zap.Error(err))
	}
	deviceService, err := mdapp.NewDeviceService(store.devices, store.rooms, mdapp.WithLivenessWindow(cfg.LivenessWindow))
	if err != nil {
		logger.Fatal("device service error", zap.Error(err))
	}

	ingestService, err := telemetryapp.NewIngestService(deviceService, store.readings,
		telemetryapp.WithEvaluator(alertService),
		telemetryapp.WithPublisher(hub),
		telemetryapp.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal("ingest service error", zap.Error(err))
	}
	queryService, err := telemetryapp.NewQueryService(store.readings, cfg.LivenessWindow, nil)
	if err != nil {
		logger.Fatal("query service error", zap.Error(err))
	}

	statsOpts := []analyticsapp.StatsOption{analyticsapp.WithLogger(logger)}
	if store.aggregator != nil {
		statsOpts = append(statsOpts, analyticsapp.WithAggregator(store.aggregator))
	}
	if cache := buildStatsCache(ctx, cfg, logger); cache != nil {
		statsOpts = append(statsOpts, analyticsapp.WithCache(cache))
	}
	statsService, err := analyticsapp.NewStatsService(store.readings, statsOpts...)
	if err != nil {
		logger.Fatal("stats service error", zap.Error(err))
	}
	dashboardService, err := analyticsapp.NewDashboardService(statsService, queryService, alertService, store.devices, store.rooms)
	if err != nil {
		logger.Fatal("dashboard service error", zap.Error(err))
	}

	userService, err := userapp.NewService(store.users, jwtSecret, cfg.JWT.ExpiresIn, userapp.WithLogger(logger))
	if err != nil {
		logger.Fatal("user service error", zap.Error(err))
	}
	created, err := userService.EnsureAdmin(ctx, cfg.SeedAdmin.Username, cfg.SeedAdmin.Password)
	if err != nil {
		logger.Fatal("seed admin error", zap.Error(err))
	}
	if created {
		logger.Info("seed admin created", zap.String("username", cfg.SeedAdmin.Username))
	}

	if cfg.MQTT.Broker != "" {
		subscriber, err := telemetrymqtt.NewSubscriber(telemetrymqtt.Config{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			QoS:      byte(cfg.MQTT.QoS),
		}, ingestService, logger)
		if err != nil {
			logger.Fatal("mqtt subscriber error", zap.Error(err))
		}
		if err := subscriber.Start(ctx); err != nil {
			logger.Fatal("mqtt connect error", zap.Error(err))
		}
		defer subscriber.Stop()
	}

	modules, err := buildModules(userService, roomService, deviceService, ingestService, queryService,
		alertService, broker, dashboardService, statsService, live.NewHandler(hub, cfg.CORSOrigins), logger)
	if err != nil {
		logger.Fatal("http handler error", zap.Error(err))
	}
	handler, err := apihttp.NewRouter(modules, apihttp.Options{
		JWTSecret:     jwtSecret,
		IngestSecret:  []byte(cfg.Ingest.HMACSecret),
		IngestMaxSkew: time.Duration(cfg.Ingest.MaxSkewSeconds) * time.Second,
		CORSOrigins:   cfg.CORSOrigins,
		WebDir:        cfg.WebDir,
		Ping:          store.ping,
		Logger:        logger,
	})
	if err != nil {
		logger.Fatal("router error", zap.Error(err))
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.Bool("demo_mode", cfg.DemoMode()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", zap.Error(err))
	}
	<-hub.Done()
	for _, async := range outbound {
		<-async.Done()
	}
}

type storage struct {
	db         *sql.DB
	rooms      masterdata.RoomRepository
	devices    masterdata.DeviceRepository
	readings   telemetry.ReadingRepository
	alerts     alerts.Repository
	users      users.Repository
	aggregator analyticsapp.WindowAggregator
}

func (s storage) ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

// openStorage selects Postgres when a DSN is configured and the in-memory store otherwise.
func openStorage(ctx context.Context, cfg config.Config, logger *zap.Logger) (storage, error) {
	if cfg.DemoMode() {
		logger.Warn("DATABASE_URL not set; running on the in-memory demo store")
		store := memory.New()
		return storage{
			rooms:    store.Rooms(),
			devices:  store.Devices(),
			readings: store.Readings(),
			alerts:   store.Alerts(),
			users:    store.Users(),
		}, nil
	}

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return storage{}, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return storage{}, err
	}
	return storage{
		db:         db,
		rooms:      masterdatarepo.NewRoomRepository(db),
		devices:    masterdatarepo.NewDeviceRepository(db),
		readings:   telemetryrepo.NewReadingRepository(db),
		alerts:     alertrepo.NewAlertRepository(db),
		users:      userrepo.NewUserRepository(db),
		aggregator: analyticsrepo.NewStatisticRepository(db),
	}, nil
}

func buildStatsCache(ctx context.Context, cfg config.Config, logger *zap.Logger) analyticsapp.StatsCache {
	if cfg.Redis.StatsTTL <= 0 {
		return nil
	}
	if cfg.Redis.Addr == "" {
		return analyticsmemory.NewStatsCache(cfg.Redis.StatsTTL)
	}
	client, err := analyticsredis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("redis unavailable; falling back to in-process stats cache", zap.Error(err))
		return analyticsmemory.NewStatsCache(cfg.Redis.StatsTTL)
	}
	cache, err := analyticsredis.NewStatsCache(client, cfg.Redis.StatsTTL)
	if err != nil {
		logger.Warn("redis stats cache error", zap.Error(err))
		return analyticsmemory.NewStatsCache(cfg.Redis.StatsTTL)
	}
	return cache
}

func buildWebhookNotifier(cfg config.Config, logger *zap.Logger) alertapp.AlertNotifier {
	if cfg.Notify.WebhookURL == "" {
		return nil
	}
	channel, err := alertnotify.NewWebhookChannel(cfg.Notify.WebhookURL, alertnotify.WithTimeout(cfg.Notify.Timeout))
	if err != nil {
		logger.Fatal("alert webhook error", zap.Error(err))
	}
	tpl, err := alertnotify.NewTemplate(cfg.Notify.Template)
	if err != nil {
		logger.Fatal("alert template error", zap.Error(err))
	}
	notifier, err := alertnotify.NewNotifier(channel,
		alertnotify.WithTemplate(tpl),
		alertnotify.WithCooldown(cfg.Notify.Cooldown),
		alertnotify.WithSendTimeout(cfg.Notify.Timeout),
		alertnotify.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal("alert notifier error", zap.Error(err))
	}
	return notifier
}

func buildModules(
	userService *userapp.Service,
	roomService *mdapp.RoomService,
	deviceService *mdapp.DeviceService,
	ingestService *telemetryapp.IngestService,
	queryService *telemetryapp.QueryService,
	alertService *alertapp.Service,
	broker *alerthttp.SSEBroker,
	dashboardService *analyticsapp.DashboardService,
	statsService *analyticsapp.StatsService,
	liveHandler http.Handler,
	logger *zap.Logger,
) (apihttp.Modules, error) {
	userHandler, err := userhttp.NewHandler(userService, logger)
	if err != nil {
		return apihttp.Modules{}, err
	}
	mdHandler, err := mdhttp.NewHandler(roomService, deviceService, logger)
	if err != nil {
		return apihttp.Modules{}, err
	}
	telemetryHandler, err := telemetryhttp.NewHandler(ingestService, queryService, logger)
	if err != nil {
		return apihttp.Modules{}, err
	}
	alertHandler, err := alerthttp.NewHandler(alertService, alerthttp.NewStreamHandler(broker), logger)
	if err != nil {
		return apihttp.Modules{}, err
	}
	analyticsHandler, err := analyticshttp.NewHandler(dashboardService, statsService, alertService, logger)
	if err != nil {
		return apihttp.Modules{}, err
	}
	return apihttp.Modules{
		Users:      userHandler,
		MasterData: mdHandler,
		Telemetry:  telemetryHandler,
		Alerts:     alertHandler,
		Analytics:  analyticsHandler,
		Live:       liveHandler,
	}, nil
}
