package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wolfman30/salon-booking-assistant/internal/api/router"
	"github.com/wolfman30/salon-booking-assistant/internal/audit"
	"github.com/wolfman30/salon-booking-assistant/internal/booking"
	"github.com/wolfman30/salon-booking-assistant/internal/channels/line"
	appconfig "github.com/wolfman30/salon-booking-assistant/internal/config"
	"github.com/wolfman30/salon-booking-assistant/internal/conversation"
	"github.com/wolfman30/salon-booking-assistant/internal/events"
	"github.com/wolfman30/salon-booking-assistant/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/salon-booking-assistant/internal/http/middleware"
	"github.com/wolfman30/salon-booking-assistant/internal/observability/metrics"
	"github.com/wolfman30/salon-booking-assistant/pkg/logging"
)

// App is the assembled API server.
type App struct {
	Handler       http.Handler
	Orchestrator  *booking.Orchestrator
	Conversations conversation.Store
	Metrics       *metrics.BookingMetrics

	limiter  *httpmiddleware.RateLimiter
	dedup    events.Deduper
	dedupTTL time.Duration
	logger   *logging.Logger
	closers  []func()
}

// Build wires every component from cfg. reg receives the application
// metrics; nil creates a private registry with Go and process collectors.
func Build(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, reg *prometheus.Registry) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	app := &App{logger: logger}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	var backends Backends
	if cfg.RedisAddr != "" {
		backends.Redis = BuildRedisClient(ctx, cfg, logger, true)
		if backends.Redis != nil {
			client := backends.Redis
			app.closers = append(app.closers, func() { _ = client.Close() })
		}
	}
	if cfg.SlotStore == "postgres" || cfg.LedgerStore == "postgres" ||
		cfg.DedupStore == "postgres" || cfg.AuditStore == "postgres" {
		pool, err := BuildPostgresPool(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		backends.Postgres = pool
		if pool != nil {
			app.closers = append(app.closers, pool.Close)
		}
	}

	hours := BuildHours(cfg)
	directory, err := BuildDirectory(cfg)
	if err != nil {
		return nil, err
	}
	registry, err := BuildSlotRegistry(cfg, backends)
	if err != nil {
		return nil, err
	}
	store, err := BuildConversationStore(cfg, backends)
	if err != nil {
		return nil, err
	}
	locker, err := BuildLocker(cfg, backends)
	if err != nil {
		return nil, err
	}
	ledger, err := BuildLedger(cfg, backends)
	if err != nil {
		return nil, err
	}
	gateway, err := BuildCalendar(ctx, cfg, hours, logger)
	if err != nil {
		return nil, err
	}
	notifier, err := BuildNotifier(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	dedup, err := BuildDeduper(cfg, backends)
	if err != nil {
		return nil, err
	}
	auditLog, auditDB, err := BuildAuditLog(cfg, backends)
	if err != nil {
		return nil, err
	}
	if auditDB != nil {
		app.closers = append(app.closers, func() { _ = auditDB.Close() })
	}
	notifiers := booking.Notifiers{notifier}
	if auditLog != nil {
		notifiers = append(notifiers, audit.NewNotifier(auditLog))
	}

	m := metrics.NewBookingMetrics(reg)
	policy := booking.FailClosed
	if !cfg.FailClosed() {
		policy = booking.AssumeFree
	}
	orch := booking.NewOrchestrator(booking.Options{
		Directory:     directory,
		Hours:         hours,
		Slots:         registry,
		Conversations: store,
		Locker:        locker,
		Calendar:      gateway,
		Ledger:        ledger,
		Policy:        policy,
		TimesPerPage:  cfg.TimesPerPage,
		Notifier:      notifiers,
		Metrics:       m,
		Logger:        logger,
	})

	if cfg.LineChannelSecret == "" || cfg.LineChannelAccessToken == "" {
		logger.Warn("LINE channel secret or access token missing; webhook requests will be rejected")
	}
	adapter := line.NewAdapter(line.Config{
		ChannelSecret:      cfg.LineChannelSecret,
		ChannelAccessToken: cfg.LineChannelAccessToken,
		APIBase:            cfg.LineAPIBaseURL,
		SalonName:          cfg.SalonName,
	}, orch, m, logger)
	if dedup != nil {
		adapter.SetDeduper(dedup)
	}
	app.dedup = dedup
	app.dedupTTL = cfg.DedupTTL

	checks := map[string]handlers.HealthCheck{}
	if backends.Redis != nil {
		client := backends.Redis
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}
	if backends.Postgres != nil {
		pool := backends.Postgres
		checks["postgres"] = pool.Ping
	}

	if cfg.AdminRateLimitRPS > 0 {
		app.limiter = httpmiddleware.NewRateLimiter(cfg.AdminRateLimitRPS, cfg.AdminRateLimitBurst)
	}
	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET not set; admin API disabled")
	}

	admin := handlers.NewAdminBookingsHandler(ledger, orch, registry, directory, hours, logger)
	if auditLog != nil {
		admin.SetAuditLog(auditLog)
	}
	app.Handler = router.New(&router.Config{
		Logger:          logger,
		LineWebhook:     adapter.HandleWebhook,
		Health:          handlers.NewHealthHandler(checks),
		MetricsHandler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		AdminBookings:   admin,
		AdminAuthSecret: cfg.AdminJWTSecret,
		AdminRateLimit:  app.limiter,
	})
	app.Orchestrator = orch
	app.Conversations = store
	app.Metrics = m

	logger.Info("salon booking assistant wired",
		"slot_store", cfg.SlotStore,
		"conversation_store", cfg.ConversationStore,
		"lock_store", cfg.LockStore,
		"ledger_store", cfg.LedgerStore,
		"dedup_store", cfg.DedupStore,
		"audit_store", cfg.AuditStore,
		"calendar", cfg.CalendarProvider,
		"calendar_policy", cfg.CalendarFailurePolicy,
	)
	ok = true
	return app, nil
}

// RunMaintenance sweeps expired in-memory conversations, old webhook event
// ids and idle rate-limit buckets every interval until ctx is done.
func (a *App) RunMaintenance(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sweep(ctx, interval)
		}
	}
}

func (a *App) sweep(ctx context.Context, interval time.Duration) {
	if mem, ok := a.Conversations.(*conversation.MemoryStore); ok {
		if n := mem.Sweep(); n > 0 {
			a.logger.Debug("expired conversations swept", "count", n, "remaining", mem.Len())
		}
	}
	switch d := a.dedup.(type) {
	case *events.MemoryDeduper:
		d.Sweep()
	case *events.ProcessedStore:
		if _, err := d.Purge(ctx, time.Now().Add(-a.dedupTTL)); err != nil {
			a.logger.Warn("failed to purge processed events", "error", err)
		}
	}
	if a.limiter != nil {
		a.limiter.Evict(2 * interval)
	}
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
