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

	"github.com/gorilla/mux"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	alarmapp "hydro-dashboard/internal/alarms/application"
	alarmmemory "hydro-dashboard/internal/alarms/infrastructure/memory"
	alarmrepo "hydro-dashboard/internal/alarms/infrastructure/postgres"
	alarmhttp "hydro-dashboard/internal/alarms/interfaces/http"
	alarmnotify "hydro-dashboard/internal/alarms/notify"
	"hydro-dashboard/internal/analytics/domain/series"
	"hydro-dashboard/internal/audit"
	"hydro-dashboard/internal/auth"
	authhttp "hydro-dashboard/internal/auth/interfaces/http"
	commandsapp "hydro-dashboard/internal/commands/application"
	commandsevents "hydro-dashboard/internal/commands/application/events"
	commandsmemory "hydro-dashboard/internal/commands/infrastructure/memory"
	commandsrepo "hydro-dashboard/internal/commands/infrastructure/postgres"
	commandshttp "hydro-dashboard/internal/commands/interfaces/http"
	"hydro-dashboard/internal/config"
	dashboardapp "hydro-dashboard/internal/dashboard/application"
	dashboardhttp "hydro-dashboard/internal/dashboard/interfaces/http"
	"hydro-dashboard/internal/identity"
	hlog "hydro-dashboard/internal/log"
	"hydro-dashboard/internal/observability/metrics"
	"hydro-dashboard/internal/rtdb"
	"hydro-dashboard/internal/sensors/adapters/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger, err := hlog.New(cfg.Debug)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
	}
	metrics.Init(db, logger)

	// Realtime store.
	rtdbClient, err := rtdb.NewClient(cfg.RTDBURL, cfg.RTDBSecret)
	if err != nil {
		logger.Fatalf("rtdb client error: %v", err)
	}
	feed, err := store.NewFeed(rtdbClient, cfg.SensorPath, store.WithFeedLogger(logger.Named("feed")))
	if err != nil {
		logger.Fatalf("feed error: %v", err)
	}
	history, err := store.NewHistory(rtdbClient, cfg.HistoryPath, logger.Named("history"))
	if err != nil {
		logger.Fatalf("history error: %v", err)
	}
	pumpSink, err := store.NewPumpSink(rtdbClient, cfg.PumpPath)
	if err != nil {
		logger.Fatalf("pump sink error: %v", err)
	}
	profiles, err := store.NewProfiles(rtdbClient, cfg.UsersPath)
	if err != nil {
		logger.Fatalf("profiles error: %v", err)
	}

	// Auth.
	identityClient, err := identity.NewClient(cfg.IdentityAPIKey, identity.WithBaseURL(cfg.IdentityBaseURL))
	if err != nil {
		logger.Fatalf("identity client error: %v", err)
	}
	issuer, err := auth.NewIssuer([]byte(cfg.JWTSecret), cfg.SessionTTL, nil)
	if err != nil {
		logger.Fatalf("session issuer error: %v", err)
	}
	loginOpts := []auth.LoginOption{auth.WithRoleOverrides(roleOverrides(cfg.RoleOverrides, logger)), auth.WithLoginLogger(logger.Named("auth"))}
	if role, ok := auth.NormalizeRole(cfg.DefaultRole); ok {
		loginOpts = append(loginOpts, auth.WithDefaultRole(role))
	}
	loginService, err := auth.NewLoginService(identityClient, profiles, issuer, loginOpts...)
	if err != nil {
		logger.Fatalf("login service error: %v", err)
	}
	authHandler, err := authhttp.NewHandler(loginService)
	if err != nil {
		logger.Fatalf("auth handler error: %v", err)
	}

	broker := dashboardhttp.NewBroker(logger.Named("stream"))

	// Pump commands.
	var commandRepo commandsapp.Repository
	var auditLogger audit.Logger
	var alertLog alarmapp.AlertLog = alarmmemory.NewAlertLog(0)
	if db != nil {
		pgCommands := commandsrepo.NewCommandRepository(db)
		if err := pgCommands.EnsureSchema(ctx); err != nil {
			logger.Fatalf("commands schema error: %v", err)
		}
		auditRepo := audit.NewRepository(db)
		if err := auditRepo.EnsureSchema(ctx); err != nil {
			logger.Fatalf("audit schema error: %v", err)
		}
		alertRepo := alarmrepo.NewAlertRepository(db)
		if err := alertRepo.EnsureSchema(ctx); err != nil {
			logger.Fatalf("alert schema error: %v", err)
		}
		commandRepo, auditLogger, alertLog = pgCommands, auditRepo, alertRepo
	} else {
		writer, err := audit.NewLogWriter(logger)
		if err != nil {
			logger.Fatalf("audit writer error: %v", err)
		}
		commandRepo, auditLogger = commandsmemory.NewCommandRepository(0), writer
	}
	commandBus := commandsevents.NewBus()
	commandBus.Subscribe(func(_ context.Context, event any) error {
		broker.Broadcast(dashboardhttp.EventCommand, commandStreamEvent{Type: commandsevents.Name(event), Payload: event})
		return nil
	})
	commandService, err := commandsapp.NewService(commandRepo, pumpSink,
		commandsapp.WithAuditLogger(auditLogger),
		commandsapp.WithPublisher(commandBus),
		commandsapp.WithLogger(logger.Named("commands")),
	)
	if err != nil {
		logger.Fatalf("command service error: %v", err)
	}
	commandHandler, err := commandshttp.NewHandler(commandService)
	if err != nil {
		logger.Fatalf("command handler error: %v", err)
	}

	// Alerts.
	recorder, err := alarmapp.NewRecorder(alertLog, logger.Named("alerts"))
	if err != nil {
		logger.Fatalf("alert recorder error: %v", err)
	}
	alertHandler, err := alarmhttp.NewHandler(recorder)
	if err != nil {
		logger.Fatalf("alert handler error: %v", err)
	}
	evaluator, err := alarmapp.NewEvaluator(alarmapp.NewDeduplicator(cfg.Alerts.Cooldown))
	if err != nil {
		logger.Fatalf("alert evaluator error: %v", err)
	}
	queue := buildAlertQueue(cfg.Notify, recorder, logger)
	go queue.Run(ctx)
	controllerOpts := []dashboardapp.Option{
		dashboardapp.WithNotifier(queue),
		dashboardapp.WithBroadcaster(broker),
		dashboardapp.WithLogger(logger.Named("dashboard")),
		dashboardapp.WithRefreshInterval(cfg.HistoryRefresh),
		dashboardapp.WithBackoff(cfg.BackoffMin, cfg.BackoffMax),
	}

	aggregator := series.NewAggregator(series.WithEpoch(cfg.Alerts.Epoch), series.WithLocation(cfg.Location()))
	controller, err := dashboardapp.NewController(feed, history, evaluator, aggregator, controllerOpts...)
	if err != nil {
		logger.Fatalf("dashboard controller error: %v", err)
	}
	go func() {
		if err := controller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorw("dashboard loop exited", "error", err)
		}
	}()

	dashboardHandler, err := dashboardhttp.NewHandler(controller, logger.Named("http"))
	if err != nil {
		logger.Fatalf("dashboard handler error: %v", err)
	}

	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), auth.NewDashboardPolicy())

	router := mux.NewRouter()
	router.HandleFunc("/api/v1/auth/login", authHandler.Login)
	router.HandleFunc("/api/v1/auth/signup", authHandler.SignUp)
	dashboardHandler.Register(router)
	router.Handle("/api/v1/stream", dashboardhttp.NewStreamHandler(broker, 0))
	router.Handle("/api/v1/pump", commandHandler)
	router.HandleFunc("/api/v1/pump/commands", commandHandler.List)
	router.Handle("/api/v1/alerts", alertHandler)
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(authMiddleware.Wrap(router), logger.Named("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warnw("http shutdown error", "error", err)
		}
	}()

	logger.Infow("http listening", "addr", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("http server error: %v", err)
	}
	logger.Infow("shutdown complete")
}

// buildAlertQueue puts the history recorder and the configured webhook and
// push sinks behind one delivery queue.
func buildAlertQueue(cfg config.NotifyConfig, recorder *alarmapp.Recorder, logger *zap.SugaredLogger) *alarmnotify.Queue {
	sinks := []alarmapp.AlertNotifier{recorder}

	if cfg.WebhookURL != "" {
		var opts []alarmnotify.WebhookOption
		if cfg.MarkdownTitle != "" {
			opts = append(opts, alarmnotify.WithMarkdown(cfg.MarkdownTitle))
		}
		channel, err := alarmnotify.NewWebhookChannel(cfg.WebhookURL, opts...)
		if err != nil {
			logger.Fatalf("webhook channel error: %v", err)
		}
		template, err := alarmnotify.NewTemplate(cfg.Template)
		if err != nil {
			logger.Fatalf("alert template error: %v", err)
		}
		notifier, err := alarmnotify.NewNotifier(channel, template,
			alarmnotify.WithDedupeWindow(cfg.DedupeWindow),
			alarmnotify.WithDashboardURL(cfg.DashboardURL),
			alarmnotify.WithRequestTimeout(cfg.Timeout),
			alarmnotify.WithLogger(logger.Named("notify")),
		)
		if err != nil {
			logger.Fatalf("alert notifier error: %v", err)
		}
		sinks = append(sinks, notifier)
	}

	if cfg.PushTopicARN != "" {
		client, err := alarmnotify.NewSNSPublisher(cfg.PushRegion)
		if err != nil {
			logger.Fatalf("sns client error: %v", err)
		}
		push, err := alarmnotify.NewPushNotifier(client, cfg.PushTopicARN, logger.Named("push"))
		if err != nil {
			logger.Fatalf("push notifier error: %v", err)
		}
		sinks = append(sinks, push)
	}

	if len(sinks) == 1 {
		logger.Infow("no external alert sinks configured")
	}
	queue, err := alarmnotify.NewQueue(alarmnotify.NewMultiNotifier(sinks...), cfg.QueueSize, logger.Named("notify"))
	if err != nil {
		logger.Fatalf("alert queue error: %v", err)
	}
	return queue
}

func roleOverrides(raw map[string]string, logger *zap.SugaredLogger) map[string]auth.Role {
	out := make(map[string]auth.Role, len(raw))
	for uid, value := range raw {
		role, ok := auth.NormalizeRole(value)
		if !ok {
			logger.Warnw("ignoring invalid role override", "uid", uid, "role", value)
			continue
		}
		out[uid] = role
	}
	return out
}

func loggingMiddleware(next http.Handler, logger *zap.SugaredLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Infow("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", resp.status,
			"duration", time.Since(start).String(),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush keeps the event stream working behind the access log.
func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// ---- Adapters ----

type commandStreamEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}
