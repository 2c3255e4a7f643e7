package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"coldrig-monitor/internal/auth"
	"coldrig-monitor/internal/labels"
	"coldrig-monitor/internal/monitoring/application"
	monitoring "coldrig-monitor/internal/monitoring/domain"
	"coldrig-monitor/internal/monitoring/infrastructure/dat"
	alarmrepo "coldrig-monitor/internal/monitoring/infrastructure/postgres"
	monhttp "coldrig-monitor/internal/monitoring/interfaces/http"
	"coldrig-monitor/internal/monitoring/notify"
	"coldrig-monitor/internal/observability/metrics"
	rulesconfig "coldrig-monitor/internal/rules/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	ruleSet, err := rulesconfig.Load(cfg.RulesPath)
	if err != nil {
		logger.Fatalf("rules load error: %v", err)
	}
	logger.Printf("loaded %d rules from %s", len(ruleSet), cfg.RulesPath)

	var mapping *labels.Mapping
	if cfg.LabelsPath != "" {
		mapping, err = labels.Load(cfg.LabelsPath)
		if err != nil {
			logger.Fatalf("labels load error: %v", err)
		}
	}

	metrics.Init()

	broker := monhttp.NewSSEBroker()
	notifiers := []application.AlarmNotifier{broker}

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
		notifiers = append(notifiers, notify.NewStoreNotifier(alarmrepo.NewAlarmEventRepository(db), logger))
	}

	if cfg.AlarmWebhookURL != "" {
		channel, err := notify.NewWebhookChannel(cfg.AlarmWebhookURL)
		if err != nil {
			logger.Fatalf("alarm webhook error: %v", err)
		}
		tpl, err := notify.NewTemplate(cfg.AlarmNotifyTemplate)
		if err != nil {
			logger.Fatalf("alarm template error: %v", err)
		}
		webhookNotifier, err := notify.NewNotifier(channel, tpl,
			notify.WithCooldown(cfg.AlarmNotifyCooldown),
			notify.WithDedupeWindow(cfg.AlarmNotifyDedupeWindow),
		)
		if err != nil {
			logger.Fatalf("alarm notifier error: %v", err)
		}
		notifiers = append(notifiers, webhookNotifier)
	}

	registry := application.NewRegistry(
		application.WithRegistryNotifier(notify.NewMultiNotifier(notifiers...)),
		application.WithRegistryLogger(logger),
	)

	openSource := func(dataFile, workstationID string) (monitoring.RecordSource, error) {
		path := filepath.Join(cfg.DataDir, filepath.Base(dataFile))
		source, err := dat.OpenReplay(path, workstationID)
		if err != nil {
			return nil, err
		}
		if mapping == nil {
			return source, nil
		}
		return labels.NewSource(source, mapping), nil
	}

	sessionsHandler, err := monhttp.NewHandler(registry, ruleSet, openSource)
	if err != nil {
		logger.Fatalf("sessions handler error: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/sessions", sessionsHandler)
	mux.Handle("/api/v1/sessions/", sessionsHandler)
	mux.Handle("/api/v1/alarms/stream", monhttp.NewStreamHandler(broker))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	var handler http.Handler = mux
	if cfg.JWTSecret != "" {
		policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
		handler = auth.NewMiddleware([]byte(cfg.JWTSecret), policy).Wrap(mux)
	} else {
		logger.Printf("AUTH_JWT_SECRET not set, auth disabled")
	}

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(handler, logger)}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Printf("http listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("http shutdown error: %v", err)
	}
	for _, snapshot := range registry.List() {
		if _, err := registry.StopSession(snapshot.SessionID); err != nil {
			logger.Printf("session stop error: %v", err)
		}
	}
}

type config struct {
	HTTPAddr                string
	RulesPath               string
	LabelsPath              string
	DataDir                 string
	DatabaseURL             string
	AlarmWebhookURL         string
	AlarmNotifyTemplate     string
	AlarmNotifyCooldown     time.Duration
	AlarmNotifyDedupeWindow time.Duration
	JWTSecret               string
}

func loadConfig() config {
	cfg := config{
		HTTPAddr:                getenvDefault("HTTP_ADDR", ":8080"),
		RulesPath:               getenvDefault("RULES_PATH", "config/rules.yaml"),
		LabelsPath:              getenvDefault("LABELS_PATH", ""),
		DataDir:                 getenvDefault("DATA_DIR", "data"),
		DatabaseURL:             getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		AlarmWebhookURL:         getenvDefault("ALARM_WEBHOOK_URL", ""),
		AlarmNotifyTemplate:     getenvDefault("ALARM_NOTIFY_TEMPLATE", ""),
		AlarmNotifyCooldown:     getenvDuration("ALARM_NOTIFY_COOLDOWN", 0),
		AlarmNotifyDedupeWindow: getenvDuration("ALARM_NOTIFY_DEDUP_WINDOW", 0),
		JWTSecret:               getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
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
