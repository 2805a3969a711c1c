// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"assessor-dispatch/internal/assignment/candidates"
	"assessor-dispatch/internal/assignment/commit"
	"assessor-dispatch/internal/assignment/geocode"
	"assessor-dispatch/internal/assignment/ranking"
	"assessor-dispatch/internal/assignment/route"
	"assessor-dispatch/internal/assignment/session"
	awsclients "assessor-dispatch/internal/common/aws"
	"assessor-dispatch/internal/common/camunda"
	"assessor-dispatch/internal/common/config"
	"assessor-dispatch/internal/common/database"
	"assessor-dispatch/internal/common/logger"
	"assessor-dispatch/internal/common/observability"
	"assessor-dispatch/internal/models"
	"assessor-dispatch/internal/notify"
	"assessor-dispatch/internal/repository"
	ca "assessor-dispatch/internal/workers/assignment/commit-assignment"
	ra "assessor-dispatch/internal/workers/assignment/recommend-assessor"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New("info", "console")
		fallback.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting assessor dispatch worker manager...",
		zap.String("environment", cfg.App.Environment),
		zap.String("routingProvider", cfg.Routing.Provider),
	)

	obs := observability.New(cfg.Observability.ServiceName, cfg.Observability.JaegerEndpoint)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Zeebe ---
	zeebe, err := camunda.NewClient(ctx, cfg.Camunda.BrokerAddress, log)
	if err != nil {
		zapLog.Fatal("zeebe client failed", zap.Error(err))
	}
	defer zeebe.Close()
	zapLog.Info("Zeebe client connected successfully")

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		if pg == nil {
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Redis ---
	rdb := database.NewRedis(cfg.Database.Redis)
	err = retryWithBackoff(func() error {
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Routing ---
	routeService, err := newRouteService(ctx, cfg, rdb, log, zapLog)
	if err != nil {
		zapLog.Fatal("route service setup failed", zap.Error(err))
	}

	// --- Assignment engine ---
	loc, err := time.LoadLocation(cfg.Assignment.Timezone)
	if err != nil {
		zapLog.Fatal("invalid assignment timezone", zap.Error(err))
	}

	jobs := repository.NewJobRepository(pg.DB)
	settings := repository.NewSettingsRepository(pg.DB, rdb.Client,
		time.Duration(cfg.Assignment.SettingsCacheTTL)*time.Second, log)

	loader := candidates.NewLoader(
		repository.NewAssessorRepository(pg.DB),
		repository.NewBookingRepository(pg.DB),
		settings,
		log,
		candidates.WithLocation(loc),
	)
	estimator := route.NewEstimator(routeService, log,
		route.WithTimeout(config.GetDuration(cfg.Assignment.EstimateTimeout)))

	orchestrator := session.NewOrchestrator(jobs, loader, estimator, ranking.NewRanker(cfg.Assignment.Locale), log,
		session.WithSessionTimeout(config.GetDuration(cfg.Assignment.SessionTimeout)),
		session.WithObservability(obs),
	)
	registry := session.NewRegistry(orchestrator)

	sink, err := newNotificationSink(ctx, cfg, pg, log)
	if err != nil {
		zapLog.Fatal("notification sink setup failed", zap.Error(err))
	}
	committer := commit.NewCommitter(jobs, sink, log,
		commit.WithNotifyTimeout(config.GetDuration(cfg.Assignment.NotifyTimeout)),
		commit.WithObservability(obs),
	)

	// --- Workers ---
	var workers []*camunda.Worker

	recommendCfg := ra.NewConfig(cfg)
	if recommendCfg.Enabled {
		workers = append(workers, zeebe.StartWorker(camunda.WorkerOptions{
			TaskType:      ra.TaskType,
			MaxJobsActive: recommendCfg.MaxJobsActive,
			Timeout:       recommendCfg.Timeout,
		}, ra.NewHandler(recommendCfg, registry, log), log))
	} else {
		zapLog.Info("worker disabled", zap.String("taskType", ra.TaskType))
	}

	commitCfg := ca.NewConfig(cfg)
	if commitCfg.Enabled {
		workers = append(workers, zeebe.StartWorker(camunda.WorkerOptions{
			TaskType:      ca.TaskType,
			MaxJobsActive: commitCfg.MaxJobsActive,
			Timeout:       commitCfg.Timeout,
		}, ca.NewHandler(commitCfg, committer, log), log))
	} else {
		zapLog.Info("worker disabled", zap.String("taskType", ca.TaskType))
	}
	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy", nil)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := map[string]string{}
		ready := true
		for name, check := range map[string]func(context.Context) error{
			"zeebe":    zeebe.HealthCheck,
			"postgres": pg.Ping,
			"redis":    rdb.Ping,
		} {
			if err := check(checkCtx); err != nil {
				checks[name] = err.Error()
				ready = false
				continue
			}
			checks[name] = "ok"
		}
		if !ready {
			writeStatus(w, http.StatusServiceUnavailable, "not ready", checks)
			return
		}
		writeStatus(w, http.StatusOK, "ready", checks)
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.HealthPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop()
	}
	registry.CloseAll()
	committer.Wait()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func newRouteService(ctx context.Context, cfg *config.Config, rdb *database.RedisClient, log logger.Logger, zapLog *zap.Logger) (route.Service, error) {
	switch cfg.Routing.Provider {
	case config.RouteProviderHTTP:
		return route.NewHTTPService(route.HTTPConfig{
			BaseURL:   cfg.Routing.HTTP.BaseURL,
			APIKey:    cfg.Routing.HTTP.APIKey,
			RateLimit: cfg.Routing.HTTP.RateLimit,
			Burst:     cfg.Routing.HTTP.Burst,
		}, log), nil

	case config.RouteProviderHaversine:
		var es *database.ElasticsearchClient
		err := retryWithBackoff(func() error {
			var err error
			if es == nil {
				es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
				if err != nil {
					return err
				}
			}
			return es.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			return nil, err
		}
		zapLog.Info("Elasticsearch connected successfully")

		h := cfg.Routing.Haversine
		gazetteer := geocode.NewElasticsearchGeocoder(es.Client, h.GazetteerIndex, log)
		cached := geocode.NewCachedGeocoder(gazetteer, rdb.Client, time.Duration(h.CacheTTL)*time.Second, log)
		return route.NewHaversineService(cached, h.AverageSpeedKmh, h.RoadFactor), nil
	}
	return nil, fmt.Errorf("unsupported routing provider %q", cfg.Routing.Provider)
}

// newNotificationSink leaves a channel's client as a nil interface when the
// channel is disabled.
func newNotificationSink(ctx context.Context, cfg *config.Config, pg *database.PostgresClient, log logger.Logger) (*notify.Sink, error) {
	n := cfg.Notifications

	var sesClient notify.SESService
	if n.Email.Enabled {
		c, err := awsclients.NewSESClient(ctx, n.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("ses client: %w", err)
		}
		sesClient = c
	}

	var snsClient notify.SNSService
	if n.SMS.Enabled {
		c, err := awsclients.NewSNSClient(ctx, n.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("sns client: %w", err)
		}
		snsClient = c
	}

	return notify.NewSink(&notify.Config{
		EmailEnabled:         n.Email.Enabled,
		SMSEnabled:           n.SMS.Enabled,
		FromEmail:            n.Email.FromEmail,
		SMSPriorityThreshold: models.Priority(n.SMS.PriorityThreshold),
	}, pg.DB, sesClient, snsClient, log), nil
}

func writeStatus(w http.ResponseWriter, code int, status string, checks map[string]string) {
	body := map[string]interface{}{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	}
	if checks != nil {
		body["checks"] = checks
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
