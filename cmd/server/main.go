package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"opspulse/internal/api"
	"opspulse/internal/auth"
	"opspulse/internal/config"
	"opspulse/internal/dashboard"
	"opspulse/internal/database"
	"opspulse/internal/handlers"
	"opspulse/internal/kafka"
	"opspulse/internal/logger"
	"opspulse/internal/middleware"
	"opspulse/internal/realtime"
	"opspulse/internal/redis"
	"opspulse/internal/services"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "opspulse",
		Short:        "OpsPulse dashboard session daemon",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newLoginCmd(), newSignupCmd(), newLogoutCmd(), newRouteCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Hold the dashboard session and serve its views over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(config.Load())
		},
	}
}

// infra содержит подключения к необязательной инфраструктуре
type infra struct {
	db    *database.DB
	redis *redis.Client
	store auth.SessionStore
	cache *services.CacheService
}

func (i *infra) Close() {
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.db != nil {
		_ = i.db.Close()
	}
}

func connectInfra(ctx context.Context, cfg *config.Config, log *logger.Logger) (*infra, error) {
	i := &infra{store: auth.NewMemoryStore()}

	if cfg.Database.Enabled {
		db, err := database.Connect(ctx, &cfg.Database, log)
		if err != nil {
			return nil, err
		}
		i.db = db
		i.store = database.NewSessionStore(db)
	}

	var cacheStore services.CacheStore
	if cfg.Redis.Enabled {
		rc, err := redis.Connect(ctx, &cfg.Redis, log)
		if err != nil {
			i.Close()
			return nil, err
		}
		i.redis = rc
		cacheStore = rc
	}
	i.cache = services.NewCacheService(cacheStore, &cfg.Cache, log)

	return i, nil
}

func serve(cfg *config.Config) error {
	log := logger.New(&cfg.Logger)
	log.Info("Starting OpsPulse dashboard server...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	inf, err := connectInfra(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Error("Failed to connect infrastructure")
		return err
	}
	defer inf.Close()

	client := api.New(&cfg.API)
	sess, err := openSession(ctx, cfg, client, inf.store)
	if err != nil {
		log.WithError(err).Error("Failed to open session")
		return err
	}
	log.WithField("user_id", sess.UserID()).WithField("role", sess.Role()).Info("Session opened")

	source, err := newSource(cfg, sess.Token, inf.redis, log)
	if err != nil {
		log.WithError(err).Error("Failed to create realtime source")
		return err
	}

	var journal dashboard.Journal
	if cfg.Kafka.JournalEnabled {
		producer, err := kafka.NewProducer(&cfg.Kafka, log)
		if err != nil {
			log.WithError(err).Error("Failed to create Kafka producer")
			return err
		}
		defer producer.Close()
		journal = producer
	}

	routeService := services.NewRouteService(&cfg.Routing, inf.cache, log)
	geocoder := services.NewGeocodingService(&cfg.Geocoding, &http.Client{Timeout: cfg.API.Timeout}, inf.cache, log)

	dash := dashboard.New(dashboard.Options{
		Session:          sess,
		Backend:          client.WithToken(sess.Token),
		Router:           routeService,
		Geocoder:         geocoder,
		Source:           source,
		Journal:          journal,
		QueueSize:        cfg.Realtime.QueueSize,
		TrackingEnabled:  cfg.Tracking.Enabled,
		TrackingInterval: cfg.Tracking.Interval,
		Log:              log,
	})
	if err := dash.Mount(ctx); err != nil {
		log.WithError(err).Error("Failed to mount dashboard")
		return err
	}
	defer dash.Unmount()

	checkers := map[string]handlers.Checker{}
	if inf.db != nil {
		checkers["database"] = inf.db
	}
	if inf.redis != nil {
		checkers["redis"] = inf.redis
	}

	mux := setupRoutes(
		handlers.NewDashboardHandler(dash, log),
		handlers.NewRouteHandler(routeService, log),
		handlers.NewCacheHandler(inf.cache, log),
		handlers.NewHealthHandler(checkers, dash.RealtimeStatus, version),
	)

	limiter := middleware.NewCommandLimiter(&cfg.Server)
	handler := middleware.Logging(log)(middleware.CORS(middleware.RateLimitMiddleware(limiter, log)(mux)))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("address", server.Addr).Info("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		log.WithError(err).Error("HTTP server failed")
		return err
	}

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	log.Info("Server exited")
	return nil
}

// setupRoutes настраивает маршруты HTTP сервера
func setupRoutes(dash *handlers.DashboardHandler, routes *handlers.RouteHandler, cache *handlers.CacheHandler, health *handlers.HealthHandler) *http.ServeMux {
	mux := http.NewServeMux()

	health.Register(mux)
	dash.Register(mux)
	routes.Register(mux)
	cache.Register(mux)

	return mux
}

// openSession берет токен из настроек, затем из хранилища, затем выполняет вход
func openSession(ctx context.Context, cfg *config.Config, client *api.Client, store auth.SessionStore) (*auth.Session, error) {
	profile := cfg.Session.Profile

	var (
		sess *auth.Session
		err  error
	)
	switch {
	case cfg.Session.Token != "":
		sess, err = auth.NewSession(profile, cfg.Session.Token)
	default:
		sess, err = auth.Restore(ctx, store, profile)
		if errors.Is(err, auth.ErrNoSession) && cfg.Session.Email != "" {
			sess, err = auth.Login(ctx, client, store, profile, cfg.Session.Email, cfg.Session.Password)
		}
	}
	if err != nil {
		return nil, err
	}
	if sess.Claims.Expired(time.Now()) {
		return nil, fmt.Errorf("session for profile %q has expired, log in again: %w", profile, auth.ErrInvalidToken)
	}
	return sess, nil
}

// newSource выбирает источник событий; "none" отключает канал
func newSource(cfg *config.Config, token string, rc *redis.Client, log *logger.Logger) (realtime.Source, error) {
	switch cfg.Realtime.Source {
	case "websocket":
		return realtime.NewWebSocketSource(cfg.API.WebSocketURL(cfg.Realtime.Path), token, log), nil
	case "redis":
		if rc == nil {
			return nil, errors.New("realtime source redis requires REDIS_ENABLED=true")
		}
		return realtime.NewRedisSource(rc, cfg.Realtime.RedisChannel, log), nil
	case "kafka":
		consumer, err := kafka.NewConsumer(&cfg.Kafka, log)
		if err != nil {
			return nil, err
		}
		return consumer, nil
	case "none":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown realtime source %q", cfg.Realtime.Source)
}
