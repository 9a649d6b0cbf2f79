package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"

	"circle-go/internal/config"
	"circle-go/internal/handlers/apiserver"
	appKafka "circle-go/internal/kafka"
	"circle-go/internal/logging"
	"circle-go/internal/middleware"
	appRedis "circle-go/internal/redis"
	"circle-go/internal/services"
	"circle-go/internal/storage"
)

type stores struct {
	users         storage.UserRepository
	relationships storage.RelationshipStore
}

func main() {
	configPath := flag.String("config", "", "path to a config file (default: ./config/config.yaml or ./config.yaml)")
	flag.Parse()

	// 1. Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat).With("app", cfg.AppName, "env", cfg.AppEnv)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.Auth.JWTSecretKey == config.DefaultJWTSecretKey {
		log.Warn("using the default JWT secret; set AUTH_JWT_SECRET_KEY outside development")
	}

	if err := run(cfg, log); err != nil {
		log.Error("api server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx := context.Background()

	// 2. Storage
	st, err := openStores(cfg, log)
	if err != nil {
		return err
	}

	// 3. Optional Redis rate limiting
	var authLimiter, proposalLimiter middleware.Limiter
	if cfg.Redis.Enabled {
		redisClient, err := appRedis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		authLimiter = appRedis.NewFixedWindowLimiter(redisClient, cfg.RateLimit.AuthLimit, cfg.RateLimit.Window)
		proposalLimiter = appRedis.NewFixedWindowLimiter(redisClient, cfg.RateLimit.ProposalLimit, cfg.RateLimit.Window)
		log.Info("rate limiting enabled", "redis", cfg.Redis.Addr, "window", cfg.RateLimit.Window)
	}

	// 4. Optional Kafka relationship events
	var publisher appKafka.EventPublisher = appKafka.NoopPublisher{}
	if cfg.Kafka.Enabled {
		producer, err := appKafka.NewConfluentKafkaProducer(cfg.Kafka, log)
		if err != nil {
			return err
		}
		defer producer.Close()
		publisher = appKafka.NewRelationshipPublisher(producer, cfg.Kafka.RelationshipTopic)
		log.Info("relationship events enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.RelationshipTopic)
	}

	// 5. Services and handlers
	authService := services.NewAuthService(st.users, cfg.Auth, log)
	userService := services.NewUserService(st.users, st.relationships)
	friendReqService := services.NewFriendRequestService(st.users, st.relationships, publisher, log)

	rateLimitOpts := middleware.RateLimitOptions{
		FailOpen:   cfg.RateLimit.FailOpen,
		TrustProxy: cfg.RateLimit.TrustProxy,
	}
	router := apiserver.NewRouter(apiserver.RouterDeps{
		Auth:            apiserver.NewAuthHandler(authService, userService, cfg.Auth, cfg.IsProduction(), log),
		Users:           apiserver.NewUserHandler(userService, log),
		FriendRequests:  apiserver.NewFriendRequestHandler(friendReqService, log),
		Guard:           middleware.NewSessionGuard(cfg.Auth, st.users, log),
		AuthLimiter:     authLimiter,
		ProposalLimiter: proposalLimiter,
		RateLimit:       rateLimitOpts,
		Log:             log,
	})

	// 6. CORS and panic recovery
	corsCfg := cfg.APIServer.CORS
	corsOptions := []handlers.CORSOption{
		handlers.AllowedOrigins(corsCfg.AllowedOrigins),
		handlers.AllowedMethods(corsCfg.AllowedMethods),
		handlers.AllowedHeaders(corsCfg.AllowedHeaders),
		handlers.ExposedHeaders(corsCfg.ExposedHeaders),
		handlers.MaxAge(corsCfg.MaxAge),
	}
	if corsCfg.AllowCredentials {
		corsOptions = append(corsOptions, handlers.AllowCredentials())
	}
	handler := handlers.CORS(corsOptions...)(router)
	handler = handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(log.Handler(), slog.LevelError)),
	)(handler)

	// 7. Serve until SIGINT/SIGTERM, then shut down gracefully
	serverAddr := fmt.Sprintf("%s:%s", cfg.APIServer.Host, cfg.APIServer.Port)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  cfg.APIServer.ReadTimeout,
		WriteTimeout: cfg.APIServer.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("api server listening", "addr", serverAddr, "database", cfg.Database.Type)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("api server failed: %w", err)
	case sig := <-quit:
		log.Info("shutting down api server", "signal", sig.String())
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.APIServer.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		return fmt.Errorf("api server forced to shut down: %w", err)
	}
	log.Info("api server stopped")
	return nil
}

// openStores returns the postgres-backed repositories, or the in-process
// store when DATABASE.TYPE is memory.
func openStores(cfg config.Config, log *slog.Logger) (stores, error) {
	if cfg.Database.Type == "memory" {
		log.Warn("using in-memory store; data is lost on restart")
		mem := storage.NewMemoryStore()
		return stores{users: mem, relationships: mem}, nil
	}

	db, err := storage.InitDB(cfg.Database, log)
	if err != nil {
		return stores{}, err
	}
	if err := storage.AutoMigrateTables(db, log); err != nil {
		return stores{}, err
	}
	return stores{
		users:         storage.NewGormUserRepository(db),
		relationships: storage.NewGormRelationshipStore(db),
	}, nil
}
