package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/gatehouse-io/gatehouse/pkg/api"
	"github.com/gatehouse-io/gatehouse/pkg/auth"
	"github.com/gatehouse-io/gatehouse/pkg/billing"
	"github.com/gatehouse-io/gatehouse/pkg/config"
	"github.com/gatehouse-io/gatehouse/pkg/credentials"
	"github.com/gatehouse-io/gatehouse/pkg/identity"
	"github.com/gatehouse-io/gatehouse/pkg/middleware"
	"github.com/gatehouse-io/gatehouse/pkg/observability"
	"github.com/gatehouse-io/gatehouse/pkg/orgs"
	"github.com/gatehouse-io/gatehouse/pkg/platform"
	"github.com/gatehouse-io/gatehouse/pkg/rbac"
	"github.com/gatehouse-io/gatehouse/pkg/sessions"
	"github.com/gatehouse-io/gatehouse/pkg/sso"
	"github.com/gatehouse-io/gatehouse/pkg/storage/postgres"
	"github.com/gatehouse-io/gatehouse/pkg/swagger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gatehouse: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := observability.NewLogger(cfg.LogLevel(), os.Stdout)
	logger.WithField("mode", cfg.Platform.Mode.String()).Info("starting gatehouse")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics()
	}

	tracerProvider, err := observability.InitTracing(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	// Database
	connections, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
		PrimaryURL:  cfg.Database.URL,
		ReplicaURLs: postgres.ParseReplicaURLs(cfg.Database.ReplicaURLs),
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		Timeout:     cfg.Database.Timeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	db := connections.Primary()

	if err := postgres.RunMigrations(ctx, db, logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	connections.StartHealthCheckRoutine(ctx, 0)

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("failed to parse redis URL: %w", err)
		}
		if cfg.Redis.Password != "" {
			opts.Password = cfg.Redis.Password
		}
		opts.DB = cfg.Redis.DB
		redisClient = redis.NewClient(opts)
	}

	// Stores and domain services
	users := identity.NewStore(db)
	credentialStore := credentials.NewStore(db)
	sessionStore := sessions.NewStore(db)
	orgStore := orgs.NewStore(db)
	memberStore := orgs.NewMemberStore(db)
	inviteStore := orgs.NewInviteStore(db)
	roleStore := rbac.NewStore(db)
	auditRecorder := auth.NewAuditRecorder(db)

	if err := roleStore.SeedBuiltInRoles(ctx); err != nil {
		return fmt.Errorf("failed to seed built-in roles: %w", err)
	}

	checker, err := rbac.NewChecker(roleStore, memberStore)
	if err != nil {
		return fmt.Errorf("failed to create permission checker: %w", err)
	}

	credentialService := credentials.NewService(credentialStore, users, inviteStore, cfg.Auth.ResetTokenTTL)
	authService := auth.NewService(db, users, credentialService, sessionStore, auditRecorder, logger, metrics, cfg.Auth.SessionTTL)
	orgService := orgs.NewService(db, orgStore, memberStore, inviteStore, users,
		orgs.NewLogDelivery(logger), logger, cfg.Auth.InviteTTL, cfg.Auth.InviteBaseURL)

	// Billing
	var stripeClient *billing.StripeClient
	if cfg.Billing.StripeAPIKey != "" {
		stripeClient = billing.NewStripeClient(cfg.Billing.StripeAPIKey, cfg.Billing.StripeWebhookSecret)
	}
	var provider billing.Provider
	if stripeClient != nil {
		provider = stripeClient
	}
	var decoder api.WebhookDecoder
	if stripeClient != nil && cfg.Billing.StripeWebhookSecret != "" {
		decoder = stripeClient
	}

	featureCache, err := billing.NewFeatureCache(redisClient, billing.NewCacheStore(db), logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to create feature cache: %w", err)
	}
	manager, err := platform.NewManager(cfg.Platform.Mode, provider, featureCache, orgStore, logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to create platform manager: %w", err)
	}

	// SSO is enabled only when both secrets are configured
	var ssoHandlers *api.SSOHandlers
	if cfg.SSO.EncryptionKey != "" && cfg.SSO.StateSecret != "" {
		cipher, err := sso.NewCipher(cfg.SSO.EncryptionKey)
		if err != nil {
			return fmt.Errorf("failed to create sso cipher: %w", err)
		}
		signer, err := sso.NewStateSigner(cfg.SSO.StateSecret, 0)
		if err != nil {
			return fmt.Errorf("failed to create sso state signer: %w", err)
		}

		ssoStore := sso.NewStore(db, cipher)
		registry := sso.NewRegistry(ssoStore, cfg.SSO.BaseURL, logger)
		if err := registry.Initialize(ctx); err != nil {
			logger.WithError(err).Warn("sso registry initialization failed; providers start unconfigured")
		}
		provisioner := sso.NewProvisioner(users, authService, logger)
		ssoHandlers = api.NewSSOHandlers(registry, ssoStore, signer, provisioner, logger)

		if cfg.SSO.ConfigFile != "" {
			watcher := sso.NewWatcher(cfg.SSO.ConfigFile, registry, logger)
			go func() {
				if err := watcher.Run(ctx); err != nil {
					logger.WithError(err).Error("sso config watcher stopped")
				}
			}()
		}
	} else {
		logger.Info("sso is disabled; set encryption key and state secret to enable it")
	}

	// HTTP surface
	orgHandlers := api.NewOrgHandlers(orgService, orgStore, checker)
	var loginLimiter *middleware.RateLimiter
	if redisClient != nil {
		loginLimiter = middleware.NewRateLimiter(redisClient, middleware.RateLimitConfig{
			Requests: 10,
			Window:   time.Minute,
		}, "login", logger)
	}
	var features middleware.FeatureResolver
	if cfg.Platform.Mode.BillingBacked() {
		features = manager
	}
	router := api.NewRouter(api.RouterConfig{
		Auth:          api.NewAuthHandlers(authService, credentialService, users, logger),
		Orgs:          orgHandlers,
		SSO:           ssoHandlers,
		Billing:       api.NewBillingHandlers(manager, decoder, orgHandlers, checker, logger),
		Health:        observability.NewHealthChecker(db, redisClient),
		Docs:          swagger.NewHandlers(),
		Authenticator: authService,
		Features:      features,
		LoginLimiter:  loginLimiter,
		Logger:        logger,
	})

	// Expired sessions and invites are swept on a schedule rather than on
	// read, so the tables stay small without slowing the hot paths.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@hourly", func() {
		sweepExpired(context.Background(), logger, sessionStore, inviteStore)
	}); err != nil {
		return fmt.Errorf("failed to schedule expiry sweep: %w", err)
	}
	scheduler.Start()

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux(db, redisClient, metrics),
	}

	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	shutdown.Register(func(ctx context.Context) error { return healthServer.Shutdown(ctx) })
	shutdown.Register(func(ctx context.Context) error {
		scheduler.Stop()
		return nil
	})
	if tracerProvider != nil {
		shutdown.Register(tracerProvider.Shutdown)
	}
	if redisClient != nil {
		shutdown.Register(func(context.Context) error { return redisClient.Close() })
	}
	shutdown.Register(func(context.Context) error {
		cancel()
		return connections.Close()
	})

	var listeners errgroup.Group
	listeners.Go(func() error {
		logger.Infof("health server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	listeners.Go(func() error {
		logger.Infof("api server listening on %s", server.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	if err := shutdown.WaitForShutdown(); err != nil {
		return err
	}
	return listeners.Wait()
}

// healthMux serves the probe and metrics endpoints on the dedicated port so
// load balancers and scrapers never touch the API listener.
func healthMux(db *sql.DB, redisClient *redis.Client, metrics *observability.Metrics) http.Handler {
	router := mux.NewRouter()
	checker := observability.NewHealthChecker(db, redisClient)
	router.HandleFunc("/healthz", checker.Liveness).Methods("GET")
	router.HandleFunc("/readyz", checker.Readiness).Methods("GET")
	if metrics != nil {
		router.Handle("/metrics", metrics.Handler()).Methods("GET")
	}
	return router
}

func sweepExpired(ctx context.Context, logger *observability.Logger, sessionStore *sessions.Store, inviteStore *orgs.InviteStore) {
	if n, err := sessionStore.DeleteExpired(ctx); err != nil {
		logger.WithError(err).Error("failed to sweep expired sessions")
	} else if n > 0 {
		logger.WithField("count", n).Info("swept expired sessions")
	}
	if n, err := inviteStore.DeleteExpired(ctx); err != nil {
		logger.WithError(err).Error("failed to sweep expired invites")
	} else if n > 0 {
		logger.WithField("count", n).Info("swept expired invites")
	}
}
