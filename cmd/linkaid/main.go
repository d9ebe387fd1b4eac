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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/linkaid/platform/internal/adapters/insurer"
	"github.com/linkaid/platform/internal/adapters/insurer/legacy"
	"github.com/linkaid/platform/internal/ai"
	"github.com/linkaid/platform/internal/audit"
	"github.com/linkaid/platform/internal/claim"
	"github.com/linkaid/platform/internal/company"
	"github.com/linkaid/platform/internal/identity"
	"github.com/linkaid/platform/internal/incident"
	"github.com/linkaid/platform/internal/notification"
	"github.com/linkaid/platform/internal/policy"
	"github.com/linkaid/platform/internal/shared/auth"
	"github.com/linkaid/platform/internal/shared/config"
	"github.com/linkaid/platform/internal/shared/database"
	"github.com/linkaid/platform/internal/shared/events"
	"github.com/linkaid/platform/internal/shared/logger"
	"github.com/linkaid/platform/internal/shared/metrics"
	secmiddleware "github.com/linkaid/platform/internal/shared/middleware"
	"github.com/linkaid/platform/internal/shared/types"
	"github.com/linkaid/platform/internal/tow"
	"github.com/linkaid/platform/internal/user"
)

// App holds all application dependencies
type App struct {
	Config *config.Config
	Log    *zap.Logger
	DB     *database.DB
	Redis  *database.Redis
	Bus    *events.Bus
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log)
	defer log.Sync()

	app := &App{Config: cfg, Log: log}

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	app.DB = db
	defer db.Close()

	if err := database.Migrate(ctx, db.Pool, log); err != nil {
		log.Fatal("migrations failed", zap.Error(err))
	}

	// Redis backs the role-resolver cache; the platform runs without it.
	if cfg.Redis.Enabled {
		rdb, err := database.NewRedis(ctx, cfg.Redis)
		if err != nil {
			log.Warn("redis not available, falling back to in-process role cache", zap.Error(err))
		} else {
			app.Redis = rdb
			defer rdb.Close()
		}
	}

	// Event bus is optional; audit entries still land in Postgres.
	if cfg.KurrentDB.Enabled {
		bus, err := events.NewBus(ctx, cfg.KurrentDB, log)
		if err != nil {
			log.Warn("event store not available, running without event streaming", zap.Error(err))
		} else {
			app.Bus = bus
			defer bus.Close()
		}
	}

	// Audit first: every repository mutation records through it.
	auditRepo := audit.NewRepository(db.Pool)
	recorder := audit.NewRecorder(auditRepo, app.Bus, log)

	userRepo := user.NewRepository(db.Pool, recorder)

	var roleCache *redis.Client
	if app.Redis != nil {
		roleCache = app.Redis.Client
	}
	resolver := identity.NewResolver(userRepo, roleCache, 5*time.Minute, log)

	companyRepo := company.NewRepository(db.Pool, recorder)
	claimRepo := claim.NewRepository(db.Pool, recorder)
	towRepo := tow.NewRepository(db.Pool, recorder)
	policyRepo := policy.NewRepository(db.Pool, recorder)
	incidentRepo := incident.NewRepository(db.Pool, recorder)

	var triage *ai.Client
	if cfg.Triage.Enabled {
		triage = ai.NewClient(ai.ClientConfig{BaseURL: cfg.Triage.URL})
		log.Info("incident triage service enabled", zap.String("url", cfg.Triage.URL))
	}

	notifier := notification.NewService(notification.DefaultConfig(),
		map[notification.Channel]notification.Provider{
			notification.ChannelInApp: notification.NewInAppProvider(),
		}, log)
	if err := notifier.Start(ctx); err != nil {
		log.Fatal("notification service failed to start", zap.Error(err))
	}
	defer notifier.Stop()

	// Legacy carrier back office. Policy activations cross-check its
	// records; its claim decisions feed the event stream.
	var carrier insurer.Adapter
	if cfg.Legacy.Enabled {
		legacyCfg := legacy.DefaultLegacyConfig()
		legacyCfg.Host = cfg.Legacy.Host
		legacyCfg.Port = cfg.Legacy.Port
		legacyCfg.User = cfg.Legacy.User
		legacyCfg.Password = cfg.Legacy.Password
		legacyCfg.Database = cfg.Legacy.Database
		legacyCfg.SSLMode = cfg.Legacy.SSLMode
		legacyCfg.PollInterval = time.Duration(cfg.Legacy.PollInterval) * time.Second

		adapter, err := legacy.New(legacyCfg, log)
		if err != nil {
			log.Warn("legacy insurer adapter setup failed", zap.Error(err))
		} else if err := adapter.Start(ctx); err != nil {
			log.Warn("legacy insurer back office not reachable", zap.Error(err))
		} else {
			defer adapter.Stop(context.Background())
			carrier = adapter
			log.Info("legacy insurer adapter started",
				zap.String("carrier", adapter.SourceCarrier()))

			if err := adapter.SubscribeDecisions(ctx, relayDecision(app.Bus, log)); err != nil {
				log.Warn("claim decision subscription failed", zap.Error(err))
			}
		}
	}

	userHandler := user.NewHandler(userRepo, resolver, cfg.Auth)
	companyHandler := company.NewHandler(companyRepo, resolver)
	claimHandler := claim.NewHandler(claimRepo, notifier)
	towHandler := tow.NewHandler(towRepo, notifier)
	policyHandler := policy.NewHandler(policyRepo, resolver, carrier)
	incidentHandler := incident.NewHandler(incidentRepo, triage)
	auditHandler := audit.NewHandler(auditRepo)
	notificationHandler := notification.NewHandler(notifier)

	// Domain events published by the audit recorder come back around
	// as in-app notifications, so mutations from any node reach the
	// affected user.
	if app.Bus != nil {
		subscriptions := map[string]events.Handler{
			"policy.deleted":     notifyPolicyDeleted(notifier),
			"user.role_assigned": notifyRoleAssigned(notifier),
		}
		for pattern, handler := range subscriptions {
			if err := app.Bus.Subscribe(ctx, pattern, handler); err != nil {
				log.Warn("event subscription failed",
					zap.String("pattern", pattern), zap.Error(err))
			}
		}
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.RequestLogger(log))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.MaxBodySize(1 << 20))
	r.Use(secmiddleware.CORS(cfg.Server.AllowedOrigins))
	r.Use(metrics.Middleware)

	if cfg.Server.RateLimitRPS > 0 {
		limiter := secmiddleware.NewIPRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
		r.Use(limiter.Middleware)
	}

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler())
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	// API info
	r.Get("/", infoHandler)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth, resolver))

		// Sign-in and sign-up are for signed-out users only.
		r.Group(func(r chi.Router) {
			r.Use(auth.PublicOnly())
			r.Mount("/auth", userHandler.PublicRoutes())
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth())

			r.Mount("/users", userHandler.Routes())
			r.Mount("/companies", companyHandler.Routes())
			r.Mount("/claims", claimHandler.Routes())
			r.Mount("/tows", towHandler.Routes())
			r.Mount("/policies", policyHandler.Routes())
			r.Mount("/incidents", incidentHandler.Routes())
			r.Mount("/notifications", notificationHandler.Routes())
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth())
			r.Mount("/audit", auditHandler.Routes())
		})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("server shutdown error", zap.Error(err))
		}
		close(done)
	}()

	log.Info("LinkAid platform started",
		zap.String("env", cfg.Server.Env),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("redis", app.Redis != nil),
		zap.Bool("event_stream", app.Bus != nil),
	)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("server error", zap.Error(err))
	}

	<-done
	log.Info("server stopped")
}

// relayDecision forwards carrier claim decisions onto the event stream.
func relayDecision(bus *events.Bus, log *zap.Logger) insurer.DecisionHandler {
	return func(decision insurer.DecisionEvent) {
		log.Info("carrier claim decision received",
			zap.String("claim_reference", decision.ClaimReference),
			zap.String("policy_number", decision.PolicyNumber),
			zap.String("decision", decision.Decision))

		if bus == nil {
			return
		}

		event := events.NewEvent("claim.decision", decision.SourceSystem, decision)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := bus.Publish(ctx, event); err != nil {
			log.Warn("claim decision publish failed",
				zap.String("claim_reference", decision.ClaimReference),
				zap.Error(err))
		}
	}
}

func notifyPolicyDeleted(notifier *notification.Service) events.Handler {
	return func(ctx context.Context, event events.Event) error {
		holderID, ok := eventChangeID(event, "holder_id")
		if !ok {
			return nil
		}
		notifier.Notify(holderID,
			"Policy removed",
			"An insurance policy tied to your account was removed; your verified standing was reset",
			notification.PriorityHigh,
			map[string]any{"event_id": event.ID})
		return nil
	}
}

func notifyRoleAssigned(notifier *notification.Service) events.Handler {
	return func(ctx context.Context, event events.Event) error {
		data, ok := event.Data.(map[string]any)
		if !ok {
			return nil
		}
		resource, _ := data["resource_id"].(string)
		userID, err := types.ParseID(resource)
		if err != nil {
			return nil
		}

		body := "Your account role was updated"
		if changes, ok := data["changes"].(map[string]any); ok {
			if role, ok := changes["role"].(string); ok && role != "" {
				body = fmt.Sprintf("Your account role is now %s", role)
			}
		}

		notifier.Notify(userID, "Role updated", body,
			notification.PriorityNormal,
			map[string]any{"event_id": event.ID})
		return nil
	}
}

// eventChangeID pulls an ID out of a domain event's recorded changes.
func eventChangeID(event events.Event, key string) (types.ID, bool) {
	data, ok := event.Data.(map[string]any)
	if !ok {
		return "", false
	}
	changes, ok := data["changes"].(map[string]any)
	if !ok {
		return "", false
	}
	raw, _ := changes[key].(string)
	id, err := types.ParseID(raw)
	if err != nil {
		return "", false
	}
	return id, true
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "LinkAid Platform",
		"version": "0.1.0",
		"docs":    "/api/v1",
	})
}

func healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	}
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		checks := map[string]string{}
		ready := true

		if err := app.DB.Health(r.Context()); err != nil {
			checks["database"] = err.Error()
			ready = false
		} else {
			checks["database"] = "ok"
		}

		if app.Redis != nil {
			if err := app.Redis.Health(r.Context()); err != nil {
				checks["redis"] = err.Error()
			} else {
				checks["redis"] = "ok"
			}
		}

		if app.Bus != nil {
			if err := app.Bus.Health(); err != nil {
				checks["event_stream"] = err.Error()
			} else {
				checks["event_stream"] = "ok"
			}
		}

		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"ready":  ready,
			"checks": checks,
		})
	}
}
