package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinic/booking/internal/config"
	"github.com/clinic/booking/internal/domain/identity"
	"github.com/clinic/booking/internal/domain/scheduling"
	"github.com/clinic/booking/internal/platform/auth"
	"github.com/clinic/booking/internal/platform/db"
	"github.com/clinic/booking/internal/platform/geo"
	"github.com/clinic/booking/internal/platform/middleware"
	"github.com/clinic/booking/internal/platform/sweeper"
	"github.com/clinic/booking/internal/platform/websocket"
	"github.com/clinic/booking/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "clinic-server",
		Short:        "Clinic appointment scheduling API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})

	return cmd
}

// sweepCmd runs one cycle of a background job against the database and
// exits, for cron-style deployments that do not keep a server running.
func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "sweep " + scheduling.JobFinish + "|" + scheduling.JobTaxonomy,
		Short:     "Run one sweeper cycle and exit",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{scheduling.JobFinish, scheduling.JobTaxonomy},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			ctx := cmd.Context()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := newSchedulingService(cfg, pool, logger)
			jobs := sweeper.New(logger, svc.SweepJobs(cfg.FinishSweepInterval, cfg.TaxonomySweepInterval)...)
			return jobs.RunOnce(ctx, args[0])
		},
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(zerolog.InfoLevel)
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(ctx, db.PoolConfig{
		URL:             cfg.DatabaseURL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Hour,
	})
}

// newGeocoder returns the HTTP geocoder when GEOCODER_URL is set. Otherwise
// every address resolves to the origin, which is only acceptable in
// development.
func newGeocoder(cfg *config.Config) geo.Provider {
	if cfg.GeocoderURL != "" {
		return geo.NewHTTPGeocoder(cfg.GeocoderURL, cfg.GeocoderUserAgent)
	}
	p := geo.NewStaticProvider(nil)
	p.Strict = !cfg.IsDev()
	return p
}

func newSchedulingService(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) *scheduling.Service {
	repos := scheduling.Repositories{
		Doctors:      scheduling.NewDoctorRepoPG(pool),
		Patients:     scheduling.NewPatientRepoPG(pool),
		Appointments: scheduling.NewAppointmentRepoPG(pool),
		Specialties:  scheduling.NewSpecialtyRepoPG(pool),
		Causes:       scheduling.NewCauseRepoPG(pool),
	}
	runner := db.NewRunner(pool, db.DefaultRunnerConfig(), logger)
	return scheduling.NewService(runner, repos, logger).WithGeocoder(newGeocoder(cfg))
}

// originChecker allows websocket upgrades from the configured CORS origins.
// Requests without an Origin header come from non-browser clients.
func originChecker(origins []string) func(*http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[strings.TrimRight(o, "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			return false
		}
		return allowed[u.Scheme+"://"+u.Host]
	}
}

type app struct {
	scheduling *scheduling.Service
	identity   *identity.Service
	hub        *websocket.Hub
	sweeper    *sweeper.Scheduler
	tokens     *auth.TokenIssuer
	revoked    *auth.RevocationList
	apiLimit   *middleware.RateLimiter
	authLimit  *middleware.RateLimiter // nil when auth limiting is off
}

func newApp(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) *app {
	hub := websocket.NewHub(logger)
	sched := newSchedulingService(cfg, pool, logger).WithPublisher(hub)

	tokens := auth.NewTokenIssuer([]byte(cfg.TokenSecret), cfg.TokenTTL, "clinic-server")
	revoked := auth.NewRevocationList()
	runner := db.NewRunner(pool, db.DefaultRunnerConfig(), logger)
	ident := identity.NewService(runner, identity.NewUserRepoPG(pool), sched, tokens, revoked, logger)

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiLimit := middleware.NewRateLimiter(rateLimitCfg)
	var authLimit *middleware.RateLimiter
	if cfg.AuthRateLimitPer10m > 0 {
		authLimit = middleware.NewRateLimiter(middleware.PerWindow(cfg.AuthRateLimitPer10m, 10*time.Minute))
	}

	jobs := append(sched.SweepJobs(cfg.FinishSweepInterval, cfg.TaxonomySweepInterval),
		ident.RevocationJob(cfg.TokenTTL),
		middleware.PruneJob(time.Minute, logger, apiLimit, authLimit))
	return &app{
		scheduling: sched,
		identity:   ident,
		hub:        hub,
		sweeper:    sweeper.New(logger, jobs...),
		tokens:     tokens,
		revoked:    revoked,
		apiLimit:   apiLimit,
		authLimit:  authLimit,
	}
}

func newServer(cfg *config.Config, a *app, probe db.Probe, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	var hsts time.Duration
	if cfg.IsProduction() {
		hsts = 365 * 24 * time.Hour
	}
	e.Use(middleware.SecurityHeaders(middleware.SecurityConfig{HSTSMaxAge: hsts}))
	e.Use(echomw.BodyLimit("1M"))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	// Auth middleware
	jwtCfg := auth.JWTConfig{
		Verifier: a.tokens,
		Revoked:  a.revoked,
		Skipper:  auth.AuthSkipper,
	}
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(probe))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(a.apiLimit.Middleware())

	var authLimit []echo.MiddlewareFunc
	if a.authLimit != nil {
		authLimit = append(authLimit, a.authLimit.Middleware())
	}
	identity.NewHandler(a.identity, logger).RegisterRoutes(apiV1, authLimit...)
	scheduling.NewHandler(a.scheduling, logger).RegisterRoutes(apiV1)
	websocket.NewHandler(a.hub, originChecker(cfg.CORSOrigins)).RegisterRoutes(apiV1)

	return e
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}

	// Database
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := openPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	a := newApp(cfg, pool, logger)
	e := newServer(cfg, a, db.PoolProbe(pool), logger)

	if err := a.sweeper.Start(ctx); err != nil {
		return err
	}
	defer a.sweeper.Stop()
	defer a.hub.Close()

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
