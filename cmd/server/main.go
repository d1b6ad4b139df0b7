/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the attendance engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load configuration (viper)
  2. Build the zap logger
  3. Initialize SQLite store (also the holiday calendar)
  4. Pick the generator: remote service if synthesis.remote_url is set
  5. Create service, optionally seed policies from a JSON file
  6. Create API handler and router
  7. Start the anomaly scheduler and the HTTP server
  8. Shut down gracefully

COMMAND-LINE FLAGS:
  -config    YAML config file (default: ./config.yaml or ./config/config.yaml)
  -policies  JSON array of policies to upsert at startup

ENVIRONMENT:
  Every config key can be overridden with ATTENDANCE_<SECTION>_<KEY>,
  e.g. ATTENDANCE_SERVER_PORT=3000, ATTENDANCE_DB_PATH=":memory:".

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler (waits for a running scan)
  2. Stop accepting new connections
  3. Wait for active requests to complete (server.shutdown_timeout)
  4. Close database connection

SEE ALSO:
  - config/config.go: Settings and defaults
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/warp/attendance-engine/api"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/config"
	"github.com/warp/attendance-engine/factory"
	"github.com/warp/attendance-engine/logger"
	"github.com/warp/attendance-engine/remote"
	"github.com/warp/attendance-engine/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "YAML config file")
	policiesPath := flag.String("policies", "", "JSON file of policies to seed")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// No logger yet.
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.Must(logger.New(cfg.Log))
	defer log.Sync()

	if err := run(cfg, *policiesPath, log); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, policiesPath string, log *zap.Logger) error {
	// Initialize store
	if cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return err
		}
	}
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()
	log.Info("database ready", zap.String("path", cfg.Database.Path))

	// Generator
	var generator attendance.Generator = &attendance.SyntheticAttendanceGenerator{
		DailyCeilingMinutes: cfg.Synthesis.DailyCeilingMinutes,
	}
	if cfg.Synthesis.RemoteURL != "" {
		generator = remote.NewGenerator(cfg.Synthesis.RemoteURL, cfg.Synthesis.RemoteTimeout, logger.Named(log, "generator"))
		log.Info("using remote generator", zap.String("url", cfg.Synthesis.RemoteURL))
	}

	rates, err := cfg.Payroll.Rates()
	if err != nil {
		return err
	}

	service := attendance.NewService(store, store, generator, logger.Named(log, "service"), cfg.EngineOptions())
	if policiesPath != "" {
		if err := seedPolicies(context.Background(), service, policiesPath, cfg.Engine.CompanyID, log); err != nil {
			return err
		}
	}

	handler := api.NewHandler(service, store, cfg.Engine.CompanyID, rates, logger.Named(log, "api"))
	router := api.NewRouter(handler, cfg.Server.AllowOrigins, logger.Named(log, "http"))

	// Scheduler
	var scheduler *api.AnomalyScheduler
	if cfg.Scheduler.Enabled {
		scheduler = api.NewAnomalyScheduler(service, cfg.Engine.CompanyID, cfg.Scheduler.AnomalyScanCron, logger.Named(log, "scheduler"))
		if err := scheduler.Start(); err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  2 * cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", server.Addr), zap.String("company_id", cfg.Engine.CompanyID))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("shutting down server", zap.String("signal", sig.String()))
	case err := <-errCh:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return err
	}

	log.Info("server stopped")
	return nil
}

func seedPolicies(ctx context.Context, service *attendance.Service, path, companyID string, log *zap.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	policies, err := factory.NewPolicyFactory().ParsePolicies(data)
	if err != nil {
		return err
	}
	for _, p := range policies {
		if p.CompanyID == "" {
			p.CompanyID = companyID
		}
		if _, err := service.SavePolicy(ctx, p); err != nil {
			return err
		}
	}
	log.Info("policies seeded", zap.Int("count", len(policies)), zap.String("file", path))
	return nil
}
