package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/actionsum/appclock/internal/autostart"
	"github.com/actionsum/appclock/internal/category"
	"github.com/actionsum/appclock/internal/config"
	"github.com/actionsum/appclock/internal/daemon"
	"github.com/actionsum/appclock/internal/database"
	"github.com/actionsum/appclock/internal/logging"
	"github.com/actionsum/appclock/internal/metrics"
	"github.com/actionsum/appclock/internal/observer"
	"github.com/actionsum/appclock/internal/session"
	"github.com/actionsum/appclock/internal/tracker"
	"github.com/actionsum/appclock/internal/web"
	"github.com/actionsum/appclock/pkg/detector"
	"github.com/actionsum/appclock/pkg/integrations/process"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve [apps...]",
	Short: "Run the tracker and web API in the foreground",
	Long: `Run the tracking daemon and its HTTP API in the foreground.

Apps given as arguments are registered immediately. Otherwise tracking starts
when a client calls the API or, if APPCLOCK_TRACKER_AUTOSTART_APPS is set, once
one of those applications is running.

Examples:
  appclock serve
  appclock serve Code.exe firefox
  appclock serve --port 12000`,
	RunE: runServe,
}

var servePort int

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides the configured port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		if err := cfg.SetWebPort(servePort); err != nil {
			return err
		}
	}

	dm := daemon.New(cfg.Daemon.PIDFile)
	running, pid, err := dm.IsRunning()
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}
	if running && pid != os.Getpid() {
		return fmt.Errorf("daemon is already running (PID: %d)", pid)
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	return serve(cfg, dm, args, logger)
}

func serve(cfg *config.Config, dm *daemon.Daemon, apps []string, logger *zap.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	db, err := database.Connect(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	table, err := category.Load(cfg.Categories.Path, cfg.Categories.Default)
	if err != nil {
		return err
	}

	det, err := detector.New()
	if err != nil {
		return fmt.Errorf("failed to initialize window detector for %s session: %w", detector.DetectDisplayServer(), err)
	}
	defer det.Close()
	logger.Info("window detector initialized", zap.String("display_server", det.GetDisplayServer()))

	if err := dm.WritePID(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	defer func() { _ = dm.RemovePID() }()

	m := metrics.New()
	repo := database.NewRepository(db)
	obs := observer.New(det, cfg.ObserveTimeout(), logger,
		observer.WithErrorSink(repo),
		observer.WithMetrics(m),
	)
	manager := session.NewManager(repo, table, loc, logger,
		session.WithMetrics(m),
		session.WithErrorSink(repo),
	)

	recovered, err := manager.Recover()
	if err != nil {
		logger.Warn("failed to recover open sessions", zap.Error(err))
	} else if recovered > 0 {
		logger.Info("closed sessions left open by a previous run", zap.Int("count", recovered))
	}

	svc := tracker.NewService(cfg, manager, obs, logger,
		tracker.WithDisplayServer(det.GetDisplayServer()),
		tracker.WithRetention(repo, cfg.Database.RetentionDays),
	)
	if _, err := svc.PruneHistory(); err != nil {
		logger.Warn("failed to prune history", zap.Error(err))
	}

	if len(apps) > 0 {
		result, err := svc.StartTracking(apps)
		if err != nil {
			return err
		}
		for _, r := range result.Rejected {
			logger.Warn("app rejected", zap.String("app", r.App), zap.String("error", r.Error))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	server := web.NewServer(cfg, svc, m, logger)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	if len(cfg.Tracker.AutoStartApps) > 0 {
		watcher := autostart.New(process.NewDetector(), svc, cfg.Tracker.AutoStartApps, cfg.Tracker.AutoStartInterval, logger)
		go watcher.Run(ctx)
	}

	logger.Info("appclock daemon started",
		zap.String("address", server.GetAddress()),
		zap.Int("pid", os.Getpid()),
		zap.String("time_zone", loc.String()),
	)
	logger.Debug(cfg.String())

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case runErr = <-serverErr:
		if runErr != nil {
			logger.Error("web server failed", zap.Error(runErr))
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error shutting down web server", zap.Error(err))
	}
	if err := svc.Close(shutdownCtx); err != nil {
		logger.Warn("error stopping tracker", zap.Error(err))
	}

	logger.Info("daemon stopped")
	return runErr
}
