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

	"github.com/spf13/cobra"
	"github.com/warp/rate-engine/api"
	"github.com/warp/rate-engine/config"
	"github.com/warp/rate-engine/pms"
	"github.com/warp/rate-engine/rates"
	"github.com/warp/rate-engine/store/sqlite"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	addServeFlags(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().Int("port", 0, "HTTP server port (overrides server.port)")
	cmd.Flags().String("db", "", `SQLite database path, ":memory:" for in-memory (overrides database.path)`)
	cmd.Flags().Bool("sandbox", false, "use the in-memory sandbox PMS instead of pms.base_url")
}

// applyServeFlags copies explicitly set flags over the loaded config.
func applyServeFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		c.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("db") {
		c.Database.Path, _ = flags.GetString("db")
	}
	if flags.Changed("sandbox") {
		c.PMS.Sandbox, _ = flags.GetBool("sandbox")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	var (
		gateway rates.PMSGateway
		metrics rates.MetricsFeed
		pickup  rates.PickupFeed
		sandbox *pms.Sandbox
	)
	if cfg.PMS.Sandbox {
		sandbox = pms.NewSandbox()
		gateway, metrics, pickup = sandbox, sandbox, sandbox
		logger.Warn("using sandbox PMS, no overrides leave this process")
	} else {
		client, err := pms.NewClient(pms.Config{
			BaseURL:           cfg.PMS.BaseURL,
			APIKey:            cfg.PMS.APIKey,
			Timeout:           cfg.PMS.Timeout,
			RequestsPerSecond: cfg.PMS.RequestsPerSecond,
			Burst:             cfg.PMS.Burst,
			MaxRetries:        cfg.PMS.MaxRetries,
			InitialBackoff:    time.Duration(cfg.PMS.InitialBackoffMs) * time.Millisecond,
			MaxBackoff:        time.Duration(cfg.PMS.MaxBackoffMs) * time.Millisecond,
		}, logger.With("component", "pms"))
		if err != nil {
			return err
		}
		gateway, metrics, pickup = client, client, client
	}

	assembler := rates.NewAssembler(gateway, metrics, pickup, store, logger.With("component", "calendar"))
	submitter := rates.NewSubmitter(gateway, store, logger.With("component", "submission"))
	desk := rates.NewDesk(assembler, submitter, store, store, logger)

	handler := api.NewHandler(desk, sandbox, api.CalendarDefaults{
		WindowDays:   cfg.Calendar.WindowDays,
		PickupWindow: rates.PickupWindow(cfg.Calendar.PickupWindow),
	}, logger.With("component", "api"))
	router := api.NewRouter(handler)

	scheduler := api.NewRefreshScheduler(desk, logger.With("component", "scheduler"))
	scheduler.Enabled = cfg.Scheduler.Enabled
	scheduler.Interval = cfg.Scheduler.RefreshInterval
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr, "db", cfg.Database.Path, "sandbox", cfg.PMS.Sandbox)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-quit:
	}

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
