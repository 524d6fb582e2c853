package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the attendance API server.
The server accepts classroom frames for recognition, records attendance and
serves class summaries, student history and diagnostics. When face recognition
is available it also fills missing primary encodings in the background.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
}

// startBackfill schedules the periodic primary encoding backfill. It returns
// nil when the job is disabled.
func startBackfill(a *app, interval time.Duration) (*gocron.Scheduler, error) {
	if interval <= 0 {
		fmt.Println("Encoding backfill disabled")
		return nil, nil
	}
	if !a.extractor.Capability().Available {
		fmt.Println("Encoding backfill disabled: face recognition unavailable")
		return nil, nil
	}

	regen := a.regenerator()
	s := gocron.NewScheduler(a.cfg.School.Location())
	_, err := s.Every(interval).SingletonMode().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()
		if _, err := regen.Backfill(ctx); err != nil {
			a.logger.Error("encoding backfill failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("scheduling encoding backfill: %w", err)
	}
	s.StartAsync()
	fmt.Printf("Encoding backfill scheduled every %s\n", interval)
	return s, nil
}

// applyServeFlags overrides the listen address from flags.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	applyServeFlags(cmd, cfg)

	if cfg.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}

	fmt.Printf("Connecting to PostgreSQL database...\n")
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	scheduler, err := startBackfill(a, cfg.Jobs.EncodingBackfillInterval)
	if err != nil {
		return err
	}

	server := web.NewServer(cfg, a.service, a.logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		if scheduler != nil {
			scheduler.Stop()
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting attendance API on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
