// Package cli wires configuration, the query controller and its front ends
// into the weather-widget command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/weather-widget/internal/api/http"
	"github.com/i474232898/weather-widget/internal/config"
	"github.com/i474232898/weather-widget/internal/controller"
	"github.com/i474232898/weather-widget/internal/scheduler"
	"github.com/i474232898/weather-widget/internal/tui"
	"github.com/i474232898/weather-widget/internal/weather"
	"github.com/i474232898/weather-widget/internal/weather/providers"
)

type globalFlags struct {
	place string
}

// NewRootCmd creates the root command. Without a subcommand it serves the API.
func NewRootCmd() *cobra.Command {
	var flags globalFlags
	var cfg *config.AppConfig

	cmd := &cobra.Command{
		Use:           "weather-widget",
		Short:         "Current weather for a place or your location",
		Long:          "weather-widget looks up current conditions from WeatherAPI.com for a typed place or, failing that, your position.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg, flags)
		},
	}

	cmd.PersistentFlags().StringVar(&flags.place, "place", "", "Place to look up on startup (overrides geolocation)")

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve the widget state over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg, flags)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "tui",
		Short: "Run the widget in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), cfg, flags)
		},
	})

	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

// newController builds the provider, locator and controller from cfg.
func newController(cfg *config.AppConfig) *controller.Controller {
	// Shared HTTP client for outbound calls. Zero timeout means none.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	provider := providers.NewWeatherAPIProvider(httpClient, cfg.WeatherAPIKey, cfg.WeatherAPIBaseURL)

	var locator weather.Locator
	switch cfg.Geolocation {
	case config.GeolocationIP:
		locator = providers.NewIPLocator(httpClient, cfg.GeolocationURL)
	case config.GeolocationStatic:
		locator = providers.StaticLocator{Coords: *cfg.StaticCoords}
	}

	return controller.New(provider, locator)
}

// start seeds the place, kicks off geolocation and the refresh schedule.
func start(ctx context.Context, cfg *config.AppConfig, ctrl *controller.Controller, flags globalFlags) (*scheduler.Scheduler, error) {
	if flags.place != "" {
		ctrl.SetPlace(flags.place)
	}
	ctrl.Start(ctx)

	sched := scheduler.New(cfg.RefreshInterval, ctrl)
	if err := sched.Start(); err != nil {
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}
	return sched, nil
}

func runServe(ctx context.Context, cfg *config.AppConfig, flags globalFlags) error {
	ctrl := newController(cfg)
	defer ctrl.Close()

	sched, err := start(ctx, cfg, ctrl, flags)
	if err != nil {
		return err
	}
	defer sched.Stop()

	app := httpapi.NewApp(ctrl)

	go func() {
		log.Printf("INFO: listening on :%s", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
	return nil
}

var errNoTerminal = errors.New("tui requires an interactive terminal; use serve instead")

func runTUI(ctx context.Context, cfg *config.AppConfig, flags globalFlags) error {
	if !term.IsTerminal(os.Stdout.Fd()) {
		return errNoTerminal
	}

	// The terminal belongs to the widget; logs go to a file.
	f, err := tea.LogToFile(cfg.LogFile, "weather-widget")
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	ctrl := newController(cfg)
	defer ctrl.Close()

	updatesCtx, stopUpdates := context.WithCancel(ctx)
	defer stopUpdates()
	updates := ctrl.Updates(updatesCtx)

	sched, err := start(ctx, cfg, ctrl, flags)
	if err != nil {
		return err
	}
	defer sched.Stop()

	model := tui.New(ctrl, updates, flags.place)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("terminal UI failed: %w", err)
	}
	return nil
}
