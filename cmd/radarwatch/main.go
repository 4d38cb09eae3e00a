package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/storm-radar-watch/internal/app"
	"github.com/couchcryptid/storm-radar-watch/internal/config"
	"github.com/couchcryptid/storm-radar-watch/internal/observability"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	envFile   string
	asJSON    bool
	asGeoJSON bool
	sceneZoom float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "radarwatch",
		Short: "Storm radar client with playback, proximity alerts and a local control API",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			loadEnv(cmd)
		},
		RunE:         runServe,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load before reading config")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Poll the backend and serve the local API until interrupted",
		RunE:  runServe,
	})

	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Poll the backend once and print the resulting state",
		RunE:  runSnapshot,
	}
	snapshotCmd.Flags().BoolVar(&asJSON, "json", false, "Print the full state as JSON")
	snapshotCmd.Flags().BoolVar(&asGeoJSON, "geojson", false, "Print the map overlay as GeoJSON")
	snapshotCmd.Flags().Float64Var(&sceneZoom, "zoom", 8, "Map zoom used for marker sizing")
	rootCmd.AddCommand(snapshotCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadEnv reads envFile when present. A missing file is not an error.
func loadEnv(cmd *cobra.Command) {
	if _, err := os.Stat(envFile); err != nil {
		return
	}
	if err := godotenv.Load(envFile); err != nil {
		cmd.PrintErrln(fmt.Errorf("load %s: %w", envFile, err))
	}
}

func setup() (*app.App, *config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return nil, nil, nil, err
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	a, err := app.New(cfg, logger, metrics, nil)
	if err != nil {
		logger.Error("failed to start", "error", err)
		return nil, nil, nil, err
	}
	return a, cfg, logger, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	a, cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("close error", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("radarwatch starting", "addr", cfg.HTTPAddr, "api", cfg.APIBaseURL, "fallback", cfg.FallbackEnabled)
	return a.Run(ctx)
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	a, cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("close error", "error", err)
		}
	}()

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*cfg.APITimeout)
	defer cancel()
	if err := a.Refresh(ctx); err != nil {
		logger.Warn("poll completed with errors", "error", err)
	}

	out := cmd.OutOrStdout()
	switch {
	case asGeoJSON:
		return writeJSON(out, a.Scene(sceneZoom).FeatureCollection())
	case asJSON:
		return writeJSON(out, map[string]any{
			"state":    a.Snapshot(),
			"timeline": a.Timeline(),
		})
	default:
		printSummary(out, a)
		return nil
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSummary(w io.Writer, a *app.App) {
	snap := a.Snapshot()
	tl := a.Timeline()

	if snap.Status != nil {
		fmt.Fprintf(w, "backend status:   %s\n", snap.Status.Status)
	}
	fmt.Fprintf(w, "frames:           %d observed, %d predicted\n",
		len(snap.Images.InputImages), len(snap.Images.PredictionImages))
	if latest, ok := snap.Images.LatestObserved(); ok {
		fmt.Fprintf(w, "latest frame:     %s\n", latest.TargetTime)
	}
	fmt.Fprintf(w, "feed offline:     %t\n", tl.Offline)
	fmt.Fprintf(w, "reports:          %d\n", len(snap.Reports))
	if snap.FetchError {
		for resource, msg := range snap.FetchErrors {
			fmt.Fprintf(w, "fetch error:      %s: %s\n", resource, msg)
		}
	}
	switch {
	case snap.Location == nil:
		fmt.Fprintln(w, "location:         unknown")
	case snap.Nearest == nil:
		fmt.Fprintf(w, "location:         %.4f, %.4f (no storm in range)\n", snap.Location.Lat, snap.Location.Lon)
	default:
		fmt.Fprintf(w, "location:         %.4f, %.4f\n", snap.Location.Lat, snap.Location.Lon)
		fmt.Fprintf(w, "nearest storm:    %.1f km, %.0f dBZ\n", snap.Nearest.DistanceKm, snap.Nearest.Cell.MaxDBZ)
	}
}
