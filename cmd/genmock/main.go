// Command genmock captures live backend responses and writes them as the
// offline fallback fixtures embedded in the client. Frame and report
// timestamps can be rebased so the captured feed looks current when replayed.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -api-url http://localhost:8000 \
//	  -out internal/adapter/fallback/fixtures \
//	  -rebase 2025-06-01T14:00:00Z
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/storm-radar-watch/internal/adapter/api"
	"github.com/couchcryptid/storm-radar-watch/internal/domain"
	"github.com/couchcryptid/storm-radar-watch/internal/observability"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	apiURL := flag.String("api-url", "", "backend base URL to capture from")
	outDir := flag.String("out", "internal/adapter/fallback/fixtures", "fixture output directory")
	hours := flag.Int("hours", 24, "report window to capture")
	maxFrames := flag.Int("max-frames", 12, "keep at most this many observed frames")
	rebase := flag.String("rebase", "", "shift timestamps so the newest observed frame lands on this RFC3339 time")
	timeout := flag.Duration("timeout", 30*time.Second, "per-request timeout")
	flag.Parse()

	if *apiURL == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -api-url")
	}

	client := api.NewClient(*apiURL, *timeout, observability.NewMetricsForTesting(), slog.Default())
	ctx := context.Background()

	status, err := client.Status(ctx)
	if err != nil {
		return fmt.Errorf("fetch status: %w", err)
	}
	images, err := client.Images(ctx)
	if err != nil {
		return fmt.Errorf("fetch images: %w", err)
	}
	reports, err := client.Reports(ctx, *hours)
	if err != nil {
		return fmt.Errorf("fetch reports: %w", err)
	}

	if n := len(images.InputImages); n > *maxFrames {
		images.InputImages = images.InputImages[n-*maxFrames:]
	}
	status.Status = "fallback"

	if *rebase != "" {
		target, err := time.Parse(time.RFC3339, *rebase)
		if err != nil {
			return fmt.Errorf("parse -rebase: %w", err)
		}
		shift, err := rebaseShift(images, target)
		if err != nil {
			return err
		}
		shiftImages(&images, shift)
		for i := range reports {
			reports[i].CreatedAt = reports[i].CreatedAt.Add(shift)
		}
		log.Printf("rebased timestamps by %s", shift)
	}

	files := map[string]any{
		"status.json":  status,
		"images.json":  images,
		"reports.json": reports,
	}
	for name, v := range files {
		path := filepath.Join(*outDir, name)
		if err := writeJSON(path, v); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
		log.Printf("wrote %s", path)
	}

	printStats(images, reports)
	return nil
}

func rebaseShift(images domain.ImageSet, target time.Time) (time.Duration, error) {
	latest, ok := images.LatestObserved()
	if !ok {
		return 0, fmt.Errorf("cannot rebase: no observed frames captured")
	}
	ts, ok := latest.Time()
	if !ok {
		return 0, fmt.Errorf("cannot rebase: unparseable target_time %q", latest.TargetTime)
	}
	return target.Sub(ts), nil
}

func shiftImages(images *domain.ImageSet, shift time.Duration) {
	for _, frames := range [][]domain.Frame{images.InputImages, images.PredictionImages} {
		for i := range frames {
			if ts, ok := frames[i].Time(); ok {
				frames[i].TargetTime = ts.Add(shift).UTC().Format(time.RFC3339)
			}
		}
	}
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

func printStats(images domain.ImageSet, reports []domain.WeatherReport) {
	var cells int
	for _, f := range images.InputImages {
		cells += len(f.Cells)
	}
	fmt.Printf("\n=== Fixture Stats ===\n")
	fmt.Printf("Observed frames: %d\n", len(images.InputImages))
	fmt.Printf("Predicted frames: %d\n", len(images.PredictionImages))
	fmt.Printf("Storm cells: %d\n", cells)

	byType := map[string]int{}
	for _, r := range reports {
		byType[r.Type]++
	}
	fmt.Printf("Reports: %d\n", len(reports))
	for t, n := range byType {
		fmt.Printf("  %s: %d\n", t, n)
	}
}
