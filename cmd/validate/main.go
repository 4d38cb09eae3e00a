// Command validate checks the offline fallback fixtures for internal
// consistency: frame geometry and ordering, storm cell placement, report
// fields, and whether the captured feed would be shown as offline.
//
// Usage:
//
//	go run ./cmd/validate                      # embedded fixtures
//	go run ./cmd/validate -dir path/to/capture # fixtures written by genmock
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/couchcryptid/storm-radar-watch/internal/adapter/fallback"
	"github.com/couchcryptid/storm-radar-watch/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dir := flag.String("dir", "", "directory with status.json, images.json and reports.json (default: embedded fixtures)")
	at := flag.String("at", "", "RFC3339 time to evaluate feed freshness against (default: newest observed frame)")
	flag.Parse()

	if code := run(*dir, *at); code != 0 {
		os.Exit(code)
	}
}

func run(dir, at string) int {
	fmt.Println("=== Fallback Fixture Validation ===")
	fmt.Println()

	var (
		f   fallback.Fixture
		err error
	)
	if dir == "" {
		f, err = fallback.LoadFixture()
	} else {
		f, err = fallback.LoadFixtureFS(os.DirFS(dir), ".")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load fixtures: %v\n", err)
		return 1
	}

	var now time.Time
	if at != "" {
		now, err = time.Parse(time.RFC3339, at)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: parse -at: %v\n", err)
			return 1
		}
	}

	phases := []*phase{
		validateStatus(f.Status),
		validateFrames("Observed frames", f.Images.InputImages, true),
		validateFrames("Predicted frames", f.Images.PredictionImages, false),
		validateTimeline(f.Images),
		validateReports(f.Reports),
		validateFreshness(f.Images, now),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-30s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Frames: %d observed, %d predicted; reports: %d\n",
		len(f.Images.InputImages), len(f.Images.PredictionImages), len(f.Reports))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i >= 20 {
				fmt.Printf("  ... and %d more\n", len(p.errors)-20)
				break
			}
			fmt.Printf("  %s\n", e)
		}
	}

	if !allPassed {
		return 1
	}
	fmt.Println("\nAll checks passed.")
	return 0
}

func validateStatus(st domain.Status) *phase {
	p := &phase{name: "Status"}
	if st.Status == "" {
		p.errorf("status is empty")
	}
	if st.LastUpdate != "" {
		if _, ok := (domain.Frame{TargetTime: st.LastUpdate}).Time(); !ok {
			p.errorf("last_update %q is not a timestamp", st.LastUpdate)
		}
	}
	return p
}

func validateFrames(name string, frames []domain.Frame, required bool) *phase {
	p := &phase{name: name}
	if required && len(frames) == 0 {
		p.errorf("no frames")
	}
	for i, f := range frames {
		if f.URL == "" {
			p.errorf("frame %d: missing url", i)
		}
		south, west, north, east := f.Bounds.Rect()
		if south == north || west == east {
			p.errorf("frame %d: degenerate bounds %v", i, f.Bounds)
		}
		if south < -90 || north > 90 || west < -180 || east > 180 {
			p.errorf("frame %d: bounds out of range %v", i, f.Bounds)
		}
		if _, ok := f.Time(); !ok {
			p.errorf("frame %d: unparseable target_time %q", i, f.TargetTime)
		}
		for j, c := range f.Cells {
			if !f.Bounds.Contains(c.Lat, c.Lon) {
				p.errorf("frame %d cell %d: (%.3f, %.3f) outside bounds", i, j, c.Lat, c.Lon)
			}
			if c.MaxDBZ < 0 || c.MaxDBZ > 90 {
				p.errorf("frame %d cell %d: max_dbz %.1f out of range", i, j, c.MaxDBZ)
			}
		}
	}
	return p
}

// validateTimeline checks that the merged sequence is strictly ascending,
// with every prediction after the newest observation.
func validateTimeline(set domain.ImageSet) *phase {
	p := &phase{name: "Timeline ordering"}
	merged := append(append([]domain.Frame(nil), set.InputImages...), set.PredictionImages...)
	var prev time.Time
	for i, f := range merged {
		ts, ok := f.Time()
		if !ok {
			continue
		}
		if i > 0 && !prev.IsZero() && !ts.After(prev) {
			p.errorf("frame %d (%s) is not after %s", i, f.TargetTime, prev.Format(time.RFC3339))
		}
		prev = ts
	}
	return p
}

func validateReports(reports []domain.WeatherReport) *phase {
	p := &phase{name: "Reports"}
	seen := map[string]bool{}
	for i, r := range reports {
		if r.ID == "" {
			p.errorf("report %d: missing id", i)
		} else if seen[r.ID] {
			p.errorf("report %d: duplicate id %q", i, r.ID)
		}
		seen[r.ID] = true

		nr := domain.NewReport{Lat: r.Lat, Lon: r.Lon, Type: r.Type}
		if !nr.Valid() {
			p.errorf("report %s: invalid type %q or coordinates (%.3f, %.3f)", r.ID, r.Type, r.Lat, r.Lon)
		}
		if r.CreatedAt.IsZero() {
			p.errorf("report %s: missing created_at", r.ID)
		}
	}
	return p
}

func validateFreshness(set domain.ImageSet, now time.Time) *phase {
	p := &phase{name: "Feed freshness"}
	latest, ok := set.LatestObserved()
	if !ok {
		return p
	}
	ts, ok := latest.Time()
	if !ok {
		return p
	}
	if now.IsZero() {
		now = ts
	}
	if domain.IsOffline(set, now) {
		p.errorf("newest observed frame %s is older than %s at %s",
			latest.TargetTime, domain.OfflineAfter, now.Format(time.RFC3339))
	}
	return p
}
