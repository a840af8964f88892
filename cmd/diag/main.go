// Command diag loads a cached catalog file and prints current positions and
// upcoming close approaches. Useful for eyeballing engine output without
// running the server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/neowatch/neowatch/internal/approach"
	"github.com/neowatch/neowatch/internal/catalog"
	"github.com/neowatch/neowatch/internal/propagation"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: diag <catalog.json>")
		os.Exit(1)
	}

	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Println("ERROR reading catalog file:", err)
		os.Exit(1)
	}

	raws, err := catalog.DecodeBrowse(data)
	if err != nil {
		fmt.Println("ERROR decoding catalog:", err)
		os.Exit(1)
	}

	now := time.Now().UTC()
	ds := catalog.BuildDataset(os.Args[1], now, raws, logger)
	fmt.Printf("Loaded %d objects (%d fallback)\n", len(ds.Objects), ds.FallbackCount())

	session := propagation.NewSession(logger)
	session.LoadCatalog(ds)

	prop := propagation.NewPropagator(session, propagation.PropConfig{
		Workers: 4,
		Step:    time.Second,
		Horizon: 10 * time.Second,
	}, logger)

	kf, err := prop.PropagateToTime(context.Background(), now)
	if err != nil {
		fmt.Println("ERROR propagating:", err)
		os.Exit(1)
	}

	fmt.Printf("Keyframe at %v:\n", kf.Timestamp.Format(time.RFC3339))
	for _, op := range kf.Objects {
		mode := "elements"
		if op.Fallback {
			mode = "fallback"
		}
		fmt.Printf("  %-12s %-10s ecef=(%.0f, %.0f, %.0f) m  %s\n",
			op.ID, mode, op.PositionECEF[0], op.PositionECEF[1], op.PositionECEF[2], op.Label)
	}

	events := approach.Upcoming(ds.Objects, now, 30*24*time.Hour, 10)
	fmt.Printf("\nUpcoming close approaches (30 days): %d\n", len(events))
	for _, ev := range events {
		fmt.Printf("  %s  %s  miss=%.0f km  v=%.1f km/s\n",
			ev.Time.Format(time.RFC3339), ev.DisplayName, ev.MissDistanceKm, ev.VelocityKmS)
	}
}
