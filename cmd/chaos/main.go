// cmd/chaos/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"schoolshelf/internal/app"
	"schoolshelf/internal/chaos"
	"schoolshelf/internal/config"
	"schoolshelf/internal/telemetry"
)

var errHypothesisViolated = errors.New("hypothesis violated")

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "chaos: %v\n", err)
		if errors.Is(err, errHypothesisViolated) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run() error {
	load := chaos.DefaultLoad
	flag.IntVar(&load.Copies, "copies", load.Copies, "copies on the shelf for the borrow race")
	flag.IntVar(&load.Borrowers, "borrowers", load.Borrowers, "concurrent borrowers in the borrow race")
	flag.IntVar(&load.Loans, "loans", load.Loans, "loans opened for the return storm")
	flag.IntVar(&load.Returners, "returners", load.Returners, "concurrent returns per loan in the return storm")
	interval := flag.Duration("sample-interval", 50*time.Millisecond, "probe sampling interval")
	flag.Parse()

	logger := slog.New(telemetry.NewHandler(os.Stderr, "text", slog.LevelWarn))
	ctx := context.Background()

	// Experiments call the services directly, so the admin PIN is never used.
	a, err := app.New(ctx, config.Config{
		AdminPIN:            "chaos",
		AdminEvery:          time.Second,
		AdminBurst:          1,
		LookupTimeout:       time.Second,
		LookupRatePerMinute: 1,
	}, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	engine := chaos.NewEngine(logger, *interval)
	engine.RegisterDefaults(chaos.Target{
		Catalog:     a.Catalog,
		Circulation: a.Circulation,
		Coordinator: a.Coordinator,
	}, load)

	results, err := engine.RunAll(ctx)
	chaos.WriteReport(os.Stdout, results)
	if err != nil {
		return err
	}
	for _, r := range results {
		if !r.HypothesisHeld {
			return fmt.Errorf("%w: %s", errHypothesisViolated, r.Experiment)
		}
	}
	return nil
}
