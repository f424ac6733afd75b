package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/repsync/internal/config"
	"github.com/claude/repsync/internal/csvio"
	"github.com/claude/repsync/internal/local"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	filePath := flag.String("file", "", "path to CSV file (required)")
	dryRun := flag.Bool("dry-run", false, "report counts without writing to the local store")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *filePath == "" {
		fmt.Fprintf(os.Stderr, "Usage: repsync-import -config config.yaml -file sets.csv [-dry-run]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if *dryRun {
		log.Info("DRY RUN mode — no data will be written to the local store")
	}

	// Open local store
	db, err := local.Open(cfg.Local.DataDir)
	if err != nil {
		log.Error("failed to open local store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	f, err := os.Open(*filePath)
	if err != nil {
		log.Error("failed to open CSV file", "path", *filePath, "error", err)
		os.Exit(1)
	}
	defer f.Close()

	// Run import
	imp := csvio.NewImporter(db, log, *dryRun)
	stats, err := imp.Import(f)
	if err != nil {
		log.Error("import failed", "error", err)
		printStats(log, stats)
		os.Exit(1)
	}

	printStats(log, stats)
	log.Info("import complete")
}

func printStats(log *slog.Logger, stats *csvio.Stats) {
	log.Info("import stats",
		"sets_imported", stats.Imported,
		"exercises_created", stats.ExercisesCreated,
		"rows_rejected", len(stats.RowErrors),
	)
	for _, msg := range stats.RowErrors {
		log.Warn("rejected row", "error", msg)
	}
}
