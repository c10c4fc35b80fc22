package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgallion1/docverge/internal/config"
	"github.com/dgallion1/docverge/internal/pipeline"
	"github.com/dgallion1/docverge/internal/sequencer"
)

func main() {
	dir := flag.String("dir", ".", "directory holding the revision files")
	reportPath := flag.String("report", "consolidation_report.md", "where to write the markdown report")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		fatal(err)
	}

	files, err := sequencer.ScanDir(*dir)
	if err != nil {
		fatal(err)
	}
	sorted := sequencer.SortByVersion(files)

	inputs := make([]pipeline.InputFile, 0, len(sorted))
	for _, f := range sorted {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			fatal(err)
		}
		inputs = append(inputs, pipeline.InputFile{Filename: f.Filename, Data: data})
		fmt.Printf("revision %s (version %s)\n", f.Filename, f.VersionString())
	}

	run := pipeline.NewRun(pipeline.NewRunID(), inputs)
	pipeline.NewRunner(cfg, log).Process(context.Background(), run)

	snap := run.Snapshot()
	res := run.Result()
	if res == nil {
		fmt.Fprintf(os.Stderr, "run %s: %s\n", snap.ID, snap.Status)
		for _, e := range snap.Progress.Errors {
			fmt.Fprintf(os.Stderr, "  error: %s\n", e)
		}
		os.Exit(1)
	}

	fmt.Printf("\nConsolidated master: %d pages, %d sections\n\n", res.Stats.TotalPages, res.Stats.TotalTrackers)
	for _, n := range res.Hierarchy {
		marker := ""
		if n.HasChanges {
			marker = " *"
		}
		fmt.Printf("%s (page %d)%s\n", n.Title, n.Page, marker)
		for _, v := range n.Versions {
			fmt.Printf("    %s: pages %d-%d [%s]\n", v.Title, v.Start, v.End, v.SourceID)
		}
	}

	fmt.Printf("\nversions created: %d, duplicates skipped: %d, pages removed: %d, low-confidence matches: %d\n",
		res.Stats.VersionsCreated, res.Stats.DuplicatesSkipped, res.Stats.PagesRemoved, res.Stats.LowConfidenceMatches)
	if res.Incomplete {
		fmt.Println("WARNING: run stopped early, master is incomplete")
	}

	if err := os.WriteFile(*reportPath, []byte(res.Report), 0o644); err != nil {
		fatal(err)
	}
	fmt.Printf("report written to %s\n", *reportPath)

	if snap.Status != pipeline.StatusCompleted {
		os.Exit(1)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "consolidate:", err)
	os.Exit(1)
}
