package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/yryd/automapper/pkg/config"
	"github.com/yryd/automapper/pkg/logging"
	"github.com/yryd/automapper/pkg/output"
	"github.com/yryd/automapper/pkg/pipeline"
	"github.com/yryd/automapper/pkg/watcher"
)

func main() {
	flags := pflag.NewFlagSet("automapper", pflag.ExitOnError)
	flags.String("dir", ".", "Directory containing the reaction data files")
	flags.String("pre", "", "Pre-reaction structure file (data or molecule format)")
	flags.String("post", "", "Post-reaction structure file (data or molecule format)")
	flags.String("prename", "pre_mol.data", "Output name for the pre-reaction molecule template")
	flags.String("postname", "post_mol.data", "Output name for the post-reaction molecule template")
	flags.String("mapfile", "automap.data", "Output name for the reaction map file")
	flags.IntSlice("ba", nil, "Bonding atom ids: pre pair then post pair (4 ids)")
	flags.StringSlice("ebt", nil, "Element symbol per atom type, in type-id order")
	flags.IntSlice("da", nil, "Atom ids deleted by the reaction (pre-reaction ids)")
	flags.IntSlice("ca", nil, "Atom ids created by the reaction (post-reaction ids)")
	flags.Int("radius", 4, "Bond radius retained around the reacting bond")
	flags.Bool("paired", false, "Trust that pre and post atom ids already denote the same atoms")
	flags.Bool("watch", false, "Rerun the mapping when the input files change")
	flags.Int("debounce", 500, "Watch mode debounce period in milliseconds")
	flags.Bool("json", false, "Log in JSON format")
	flags.CountP("verbose", "v", "Increase log verbosity (-v for debug)")

	if err := flags.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.VerboseCnt > 0 {
		level = slog.LevelDebug
	}
	if cfg.JSONLogs {
		logging.SetJSONOutput(level)
	} else {
		logging.SetLevel(level)
	}

	runner := pipeline.NewRunner(cfg)

	if cfg.Watch {
		runWatch(cfg, runner)
		return
	}

	if err := runOnce(runner); err != nil {
		logging.Error("mapping failed", "error", err)
		os.Exit(1)
	}
}

func runOnce(runner *pipeline.Runner) error {
	ctx := logging.WithRunID(context.Background(), logging.NewRunID())

	start := time.Now()
	res, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	logging.InfoContext(ctx, "mapping complete", "elapsed", time.Since(start))

	output.PrintRunReport(res)
	return nil
}

func runWatch(cfg *config.Config, runner *pipeline.Runner) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// initial run before waiting for changes; failures are not fatal in
	// watch mode since the next edit may fix the input
	if err := runOnce(runner); err != nil {
		logging.Error("mapping failed", "error", err)
	}

	fw, err := watcher.New(cfg.Directory, []string{cfg.PreFile, cfg.PostFile},
		time.Duration(cfg.DebounceMs)*time.Millisecond)
	if err != nil {
		logging.Fatal("failed to create watcher", "error", err)
	}
	if err := fw.Start(ctx); err != nil {
		logging.Fatal("failed to start watcher", "error", err)
	}

	for event := range fw.Events() {
		logging.Info("input changed, remapping", "files", fmt.Sprint(event.Paths))
		if err := runOnce(runner); err != nil {
			logging.Error("mapping failed", "error", err)
		}
	}
}
