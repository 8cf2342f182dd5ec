package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/frasker/paging"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Walk a tiled list end to end and report what got loaded",
	RunE:  runBrowse,
}

func runBrowse(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := paging.Config{
		PageSize:           flagPageSize,
		PrefetchDistance:   flagPrefetch,
		EnablePlaceholders: true,
		MaxSize:            flagMaxSize,
	}

	loader := newSyntheticLoader(flagTotal, time.Duration(flagLatency)*time.Millisecond)
	src := paging.NewPositionalSource[record](loader)

	list, err := paging.NewPagedList[record](src, cfg,
		paging.WithLogger[record](log),
	)
	if err != nil {
		return err
	}

	if err := waitFor(func() bool { return list.Size() > 0 }, 10*time.Second); err != nil {
		return fmt.Errorf("initial load never landed: %w", err)
	}

	start := time.Now()
	loaded := 0
	for i := 0; i < list.Size(); i++ {
		list.LoadAround(i)
		if err := waitFor(func() bool { _, ok := list.Get(i); return ok }, 10*time.Second); err != nil {
			return fmt.Errorf("position %d never loaded: %w", i, err)
		}
		loaded++
	}
	elapsed := time.Since(start)

	stats := list.Stats()
	fmt.Printf("walked %d of %d positions in %s\n", loaded, stats.Size, elapsed.Round(time.Millisecond))
	fmt.Printf("loads dispatched: %d  tiles requested: %d  items trimmed: %d\n",
		stats.LoadsDispatched, stats.TilesRequested, stats.ItemsTrimmed)
	fmt.Printf("resident at end: %d items (max-size %d)\n", stats.LoadedCount, flagMaxSize)
	return nil
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(cond func() bool, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out after %s", timeout)
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}
