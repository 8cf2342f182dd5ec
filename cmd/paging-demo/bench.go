package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/frasker/paging"
)

var benchJumps int

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure random-access load behavior over a tiled list",
	RunE:  runBench,
}

func init() {
	benchCmd.Flags().IntVar(&benchJumps, "jumps", 200, "random positions to visit")
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg := paging.Config{
		PageSize:           flagPageSize,
		PrefetchDistance:   flagPrefetch,
		EnablePlaceholders: true,
		MaxSize:            flagMaxSize,
	}

	loader := newSyntheticLoader(flagTotal, time.Duration(flagLatency)*time.Millisecond)
	src := paging.NewPositionalSource[record](loader)

	list, err := paging.NewPagedList[record](src, cfg)
	if err != nil {
		return err
	}
	if err := waitFor(func() bool { return list.Size() > 0 }, 10*time.Second); err != nil {
		return fmt.Errorf("initial load never landed: %w", err)
	}

	rng := rand.New(rand.NewSource(42))
	start := time.Now()
	for j := 0; j < benchJumps; j++ {
		i := rng.Intn(list.Size())
		list.LoadAround(i)
		if err := waitFor(func() bool { _, ok := list.Get(i); return ok }, 10*time.Second); err != nil {
			return fmt.Errorf("position %d never loaded: %w", i, err)
		}
	}
	elapsed := time.Since(start)

	stats := list.Stats()
	fmt.Printf("%d random accesses in %s (%.1f/s)\n",
		benchJumps, elapsed.Round(time.Millisecond), float64(benchJumps)/elapsed.Seconds())
	fmt.Printf("loads dispatched: %d  tiles requested: %d  items trimmed: %d  resident: %d\n",
		stats.LoadsDispatched, stats.TilesRequested, stats.ItemsTrimmed, stats.LoadedCount)
	return nil
}
