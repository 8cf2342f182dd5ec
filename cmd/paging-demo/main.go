// Command paging-demo exercises the paging engine against a synthetic data
// source, simulating a reader scrolling through a large list.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagTotal    int
	flagPageSize int
	flagPrefetch int
	flagMaxSize  int
	flagLatency  int
	flagVerbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "paging-demo",
	Short: "Exercise the paging engine against a synthetic data source",
	Long: `paging-demo drives a paged list over an in-memory data set with
simulated load latency, printing what gets loaded, trimmed, and dropped as a
reader moves through it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().IntVar(&flagTotal, "total", 10000, "total items in the synthetic data set")
	rootCmd.PersistentFlags().IntVar(&flagPageSize, "page-size", 20, "items per load")
	rootCmd.PersistentFlags().IntVar(&flagPrefetch, "prefetch", 20, "prefetch distance around the reader position")
	rootCmd.PersistentFlags().IntVar(&flagMaxSize, "max-size", 0, "bound on loaded items (0 = unbounded)")
	rootCmd.PersistentFlags().IntVar(&flagLatency, "latency-ms", 2, "simulated load latency per request")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log every load")

	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(benchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
