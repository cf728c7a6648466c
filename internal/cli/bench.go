package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	colada "github.com/87xie/pinia-colada"
)

// newBenchCmd creates the "bench" command: hammer a store with concurrent
// refreshes against simulated slow queries and report how many fetches were
// deduplicated or answered from fresh data.
func newBenchCmd() *cobra.Command {
	var (
		entries   int
		workers   int
		requests  int
		latency   time.Duration
		staleFlag string
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Exercise refresh deduplication under concurrency",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if entries <= 0 || workers <= 0 || requests <= 0 {
				return fmt.Errorf("entries, workers and requests must be positive")
			}
			staleTime := colada.StaleTimeFromEnv()
			if cfg != nil {
				var err error
				if staleTime, err = cfg.EffectiveStaleTime(); err != nil {
					return err
				}
			}
			if staleFlag != "" {
				var err error
				if staleTime, err = colada.ParseStaleTime(staleFlag); err != nil {
					return err
				}
			}

			store := colada.NewStore(colada.WithLogger(logger))
			for i := 0; i < entries; i++ {
				i := i
				_, err := store.EnsureEntry(colada.QueryConfig{
					Key:       colada.Key{"bench", i},
					StaleTime: staleTime,
					Query: func(context.Context) (any, error) {
						time.Sleep(latency)
						return fmt.Sprintf("payload-%d", i), nil
					},
				})
				if err != nil {
					return err
				}
			}

			logger.Info().
				Int("entries", entries).
				Int("workers", workers).
				Int("requests", requests).
				Dur("latency", latency).
				Dur("stale_time", staleTime).
				Msg("bench starting")

			start := time.Now()
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(workers)
			for i := 0; i < requests; i++ {
				key := colada.Key{"bench", i % entries}
				g.Go(func() error {
					e, ok := store.Lookup(key)
					if !ok {
						return fmt.Errorf("bench entry %s disappeared", key)
					}
					owner := uuid.New()
					e.AddDependent(owner)
					defer e.RemoveDependent(owner)
					_, err := e.Refresh(ctx)
					return err
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			took := time.Since(start)
			swept := store.Sweep()

			stats := store.Stats()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintf(w, "requests\t%d\n", requests)
			fmt.Fprintf(w, "fetches\t%d\n", stats.Fetches)
			fmt.Fprintf(w, "deduplicated\t%d\n", stats.Dedups)
			fmt.Fprintf(w, "fresh hits\t%d\n", stats.FreshHits)
			fmt.Fprintf(w, "failures\t%d\n", stats.Failures)
			fmt.Fprintf(w, "swept\t%d\n", swept)
			fmt.Fprintf(w, "took\t%s\n", took.Truncate(time.Millisecond))
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&entries, "entries", 8, "number of distinct cache keys")
	cmd.Flags().IntVar(&workers, "workers", 16, "concurrent refresh workers")
	cmd.Flags().IntVar(&requests, "requests", 200, "total refresh requests")
	cmd.Flags().DurationVar(&latency, "latency", 20*time.Millisecond, "simulated fetch latency")
	cmd.Flags().StringVar(&staleFlag, "stale-time", "", "staleness threshold (e.g. 30, 5m)")
	return cmd
}
