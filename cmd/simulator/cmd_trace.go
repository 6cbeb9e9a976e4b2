package main

import (
	"bufio"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/contention-simulator/core"
	"github.com/signalsfoundry/contention-simulator/internal/sweep"
	"github.com/signalsfoundry/contention-simulator/model"
)

func newTraceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Print a slot-by-slot trace of one population",
		Long: `Run a single population and print every slot in which something
happened on the medium: collisions, deferred requests, transmissions
starting and ending. A per-station summary follows the trace.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.EngineConfig().Validate(); err != nil {
				return err
			}

			stations, _ := cmd.Flags().GetInt("stations")
			slots, _ := cmd.Flags().GetInt64("slots")
			verbose, _ := cmd.Flags().GetBool("verbose")
			seed := cfg.Sweep.Seed
			if cmd.Flags().Changed("seed") {
				seed, _ = cmd.Flags().GetUint64("seed")
			}
			return traceRun(cmd.OutOrStdout(), traceOptions{
				Engine:   cfg.EngineConfig(),
				Stations: stations,
				Slots:    slots,
				Seed:     seed,
				Verbose:  verbose,
			})
		},
	}

	cmd.Flags().Int("stations", 3, "Number of contending stations")
	cmd.Flags().Int64("slots", 500, "Slots to simulate")
	cmd.Flags().Uint64("seed", 0, "Random seed (defaults to sweep.seed)")
	cmd.Flags().BoolP("verbose", "v", false, "Also print every station after each slot")
	return cmd
}

type traceOptions struct {
	Engine   core.Config
	Stations int
	Slots    int64
	Seed     uint64
	Verbose  bool
}

func traceRun(out io.Writer, opts traceOptions) error {
	if opts.Slots < 1 {
		return fmt.Errorf("slots must be positive, got %d", opts.Slots)
	}
	w := bufio.NewWriter(out)

	var (
		eng      *core.Engine
		counters sweep.Counters
	)
	observe := func(o core.SlotOutcome) {
		counters.Observe(o)
		switch {
		case o.Collision:
			fmt.Fprintf(w, "slot %d: collision between %d stations\n", o.Slot, o.Requesting)
		case o.Blocked > 0:
			fmt.Fprintf(w, "slot %d: %d stations deferred, medium busy\n", o.Slot, o.Blocked)
		}
		if o.Started() {
			fmt.Fprintf(w, "slot %d: station %d won the medium for %d slots\n", o.Slot, o.Winner, o.Duration)
		}
		if o.Released != model.NoStation {
			fmt.Fprintf(w, "slot %d: station %d finished transmitting\n", o.Slot, o.Released)
		}
		if opts.Verbose {
			for i := 0; i < eng.StationCount(); i++ {
				st := eng.Station(i)
				fmt.Fprintf(w, "  %s\n", st.String())
			}
		}
	}

	eng, err := core.NewEngine(opts.Engine, opts.Stations, core.NewSource(opts.Seed), core.WithObserver(observe))
	if err != nil {
		return err
	}
	eng.Run(opts.Slots)

	sends := eng.StationSends()
	fmt.Fprintf(w, "\n--- for %d stations ---\n", opts.Stations)
	fmt.Fprintf(w, "there were %d collisions, %d successful transmissions, %f%% was the total time spent sending\n",
		counters.Collisions, counters.Successes, sweep.Throughput(counters.Occupied, counters.Slots)*100)
	for i, sent := range sends {
		var share float64
		if counters.Successes > 0 {
			share = float64(sent) / float64(counters.Successes) * 100
		}
		fmt.Fprintf(w, "station #%d sent %d packets, which is %f%% of total\n", i, sent, share)
	}
	fmt.Fprintf(w, "fairness variance %f\n", sweep.FairnessVariance(sends, counters.Successes))
	return w.Flush()
}
