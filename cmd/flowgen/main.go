// Command flowgen writes a synthetic worker-flow file for a configured
// demography, so runs can load a stable flow from disk instead of
// rebuilding it every start.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/talgya/outbreak-sim/internal/census"
	"github.com/talgya/outbreak-sim/internal/commute"
	"github.com/talgya/outbreak-sim/internal/config"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults used when empty)")
	out := flag.String("out", "workerflow.bin", "output flow file")
	seed := flag.Int64("seed", 0, "override the config seed")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "config:", err)
			os.Exit(1)
		}
	}
	if *seed != 0 {
		cfg.Seed = *seed
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	})))

	demo := census.Synthesize(cfg.Population, cfg.Seed)
	dom := demo.Domain()
	slog.Info("demography synthesized", "units", demo.NUnit, "communities", demo.NCommunity)

	recs := commute.SynthesizeFlow(demo, dom)

	if dir := filepath.Dir(*out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Error("failed to create output directory", "error", err)
			os.Exit(1)
		}
	}
	if err := commute.WriteFlowFile(*out, recs); err != nil {
		slog.Error("failed to write flow file", "error", err)
		os.Exit(1)
	}

	outbound := make(map[uint32]uint32, demo.NUnit)
	inbound := make(map[uint32]uint32, demo.NUnit)
	for _, r := range recs {
		outbound[r.From] += r.Count
		inbound[r.To] += r.Count
	}

	fmt.Printf("%-10s %12s %12s %12s\n", "UNIT", "POPULATION", "OUTBOUND", "INBOUND")
	for u := 0; u < demo.NUnit; u++ {
		id := demo.UnitID[u]
		fmt.Printf("%-10d %12s %12s %12s\n", id,
			humanize.Comma(int64(demo.Population[u])),
			humanize.Comma(int64(outbound[id])),
			humanize.Comma(int64(inbound[id])),
		)
	}

	fmt.Printf("\nWrote %s records (%s) to %s (seed %d).\n",
		humanize.Comma(int64(len(recs))),
		humanize.Bytes(uint64(len(recs)*commute.RecordSize)),
		*out, cfg.Seed)
}
