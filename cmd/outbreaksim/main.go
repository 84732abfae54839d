// Command outbreaksim runs an agent-based epidemic simulation over a
// synthetic region and serves its state over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/talgya/outbreak-sim/internal/agents"
	"github.com/talgya/outbreak-sim/internal/api"
	"github.com/talgya/outbreak-sim/internal/census"
	"github.com/talgya/outbreak-sim/internal/commute"
	"github.com/talgya/outbreak-sim/internal/config"
	"github.com/talgya/outbreak-sim/internal/interaction"
	"github.com/talgya/outbreak-sim/internal/persistence"
	"github.com/talgya/outbreak-sim/internal/rng"
	"github.com/talgya/outbreak-sim/internal/sim"
)

// recoveryDays is how long past incubation an agent stays infected
// before turning immune. Disease progression is runtime glue, not a
// library concern, so the constant lives here.
const recoveryDays = 7

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults used when empty)")
	steps := flag.Int("steps", 0, "override run length in simulated hours")
	seed := flag.Int64("seed", 0, "override the config seed")
	dbPath := flag.String("db", "", "override the database path")
	addr := flag.String("addr", "", "override the API listen address")
	flowFile := flag.String("flow", "", "override the worker-flow file")
	flag.Parse()

	// ── Configuration ─────────────────────────────────────────────────
	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "config:", err)
			os.Exit(1)
		}
	}
	if *steps > 0 {
		cfg.Steps = *steps
	}
	if *seed != 0 {
		cfg.Seed = *seed
	}
	if *dbPath != "" {
		cfg.DB = *dbPath
	}
	if *addr != "" {
		cfg.API.Addr = *addr
	}
	if *flowFile != "" {
		cfg.Commute.FlowFile = *flowFile
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// ── Logging ───────────────────────────────────────────────────────
	opts := &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}
	var handler slog.Handler
	if isatty.IsTerminal(os.Stderr.Fd()) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))

	slog.Info("outbreak simulation starting",
		"seed", cfg.Seed,
		"steps", cfg.Steps,
		"diseases", len(cfg.Diseases),
	)

	// ── Database ──────────────────────────────────────────────────────
	if dir := filepath.Dir(cfg.DB); dir != "." {
		os.MkdirAll(dir, 0o755)
	}
	db, err := persistence.Open(cfg.DB)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DB)

	// ── Demography ────────────────────────────────────────────────────
	demo := census.Synthesize(cfg.Population, cfg.Seed)
	dom := demo.Domain()
	pop := census.BuildPopulation(demo, dom, len(cfg.Diseases), cfg.Seed)
	slog.Info("demography synthesized",
		"units", demo.NUnit,
		"communities", demo.NCommunity,
		"population", humanize.Comma(int64(pop.N)),
		"grid", fmt.Sprintf("%dx%d", dom.NX, dom.NY),
	)

	// ── Commute ───────────────────────────────────────────────────────
	var flow *commute.FlowTable
	if cfg.Commute.FlowFile != "" {
		flow, err = commute.ReadFlowFile(cfg.Commute.FlowFile, demo)
		if err != nil {
			slog.Error("failed to read worker flow", "error", err)
			os.Exit(1)
		}
		slog.Info("worker flow loaded", "file", cfg.Commute.FlowFile)
	} else {
		recs := commute.SynthesizeFlow(demo, dom)
		flow, _, err = commute.ParseFlow(commute.MarshalRecords(recs), demo)
		if err != nil {
			slog.Error("failed to build worker flow", "error", err)
			os.Exit(1)
		}
		slog.Info("worker flow synthesized", "records", len(recs))
	}
	flow.Cumulate()
	flow.Scale(demo)

	assignStats := commute.AssignWorkplaces(pop, demo, flow, dom, cfg.Commute.AssignConfig(), cfg.Seed)
	slog.Info("workplaces assigned",
		"eligible", humanize.Comma(int64(assignStats.Eligible)),
		"assigned", humanize.Comma(int64(assignStats.Assigned)),
		"overflow", humanize.Comma(int64(assignStats.Overflow)),
	)

	// ── Initial infections ────────────────────────────────────────────
	seedStream := rng.New(cfg.Seed + 1)
	for d := range cfg.Diseases {
		// Seeded cases start at the incubation threshold so they
		// transmit from the first tick.
		n := pop.SeedInfections(d, cfg.InitialInfections, float32(cfg.Diseases[d].IncubationDays), seedStream)
		slog.Info("initial infections seeded", "disease", cfg.Diseases[d].Name, "count", n)
	}

	// ── Simulation ────────────────────────────────────────────────────
	s := sim.NewSimulation(pop, demo, dom, flow, cfg.Diseases, sim.Options{
		Seed:     cfg.Seed,
		Movement: cfg.Movement,
	})

	// Status updates are runtime glue over the interaction pass: one
	// uniform draw per susceptible against its survival accumulator.
	draws := rng.New(cfg.Seed + 2)
	s.OnProbs = func(d int, probs *interaction.ProbBuffer) {
		for i := 0; i < pop.N; i++ {
			if !pop.Susceptible(d, i) {
				continue
			}
			if surv := probs.Get(i); surv < 1 && draws.Float() < 1-surv {
				pop.Status[d][i] = agents.StatusInfected
				pop.Counter[d][i] = 0
			}
		}
	}

	cfgYAML, err := yaml.Marshal(cfg)
	if err != nil {
		slog.Error("failed to encode config", "error", err)
		os.Exit(1)
	}
	runID, err := db.CreateRun(cfg.Seed, pop.N, string(cfgYAML))
	if err != nil {
		slog.Error("failed to register run", "error", err)
		os.Exit(1)
	}
	slog.Info("run registered", "run_id", runID)

	// ── Engine ────────────────────────────────────────────────────────
	savedEvents := 0
	flushEvents := func() {
		total := s.EventsEmitted()
		if total <= savedEvents {
			return
		}
		evs := s.RecentEvents(total - savedEvents)
		rows := make([]persistence.EventRow, 0, len(evs))
		for _, e := range evs {
			rows = append(rows, persistence.EventRow{
				RunID: runID, Tick: int64(e.Tick),
				Description: e.Description, Category: e.Category,
			})
		}
		if err := db.SaveEvents(rows); err != nil {
			slog.Error("event save failed", "error", err)
			return
		}
		savedEvents = total
	}

	eng := sim.NewEngine()
	eng.MaxTicks = uint64(cfg.Steps)
	eng.OnTick = s.Step
	eng.OnDay = func(tick uint64) {
		for d := range cfg.Diseases {
			pop.AdvanceCounters(d)
			threshold := float32(cfg.Diseases[d].IncubationDays + recoveryDays)
			for i := 0; i < pop.N; i++ {
				if pop.Status[d][i] == agents.StatusInfected && pop.Counter[d][i] >= threshold {
					pop.Status[d][i] = agents.StatusImmune
				}
			}
		}

		s.TickDay(tick)

		day := int(tick / sim.TicksPerDay)
		rows := make([]persistence.DayStats, 0, len(cfg.Diseases))
		for d := range cfg.Diseases {
			c := s.Totals(d)
			rows = append(rows, persistence.DayStats{
				RunID: runID, Day: day, Disease: d,
				Never: c.Never, Susceptible: c.Susceptible, Infected: c.Infected,
				Immune: c.Immune, Dead: c.Dead, Withdrawn: c.Withdrawn,
				MeanSurvival: s.MeanSurvival(d),
			})
		}
		if err := db.SaveDayStats(rows); err != nil {
			slog.Error("daily save failed", "error", err)
		}
		flushEvents()
	}
	eng.OnWeek = s.TickWeek

	// ── HTTP API ──────────────────────────────────────────────────────
	adminToken := cfg.API.AdminToken
	if adminToken == "" {
		adminToken = os.Getenv("OUTBREAKSIM_ADMIN_TOKEN")
	}
	if adminToken == "" {
		slog.Warn("OUTBREAKSIM_ADMIN_TOKEN not set — admin POST endpoints will be disabled")
	}

	apiServer := &api.Server{
		Sim:        s,
		Eng:        eng,
		DB:         db,
		RunID:      runID,
		Addr:       cfg.API.Addr,
		AdminToken: adminToken,
	}
	apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		eng.Stop()
	}()

	fmt.Printf("\nOutbreak region ready: %s agents across %d units on a %dx%d grid.\n",
		humanize.Comma(int64(pop.N)), demo.NUnit, dom.NX, dom.NY)
	fmt.Printf("API: http://localhost%s/api/v1/status\n", cfg.API.Addr)
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run(context.Background())

	// ── Shutdown ──────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("API shutdown failed", "error", err)
	}

	flushEvents()
	if err := db.SetMeta("last_tick", strconv.FormatUint(eng.Tick(), 10)); err != nil {
		slog.Error("final save failed", "error", err)
	}

	for d := range cfg.Diseases {
		c := s.Totals(d)
		ever := c.Infected + c.Immune + c.Dead
		slog.Info("final tally",
			"disease", cfg.Diseases[d].Name,
			"ever_infected", humanize.Comma(int64(ever)),
			"attack_rate", fmt.Sprintf("%.1f%%", 100*float64(ever)/float64(pop.N)),
			"still_infected", c.Infected,
		)
	}

	fmt.Printf("Simulation finished at %s. Run %s saved to %s.\n",
		sim.SimTime(eng.Tick()), runID, cfg.DB)
}
