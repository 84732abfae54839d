// Simulation ties the population, demography, and interaction models
// together and advances them one simulated hour at a time.
package sim

import (
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/talgya/outbreak-sim/internal/agents"
	"github.com/talgya/outbreak-sim/internal/binning"
	"github.com/talgya/outbreak-sim/internal/census"
	"github.com/talgya/outbreak-sim/internal/commute"
	"github.com/talgya/outbreak-sim/internal/config"
	"github.com/talgya/outbreak-sim/internal/disease"
	"github.com/talgya/outbreak-sim/internal/geo"
	"github.com/talgya/outbreak-sim/internal/interaction"
	"github.com/talgya/outbreak-sim/internal/rng"
)

// travelHour is the hour of day long-range travel is rolled.
const travelHour = 0

// maxEvents bounds the in-memory event log.
const maxEvents = 1000

// Options tunes a simulation independent of its data inputs.
type Options struct {
	Seed     int64
	Workers  int // interaction fan-out; 0 means GOMAXPROCS
	Movement config.MovementConfig
}

// Event is a notable occurrence during the run.
type Event struct {
	Tick        uint64         `json:"tick"`
	Description string         `json:"description"`
	Category    string         `json:"category"` // "intervention", "epidemic"
	Meta        map[string]any `json:"meta,omitempty"`
}

// DiseaseStats is the running summary of one disease.
type DiseaseStats struct {
	Name          string  `json:"name"`
	Infected      int     `json:"infected"`
	PeakInfected  int     `json:"peak_infected"`
	PeakDay       int     `json:"peak_day"`
	EverInfected  int     `json:"ever_infected"`
	AttackRate    float64 `json:"attack_rate"`
	MeanSurvival  float64 `json:"mean_survival"`
	ReachedSpread bool    `json:"reached_spread"`
}

// Simulation holds the complete run state and wires the passes together.
type Simulation struct {
	Pop      *agents.Population
	Demo     *census.Data
	Dom      geo.Domain
	Flow     *commute.FlowTable
	Diseases []disease.Params

	Opts Options

	// OnProbs runs after each tick's interaction pass so the surrounding
	// runtime can turn survival accumulators into status changes.
	OnProbs func(d int, probs *interaction.ProbBuffer)

	Stats    []DiseaseStats
	Events   []Event
	LastTick uint64

	probs    []*interaction.ProbBuffer
	cache    binning.Cache
	nborhood interaction.Model
	work     interaction.Model
	stream   *rng.Stream

	emitted       int
	schoolsClosed bool
}

// NewSimulation assembles a simulation over prepared inputs. The flow
// table may be nil when no workplaces were assigned.
func NewSimulation(pop *agents.Population, demo *census.Data, dom geo.Domain, flow *commute.FlowTable, diseases []disease.Params, opts Options) *Simulation {
	s := &Simulation{
		Pop:      pop,
		Demo:     demo,
		Dom:      dom,
		Flow:     flow,
		Diseases: diseases,
		Opts:     opts,
		Stats:    make([]DiseaseStats, len(diseases)),
		nborhood: &interaction.Nborhood{Workers: opts.Workers},
		work:     &interaction.Work{Workers: opts.Workers},
		stream:   rng.New(opts.Seed),
	}
	for d := range diseases {
		s.probs = append(s.probs, interaction.NewProbBuffer(pop.N))
		s.Stats[d].Name = diseases[d].Name
		s.Stats[d].MeanSurvival = 1.0
	}
	return s
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	return s.LastTick
}

// Step advances one simulated hour: movement, then the interaction pass,
// then the status-update hook.
func (s *Simulation) Step(tick uint64) {
	s.LastTick = tick
	hour := int(tick % TicksPerDay)
	m := s.Opts.Movement

	working := false
	if m.WorkStartHour != m.WorkEndHour {
		switch hour {
		case m.WorkStartHour:
			s.Pop.CommuteToWork()
		case m.WorkEndHour:
			s.Pop.ReturnHome()
		}
		working = hour >= m.WorkStartHour && hour < m.WorkEndHour
	}
	if hour == travelHour {
		s.Pop.RandomTravel(s.Dom, s.stream, m.TravelChance)
	}
	// During the work day agents stay put so workgroups share a cell.
	if !working {
		s.Pop.RandomWalk(s.Dom, s.stream, m.WalkChance)
	}

	s.InteractAgents()

	if s.OnProbs != nil {
		for d := range s.Diseases {
			s.OnProbs(d, s.probs[d])
		}
	}
}

// InteractAgents runs every interaction model for every disease over the
// current positions. Each disease's buffer is reset first; the pass for a
// disease completes before the next disease starts.
func (s *Simulation) InteractAgents() {
	for d := range s.Diseases {
		p := &s.Diseases[d]
		s.probs[d].Reset()

		bins := s.cache.Get(binning.ContextNborhood, s.Pop, s.Dom)
		s.nborhood.Interact(s.Pop, s.Dom, bins, d, p, s.probs[d])

		bins = s.cache.Get(binning.ContextWork, s.Pop, s.Dom)
		s.work.Interact(s.Pop, s.Dom, bins, d, p, s.probs[d])
	}
}

// Probs exposes a disease's survival accumulator from the last pass.
func (s *Simulation) Probs(d int) *interaction.ProbBuffer {
	return s.probs[d]
}

// Totals counts the population by status for one disease.
func (s *Simulation) Totals(d int) agents.Counts {
	return s.Pop.Totals(d)
}

// MeanSurvival averages a disease's accumulator over the population.
func (s *Simulation) MeanSurvival(d int) float64 {
	return s.probs[d].Mean()
}

// EmitEvent appends to the bounded event log.
func (s *Simulation) EmitEvent(e Event) {
	s.emitted++
	s.Events = append(s.Events, e)
	if len(s.Events) > maxEvents {
		s.Events = append(s.Events[:0], s.Events[len(s.Events)-maxEvents:]...)
	}
}

// EventsEmitted counts every event of the run, including any the bounded
// log has since dropped. Persistence cursors key off this.
func (s *Simulation) EventsEmitted() int {
	return s.emitted
}

// RecentEvents returns up to limit most recent events, oldest first.
func (s *Simulation) RecentEvents(limit int) []Event {
	if limit <= 0 || limit > len(s.Events) {
		limit = len(s.Events)
	}
	out := make([]Event, limit)
	copy(out, s.Events[len(s.Events)-limit:])
	return out
}

// TickDay refreshes per-disease statistics, emits epidemic milestones,
// and logs the daily report.
func (s *Simulation) TickDay(tick uint64) {
	day := int(tick / TicksPerDay)

	for d := range s.Diseases {
		counts := s.Totals(d)
		st := &s.Stats[d]

		prevInfected := st.Infected
		st.Infected = counts.Infected
		st.EverInfected = counts.Infected + counts.Immune + counts.Dead
		if s.Pop.N > 0 {
			st.AttackRate = float64(st.EverInfected) / float64(s.Pop.N)
		}
		st.MeanSurvival = s.MeanSurvival(d)

		if counts.Infected > st.PeakInfected {
			st.PeakInfected = counts.Infected
			st.PeakDay = day
		}

		if !st.ReachedSpread && counts.Infected*100 >= s.Pop.N {
			st.ReachedSpread = true
			s.EmitEvent(Event{
				Tick:        tick,
				Description: fmt.Sprintf("%s has infected 1%% of the population on day %d", st.Name, day),
				Category:    "epidemic",
				Meta:        map[string]any{"disease": d, "day": day, "infected": counts.Infected},
			})
		}
		if prevInfected > 0 && counts.Infected == 0 {
			s.EmitEvent(Event{
				Tick:        tick,
				Description: fmt.Sprintf("%s outbreak ended on day %d", st.Name, day),
				Category:    "epidemic",
				Meta:        map[string]any{"disease": d, "day": day, "ever_infected": st.EverInfected},
			})
		}

		slog.Info("daily report",
			"day", day,
			"disease", st.Name,
			"never", counts.Never,
			"susceptible", counts.Susceptible,
			"infected", counts.Infected,
			"immune", counts.Immune,
			"dead", counts.Dead,
			"withdrawn", counts.Withdrawn,
			"mean_survival", fmt.Sprintf("%.6f", st.MeanSurvival),
		)
	}
}

// TickWeek logs a weekly summary.
func (s *Simulation) TickWeek(tick uint64) {
	slog.Info("weekly summary",
		"tick", tick,
		"time", SimTime(tick),
		"population", humanize.Comma(int64(s.Pop.N)),
		"events", len(s.Events),
	)
}
