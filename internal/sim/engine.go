// Package sim drives the epidemic simulation: a tick engine, the per-tick
// movement and interaction passes, daily accounting, and interventions.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// One tick is one simulated hour.
const (
	TicksPerDay  = 24
	TicksPerWeek = 168
)

// Engine advances the simulation tick by tick. Tick and speed are safe to
// read from other goroutines while Run is looping; callbacks run on the
// Run goroutine.
type Engine struct {
	// Interval paces the loop in wall time per tick; zero runs flat out.
	Interval time.Duration
	// MaxTicks stops the loop after that many ticks; zero means unlimited.
	MaxTicks uint64

	OnTick func(tick uint64)
	OnDay  func(tick uint64)
	OnWeek func(tick uint64)

	tick     atomic.Uint64
	speed    atomic.Uint64 // float64 bits
	running  atomic.Bool
	done     chan struct{}
	stopOnce sync.Once
}

// NewEngine creates an engine at speed 1 with no pacing.
func NewEngine() *Engine {
	e := &Engine{done: make(chan struct{})}
	e.SetSpeed(1)
	return e
}

// Tick returns the last completed tick.
func (e *Engine) Tick() uint64 {
	return e.tick.Load()
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	return math.Float64frombits(e.speed.Load())
}

// SetSpeed changes the speed multiplier; zero or below pauses the loop.
func (e *Engine) SetSpeed(s float64) {
	e.speed.Store(math.Float64bits(s))
}

// Paused reports whether the loop is idling.
func (e *Engine) Paused() bool {
	return e.Speed() <= 0
}

// Running reports whether Run is looping.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Stop halts the loop after the current tick. Safe to call more than once
// and from any goroutine.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.done) })
}

// Run drives ticks until the context is canceled, Stop is called, or
// MaxTicks is reached. Blocks for the duration.
func (e *Engine) Run(ctx context.Context) {
	e.running.Store(true)
	defer e.running.Store(false)
	slog.Info("simulation engine started", "tick", e.Tick(), "speed", e.Speed())

	for {
		select {
		case <-ctx.Done():
			slog.Info("simulation engine stopped", "tick", e.Tick(), "reason", "context canceled")
			return
		case <-e.done:
			slog.Info("simulation engine stopped", "tick", e.Tick(), "reason", "stop requested")
			return
		default:
		}

		if e.MaxTicks > 0 && e.Tick() >= e.MaxTicks {
			slog.Info("simulation engine finished", "tick", e.Tick())
			return
		}

		speed := e.Speed()
		if speed <= 0 {
			// Paused: idle briefly, then recheck.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()
		e.step()

		if e.Interval > 0 {
			elapsed := time.Since(start)
			target := time.Duration(float64(e.Interval) / speed)
			if elapsed < target {
				time.Sleep(target - elapsed)
			}
		}
	}
}

// step advances the simulation by one tick.
func (e *Engine) step() {
	t := e.tick.Add(1)

	if e.OnTick != nil {
		e.OnTick(t)
	}
	if t%TicksPerDay == 0 && e.OnDay != nil {
		e.OnDay(t)
	}
	if t%TicksPerWeek == 0 && e.OnWeek != nil {
		e.OnWeek(t)
	}
}

// SimTime renders a tick as a human-readable simulation time.
func SimTime(tick uint64) string {
	return fmt.Sprintf("day %d, hour %02d", tick/TicksPerDay+1, tick%TicksPerDay)
}
