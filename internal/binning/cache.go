package binning

import (
	"github.com/talgya/outbreak-sim/internal/agents"
	"github.com/talgya/outbreak-sim/internal/geo"
)

// Context identifies which interaction pass a bin build belongs to.
// Contexts are cached independently: passes run back to back within a
// tick, and a context must never see bins built around another pass's
// view of positions.
type Context uint8

const (
	ContextNborhood Context = iota
	ContextWork
	numContexts
)

// Cache keeps one Bins per context, keyed by the population's position
// generation. A Get after any movement rebuilds; repeated Gets within a
// still population are free.
type Cache struct {
	bins [numContexts]*Bins
	gen  [numContexts]uint64
}

// Get returns current bins for ctx, rebuilding from the population's cell
// positions when they changed since the last build. Every context bins by
// the agent's current cell at one-cell granularity.
func (c *Cache) Get(ctx Context, pop *agents.Population, dom geo.Domain) *Bins {
	if c.bins[ctx] != nil && c.gen[ctx] == pop.Gen() {
		return c.bins[ctx]
	}
	c.bins[ctx] = Build(pop.N, dom.NumCells(), func(i int) int {
		return dom.Index(pop.Cell(i))
	})
	c.gen[ctx] = pop.Gen()
	return c.bins[ctx]
}

// Invalidate drops every cached build.
func (c *Cache) Invalidate() {
	for i := range c.bins {
		c.bins[i] = nil
	}
}
