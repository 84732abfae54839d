// Epidemic interventions, applied between ticks. Each returns a
// human-readable description and records an event.
package sim

import (
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
)

// CloseSchools sends every student home. Their school ids flip negative,
// which switches transmission onto the school-closed rate tables.
func (s *Simulation) CloseSchools() (string, error) {
	if s.schoolsClosed {
		return "", fmt.Errorf("schools are already closed")
	}

	students := 0
	for i, id := range s.Pop.School {
		if id > 0 {
			s.Pop.School[i] = -id
			students++
		}
	}
	s.schoolsClosed = true

	desc := fmt.Sprintf("Schools closed: %s students sent home", humanize.Comma(int64(students)))
	s.EmitEvent(Event{
		Tick:        s.LastTick,
		Description: desc,
		Category:    "intervention",
		Meta:        map[string]any{"action": "close_schools", "students": students},
	})
	slog.Info("schools closed", "students", students)
	return desc, nil
}

// OpenSchools reverses CloseSchools.
func (s *Simulation) OpenSchools() (string, error) {
	if !s.schoolsClosed {
		return "", fmt.Errorf("schools are not closed")
	}

	students := 0
	for i, id := range s.Pop.School {
		if id < 0 {
			s.Pop.School[i] = -id
			students++
		}
	}
	s.schoolsClosed = false

	desc := fmt.Sprintf("Schools reopened: %s students return", humanize.Comma(int64(students)))
	s.EmitEvent(Event{
		Tick:        s.LastTick,
		Description: desc,
		Category:    "intervention",
		Meta:        map[string]any{"action": "open_schools", "students": students},
	})
	slog.Info("schools reopened", "students", students)
	return desc, nil
}

// SchoolsClosed reports whether a school closure is in effect.
func (s *Simulation) SchoolsClosed() bool {
	return s.schoolsClosed
}

// IsolateInfected withdraws the given fraction of currently infectious
// agents. Withdrawn agents neither transmit nor receive in any context.
func (s *Simulation) IsolateInfected(d int, fraction float64) (string, error) {
	if d < 0 || d >= len(s.Diseases) {
		return "", fmt.Errorf("disease index %d out of range", d)
	}
	if fraction < 0 || fraction > 1 {
		return "", fmt.Errorf("fraction %v out of [0,1]", fraction)
	}

	incubation := s.Diseases[d].IncubationDays
	isolated := 0
	for i := 0; i < s.Pop.N; i++ {
		if s.Pop.Withdrawn[i] || !s.Pop.Infectious(d, i, incubation) {
			continue
		}
		if s.stream.Float() < fraction {
			s.Pop.Withdrawn[i] = true
			isolated++
		}
	}

	desc := fmt.Sprintf("Isolation order: %s infectious agents withdrawn (%s cases)",
		humanize.Comma(int64(isolated)), s.Diseases[d].Name)
	s.EmitEvent(Event{
		Tick:        s.LastTick,
		Description: desc,
		Category:    "intervention",
		Meta:        map[string]any{"action": "isolate", "disease": d, "fraction": fraction, "isolated": isolated},
	})
	slog.Info("infectious agents isolated", "disease", s.Diseases[d].Name, "fraction", fraction, "isolated", isolated)
	return desc, nil
}

// ReleaseIsolated clears every withdrawal.
func (s *Simulation) ReleaseIsolated() (string, error) {
	released := 0
	for i, w := range s.Pop.Withdrawn {
		if w {
			s.Pop.Withdrawn[i] = false
			released++
		}
	}
	if released == 0 {
		return "", fmt.Errorf("no agents are isolated")
	}

	desc := fmt.Sprintf("Isolation lifted: %s agents released", humanize.Comma(int64(released)))
	s.EmitEvent(Event{
		Tick:        s.LastTick,
		Description: desc,
		Category:    "intervention",
		Meta:        map[string]any{"action": "release", "released": released},
	})
	slog.Info("isolated agents released", "released", released)
	return desc, nil
}
