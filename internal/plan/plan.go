// Package plan defines the execution plan DAG produced by the planner.
package plan

import (
	"fmt"
	"sort"
)

// Capability names a delegation target a step can be bound to.
type Capability string

const (
	CapabilityResearch     Capability = "research"
	CapabilityArchitecture Capability = "architecture"
	CapabilityCode         Capability = "code"
)

func (c Capability) Valid() bool {
	switch c {
	case CapabilityResearch, CapabilityArchitecture, CapabilityCode:
		return true
	}
	return false
}

// Capabilities lists every known capability in a stable order.
func Capabilities() []Capability {
	return []Capability{CapabilityResearch, CapabilityArchitecture, CapabilityCode}
}

// Step is one unit of delegated work. DependsOn holds ids of steps whose
// output this step's instruction needs.
type Step struct {
	ID          int        `json:"id"`
	Capability  Capability `json:"capability"`
	Instruction string     `json:"instruction"`
	DependsOn   []int      `json:"depends_on"`
}

// Plan is an ordered set of steps with a dependency relation. A plan belongs
// to a single iteration; a replan produces a new plan rather than mutating
// this one.
type Plan struct {
	Summary   string `json:"summary"`
	Steps     []Step `json:"steps"`
	Rationale string `json:"rationale"`
}

// Validate checks structural soundness: at least one step, unique positive
// ids, known capabilities, non-empty instructions, dependency edges that
// reference existing steps, and an acyclic dependency relation.
func (p *Plan) Validate() error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("plan has no steps")
	}
	byID := make(map[int]Step, len(p.Steps))
	for _, s := range p.Steps {
		if s.ID <= 0 {
			return fmt.Errorf("step id %d is not positive", s.ID)
		}
		if _, dup := byID[s.ID]; dup {
			return fmt.Errorf("duplicate step id %d", s.ID)
		}
		if !s.Capability.Valid() {
			return fmt.Errorf("step %d: unknown capability %q", s.ID, s.Capability)
		}
		if s.Instruction == "" {
			return fmt.Errorf("step %d: empty instruction", s.ID)
		}
		byID[s.ID] = s
	}
	for _, s := range p.Steps {
		for _, dep := range s.DependsOn {
			if dep == s.ID {
				return fmt.Errorf("step %d depends on itself", s.ID)
			}
			if _, ok := byID[dep]; !ok {
				return fmt.Errorf("step %d depends on unknown step %d", s.ID, dep)
			}
		}
	}
	if _, err := p.Waves(); err != nil {
		return err
	}
	return nil
}

// Waves partitions the steps into dependency waves: wave 0 is every step with
// no dependencies, wave N is every step whose dependencies all appear in
// earlier waves. Within a wave, plan insertion order is preserved. Returns an
// error if the dependency relation contains a cycle.
func (p *Plan) Waves() ([][]Step, error) {
	placed := make(map[int]bool, len(p.Steps))
	remaining := make([]Step, len(p.Steps))
	copy(remaining, p.Steps)

	var waves [][]Step
	for len(remaining) > 0 {
		var wave, next []Step
		for _, s := range remaining {
			ready := true
			for _, dep := range s.DependsOn {
				if !placed[dep] {
					ready = false
					break
				}
			}
			if ready {
				wave = append(wave, s)
			} else {
				next = append(next, s)
			}
		}
		if len(wave) == 0 {
			ids := make([]int, 0, len(next))
			for _, s := range next {
				ids = append(ids, s.ID)
			}
			sort.Ints(ids)
			return nil, fmt.Errorf("dependency cycle among steps %v", ids)
		}
		for _, s := range wave {
			placed[s.ID] = true
		}
		waves = append(waves, wave)
		remaining = next
	}
	return waves, nil
}

// Step returns the step with the given id, if present.
func (p *Plan) Step(id int) (Step, bool) {
	for _, s := range p.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return Step{}, false
}

// Equal reports whether two plans have identical structure and content. Used
// to detect a replan that failed to change anything.
func Equal(a, b *Plan) bool {
	if a == nil || b == nil {
		return a == b
	}
	if len(a.Steps) != len(b.Steps) {
		return false
	}
	for i := range a.Steps {
		sa, sb := a.Steps[i], b.Steps[i]
		if sa.ID != sb.ID || sa.Capability != sb.Capability || sa.Instruction != sb.Instruction {
			return false
		}
		if len(sa.DependsOn) != len(sb.DependsOn) {
			return false
		}
		da := append([]int(nil), sa.DependsOn...)
		db := append([]int(nil), sb.DependsOn...)
		sort.Ints(da)
		sort.Ints(db)
		for j := range da {
			if da[j] != db[j] {
				return false
			}
		}
	}
	return true
}

// Fallback returns the single-step research plan used when decomposition
// fails. A query never proceeds with an empty plan.
func Fallback(query string) *Plan {
	return &Plan{
		Summary: "Research the query directly",
		Steps: []Step{{
			ID:          1,
			Capability:  CapabilityResearch,
			Instruction: query,
		}},
		Rationale: "Decomposition unavailable; single research step is the safe default",
	}
}
