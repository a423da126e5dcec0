// Package executor runs plan steps in dependency order, dispatching each wave
// of ready steps concurrently.
package executor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"answerd/internal/metrics"
	"answerd/internal/plan"
	"answerd/internal/provider"
)

// Status reports how a single step ended.
type Status string

const (
	StatusOK       Status = "ok"
	StatusFailed   Status = "failed"
	StatusTimedOut Status = "timed_out"
)

// StepResult is the outcome of one plan step.
type StepResult struct {
	StepID     int
	Capability plan.Capability
	Status     Status
	Payload    string
	Err        provider.ErrorKind
	Duration   time.Duration
}

// OK reports whether the step produced a usable payload.
func (r StepResult) OK() bool { return r.Status == StatusOK }

// Executor dispatches plan steps to capability providers. A per-capability
// circuit breaker fails steps fast after repeated consecutive provider
// failures, until one call succeeds again.
type Executor struct {
	registry    provider.Registry
	stepTimeout time.Duration
	log         *zap.Logger
	met         *metrics.Metrics

	mu       sync.Mutex
	failures map[plan.Capability]int
	lastFail map[plan.Capability]time.Time
	breakAt  int
	cooldown time.Duration
}

// Option configures an Executor.
type Option func(*Executor)

// WithStepTimeout caps each step's provider call. Zero disables the cap; the
// query deadline still applies.
func WithStepTimeout(d time.Duration) Option {
	return func(e *Executor) { e.stepTimeout = d }
}

// WithBreakerThreshold sets the consecutive failure count that opens a
// capability's circuit. Zero disables the breaker.
func WithBreakerThreshold(n int) Option {
	return func(e *Executor) { e.breakAt = n }
}

// WithBreakerCooldown sets how long an open circuit blocks calls before
// allowing a probe.
func WithBreakerCooldown(d time.Duration) Option {
	return func(e *Executor) { e.cooldown = d }
}

// WithMetrics enables step instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.met = m }
}

// New creates an Executor over the given providers.
func New(registry provider.Registry, log *zap.Logger, opts ...Option) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Executor{
		registry:    registry,
		stepTimeout: 60 * time.Second,
		log:         log,
		failures:    make(map[plan.Capability]int),
		lastFail:    make(map[plan.Capability]time.Time),
		breakAt:     3,
		cooldown:    30 * time.Second,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Execute runs every step of the plan and returns one result per step, sorted
// by step id. Steps whose dependencies are satisfied run concurrently; a wave
// settles completely before the next is dispatched. A failed step does not
// stop its dependents: they run with the failure marked in their instruction.
//
// The returned error is non-nil only when ctx expires before all waves ran;
// steps never dispatched are reported as failed with the deadline kind.
func (e *Executor) Execute(ctx context.Context, p *plan.Plan, sessionID string) ([]StepResult, error) {
	waves, err := p.Waves()
	if err != nil {
		return nil, fmt.Errorf("order steps: %w", err)
	}

	done := make(map[int]StepResult, len(p.Steps))
	var deadlineErr error

	for wi, wave := range waves {
		if ctx.Err() != nil {
			deadlineErr = provider.NewError(provider.KindDeadline, "query deadline expired during execution", ctx.Err())
			for _, s := range wave {
				done[s.ID] = StepResult{StepID: s.ID, Capability: s.Capability, Status: StatusFailed, Err: provider.KindDeadline}
			}
			continue
		}

		e.log.Debug("dispatching wave",
			zap.Int("wave", wi),
			zap.Int("steps", len(wave)),
			zap.String("session_id", sessionID))

		results := make([]StepResult, len(wave))
		var wg sync.WaitGroup
		for i, s := range wave {
			wg.Add(1)
			go func(i int, s plan.Step) {
				defer wg.Done()
				results[i] = e.runStep(ctx, s, done, sessionID)
			}(i, s)
		}
		wg.Wait()

		for _, r := range results {
			done[r.StepID] = r
		}
	}

	out := make([]StepResult, 0, len(done))
	for _, r := range done {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepID < out[j].StepID })
	return out, deadlineErr
}

func (e *Executor) runStep(ctx context.Context, s plan.Step, done map[int]StepResult, sessionID string) StepResult {
	res := StepResult{StepID: s.ID, Capability: s.Capability}

	prov, ok := e.registry.Lookup(s.Capability)
	if !ok {
		res.Status = StatusFailed
		res.Err = provider.KindUnavailable
		res.Payload = fmt.Sprintf("no provider for capability %q", s.Capability)
		return res
	}

	if e.open(s.Capability) {
		res.Status = StatusFailed
		res.Err = provider.KindUnavailable
		res.Payload = fmt.Sprintf("%s provider circuit open", s.Capability)
		e.countFailure(s.Capability, provider.KindUnavailable)
		return res
	}

	stepCtx := ctx
	if e.stepTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, e.stepTimeout)
		defer cancel()
	}

	start := time.Now()
	out, err := prov.Invoke(stepCtx, e.instruction(s, done), sessionID)
	res.Duration = time.Since(start)
	if e.met != nil {
		e.met.StepDuration.WithLabelValues(string(s.Capability)).Observe(res.Duration.Seconds())
	}

	if err != nil {
		res.Err = provider.KindOf(err)
		if res.Err == provider.KindTimeout {
			res.Status = StatusTimedOut
		} else {
			res.Status = StatusFailed
		}
		e.recordFailure(s.Capability)
		e.countFailure(s.Capability, res.Err)
		e.log.Warn("step failed",
			zap.Int("step", s.ID),
			zap.String("capability", string(s.Capability)),
			zap.String("kind", string(res.Err)),
			zap.Error(err))
		return res
	}

	e.recordSuccess(s.Capability)
	res.Status = StatusOK
	res.Payload = out.Text
	return res
}

// instruction augments a step's instruction with its dependencies' outcomes.
// Succeeded dependencies contribute their payloads; failed ones are marked
// unavailable so the provider can answer from what remains.
func (e *Executor) instruction(s plan.Step, done map[int]StepResult) string {
	if len(s.DependsOn) == 0 {
		return s.Instruction
	}
	deps := append([]int(nil), s.DependsOn...)
	sort.Ints(deps)

	text := s.Instruction
	for _, id := range deps {
		r, ok := done[id]
		if !ok || !r.OK() {
			text += fmt.Sprintf("\n\n[upstream step %d unavailable]", id)
			continue
		}
		text += fmt.Sprintf("\n\nResult of step %d:\n%s", id, r.Payload)
	}
	return text
}

// open reports whether the capability's circuit is open. The circuit opens
// after breakAt consecutive failures and stays open for the cooldown window,
// after which the next call is allowed through as a probe.
func (e *Executor) open(c plan.Capability) bool {
	if e.breakAt <= 0 {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failures[c] < e.breakAt {
		return false
	}
	if time.Since(e.lastFail[c]) >= e.cooldown {
		e.failures[c] = e.breakAt - 1
		return false
	}
	return true
}

func (e *Executor) recordFailure(c plan.Capability) {
	e.mu.Lock()
	e.failures[c]++
	e.lastFail[c] = time.Now()
	e.mu.Unlock()
}

func (e *Executor) recordSuccess(c plan.Capability) {
	e.mu.Lock()
	e.failures[c] = 0
	e.mu.Unlock()
}

func (e *Executor) countFailure(c plan.Capability, kind provider.ErrorKind) {
	if e.met != nil {
		e.met.StepFailures.WithLabelValues(string(c), string(kind)).Inc()
	}
}
