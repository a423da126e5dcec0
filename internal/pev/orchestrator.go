// Package pev runs the plan, execute, verify loop that turns a raw query into
// a verified answer.
package pev

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"answerd/internal/classify"
	"answerd/internal/executor"
	"answerd/internal/metrics"
	"answerd/internal/plan"
	"answerd/internal/planner"
	"answerd/internal/provider"
	"answerd/internal/verify"
)

// ErrEmptyQuery is returned when the query has no content after trimming.
var ErrEmptyQuery = errors.New("query is empty")

// IterationRecord captures one full plan, execute, verify cycle.
type IterationRecord struct {
	Index   int
	Plan    *plan.Plan
	Results []executor.StepResult
	Report  verify.Report
}

// Answer is the orchestrator's final output for one query.
type Answer struct {
	Content    string
	SessionID  string
	Category   classify.Category
	Score      *verify.Score
	Iterations int
	Degraded   bool
	Duration   time.Duration
}

// Orchestrator wires the classifier, planner, executor, and verifier into the
// query loop. Iteration and time budgets come from the query's category and
// the configured timeouts.
type Orchestrator struct {
	classifier *classify.Classifier
	planner    *planner.Planner
	executor   *executor.Executor
	verifier   *verify.Verifier
	registry   provider.Registry
	sessions   *Sessions
	log        *zap.Logger
	met        *metrics.Metrics

	queryTimeout   time.Duration
	complexTimeout time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTimeouts sets the wall-clock budget for a query. Complex queries get
// the larger budget.
func WithTimeouts(query, complexQuery time.Duration) Option {
	return func(o *Orchestrator) {
		o.queryTimeout = query
		o.complexTimeout = complexQuery
	}
}

// WithMetrics enables pipeline instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.met = m }
}

// WithSessions replaces the default session table.
func WithSessions(s *Sessions) Option {
	return func(o *Orchestrator) { o.sessions = s }
}

// New creates an Orchestrator.
func New(cl *classify.Classifier, pl *planner.Planner, ex *executor.Executor, vf *verify.Verifier, reg provider.Registry, log *zap.Logger, opts ...Option) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	o := &Orchestrator{
		classifier:     cl,
		planner:        pl,
		executor:       ex,
		verifier:       vf,
		registry:       reg,
		sessions:       NewSessions(1000),
		log:            log,
		queryTimeout:   2 * time.Minute,
		complexTimeout: 5 * time.Minute,
	}
	for _, op := range opts {
		op(o)
	}
	return o
}

// Process answers one query. Factual queries take a single provider call;
// everything else runs plan, execute, verify cycles until the verifier
// accepts, the category's iteration budget runs out, or the deadline expires.
// On budget exhaustion the best-scoring iteration's answer is returned with
// Degraded set. An answer is only error-free when it has content.
func (o *Orchestrator) Process(ctx context.Context, query, sessionID string) (Answer, error) {
	start := time.Now()
	query = strings.TrimSpace(query)
	if query == "" {
		return Answer{}, ErrEmptyQuery
	}

	sessionID, turns := o.sessions.Touch(sessionID)
	if o.met != nil {
		o.met.SessionsActive.Set(float64(o.sessions.Len()))
	}

	category := o.classifier.Classify(query)
	o.log.Info("query classified",
		zap.String("session_id", sessionID),
		zap.Int("turn", turns),
		zap.String("category", string(category)))

	timeout := o.queryTimeout
	if category == classify.CategoryComplex {
		timeout = o.complexTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ans, err := o.run(ctx, query, sessionID, category)
	ans.SessionID = sessionID
	ans.Category = category
	ans.Duration = time.Since(start)
	o.observe(ans, category, err)
	return ans, err
}

func (o *Orchestrator) run(ctx context.Context, query, sessionID string, category classify.Category) (Answer, error) {
	if category == classify.CategoryFactual {
		return o.fastPath(ctx, query, sessionID, category)
	}

	var records []IterationRecord
	var current *plan.Plan
	var critique string

	for i := 1; i <= category.MaxIterations(); i++ {
		var err error
		if current == nil {
			current, err = o.planner.Create(ctx, query, category)
		} else {
			current, err = o.planner.Refine(ctx, query, category, current, critique)
		}
		if err != nil {
			return o.bail(records, err)
		}

		results, execErr := o.executor.Execute(ctx, current, sessionID)
		if authErr := firstAuthFailure(results); authErr != nil {
			return Answer{}, authErr
		}
		if execErr != nil {
			return o.bail(records, execErr)
		}

		report, err := o.verifier.Verify(ctx, query, current, results)
		if err != nil {
			if provider.IsAuth(err) || ctx.Err() != nil {
				return o.bail(records, err)
			}
			// Verification itself failed; keep the synthesized answer with
			// neutral scores rather than losing the iteration.
			o.log.Warn("verification failed", zap.Error(err))
			answer, _ := verify.Synthesize(current, results)
			report = verify.Report{
				Answer:   answer,
				Score:    verify.Combine(0.5, 0.5, 0.5),
				Critique: "verification unavailable; scores are neutral",
			}
		}

		records = append(records, IterationRecord{Index: i, Plan: current, Results: results, Report: report})
		if o.met != nil {
			o.met.VerifyScore.Observe(report.Score.Overall)
		}
		o.log.Info("iteration verified",
			zap.String("session_id", sessionID),
			zap.Int("iteration", i),
			zap.Float64("overall", report.Score.Overall),
			zap.Bool("passed", report.Score.Passed))

		if report.Score.Passed {
			score := report.Score
			return Answer{Content: report.Answer, Score: &score, Iterations: i}, nil
		}
		critique = report.Critique
	}

	best := bestRecord(records)
	if best == nil {
		return Answer{}, provider.NewError(provider.KindUnavailable, "no iteration produced an answer", nil)
	}
	score := best.Report.Score
	return Answer{
		Content:    best.Report.Answer,
		Score:      &score,
		Iterations: len(records),
		Degraded:   true,
	}, nil
}

// fastPath answers a factual query with one provider call, skipping the
// planner and verifier.
func (o *Orchestrator) fastPath(ctx context.Context, query, sessionID string, category classify.Category) (Answer, error) {
	capability := plan.Capability(category.DefaultCapability())
	prov, ok := o.registry.Lookup(capability)
	if !ok {
		return Answer{}, provider.NewError(provider.KindUnavailable, fmt.Sprintf("no provider for capability %q", capability), nil)
	}
	res, err := prov.Invoke(ctx, query, sessionID)
	if err != nil {
		return Answer{}, err
	}
	return Answer{Content: res.Text}, nil
}

// bail resolves a mid-loop failure: the best completed iteration wins when
// one exists, otherwise the failure surfaces.
func (o *Orchestrator) bail(records []IterationRecord, err error) (Answer, error) {
	if provider.IsAuth(err) {
		return Answer{}, err
	}
	best := bestRecord(records)
	if best == nil {
		return Answer{}, err
	}
	o.log.Warn("returning best completed iteration", zap.Int("iteration", best.Index), zap.Error(err))
	score := best.Report.Score
	return Answer{
		Content:    best.Report.Answer,
		Score:      &score,
		Iterations: len(records),
		Degraded:   !best.Report.Score.Passed,
	}, nil
}

// bestRecord picks the iteration with the highest overall score; ties go to
// the earliest iteration.
func bestRecord(records []IterationRecord) *IterationRecord {
	var best *IterationRecord
	for i := range records {
		if best == nil || records[i].Report.Score.Overall > best.Report.Score.Overall {
			best = &records[i]
		}
	}
	return best
}

func firstAuthFailure(results []executor.StepResult) error {
	for _, r := range results {
		if r.Err == provider.KindAuth {
			return provider.NewError(provider.KindAuth,
				fmt.Sprintf("step %d: %s provider rejected credentials", r.StepID, r.Capability), nil)
		}
	}
	return nil
}

func (o *Orchestrator) observe(ans Answer, category classify.Category, err error) {
	if o.met == nil {
		return
	}
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case ans.Degraded:
		outcome = "degraded"
		o.met.DegradedTotal.Inc()
	}
	o.met.QueriesTotal.WithLabelValues(string(category), outcome).Inc()
	o.met.QueryDuration.Observe(ans.Duration.Seconds())
	o.met.Iterations.Observe(float64(ans.Iterations))
}
