// Package chaos runs consistency experiments against a live library instance:
// it checks a steady state, injects concurrent load, samples probes and then
// asserts on what it saw.
package chaos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrSteadyStateInvalid aborts an experiment before any load is injected.
var ErrSteadyStateInvalid = errors.New("steady state invalid")

// Experiment defines a consistency test.
type Experiment struct {
	Name        string
	Hypothesis  string
	SteadyState []Metric
	Probes      []Metric
	Method      []Action
	Rollback    []Action
	Validation  []Assertion
	Duration    time.Duration
}

// Metric is a measurable property. SteadyState metrics must meet their
// threshold before and during the run; probes are only recorded.
type Metric struct {
	Name      string
	Query     func(context.Context) (float64, error)
	Threshold Threshold
}

type Threshold struct {
	Operator string // >, <, >=, <=, ==
	Value    float64
}

// Action is one step of load injection or cleanup.
type Action struct {
	Type    string
	Target  string
	Execute func(context.Context) error
}

// Assertion checks the last sample of a metric.
type Assertion struct {
	Metric    string
	Condition func(float64) bool
	Message   string
}

type Sample struct {
	At    time.Time
	Value float64
}

// Fault is an error raised by an action or a metric query.
type Fault struct {
	At     time.Time
	Source string
	Err    string
}

type Violation struct {
	Metric   string
	Expected float64
	Actual   float64
	At       time.Time
}

type Result struct {
	Experiment       string
	Started          time.Time
	Finished         time.Time
	SteadyStateValid bool
	HypothesisHeld   bool
	Violations       []Violation
	FailedAssertions []string
	Samples          map[string][]Sample
	Faults           []Fault
}

func (r *Result) fault(source string, err error) {
	r.Faults = append(r.Faults, Fault{At: time.Now(), Source: source, Err: err.Error()})
}

func (r *Result) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Engine runs registered experiments one at a time.
type Engine struct {
	tracer         trace.Tracer
	logger         *slog.Logger
	sampleInterval time.Duration

	mu          sync.Mutex
	experiments []Experiment
	results     []Result
}

func NewEngine(logger *slog.Logger, sampleInterval time.Duration) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if sampleInterval <= 0 {
		sampleInterval = 100 * time.Millisecond
	}
	return &Engine{
		tracer:         otel.Tracer("schoolshelf/chaos"),
		logger:         logger,
		sampleInterval: sampleInterval,
	}
}

func (e *Engine) Register(exp Experiment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.experiments = append(e.experiments, exp)
}

func (e *Engine) Experiments() []Experiment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Experiment(nil), e.experiments...)
}

func (e *Engine) Results() []Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Result(nil), e.results...)
}

// Run executes one experiment. It returns ErrSteadyStateInvalid when the
// library is inconsistent before any load; a violated hypothesis is reported
// in the result, not as an error.
func (e *Engine) Run(ctx context.Context, exp Experiment) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "chaos.experiment",
		trace.WithAttributes(attribute.String("chaos.experiment", exp.Name)),
	)
	defer span.End()

	result := &Result{
		Experiment: exp.Name,
		Started:    time.Now(),
		Samples:    make(map[string][]Sample),
	}

	span.AddEvent("steady_state")
	for _, metric := range exp.SteadyState {
		value, err := metric.Query(ctx)
		if err == nil && metric.Threshold.holds(value) {
			continue
		}
		if err != nil {
			value = -1
		}
		result.Violations = append(result.Violations, Violation{
			Metric: metric.Name, Expected: metric.Threshold.Value, Actual: value, At: time.Now(),
		})
	}
	if len(result.Violations) > 0 {
		result.Finished = time.Now()
		return result, fmt.Errorf("%w: %s", ErrSteadyStateInvalid, exp.Name)
	}
	result.SteadyStateValid = true

	span.AddEvent("method")
	e.runActions(ctx, span, exp.Method, result)

	span.AddEvent("observe")
	e.observe(ctx, exp, result)

	span.AddEvent("rollback")
	e.runActions(ctx, span, exp.Rollback, result)

	result.FailedAssertions = check(exp.Validation, result.Samples)
	result.HypothesisHeld = len(result.FailedAssertions) == 0 && len(result.Violations) == 0
	result.Finished = time.Now()

	e.mu.Lock()
	e.results = append(e.results, *result)
	e.mu.Unlock()

	span.SetAttributes(
		attribute.Bool("chaos.hypothesis_held", result.HypothesisHeld),
		attribute.Int("chaos.faults", len(result.Faults)),
	)
	e.logger.InfoContext(ctx, "experiment finished",
		"experiment", exp.Name,
		"hypothesis_held", result.HypothesisHeld,
		"violations", len(result.Violations),
		"faults", len(result.Faults),
		"duration", result.Duration(),
	)
	return result, nil
}

// RunAll executes every registered experiment in order. Aborted experiments
// are logged and still reported.
func (e *Engine) RunAll(ctx context.Context) ([]Result, error) {
	var results []Result
	for _, exp := range e.Experiments() {
		result, err := e.Run(ctx, exp)
		if err != nil {
			e.logger.ErrorContext(ctx, "experiment aborted", "experiment", exp.Name, "error", err)
		}
		if result != nil {
			results = append(results, *result)
		}
	}
	return results, ctx.Err()
}

// runActions keeps going after a failed action so rollback always completes.
func (e *Engine) runActions(ctx context.Context, span trace.Span, actions []Action, result *Result) {
	for _, action := range actions {
		if err := action.Execute(ctx); err != nil {
			span.RecordError(err, trace.WithAttributes(attribute.String("chaos.action", action.Type)))
			result.fault(action.Target, err)
		}
	}
}

// observe samples until the experiment's duration elapses, then once more so
// short runs still have a value to assert on.
func (e *Engine) observe(ctx context.Context, exp Experiment, result *Result) {
	if exp.Duration > 0 {
		ticker := time.NewTicker(e.sampleInterval)
		defer ticker.Stop()
		deadline := time.After(exp.Duration)
		for waiting := true; waiting; {
			select {
			case <-ctx.Done():
				waiting = false
			case <-deadline:
				waiting = false
			case <-ticker.C:
				e.sample(ctx, exp, result)
			}
		}
	}
	e.sample(ctx, exp, result)
}

func (e *Engine) sample(ctx context.Context, exp Experiment, result *Result) {
	record := func(m Metric) (float64, bool) {
		value, err := m.Query(ctx)
		if err != nil {
			result.fault(m.Name, err)
			return 0, false
		}
		result.Samples[m.Name] = append(result.Samples[m.Name], Sample{At: time.Now(), Value: value})
		return value, true
	}

	for _, m := range exp.SteadyState {
		if value, ok := record(m); ok && !m.Threshold.holds(value) {
			result.Violations = append(result.Violations, Violation{
				Metric: m.Name, Expected: m.Threshold.Value, Actual: value, At: time.Now(),
			})
		}
	}
	for _, m := range exp.Probes {
		record(m)
	}
}

func (t Threshold) holds(value float64) bool {
	switch t.Operator {
	case ">":
		return value > t.Value
	case "<":
		return value < t.Value
	case ">=":
		return value >= t.Value
	case "<=":
		return value <= t.Value
	case "==":
		return value == t.Value
	}
	return false
}

func check(assertions []Assertion, samples map[string][]Sample) []string {
	var failed []string
	for _, a := range assertions {
		series := samples[a.Metric]
		if len(series) == 0 {
			failed = append(failed, a.Message+": never sampled")
			continue
		}
		if last := series[len(series)-1].Value; !a.Condition(last) {
			failed = append(failed, fmt.Sprintf("%s: got %g", a.Message, last))
		}
	}
	return failed
}

// WriteReport prints one block per result.
func WriteReport(w io.Writer, results []Result) {
	for _, r := range results {
		verdict := "HELD"
		if !r.HypothesisHeld {
			verdict = "VIOLATED"
		}
		fmt.Fprintf(w, "%s: hypothesis %s (%s)\n", r.Experiment, verdict, r.Duration().Round(time.Millisecond))
		if !r.SteadyStateValid {
			fmt.Fprintln(w, "  steady state invalid before load")
		}
		for _, v := range r.Violations {
			fmt.Fprintf(w, "  violation %s: expected %g, got %g\n", v.Metric, v.Expected, v.Actual)
		}
		for _, msg := range r.FailedAssertions {
			fmt.Fprintf(w, "  failed: %s\n", msg)
		}
		for _, f := range r.Faults {
			fmt.Fprintf(w, "  fault in %s: %s\n", f.Source, f.Err)
		}
	}
}
