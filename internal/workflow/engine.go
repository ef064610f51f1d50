package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/crewd/internal/agent"
	"github.com/fyrsmithlabs/crewd/internal/conversation"
	"github.com/fyrsmithlabs/crewd/internal/dedup"
	"github.com/fyrsmithlabs/crewd/internal/logging"
	"github.com/fyrsmithlabs/crewd/internal/memory"
)

// EngineConfig configures workflow execution.
type EngineConfig struct {
	// StepTimeout bounds each agent step.
	StepTimeout time.Duration
	// DefaultComplexity applies when a request has no explicit hint and
	// classification finds no markers.
	DefaultComplexity Complexity
	// HandoffContextEntries is how many recent conversation entries
	// travel with each handoff.
	HandoffContextEntries int
}

// Engine runs workflows: it executes steps wave by wave through an
// agent executor and records everything into project memory.
type Engine struct {
	cfg      EngineConfig
	executor agent.Executor
	memory   *memory.Manager
	logger   *logging.Logger

	tracer       trace.Tracer
	runCounter   metric.Int64Counter
	stepCounter  metric.Int64Counter
	costRecorder metric.Float64Histogram
}

// NewEngine wires an engine over an executor and a memory manager.
func NewEngine(cfg EngineConfig, executor agent.Executor, mem *memory.Manager, logger *logging.Logger) (*Engine, error) {
	if executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if mem == nil {
		return nil, fmt.Errorf("memory manager is required")
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 5 * time.Minute
	}
	if cfg.DefaultComplexity == "" {
		cfg.DefaultComplexity = ComplexityMedium
	}
	if cfg.HandoffContextEntries <= 0 {
		cfg.HandoffContextEntries = 3
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	e := &Engine{
		cfg:      cfg,
		executor: executor,
		memory:   mem,
		logger:   logger.Named("workflow"),
		tracer:   otel.Tracer("crewd/workflow"),
	}

	meter := otel.Meter("crewd/workflow")
	var err error
	e.runCounter, err = meter.Int64Counter("crewd.workflow.runs",
		metric.WithDescription("Workflow runs by outcome"))
	if err != nil {
		return nil, fmt.Errorf("create run counter: %w", err)
	}
	e.stepCounter, err = meter.Int64Counter("crewd.workflow.steps",
		metric.WithDescription("Workflow steps by status"))
	if err != nil {
		return nil, fmt.Errorf("create step counter: %w", err)
	}
	e.costRecorder, err = meter.Float64Histogram("crewd.workflow.run_cost",
		metric.WithDescription("Estimated cost per workflow run in dollars"))
	if err != nil {
		return nil, fmt.Errorf("create cost histogram: %w", err)
	}
	return e, nil
}

// Run executes the standard workflow for a request against a project.
// The result is always returned, failed and skipped steps included; the
// error is non-nil only when the workflow could not start at all.
func (e *Engine) Run(ctx context.Context, project, request string, complexity Complexity) (*RunResult, error) {
	if project == "" {
		return nil, fmt.Errorf("project is required")
	}
	if strings.TrimSpace(request) == "" {
		return nil, fmt.Errorf("request is required")
	}
	classified := complexity == ""
	if classified {
		complexity = ClassifyComplexity(request, e.cfg.DefaultComplexity)
	}

	steps := Plan(request)
	stepWaves, err := waves(steps)
	if err != nil {
		return nil, fmt.Errorf("plan workflow: %w", err)
	}

	runID := uuid.NewString()
	ctx = logging.WithProject(ctx, project)
	ctx = logging.WithRunID(ctx, runID)
	ctx, span := e.tracer.Start(ctx, "workflow.run",
		trace.WithAttributes(
			attribute.String("project", project),
			attribute.String("run.id", runID),
			attribute.String("complexity", string(complexity)),
			attribute.Int("steps", len(steps)),
		))
	defer span.End()

	if classified {
		// Classification scales run cost, so make it visible when the
		// caller gave no explicit hint.
		e.logger.Info(ctx, "complexity classified from request",
			zap.String("complexity", string(complexity)),
		)
	}

	start := time.Now()
	e.memory.StartProject(ctx, project, request)
	e.memory.Record(ctx, project, conversation.Entry{
		AgentName: "workflow",
		Kind:      conversation.KindRunStart,
		Content:   request,
		Metadata:  map[string]any{"run_id": runID},
	})
	e.logger.Info(ctx, "workflow run started",
		zap.String("request", truncate(request, 120)),
		zap.String("complexity", string(complexity)),
	)

	result := &RunResult{
		Project:    project,
		Request:    request,
		Complexity: complexity,
		StartedAt:  start,
	}

	tracker := dedup.NewTracker()
	var mu sync.Mutex
	outputs := make(map[string]string, len(steps))
	statuses := make(map[string]StepStatus, len(steps))
	results := make(map[string]StepResult, len(steps))

	for _, wave := range stepWaves {
		g, waveCtx := errgroup.WithContext(ctx)
		for _, step := range wave {
			step := step
			g.Go(func() error {
				sr := e.runStep(waveCtx, project, step, complexity, tracker, outputs, statuses, &mu)
				mu.Lock()
				statuses[step.Name] = sr.Status
				results[step.Name] = sr
				if sr.Status == StatusCompleted {
					outputs[step.Name] = sr.Output
				}
				mu.Unlock()
				return nil
			})
		}
		// Steps report failure through their result, never as an
		// errgroup error, so waiting cannot fail.
		_ = g.Wait()
	}

	success := true
	for _, step := range steps {
		sr := results[step.Name]
		result.Steps = append(result.Steps, sr)
		result.EstimatedCost += sr.EstimatedCost
		if sr.Status != StatusCompleted {
			success = false
		}
	}
	result.Success = success
	result.Elapsed = time.Since(start)
	result.FinalOutput = e.finalOutput(result)

	e.recordRunOutcome(ctx, project, request, result)

	span.SetAttributes(
		attribute.Bool("success", result.Success),
		attribute.Float64("estimated_cost", result.EstimatedCost),
	)
	if !result.Success {
		span.SetStatus(codes.Error, "one or more steps failed")
	}
	outcome := "success"
	if !result.Success {
		outcome = "failure"
	}
	e.runCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	e.costRecorder.Record(ctx, result.EstimatedCost)

	e.logger.Info(ctx, "workflow run finished",
		zap.Bool("success", result.Success),
		zap.Duration("elapsed", result.Elapsed),
		zap.Float64("estimated_cost", result.EstimatedCost),
	)
	return result, nil
}

// runStep executes one step, or skips it when a dependency did not
// complete. It records the step's conversation entries itself.
func (e *Engine) runStep(ctx context.Context, project string, step Step, complexity Complexity, tracker *dedup.Tracker, outputs map[string]string, statuses map[string]StepStatus, mu *sync.Mutex) StepResult {
	ctx, span := e.tracer.Start(ctx, "workflow.step",
		trace.WithAttributes(attribute.String("step", step.Name)))
	defer span.End()

	role, err := agent.RoleByName(step.RoleName)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return e.failStep(ctx, project, step, 0, err)
	}

	// Gather dependency outputs; skip when any dependency fell short.
	upstream := make(map[string]string, len(step.DependsOn))
	mu.Lock()
	blocked := ""
	for _, dep := range step.DependsOn {
		if statuses[dep] != StatusCompleted {
			blocked = dep
			break
		}
		upstream[dep] = outputs[dep]
	}
	mu.Unlock()
	if blocked != "" {
		e.memory.Record(ctx, project, conversation.Entry{
			AgentName: step.Name,
			Kind:      conversation.KindError,
			Content:   fmt.Sprintf("step %s skipped: dependency %s did not complete", step.Name, blocked),
		})
		e.stepCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("step", step.Name),
			attribute.String("status", string(StatusSkipped)),
		))
		span.SetAttributes(attribute.String("status", string(StatusSkipped)))
		return StepResult{Step: step.Name, Role: step.RoleName, Task: step.Task, Status: StatusSkipped,
			Error: fmt.Sprintf("dependency %s did not complete", blocked)}
	}

	e.memory.Record(ctx, project, conversation.Entry{
		AgentName: step.Name,
		Kind:      conversation.KindInput,
		Content:   step.Task,
	})

	cost := EstimateStepCost(role, complexity)
	stepCtx, cancel := context.WithTimeout(ctx, e.cfg.StepTimeout)
	defer cancel()

	stepStart := time.Now()
	res, err := e.executor.Invoke(stepCtx, agent.InvokeRequest{
		Role:            role,
		Task:            step.Task,
		ProjectContext:  e.memory.ContextSummary(ctx, project),
		UpstreamOutputs: upstream,
	})
	elapsed := time.Since(stepStart)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		sr := e.failStep(ctx, project, step, cost, err)
		sr.Elapsed = elapsed
		return sr
	}

	for _, tc := range res.ToolCalls {
		e.memory.Record(ctx, project, conversation.Entry{
			AgentName: step.Name,
			Kind:      conversation.KindToolCall,
			Content:   tc.Name,
			Metadata:  map[string]any{"arguments": tc.Arguments},
		})
		if tc.Result != "" {
			e.memory.RecordToolResult(ctx, project, step.Name, tc.Name, tc.Result, tracker)
		}
	}
	e.memory.RecordOutput(ctx, project, step.Name, res.Output, res.TokensUsed)

	if res.HandoffTarget != "" {
		e.Handoff(ctx, project, step.Name, res.HandoffTarget, "requested by "+step.Name)
	}

	e.stepCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("step", step.Name),
		attribute.String("status", string(StatusCompleted)),
	))
	e.logger.Debug(ctx, "step completed",
		zap.String("step", step.Name),
		zap.Duration("elapsed", elapsed),
		zap.Int("tokens", res.TokensUsed),
	)

	return StepResult{
		Step:          step.Name,
		Role:          step.RoleName,
		Task:          step.Task,
		Status:        StatusCompleted,
		Output:        res.Output,
		TokensUsed:    res.TokensUsed,
		EstimatedCost: cost,
		Elapsed:       elapsed,
	}
}

func (e *Engine) failStep(ctx context.Context, project string, step Step, cost float64, err error) StepResult {
	e.memory.Record(ctx, project, conversation.Entry{
		AgentName: step.Name,
		Kind:      conversation.KindError,
		Content:   err.Error(),
	})
	e.stepCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("step", step.Name),
		attribute.String("status", string(StatusFailed)),
	))
	e.logger.Warn(ctx, "step failed",
		zap.String("step", step.Name),
		zap.Error(err),
	)
	return StepResult{
		Step:          step.Name,
		Role:          step.RoleName,
		Task:          step.Task,
		Status:        StatusFailed,
		Error:         err.Error(),
		EstimatedCost: cost,
	}
}

// recordRunOutcome writes the run's terminal entries and memory updates.
func (e *Engine) recordRunOutcome(ctx context.Context, project, request string, result *RunResult) {
	if result.Success {
		milestone := "Completed request: " + truncate(request, 100)
		if err := e.memory.UpdateProject(ctx, project, memory.FieldMilestonesCompleted, milestone); err != nil {
			e.logger.Warn(ctx, "failed to record milestone", zap.Error(err))
		}
	} else {
		for _, sr := range result.Steps {
			if sr.Status == StatusFailed {
				note := fmt.Sprintf("%s failed on %q: %s", sr.Step, truncate(request, 80), sr.Error)
				if err := e.memory.UpdateProject(ctx, project, memory.FieldFailedApproaches, note); err != nil {
					e.logger.Warn(ctx, "failed to record failed approach", zap.Error(err))
				}
			}
		}
	}

	e.memory.Record(ctx, project, conversation.Entry{
		AgentName: "workflow",
		Kind:      conversation.KindRunEnd,
		Content:   fmt.Sprintf("success=%t cost=%.4f elapsed=%s", result.Success, result.EstimatedCost, result.Elapsed.Round(time.Millisecond)),
	})
	e.memory.Flush(ctx, project)
}

// finalOutput assembles the labeled report from whichever steps produced
// output.
func (e *Engine) finalOutput(result *RunResult) string {
	labels := map[string]string{
		agent.RolePlanner:  "Implementation Plan",
		agent.RoleCoder:    "Code Implementation",
		agent.RoleReviewer: "Code Review",
		agent.RoleTester:   "Test Results",
	}

	var b strings.Builder
	fmt.Fprintf(&b, "WORKFLOW RESULT for %q\n", truncate(result.Request, 120))
	for _, sr := range result.Steps {
		label, ok := labels[sr.Step]
		if !ok {
			label = sr.Step
		}
		fmt.Fprintf(&b, "\n=== %s ===\n", label)
		switch sr.Status {
		case StatusCompleted:
			b.WriteString(sr.Output)
			b.WriteString("\n")
		case StatusFailed:
			fmt.Fprintf(&b, "(failed: %s)\n", sr.Error)
		case StatusSkipped:
			fmt.Fprintf(&b, "(skipped: %s)\n", sr.Error)
		}
	}
	return b.String()
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
