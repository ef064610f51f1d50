// Package main implements the crewd CLI: run multi-agent coding
// workflows and inspect the project memory they build up.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/crewd/internal/agent"
	"github.com/fyrsmithlabs/crewd/internal/config"
	"github.com/fyrsmithlabs/crewd/internal/logging"
	"github.com/fyrsmithlabs/crewd/internal/memory"
	"github.com/fyrsmithlabs/crewd/internal/telemetry"
	"github.com/fyrsmithlabs/crewd/internal/workflow"
)

var (
	configPath string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "crewd:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "crewd",
	Short: "Multi-agent coding workflows with persistent project memory",
	Long: `crewd runs a fixed crew of coding agents (planner, coder, reviewer,
tester) against a request and remembers what they did per project, so
later runs start with context instead of a blank slate.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to crewd config file")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(estimateCmd)
	rootCmd.AddCommand(rolesCmd)
	rootCmd.AddCommand(memoryCmd)
	memoryCmd.AddCommand(memoryShowCmd)
	memoryCmd.AddCommand(memoryContextCmd)
	memoryCmd.AddCommand(memoryListCmd)
	memoryCmd.AddCommand(memoryHasFileCmd)

	runCmd.Flags().StringVar(&runProject, "project", "", "project name (required)")
	runCmd.Flags().StringVar(&runComplexity, "complexity", "", "complexity hint: simple, medium, complex, expert")
	_ = runCmd.MarkFlagRequired("project")
	estimateCmd.Flags().StringVar(&runComplexity, "complexity", "", "complexity hint: simple, medium, complex, expert")
}

var (
	runProject    string
	runComplexity string
)

var runCmd = &cobra.Command{
	Use:   "run --project <name> <request...>",
	Short: "Run the coding workflow for a request",
	Long: `Run the planner, coder, reviewer, tester workflow for a request.

Examples:
  # Run against a project
  crewd run --project todo-api "build a REST todo service"

  # Force a complexity class
  crewd run --project todo-api --complexity complex "redesign the storage layer"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWorkflow,
}

var estimateCmd = &cobra.Command{
	Use:   "estimate <request...>",
	Short: "Estimate the cost of a workflow run without executing it",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runEstimate,
}

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "List the crew roles, their models, and base costs",
	RunE:  runRoles,
}

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect persistent project memory",
}

var memoryShowCmd = &cobra.Command{
	Use:   "show <project>",
	Short: "Print a project's full memory record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryShow,
}

var memoryContextCmd = &cobra.Command{
	Use:   "context <project>",
	Short: "Print the briefing agents receive for a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryContext,
}

var memoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects with stored memory",
	RunE:  runMemoryList,
}

var memoryHasFileCmd = &cobra.Command{
	Use:   "hasfile <project> <path>",
	Short: "Check whether a project already recorded a file",
	Args:  cobra.ExactArgs(2),
	RunE:  runMemoryHasFile,
}

// setup loads config and builds the shared logger.
func setup() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	level, err := logging.LevelFromString(cfg.Logging.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("parse log level: %w", err)
	}
	logCfg := logging.NewDefaultConfig()
	logCfg.Level = level
	logCfg.Format = cfg.Logging.Format
	logCfg.Caller.Enabled = cfg.Logging.Caller
	if !cfg.Logging.Stacktrace {
		logCfg.Stacktrace.Level = 0
	}
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, logger, nil
}

func newManager(cfg *config.Config, logger *logging.Logger) (*memory.Manager, error) {
	store, err := memory.NewStore(cfg.Memory.Dir, logger)
	if err != nil {
		return nil, err
	}
	return memory.NewManager(store, cfg.Memory.MaxConversationLength, logger), nil
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	tel, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.Endpoint,
		Protocol:    cfg.Telemetry.Protocol,
		Insecure:    cfg.Telemetry.Insecure,
		SampleRate:  cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn(shutdownCtx, "telemetry shutdown failed", zap.Error(err))
		}
	}()

	complexity, err := workflow.ParseComplexity(runComplexity)
	if err != nil {
		return err
	}
	if runComplexity == "" {
		// No hint given: let the engine classify the request itself.
		complexity = ""
	}

	manager, err := newManager(cfg, logger)
	if err != nil {
		return err
	}
	executor, err := agent.NewClient(agent.ClientConfig{
		Endpoint:       cfg.Executor.Endpoint,
		APIKey:         cfg.Executor.APIKey.Value(),
		RequestTimeout: cfg.Executor.RequestTimeout.Std(),
		MaxRetries:     cfg.Executor.MaxRetries,
		RateLimitRPS:   cfg.Executor.RateLimitRPS,
		RateBurst:      cfg.Executor.RateBurst,
	}, logger)
	if err != nil {
		return err
	}
	engine, err := workflow.NewEngine(workflow.EngineConfig{
		StepTimeout:           cfg.Workflow.StepTimeout.Std(),
		DefaultComplexity:     workflow.Complexity(cfg.Workflow.DefaultComplexity),
		HandoffContextEntries: cfg.Memory.HandoffContextEntries,
	}, executor, manager, logger)
	if err != nil {
		return err
	}

	request := strings.Join(args, " ")
	result, err := engine.Run(ctx, runProject, request, complexity)
	if err != nil {
		return err
	}

	fmt.Println(result.FinalOutput)
	fmt.Printf("\nsuccess=%t estimated_cost=$%.4f elapsed=%s\n",
		result.Success, result.EstimatedCost, result.Elapsed.Round(time.Millisecond))

	if !result.Success {
		return fmt.Errorf("workflow completed with failures")
	}
	return nil
}

func runEstimate(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup()
	if err != nil {
		return err
	}

	request := strings.Join(args, " ")
	complexity, err := workflow.ParseComplexity(runComplexity)
	if err != nil {
		return err
	}
	if runComplexity == "" {
		complexity = workflow.ClassifyComplexity(request, workflow.Complexity(cfg.Workflow.DefaultComplexity))
	}

	steps := workflow.Plan(request)
	cost, err := workflow.EstimateRunCost(steps, complexity)
	if err != nil {
		return err
	}

	fmt.Printf("complexity: %s\n", complexity)
	for _, s := range steps {
		role, err := agent.RoleByName(s.RoleName)
		if err != nil {
			return err
		}
		fmt.Printf("  %-10s $%.4f  %s\n", s.Name, workflow.EstimateStepCost(role, complexity), s.Task)
	}
	fmt.Printf("total: $%.4f\n", cost)
	return nil
}

func runRoles(cmd *cobra.Command, args []string) error {
	for _, r := range agent.Roles() {
		fmt.Printf("%-10s model=%-15s base_cost=$%.4f  %s\n", r.Name, r.Model, r.BaseCost, r.Description)
	}
	return nil
}

func runMemoryShow(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	manager, err := newManager(cfg, logger)
	if err != nil {
		return err
	}

	snap := manager.Snapshot(context.Background(), args[0])
	out, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal memory record: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func runMemoryContext(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	manager, err := newManager(cfg, logger)
	if err != nil {
		return err
	}

	fmt.Print(manager.ContextSummary(context.Background(), args[0]))
	return nil
}

func runMemoryHasFile(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	manager, err := newManager(cfg, logger)
	if err != nil {
		return err
	}

	if !manager.HasFile(context.Background(), args[0], args[1]) {
		fmt.Printf("%s: not recorded\n", args[1])
		return fmt.Errorf("file not found in project memory")
	}
	fmt.Printf("%s: recorded\n", args[1])
	return nil
}

func runMemoryList(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	store, err := memory.NewStore(cfg.Memory.Dir, logger)
	if err != nil {
		return err
	}

	names, err := store.List()
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}
