package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/codeorc/orchestrator/internal/config"
	"github.com/codeorc/orchestrator/internal/fsm"
	"github.com/codeorc/orchestrator/internal/historylog"
	"github.com/codeorc/orchestrator/internal/model"
	"github.com/codeorc/orchestrator/internal/policy"
	"github.com/codeorc/orchestrator/internal/trace"
)

var (
	// Version info (injected by GoReleaser)
	version = "dev"
	commit  = "none"
	date    = "unknown"

	cfgFile     string
	goal        string
	workDir     string
	maxRetries  int
	maxDuration time.Duration
	maxTokens   int

	statusStyle = lipgloss.NewStyle().Bold(true)
	okStyle     = statusStyle.Foreground(lipgloss.Color("10"))
	failStyle   = statusStyle.Foreground(lipgloss.Color("9"))
)

var rootCmd = &cobra.Command{
	Use:   "codeorc",
	Short: "codeorc - an autonomous code-modification orchestrator",
	Long: `codeorc drives a single goal through an INGEST -> PLAN -> EDIT -> TEST
control loop: it indexes a repository, asks a model for a plan and a patch,
gates both through a policy engine, applies the patch, and runs the
project's own tests before calling the change done.`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the control loop against a goal",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if workDir != "" {
			cfg.WorkDir = workDir
		}
		if maxRetries > 0 {
			cfg.MaxRetries = maxRetries
		}
		if maxDuration > 0 {
			cfg.MaxDuration = maxDuration
		}
		if maxTokens > 0 {
			cfg.MaxTokens = maxTokens
		}
		if goal == "" {
			return fmt.Errorf("a --goal is required")
		}

		client, err := buildClient(cfg)
		if err != nil {
			return fmt.Errorf("configuring model client: %w", err)
		}

		adapter := model.NewRateLimitedAdapter(client, cfg.RateLimit)

		policyCfg := policy.DefaultConfig()
		if len(cfg.AllowedPaths) > 0 {
			policyCfg.AllowedPaths = cfg.AllowedPaths
		}
		if len(cfg.DeniedPaths) > 0 {
			policyCfg.DeniedPaths = cfg.DeniedPaths
		}
		if len(cfg.ForbiddenDependencies) > 0 {
			policyCfg.ForbiddenDependencies = cfg.ForbiddenDependencies
		}

		taskID := newTaskID()
		tracer := trace.New(taskID)

		orch := &fsm.Orchestrator{
			Adapter:  adapter,
			Policy:   &policyCfg,
			Tracer:   tracer,
			TraceDir: cfg.TraceDir,
			History:  historylog.New(cfg.HistoryPath),
		}

		task := fsm.Task{
			ID:          taskID,
			WorkDir:     cfg.WorkDir,
			Goal:        goal,
			MaxRetries:  cfg.MaxRetries,
			MaxDuration: cfg.MaxDuration,
			MaxTokens:   cfg.MaxTokens,
		}

		report := orch.Run(context.Background(), task)
		printReport(report)

		if report.Status != "success" {
			os.Exit(1)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("codeorc %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func buildClient(cfg config.Config) (model.Client, error) {
	if cfg.OfflineMode {
		return model.NewOfflineClient(cfg.ModelName), nil
	}
	apiKey := os.Getenv("CODEORC_GEMINI_API_KEY")
	if apiKey == "" {
		return model.NewOfflineClient(cfg.ModelName), nil
	}
	return model.NewGeminiClient(apiKey, cfg.ModelName)
}

func newTaskID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "task-" + time.Now().Format("20060102-150405")
	}
	return "task-" + hex.EncodeToString(buf)
}

func printReport(report fsm.Report) {
	style := okStyle
	if report.Status != "success" {
		style = failStyle
	}

	summary := fmt.Sprintf("## codeorc run %s\n\n**status:** %s\n**final state:** %s\n**retries:** %d\n**tokens used:** %d\n**duration:** %.1fs\n",
		report.TaskID, report.Status, report.FinalState, report.RetryCount, report.TokenUsage, report.Duration)

	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		fmt.Println(style.Render(summary))
		return
	}
	out, err := renderer.Render(summary)
	if err != nil {
		fmt.Println(style.Render(summary))
		return
	}
	fmt.Print(out)

	if response, ok := report.Artifacts["response"].(string); ok && response != "" {
		fmt.Println(response)
	}
	if diff, ok := report.Artifacts["final_diff"].(string); ok && diff != "" {
		fmt.Println(diff)
	}
	if reason, ok := report.Artifacts["abort_reason"].(string); ok && reason != "" {
		fmt.Println(failStyle.Render("abort reason: " + reason))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .codeorc/config.yaml)")

	runCmd.Flags().StringVar(&goal, "goal", "", "the goal to drive the control loop toward")
	runCmd.Flags().StringVar(&workDir, "dir", "", "working directory to operate on (default: config work_dir)")
	runCmd.Flags().IntVar(&maxRetries, "max-retries", 0, "override the configured retry budget")
	runCmd.Flags().DurationVar(&maxDuration, "max-duration", 0, "override the configured wall-clock budget")
	runCmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "override the configured token budget")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
