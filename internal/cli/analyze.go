package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/elenchus/internal/analyze"
	"github.com/ppiankov/elenchus/internal/classify"
	"github.com/ppiankov/elenchus/internal/gateway"
	"github.com/ppiankov/elenchus/internal/hypothesis"
	"github.com/ppiankov/elenchus/internal/improved"
	"github.com/ppiankov/elenchus/internal/model"
	"github.com/ppiankov/elenchus/internal/prompts"
	"github.com/ppiankov/elenchus/internal/ratelimit"
	"github.com/ppiankov/elenchus/internal/taxonomy"
)

var (
	identifier  string
	fallacyType string
	counterCtx  string
	opTimeout   time.Duration

	classifyModel     string
	classifyMode      string
	classifyTopK      int
	classifyThreshold float64
)

// app holds the wired components behind every operation command.
type app struct {
	cfg          model.Config
	orchestrator *analyze.Orchestrator
	gw           *gateway.Gateway
	cache        *improved.Cache
	tax          *taxonomy.Taxonomy
}

func buildApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	tax, err := taxonomy.Load(cfg.Data.FallaciesPath)
	if err != nil {
		return nil, fmt.Errorf("load taxonomy: %w", err)
	}
	store, err := prompts.Load(cfg.Data.TemplatesPath)
	if err != nil {
		return nil, fmt.Errorf("load prompt templates: %w", err)
	}

	limiter := ratelimit.New(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowSeconds)*time.Second)
	gw := gateway.New(cfg.Gateway, limiter)
	cache := improved.New(cfg.Cache.Dir, cfg.Cache.SimilarityThreshold, cfg.Cache.MaxEntries)
	classifier := classify.New(cfg.Classifier)

	return &app{
		cfg:          cfg,
		orchestrator: analyze.New(classifier, gw, cache, tax, store, cfg.Classifier),
		gw:           gw,
		cache:        cache,
		tax:          tax,
	}, nil
}

// argumentText returns the joined args, or stdin when no args are given.
func argumentText(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze [argument]",
	Short: "Analyze an argument for fallacies and structure",
	Long: `Analyze runs the full pipeline over an argument:
- Local zero-shot fallacy classification over the canonical taxonomy
- Toulmin decomposition, scores and feedback via the LLM gateway
- Loop suppression for statements the system already improved

The argument is read from the command line or, when omitted, from stdin.

Example:
  elenchus analyze "Everyone is doing it, so it must be right."
  cat argument.txt | elenchus analyze`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := argumentText(args)
		if err != nil {
			return err
		}
		a, err := buildApp()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		result, err := a.orchestrator.Analyze(ctx, text, identifier)
		if err != nil {
			return fmt.Errorf("analyze failed: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "Resistance: %d/100 (%s)\n", result.FallacyResistanceScore, analyze.QualityBand(result.FallacyResistanceScore))
		}
		return printJSON(result)
	},
}

// improveCmd represents the improve command
var improveCmd = &cobra.Command{
	Use:   "improve [argument]",
	Short: "Rewrite an argument to remove a fallacy",
	Long: `Improve asks the gateway to rewrite the argument so it no longer
commits the given fallacy while keeping the author's position. The
improved statement is remembered, so analyzing it later short-circuits.

Example:
  elenchus improve --fallacy "ad hominem" "You're wrong because you're an idiot."`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := argumentText(args)
		if err != nil {
			return err
		}
		a, err := buildApp()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		result, err := a.orchestrator.Improve(ctx, text, fallacyType, identifier)
		if err != nil {
			return fmt.Errorf("improve failed: %w", err)
		}
		return printJSON(result)
	},
}

// counterCmd represents the counter command
var counterCmd = &cobra.Command{
	Use:   "counter [argument]",
	Short: "Generate a counter-argument",
	Long: `Counter produces a well-reasoned opposing argument as plain text.

Example:
  elenchus counter "Cats are objectively the best pets."`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := argumentText(args)
		if err != nil {
			return err
		}
		a, err := buildApp()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		result, err := a.orchestrator.CounterArgue(ctx, text, counterCtx, identifier)
		if err != nil {
			return fmt.Errorf("counter failed: %w", err)
		}
		fmt.Println(result.Response)
		return nil
	},
}

// evaluateCmd represents the evaluate command
var evaluateCmd = &cobra.Command{
	Use:   "evaluate <opponent-argument> <user-response>",
	Short: "Judge a rebuttal against an opponent argument",
	Long: `Evaluate scores how well a user response counters an opponent's
argument: detected fallacy, Toulmin element scores and an overall
reasoning score.

Example:
  elenchus evaluate "Everyone does it." "Popularity is not evidence."`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		result, err := a.orchestrator.Evaluate(ctx, args[0], args[1], identifier)
		if err != nil {
			return fmt.Errorf("evaluate failed: %w", err)
		}
		return printJSON(result)
	},
}

// classifyCmd represents the classify command
var classifyCmd = &cobra.Command{
	Use:   "classify [argument]",
	Short: "Run only the local fallacy classifier",
	Long: `Classify scores the argument against every canonical fallacy using
the local zero-shot model and prints the predictions above the threshold.
No network requests are made.

Example:
  elenchus classify "If we allow this, society will collapse."`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := argumentText(args)
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if classifyModel != "" {
			cfg.Classifier.ModelPath = classifyModel
		}
		if cmd.Flags().Changed("mode") {
			cfg.Classifier.Mode = classifyMode
		}
		if cmd.Flags().Changed("topk") {
			cfg.Classifier.TopK = classifyTopK
		}
		if cmd.Flags().Changed("threshold") {
			cfg.Classifier.Threshold = classifyThreshold
		}

		tax, err := taxonomy.Load(cfg.Data.FallaciesPath)
		if err != nil {
			return fmt.Errorf("load taxonomy: %w", err)
		}
		mode, err := hypothesis.ParseMode(cfg.Classifier.Mode)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		outcome := classify.New(cfg.Classifier).Classify(ctx, text, tax, mode, cfg.Classifier.TopK, cfg.Classifier.Threshold)
		outcome.Predictions = tax.Reconcile(outcome.Predictions)
		return printJSON(outcome)
	},
}

// titleCmd represents the title command
var titleCmd = &cobra.Command{
	Use:   "title [argument]",
	Short: "Generate a short debate title for an argument",
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := argumentText(args)
		if err != nil {
			return err
		}
		a, err := buildApp()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		title, err := a.orchestrator.Title(ctx, text, identifier)
		if err != nil {
			return fmt.Errorf("title failed: %w", err)
		}
		fmt.Println(title)
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{analyzeCmd, improveCmd, counterCmd, evaluateCmd, classifyCmd, titleCmd} {
		cmd.Flags().StringVar(&identifier, "user", "cli", "identifier for rate limiting")
		cmd.Flags().DurationVar(&opTimeout, "timeout", 2*time.Minute, "overall operation timeout")
		rootCmd.AddCommand(cmd)
	}
	improveCmd.Flags().StringVar(&fallacyType, "fallacy", "", "fallacy to remove (canonical name or alias)")
	counterCmd.Flags().StringVar(&counterCtx, "context", "", "additional debate context")

	classifyCmd.Flags().StringVar(&classifyModel, "model", "", "classifier model directory (overrides config)")
	classifyCmd.Flags().StringVar(&classifyMode, "mode", "base", "hypothesis mode (base, simplify, description, logical-form, masked-logical-form)")
	classifyCmd.Flags().IntVar(&classifyTopK, "topk", 5, "maximum predictions to return")
	classifyCmd.Flags().Float64Var(&classifyThreshold, "threshold", 0.3, "minimum entailment probability")
}
