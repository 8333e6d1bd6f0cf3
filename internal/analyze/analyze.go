// Package analyze orchestrates the local classifier, the LLM gateway,
// the taxonomy and the improved-statement cache into the four user-facing
// operations: analyze, improve, counter-argue and evaluate.
package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/elenchus/internal/classify"
	"github.com/ppiankov/elenchus/internal/gateway"
	"github.com/ppiankov/elenchus/internal/hypothesis"
	"github.com/ppiankov/elenchus/internal/model"
	"github.com/ppiankov/elenchus/internal/prompts"
	"github.com/ppiankov/elenchus/internal/taxonomy"
)

// fallacyPenalty is subtracted from the resistance score per detected
// fallacy when the gateway cannot provide a full assessment.
const fallacyPenalty = 15

// Classifier is the local fallacy detection stage.
type Classifier interface {
	Classify(ctx context.Context, premise string, tax *taxonomy.Taxonomy, mode hypothesis.Mode, topk int, threshold float64) classify.Outcome
}

// Completer is the remote generative stage.
type Completer interface {
	Complete(ctx context.Context, messages []openai.ChatCompletionMessage, identifier string, opts gateway.Options) (string, error)
}

// ImprovedCache suppresses re-analysis loops on already-improved text.
type ImprovedCache interface {
	IsImproved(statement string) bool
	Remember(original, improvedText string) error
}

// Orchestrator wires the stages together.
type Orchestrator struct {
	classifier Classifier
	gw         Completer
	cache      ImprovedCache
	tax        *taxonomy.Taxonomy
	store      *prompts.Store
	cfg        model.ClassifierConfig
	logger     *slog.Logger
}

// New builds an orchestrator. All collaborators are required except
// cache, which may be nil to disable loop suppression.
func New(classifier Classifier, gw Completer, cache ImprovedCache, tax *taxonomy.Taxonomy, store *prompts.Store, cfg model.ClassifierConfig) *Orchestrator {
	return &Orchestrator{
		classifier: classifier,
		gw:         gw,
		cache:      cache,
		tax:        tax,
		store:      store,
		cfg:        cfg,
		logger:     slog.Default(),
	}
}

// Analyze runs the full analysis pipeline over an argument. The local
// classifier is authoritative for fallacy identity; the gateway supplies
// the Toulmin structure, scores and feedback. Gateway failures yield a
// partial result rather than an error.
func (o *Orchestrator) Analyze(ctx context.Context, text, identifier string) (*model.AnalysisResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &gateway.ValidationError{Reason: "empty argument"}
	}

	// A statement the system itself produced is already as strong as it
	// gets; skip the pipeline entirely.
	if o.cache != nil && o.cache.IsImproved(text) {
		return &model.AnalysisResult{
			FallacyResistanceScore:  100,
			LogicalConsistencyScore: 100,
			ClarityScore:            100,
			FallaciesPresent:        []string{},
			Feedback:                "This statement was already improved and shows no detectable fallacies.",
		}, nil
	}

	mode, err := hypothesis.ParseMode(o.cfg.Mode)
	if err != nil {
		mode = hypothesis.ModeBase
	}
	outcome := o.classifier.Classify(ctx, text, o.tax, mode, o.cfg.TopK, o.cfg.Threshold)
	local := o.tax.Reconcile(outcome.Predictions)
	labels := make([]string, len(local))
	for i, p := range local {
		labels[i] = p.Label
	}

	result, gwErr := o.extractToulmin(ctx, text, labels, identifier)
	if gwErr != nil {
		o.logger.Warn("gateway analysis unavailable, returning partial result", "error", gwErr)
		result = &model.AnalysisResult{
			FallacyResistanceScore: degradedResistance(len(labels)),
			Degraded:               true,
			DegradedReason:         fmt.Sprintf("gateway: %v", gwErr),
		}
	}
	if outcome.Degraded {
		result.Degraded = true
		if result.DegradedReason != "" {
			result.DegradedReason += "; "
		}
		result.DegradedReason += "classifier: " + outcome.Reason
	}

	// Local classification wins over whatever the model claimed.
	result.FallaciesPresent = labels
	result.FallacyDetails = local

	if result.ImprovedStatement != "" && o.cache != nil {
		if err := o.cache.Remember(text, result.ImprovedStatement); err != nil {
			o.logger.Warn("failed to persist improved statement", "error", err)
		}
	}
	return result, nil
}

func (o *Orchestrator) extractToulmin(ctx context.Context, text string, labels []string, identifier string) (*model.AnalysisResult, error) {
	tmpl, err := o.store.Get("extract_toulmin")
	if err != nil {
		return nil, err
	}
	fallacies := "none"
	if len(labels) > 0 {
		fallacies = strings.Join(labels, ", ")
	}
	raw, err := o.gw.Complete(ctx, messages(tmpl, map[string]string{
		"ARGUMENT":  text,
		"FALLACIES": fallacies,
	}), identifier, gateway.Options{JSONMode: true})
	if err != nil {
		return nil, err
	}

	var result model.AnalysisResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		o.logger.Warn("unparseable analysis response, keeping raw text", "error", err)
		return &model.AnalysisResult{Raw: raw}, nil
	}
	return &result, nil
}

// Improve rewrites an argument to remove the named fallacy. The improved
// text is remembered so resubmitting it short-circuits analysis.
func (o *Orchestrator) Improve(ctx context.Context, text, fallacyType, identifier string) (*model.ImprovementResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &gateway.ValidationError{Reason: "empty argument"}
	}
	if fallacyType == "" {
		fallacyType = "any detected"
	} else if name, ok := o.tax.Resolve(fallacyType); ok {
		fallacyType = name
	}

	tmpl, err := o.store.Get("support_mode")
	if err != nil {
		return nil, err
	}
	raw, err := o.gw.Complete(ctx, messages(tmpl, map[string]string{
		"ARGUMENT":     text,
		"FALLACY_TYPE": fallacyType,
	}), identifier, gateway.Options{JSONMode: true})
	if err != nil {
		return nil, err
	}

	var result model.ImprovementResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		o.logger.Warn("unparseable improvement response, keeping raw text", "error", err)
		return &model.ImprovementResult{ImprovedArgument: raw, Raw: raw}, nil
	}
	if result.ImprovedArgument != "" && o.cache != nil {
		if err := o.cache.Remember(text, result.ImprovedArgument); err != nil {
			o.logger.Warn("failed to persist improved statement", "error", err)
		}
	}
	return &result, nil
}

// CounterArgue produces an opposing argument as plain text.
func (o *Orchestrator) CounterArgue(ctx context.Context, text, extraContext, identifier string) (*model.CounterResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &gateway.ValidationError{Reason: "empty argument"}
	}
	if extraContext == "" {
		extraContext = "none"
	}

	tmpl, err := o.store.Get("oppose_mode")
	if err != nil {
		return nil, err
	}
	raw, err := o.gw.Complete(ctx, messages(tmpl, map[string]string{
		"ARGUMENT": text,
		"CONTEXT":  extraContext,
	}), identifier, gateway.Options{})
	if err != nil {
		return nil, err
	}
	return &model.CounterResult{Response: raw}, nil
}

// Evaluate judges a user's rebuttal to an opponent argument. The detected
// fallacy is reconciled against the canonical taxonomy; labels outside it
// are dropped.
func (o *Orchestrator) Evaluate(ctx context.Context, opponentArgument, userResponse, identifier string) (*model.EvaluationResult, error) {
	if strings.TrimSpace(opponentArgument) == "" || strings.TrimSpace(userResponse) == "" {
		return nil, &gateway.ValidationError{Reason: "both the opponent argument and the user response are required"}
	}

	tmpl, err := o.store.Get("evaluate_user_response")
	if err != nil {
		return nil, err
	}
	raw, err := o.gw.Complete(ctx, messages(tmpl, map[string]string{
		"OPPONENT_ARGUMENT": opponentArgument,
		"USER_RESPONSE":     userResponse,
		"VALID_FALLACIES":   o.tax.CompactList(),
	}), identifier, gateway.Options{JSONMode: true})
	if err != nil {
		return nil, err
	}

	var result model.EvaluationResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		o.logger.Warn("unparseable evaluation response, keeping raw text", "error", err)
		return &model.EvaluationResult{AnalysisNotes: raw, Raw: raw}, nil
	}
	if result.DetectedFallacy != "" {
		if name, ok := o.tax.Resolve(result.DetectedFallacy); ok {
			result.DetectedFallacy = name
		} else {
			result.DetectedFallacy = ""
		}
	}
	return &result, nil
}

// Title generates a short debate title for an argument.
func (o *Orchestrator) Title(ctx context.Context, text, identifier string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &gateway.ValidationError{Reason: "empty argument"}
	}
	tmpl, err := o.store.Get("generate_title")
	if err != nil {
		return "", err
	}
	raw, err := o.gw.Complete(ctx, messages(tmpl, map[string]string{
		"ARGUMENT": text,
	}), identifier, gateway.Options{MaxTokens: 30})
	if err != nil {
		return "", err
	}
	return strings.Trim(strings.TrimSpace(raw), `"`), nil
}

// Classify exposes the local classification stage directly.
func (o *Orchestrator) Classify(ctx context.Context, text string) classify.Outcome {
	mode, err := hypothesis.ParseMode(o.cfg.Mode)
	if err != nil {
		mode = hypothesis.ModeBase
	}
	outcome := o.classifier.Classify(ctx, text, o.tax, mode, o.cfg.TopK, o.cfg.Threshold)
	outcome.Predictions = o.tax.Reconcile(outcome.Predictions)
	return outcome
}

// degradedResistance estimates resistance from the fallacy count alone.
func degradedResistance(fallacyCount int) int {
	score := 100 - fallacyPenalty*fallacyCount
	if score < 0 {
		return 0
	}
	return score
}

// QualityBand names a resistance score range for display.
func QualityBand(score int) string {
	switch {
	case score >= 70:
		return "strong"
	case score >= 40:
		return "moderate"
	default:
		return "weak"
	}
}

func messages(tmpl prompts.Template, vars map[string]string) []openai.ChatCompletionMessage {
	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: tmpl.Role},
		{Role: openai.ChatMessageRoleUser, Content: tmpl.Render(vars)},
	}
}
