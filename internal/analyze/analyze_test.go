package analyze

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/elenchus/internal/classify"
	"github.com/ppiankov/elenchus/internal/gateway"
	"github.com/ppiankov/elenchus/internal/hypothesis"
	"github.com/ppiankov/elenchus/internal/model"
	"github.com/ppiankov/elenchus/internal/prompts"
	"github.com/ppiankov/elenchus/internal/taxonomy"
)

type fakeClassifier struct {
	outcome classify.Outcome
	calls   int
}

func (f *fakeClassifier) Classify(_ context.Context, _ string, _ *taxonomy.Taxonomy, _ hypothesis.Mode, _ int, _ float64) classify.Outcome {
	f.calls++
	return f.outcome
}

type fakeCompleter struct {
	response string
	err      error
	calls    int
	lastMsgs []openai.ChatCompletionMessage
}

func (f *fakeCompleter) Complete(_ context.Context, msgs []openai.ChatCompletionMessage, _ string, _ gateway.Options) (string, error) {
	f.calls++
	f.lastMsgs = msgs
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type fakeCache struct {
	improved   map[string]bool
	remembered []string
}

func (f *fakeCache) IsImproved(s string) bool { return f.improved[s] }
func (f *fakeCache) Remember(_, improvedText string) error {
	f.remembered = append(f.remembered, improvedText)
	return nil
}

func newOrchestrator(t *testing.T, cl *fakeClassifier, gw *fakeCompleter, cache *fakeCache) *Orchestrator {
	t.Helper()
	tax, err := taxonomy.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg := model.ClassifierConfig{Mode: "base", TopK: 5, Threshold: 0.3}
	return New(cl, gw, cache, tax, prompts.NewStore(), cfg)
}

func TestAnalyze_CachedImprovedShortCircuits(t *testing.T) {
	cl := &fakeClassifier{}
	gw := &fakeCompleter{}
	cache := &fakeCache{improved: map[string]bool{"Already polished.": true}}
	o := newOrchestrator(t, cl, gw, cache)

	result, err := o.Analyze(context.Background(), "Already polished.", "user")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if result.FallacyResistanceScore != 100 {
		t.Errorf("resistance = %d, want 100", result.FallacyResistanceScore)
	}
	if len(result.FallaciesPresent) != 0 {
		t.Errorf("expected no fallacies, got %v", result.FallaciesPresent)
	}
	if cl.calls != 0 || gw.calls != 0 {
		t.Errorf("short-circuit must skip classifier (%d calls) and gateway (%d calls)", cl.calls, gw.calls)
	}
}

func TestAnalyze_LocalClassifierAuthoritative(t *testing.T) {
	cl := &fakeClassifier{outcome: classify.Outcome{Predictions: []model.Prediction{
		{Label: "Bandwagon", Score: 0.8},
	}}}
	gw := &fakeCompleter{response: `{
		"claim": {"text": "c", "strength": 7},
		"fallacy_resistance_score": 60,
		"fallacies_present": ["Slippery Slope", "Made Up"],
		"improved_statement": "A better version.",
		"feedback": "ok"
	}`}
	cache := &fakeCache{improved: map[string]bool{}}
	o := newOrchestrator(t, cl, gw, cache)

	result, err := o.Analyze(context.Background(), "Everyone does it.", "user")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(result.FallaciesPresent) != 1 || result.FallaciesPresent[0] != "Bandwagon" {
		t.Errorf("local classifier must own fallacy identity, got %v", result.FallaciesPresent)
	}
	if result.FallacyResistanceScore != 60 {
		t.Errorf("gateway scores should pass through, got %d", result.FallacyResistanceScore)
	}
	if len(cache.remembered) != 1 || cache.remembered[0] != "A better version." {
		t.Errorf("improved statement should be remembered, got %v", cache.remembered)
	}
}

func TestAnalyze_GatewayFailurePartialResult(t *testing.T) {
	cl := &fakeClassifier{outcome: classify.Outcome{Predictions: []model.Prediction{
		{Label: "Ad Hominem", Score: 0.9},
		{Label: "Strawman", Score: 0.6},
	}}}
	gw := &fakeCompleter{err: errors.New("all models down")}
	o := newOrchestrator(t, cl, gw, &fakeCache{improved: map[string]bool{}})

	result, err := o.Analyze(context.Background(), "You would say that, you're a lobbyist.", "user")
	if err != nil {
		t.Fatalf("gateway failure must not be fatal: %v", err)
	}
	if !result.Degraded {
		t.Error("partial result should be marked degraded")
	}
	if result.FallacyResistanceScore != 70 {
		t.Errorf("resistance = %d, want 100-15*2 = 70", result.FallacyResistanceScore)
	}
	if len(result.FallaciesPresent) != 2 {
		t.Errorf("local fallacies should survive gateway failure: %v", result.FallaciesPresent)
	}
}

func TestAnalyze_DegradedResistanceFloor(t *testing.T) {
	if got := degradedResistance(10); got != 0 {
		t.Errorf("degradedResistance(10) = %d, want 0", got)
	}
	if got := degradedResistance(0); got != 100 {
		t.Errorf("degradedResistance(0) = %d, want 100", got)
	}
}

func TestAnalyze_UnparseableResponseKeepsRaw(t *testing.T) {
	cl := &fakeClassifier{outcome: classify.Outcome{Predictions: []model.Prediction{
		{Label: "Bandwagon", Score: 0.8},
	}}}
	gw := &fakeCompleter{response: "I think this argument is fine, honestly."}
	o := newOrchestrator(t, cl, gw, &fakeCache{improved: map[string]bool{}})

	result, err := o.Analyze(context.Background(), "Everyone does it.", "user")
	if err != nil {
		t.Fatalf("unparseable response must not be fatal: %v", err)
	}
	if result.Raw == "" {
		t.Error("raw text should be preserved")
	}
	if len(result.FallaciesPresent) != 1 {
		t.Errorf("local fallacies should still be present: %v", result.FallaciesPresent)
	}
}

func TestAnalyze_ClassifierDegradedPropagates(t *testing.T) {
	cl := &fakeClassifier{outcome: classify.Outcome{Degraded: true, Reason: "model not found"}}
	gw := &fakeCompleter{response: `{"fallacy_resistance_score": 80}`}
	o := newOrchestrator(t, cl, gw, &fakeCache{improved: map[string]bool{}})

	result, err := o.Analyze(context.Background(), "Some argument.", "user")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Degraded {
		t.Error("classifier degradation should mark the result degraded")
	}
	if result.DegradedReason == "" {
		t.Error("degraded reason should name the failed stage")
	}
}

func TestAnalyze_EmptyText(t *testing.T) {
	o := newOrchestrator(t, &fakeClassifier{}, &fakeCompleter{}, nil)
	_, err := o.Analyze(context.Background(), "   ", "user")
	var verr *gateway.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestImprove_RemembersResult(t *testing.T) {
	gw := &fakeCompleter{response: `{"improved_argument": "Stronger claim.", "explanation": "e"}`}
	cache := &fakeCache{improved: map[string]bool{}}
	o := newOrchestrator(t, &fakeClassifier{}, gw, cache)

	result, err := o.Improve(context.Background(), "Weak claim.", "ad populum", "user")
	if err != nil {
		t.Fatalf("Improve failed: %v", err)
	}
	if result.ImprovedArgument != "Stronger claim." {
		t.Errorf("unexpected improvement: %+v", result)
	}
	if len(cache.remembered) != 1 || cache.remembered[0] != "Stronger claim." {
		t.Errorf("improvement should be remembered, got %v", cache.remembered)
	}
	// The alias should resolve to the canonical name in the prompt.
	user := gw.lastMsgs[len(gw.lastMsgs)-1].Content
	if !strings.Contains(user, "Bandwagon") {
		t.Errorf("prompt should carry the canonical fallacy name, got %q", user)
	}
}

func TestCounterArgue_PlainText(t *testing.T) {
	gw := &fakeCompleter{response: "On the contrary, the evidence shows otherwise."}
	o := newOrchestrator(t, &fakeClassifier{}, gw, nil)

	result, err := o.CounterArgue(context.Background(), "Cats are the best pets.", "", "user")
	if err != nil {
		t.Fatalf("CounterArgue failed: %v", err)
	}
	if result.Response != "On the contrary, the evidence shows otherwise." {
		t.Errorf("unexpected response: %q", result.Response)
	}
}

func TestEvaluate_ReconcilesDetectedFallacy(t *testing.T) {
	gw := &fakeCompleter{response: `{
		"detected_fallacy": "ad populum",
		"user_countered_correctly": true,
		"overall_reasoning_score": 85
	}`}
	o := newOrchestrator(t, &fakeClassifier{}, gw, nil)

	result, err := o.Evaluate(context.Background(), "Everyone does it.", "Popularity is not evidence.", "user")
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if result.DetectedFallacy != "Bandwagon" {
		t.Errorf("detected fallacy should reconcile to canonical name, got %q", result.DetectedFallacy)
	}
	if !result.UserCounteredCorrectly || result.OverallReasoningScore != 85 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestEvaluate_UnknownFallacyDropped(t *testing.T) {
	gw := &fakeCompleter{response: `{"detected_fallacy": "Gish Gallop", "overall_reasoning_score": 50}`}
	o := newOrchestrator(t, &fakeClassifier{}, gw, nil)

	result, err := o.Evaluate(context.Background(), "a", "b", "user")
	if err != nil {
		t.Fatal(err)
	}
	if result.DetectedFallacy != "" {
		t.Errorf("labels outside the taxonomy must be dropped, got %q", result.DetectedFallacy)
	}
}

func TestTitle_TrimsQuotes(t *testing.T) {
	gw := &fakeCompleter{response: `"The Best Pets Debate"`}
	o := newOrchestrator(t, &fakeClassifier{}, gw, nil)

	title, err := o.Title(context.Background(), "Cats are the best pets.", "user")
	if err != nil {
		t.Fatalf("Title failed: %v", err)
	}
	if title != "The Best Pets Debate" {
		t.Errorf("Title = %q", title)
	}
}

func TestClassify_ReconcilesLabels(t *testing.T) {
	cl := &fakeClassifier{outcome: classify.Outcome{Predictions: []model.Prediction{
		{Label: "ad populum", Score: 0.7},
		{Label: "Not A Real Fallacy", Score: 0.6},
	}}}
	o := newOrchestrator(t, cl, &fakeCompleter{}, nil)

	outcome := o.Classify(context.Background(), "Everyone does it.")
	if len(outcome.Predictions) != 1 || outcome.Predictions[0].Label != "Bandwagon" {
		t.Errorf("expected reconciled Bandwagon only, got %+v", outcome.Predictions)
	}
}

func TestQualityBand(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{100, "strong"}, {70, "strong"}, {69, "moderate"}, {40, "moderate"}, {39, "weak"}, {0, "weak"},
	}
	for _, tt := range tests {
		if got := QualityBand(tt.score); got != tt.want {
			t.Errorf("QualityBand(%d) = %q, want %q", tt.score, got, tt.want)
		}
	}
}
