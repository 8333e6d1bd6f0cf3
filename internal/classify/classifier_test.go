package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/ppiankov/elenchus/internal/hypothesis"
	"github.com/ppiankov/elenchus/internal/model"
	"github.com/ppiankov/elenchus/internal/taxonomy"
)

type fakeScorer struct {
	scores []float64
	err    error
	calls  int
}

func (f *fakeScorer) Score(_ context.Context, _ string, hyps []string) ([]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]float64, len(hyps))
	copy(out, f.scores)
	return out, nil
}

func testClassifier(t *testing.T, s Scorer) *Classifier {
	t.Helper()
	c := New(model.ClassifierConfig{EntailmentIndex: 0})
	c.newScorer = func(string, int) (Scorer, error) { return s, nil }
	return c
}

func loadTaxonomy(t *testing.T) *taxonomy.Taxonomy {
	t.Helper()
	tax, err := taxonomy.Load("")
	if err != nil {
		t.Fatal(err)
	}
	return tax
}

func TestClassify_SortedAndThresholded(t *testing.T) {
	tax := loadTaxonomy(t)
	scores := make([]float64, tax.Len())
	for i := range scores {
		scores[i] = float64(i) / float64(tax.Len())
	}
	c := testClassifier(t, &fakeScorer{scores: scores})

	out := c.Classify(context.Background(), "text", tax, hypothesis.ModeBase, tax.Len(), 0.3)
	if out.Degraded {
		t.Fatalf("unexpected degraded outcome: %s", out.Reason)
	}
	if len(out.Predictions) == 0 {
		t.Fatal("expected predictions above threshold")
	}
	for i, p := range out.Predictions {
		if p.Score < 0.3 {
			t.Errorf("prediction %d below threshold: %+v", i, p)
		}
		if i > 0 && out.Predictions[i-1].Score < p.Score {
			t.Errorf("predictions not sorted descending at %d", i)
		}
	}
}

func TestClassify_HigherThresholdYieldsSubset(t *testing.T) {
	tax := loadTaxonomy(t)
	scores := make([]float64, tax.Len())
	for i := range scores {
		scores[i] = float64(tax.Len()-i) / float64(tax.Len()+1)
	}
	c := testClassifier(t, &fakeScorer{scores: scores})

	loose := c.Classify(context.Background(), "text", tax, hypothesis.ModeBase, tax.Len(), 0.2)
	strict := c.Classify(context.Background(), "text", tax, hypothesis.ModeBase, tax.Len(), 0.5)

	if len(strict.Predictions) > len(loose.Predictions) {
		t.Fatalf("strict threshold returned more: %d > %d", len(strict.Predictions), len(loose.Predictions))
	}
	inLoose := make(map[string]bool, len(loose.Predictions))
	for _, p := range loose.Predictions {
		inLoose[p.Label] = true
	}
	for _, p := range strict.Predictions {
		if !inLoose[p.Label] {
			t.Errorf("strict result %q missing from loose result", p.Label)
		}
	}
}

func TestClassify_TopK(t *testing.T) {
	tax := loadTaxonomy(t)
	scores := make([]float64, tax.Len())
	for i := range scores {
		scores[i] = 0.9
	}
	c := testClassifier(t, &fakeScorer{scores: scores})

	out := c.Classify(context.Background(), "text", tax, hypothesis.ModeBase, 3, 0.1)
	if len(out.Predictions) != 3 {
		t.Fatalf("expected 3 predictions, got %d", len(out.Predictions))
	}
	// Uniform scores keep taxonomy order under stable sort.
	defs := tax.Definitions()
	for i, p := range out.Predictions {
		if p.Label != defs[i].Name {
			t.Errorf("prediction %d = %q, want taxonomy order %q", i, p.Label, defs[i].Name)
		}
	}
}

func TestClassify_ScoreErrorDegrades(t *testing.T) {
	tax := loadTaxonomy(t)
	c := testClassifier(t, &fakeScorer{err: errors.New("boom")})

	out := c.Classify(context.Background(), "text", tax, hypothesis.ModeBase, 5, 0.3)
	if !out.Degraded {
		t.Fatal("expected degraded outcome")
	}
	if len(out.Predictions) != 0 {
		t.Errorf("degraded outcome should carry no predictions: %+v", out.Predictions)
	}
	if out.Reason == "" {
		t.Error("degraded outcome should carry a reason")
	}
}

func TestClassify_LoadFailureCached(t *testing.T) {
	tax := loadTaxonomy(t)
	c := New(model.ClassifierConfig{ModelPath: "/nonexistent"})
	loads := 0
	c.newScorer = func(string, int) (Scorer, error) {
		loads++
		return nil, errors.New("model not found")
	}

	for i := 0; i < 3; i++ {
		out := c.Classify(context.Background(), "text", tax, hypothesis.ModeBase, 5, 0.3)
		if !out.Degraded {
			t.Fatal("expected degraded outcome")
		}
	}
	if loads != 1 {
		t.Errorf("load attempted %d times, want 1", loads)
	}
}

func TestClassify_HandleReused(t *testing.T) {
	tax := loadTaxonomy(t)
	fs := &fakeScorer{scores: make([]float64, tax.Len())}
	c := New(model.ClassifierConfig{})
	loads := 0
	c.newScorer = func(string, int) (Scorer, error) {
		loads++
		return fs, nil
	}

	c.Classify(context.Background(), "a", tax, hypothesis.ModeBase, 5, 0.3)
	c.Classify(context.Background(), "b", tax, hypothesis.ModeBase, 5, 0.3)
	if loads != 1 {
		t.Errorf("scorer loaded %d times, want 1", loads)
	}
	if fs.calls != 2 {
		t.Errorf("scorer called %d times, want 2", fs.calls)
	}
}

func TestClassify_EmptyTaxonomy(t *testing.T) {
	c := testClassifier(t, &fakeScorer{})
	out := c.Classify(context.Background(), "text", nil, hypothesis.ModeBase, 5, 0.3)
	if !out.Degraded {
		t.Fatal("nil taxonomy should degrade")
	}
}
