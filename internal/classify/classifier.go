// Package classify implements zero-shot fallacy classification: each
// canonical label is phrased as a hypothesis sentence and scored for
// entailment against the submitted argument by a local
// sequence-classification model. No network calls are involved.
package classify

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/ppiankov/elenchus/internal/hypothesis"
	"github.com/ppiankov/elenchus/internal/model"
	"github.com/ppiankov/elenchus/internal/taxonomy"
)

// Scorer scores how strongly each hypothesis is entailed by the premise.
// Implementations must be safe for concurrent use.
type Scorer interface {
	// Score returns one entailment probability in [0,1] per hypothesis,
	// in input order.
	Score(ctx context.Context, premise string, hypotheses []string) ([]float64, error)
}

// Outcome is a tagged classification result. Degraded distinguishes
// "classifier unavailable" from "no fallacies found": both carry empty
// predictions, but only the former sets Degraded with a reason.
type Outcome struct {
	Predictions []model.Prediction `json:"predictions"`
	Degraded    bool               `json:"degraded,omitempty"`
	Reason      string             `json:"degraded_reason,omitempty"`
}

type handleKey struct {
	modelPath   string
	mappingPath string
	mode        hypothesis.Mode
}

// handle owns the loaded scorer and mapping table for one key. A failed
// load is cached as well, so a broken model directory does not trigger an
// expensive load attempt on every request.
type handle struct {
	scorer Scorer
	table  hypothesis.Table
	err    error
}

// Classifier owns the process-wide cache of model handles. Handles are
// created lazily on first use and live for the process lifetime.
type Classifier struct {
	cfg    model.ClassifierConfig
	logger *slog.Logger

	mu      sync.Mutex
	handles map[handleKey]*handle

	// newScorer builds the inference backend; replaced in tests.
	newScorer func(modelPath string, entailmentIndex int) (Scorer, error)
}

// New creates a classifier for the given configuration.
func New(cfg model.ClassifierConfig) *Classifier {
	return &Classifier{
		cfg:       cfg,
		logger:    slog.Default(),
		handles:   make(map[handleKey]*handle),
		newScorer: newONNXScorer,
	}
}

// Classify scores the premise against every canonical label and returns the
// ranked, thresholded predictions. It never returns an error: when the model
// cannot be loaded or scored the outcome degrades to empty predictions with
// Degraded set.
func (c *Classifier) Classify(ctx context.Context, premise string, tax *taxonomy.Taxonomy, mode hypothesis.Mode, topk int, threshold float64) Outcome {
	if tax == nil || tax.Len() == 0 {
		return Outcome{Degraded: true, Reason: "empty taxonomy"}
	}

	h := c.handle(handleKey{
		modelPath:   c.cfg.ModelPath,
		mappingPath: c.cfg.MappingPath,
		mode:        mode,
	})
	if h.err != nil {
		return Outcome{Degraded: true, Reason: h.err.Error()}
	}

	defs := tax.Definitions()
	labels := make([]string, len(defs))
	hyps := make([]string, len(defs))
	for i, d := range defs {
		labels[i] = d.Name
		hyps[i] = hypothesis.Build(d.Name, h.table, mode)
	}

	scores, err := h.scorer.Score(ctx, premise, hyps)
	if err != nil {
		c.logger.Warn("local classification failed", "error", err)
		return Outcome{Degraded: true, Reason: err.Error()}
	}

	preds := make([]model.Prediction, 0, len(labels))
	for i, label := range labels {
		if i < len(scores) {
			preds = append(preds, model.Prediction{Label: label, Score: scores[i]})
		}
	}

	// Stable sort keeps taxonomy order for tied scores.
	sort.SliceStable(preds, func(i, j int) bool {
		return preds[i].Score > preds[j].Score
	})

	kept := make([]model.Prediction, 0, topk)
	for _, p := range preds {
		if len(kept) >= topk {
			break
		}
		if p.Score < threshold {
			break
		}
		kept = append(kept, p)
	}
	return Outcome{Predictions: kept}
}

// handle returns the cached handle for the key, loading it on first use.
func (c *Classifier) handle(key handleKey) *handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h, ok := c.handles[key]; ok {
		return h
	}

	h := &handle{}
	h.table, h.err = hypothesis.LoadTable(key.mappingPath)
	if h.err == nil {
		h.scorer, h.err = c.newScorer(key.modelPath, c.cfg.EntailmentIndex)
	}
	if h.err != nil {
		c.logger.Warn("classifier load failed, caching failure",
			"model_path", key.modelPath, "error", h.err)
	}
	c.handles[key] = h
	return h
}
