package classify

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"
)

var ortInit sync.Once

// onnxScorer runs a local sequence-classification model exported to ONNX.
// The model directory must contain model.onnx and tokenizer.json.
type onnxScorer struct {
	mu              sync.Mutex
	session         *ort.DynamicAdvancedSession
	tk              *tokenizer.Tokenizer
	entailmentIndex int
}

// newONNXScorer loads the model and tokenizer from modelPath. The
// onnxruntime shared library location can be overridden with
// ONNXRUNTIME_SHARED_LIBRARY_PATH.
func newONNXScorer(modelPath string, entailmentIndex int) (Scorer, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("no classifier model path configured")
	}

	ortInit.Do(func() {
		if p := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH"); p != "" {
			ort.SetSharedLibraryPath(p)
		}
	})
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	tk, err := pretrained.FromFile(filepath.Join(modelPath, "tokenizer.json"))
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(
		filepath.Join(modelPath, "model.onnx"),
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"logits"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("load onnx model: %w", err)
	}

	return &onnxScorer{
		session:         session,
		tk:              tk,
		entailmentIndex: entailmentIndex,
	}, nil
}

// Score tokenizes (premise, hypothesis) pairs, runs one batched forward
// pass and returns the softmax probability of the entailment column for
// each pair.
func (s *onnxScorer) Score(ctx context.Context, premise string, hypotheses []string) ([]float64, error) {
	if len(hypotheses) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	encs := make([]*tokenizer.Encoding, len(hypotheses))
	maxLen := 0
	for i, hyp := range hypotheses {
		enc, err := s.tk.EncodePair(premise, hyp, true)
		if err != nil {
			return nil, fmt.Errorf("tokenize pair: %w", err)
		}
		encs[i] = enc
		if n := len(enc.GetIds()); n > maxLen {
			maxLen = n
		}
	}

	n := len(encs)
	ids := make([]int64, n*maxLen)
	mask := make([]int64, n*maxLen)
	types := make([]int64, n*maxLen)
	for i, enc := range encs {
		off := i * maxLen
		for j, id := range enc.GetIds() {
			ids[off+j] = int64(id)
		}
		for j, m := range enc.GetAttentionMask() {
			mask[off+j] = int64(m)
		}
		for j, t := range enc.GetTypeIds() {
			types[off+j] = int64(t)
		}
	}

	shape := ort.NewShape(int64(n), int64(maxLen))
	idsT, err := ort.NewTensor(shape, ids)
	if err != nil {
		return nil, fmt.Errorf("build input tensor: %w", err)
	}
	defer idsT.Destroy()
	maskT, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, fmt.Errorf("build input tensor: %w", err)
	}
	defer maskT.Destroy()
	typesT, err := ort.NewTensor(shape, types)
	if err != nil {
		return nil, fmt.Errorf("build input tensor: %w", err)
	}
	defer typesT.Destroy()

	outputs := []ort.Value{nil}

	// The onnxruntime session is not reentrant.
	s.mu.Lock()
	err = s.session.Run([]ort.Value{idsT, maskT, typesT}, outputs)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("run inference: %w", err)
	}
	logitsT, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type %T", outputs[0])
	}
	defer logitsT.Destroy()

	logits := logitsT.GetData()
	if n == 0 || len(logits)%n != 0 {
		return nil, fmt.Errorf("ragged logits: %d values for %d pairs", len(logits), n)
	}
	classes := len(logits) / n
	if s.entailmentIndex < 0 || s.entailmentIndex >= classes {
		return nil, fmt.Errorf("entailment index %d out of range for %d classes", s.entailmentIndex, classes)
	}

	scores := make([]float64, n)
	for i := 0; i < n; i++ {
		row := logits[i*classes : (i+1)*classes]
		scores[i] = softmaxAt(row, s.entailmentIndex)
	}
	return scores, nil
}

// softmaxAt returns softmax(row)[idx], shifted by the row max for
// numerical stability.
func softmaxAt(row []float32, idx int) float64 {
	max := row[0]
	for _, v := range row[1:] {
		if v > max {
			max = v
		}
	}
	var sum float64
	for _, v := range row {
		sum += math.Exp(float64(v - max))
	}
	return math.Exp(float64(row[idx]-max)) / sum
}
