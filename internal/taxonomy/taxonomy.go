// Package taxonomy owns the canonical fallacy taxonomy and label
// reconciliation. Every detection in the system, whether it comes from the
// local classifier or from an LLM's free-text output, is normalized and
// matched against this fixed set; labels with no match are dropped, never
// guessed.
package taxonomy

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/ppiankov/elenchus/internal/model"
)

//go:embed data/fallacies.json
var bundled embed.FS

var (
	parenRe    = regexp.MustCompile(`\(.*?\)`)
	nonAlnumRe = regexp.MustCompile(`[^a-z0-9\s]`)
)

// NormalizeLabel normalizes a fallacy label for robust matching: strips
// parenthetical phrases, lowercases, removes punctuation (keeping
// alphanumerics and spaces) and collapses whitespace.
func NormalizeLabel(name string) string {
	if name == "" {
		return ""
	}
	name = parenRe.ReplaceAllString(name, "")
	name = nonAlnumRe.ReplaceAllString(strings.ToLower(name), "")
	return strings.Join(strings.Fields(name), " ")
}

// Taxonomy is the fixed, authoritative list of fallacy categories.
type Taxonomy struct {
	defs  []model.FallacyDefinition
	byKey map[string]string // normalized name/alias -> canonical name
}

type fallacyFile struct {
	Fallacies []model.FallacyDefinition `json:"fallacies"`
}

// Load reads the taxonomy from a JSON reference file, or the bundled dataset
// when path is empty.
func Load(path string) (*Taxonomy, error) {
	var data []byte
	var err error
	if path == "" {
		data, err = bundled.ReadFile("data/fallacies.json")
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read taxonomy: %w", err)
	}

	var file fallacyFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}
	if len(file.Fallacies) == 0 {
		return nil, fmt.Errorf("taxonomy is empty")
	}

	return New(file.Fallacies), nil
}

// New builds a taxonomy from definitions. Order is preserved; it breaks
// classifier score ties.
func New(defs []model.FallacyDefinition) *Taxonomy {
	t := &Taxonomy{
		defs:  defs,
		byKey: make(map[string]string, len(defs)*2),
	}
	for _, d := range defs {
		if key := NormalizeLabel(d.Name); key != "" {
			if _, dup := t.byKey[key]; !dup {
				t.byKey[key] = d.Name
			}
		}
		if key := NormalizeLabel(d.Alias); key != "" {
			if _, dup := t.byKey[key]; !dup {
				t.byKey[key] = d.Name
			}
		}
	}
	return t
}

// Definitions returns the ordered canonical definitions.
func (t *Taxonomy) Definitions() []model.FallacyDefinition {
	return t.defs
}

// Len returns the number of canonical categories.
func (t *Taxonomy) Len() int {
	return len(t.defs)
}

// Resolve maps an arbitrary label spelling onto the canonical name.
// The second return is false when the label does not belong to the taxonomy.
func (t *Taxonomy) Resolve(raw string) (string, bool) {
	name, ok := t.byKey[NormalizeLabel(raw)]
	return name, ok
}

// Reconcile filters predictions onto the canonical taxonomy, rewriting
// labels to their canonical spelling and dropping unmatched ones.
func (t *Taxonomy) Reconcile(preds []model.Prediction) []model.Prediction {
	out := make([]model.Prediction, 0, len(preds))
	for _, p := range preds {
		name, ok := t.Resolve(p.Label)
		if !ok {
			continue
		}
		out = append(out, model.Prediction{Label: name, Score: p.Score})
	}
	return out
}

// Definition returns the definition for a canonical or aliased label.
func (t *Taxonomy) Definition(raw string) (model.FallacyDefinition, bool) {
	name, ok := t.Resolve(raw)
	if !ok {
		return model.FallacyDefinition{}, false
	}
	for _, d := range t.defs {
		if d.Name == name {
			return d, true
		}
	}
	return model.FallacyDefinition{}, false
}

// CompactList renders one line per fallacy for LLM prompts.
func (t *Taxonomy) CompactList() string {
	lines := make([]string, 0, len(t.defs))
	for _, d := range t.defs {
		lines = append(lines, fmt.Sprintf("• %s (%s): %s", d.Name, d.Alias, d.Description))
	}
	return strings.Join(lines, "\n")
}

// PromptList renders fallacies with examples for LLM prompts.
func (t *Taxonomy) PromptList() string {
	blocks := make([]string, 0, len(t.defs))
	for _, d := range t.defs {
		b := fmt.Sprintf("- **%s** (%s): %s", d.Name, d.Alias, d.Description)
		for _, ex := range d.Examples {
			b += fmt.Sprintf("\n  Example: %q", ex.Scenario)
		}
		blocks = append(blocks, b)
	}
	return strings.Join(blocks, "\n")
}
