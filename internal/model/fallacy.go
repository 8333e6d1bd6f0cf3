package model

// FallacyDefinition describes one canonical fallacy category.
// Definitions are loaded once at startup from the reference dataset and are
// immutable afterwards; identity is the normalized Name.
type FallacyDefinition struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Alias       string    `json:"alias,omitempty"`
	Description string    `json:"description"`
	Examples    []Example `json:"examples,omitempty"`
}

// Example is a short illustrative scenario for a fallacy.
type Example struct {
	Scenario    string `json:"scenario"`
	Explanation string `json:"explanation,omitempty"`
}

// Prediction is a single classifier detection.
type Prediction struct {
	// Label is the canonical fallacy name.
	Label string `json:"label"`

	// Score is the entailment probability in [0,1].
	Score float64 `json:"score"`
}
