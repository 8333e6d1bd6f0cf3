package model

// ToulminElement is one factor of the Toulmin decomposition.
type ToulminElement struct {
	Text     string `json:"text"`
	Strength int    `json:"strength"` // 0-10
}

// ToulminElements holds the six Toulmin factors.
type ToulminElements struct {
	Claim     ToulminElement `json:"claim"`
	Data      ToulminElement `json:"data"`
	Warrant   ToulminElement `json:"warrant"`
	Backing   ToulminElement `json:"backing"`
	Qualifier ToulminElement `json:"qualifier"`
	Rebuttal  ToulminElement `json:"rebuttal"`
}

// AnalysisResult is the structured output of the analyze operation.
//
// Fallacy identity always comes from the local classifier; the generative
// gateway contributes only the qualitative structure and feedback. When the
// gateway is unavailable the result is partial: classifier output plus a
// degraded resistance score, with Degraded/DegradedReason set.
type AnalysisResult struct {
	Elements ToulminElements `json:"elements"`

	FallacyResistanceScore  int `json:"fallacy_resistance_score"`  // 0-100
	LogicalConsistencyScore int `json:"logical_consistency_score"` // 0-100
	ClarityScore            int `json:"clarity_score"`             // 0-100

	FallaciesPresent []string     `json:"fallacies_present"`
	FallacyDetails   []Prediction `json:"fallacy_details,omitempty"`

	ImprovedStatement string `json:"improved_statement,omitempty"`
	Feedback          string `json:"feedback,omitempty"`

	// Raw carries the gateway's text when it could not be parsed as the
	// expected JSON schema. A raw result is recoverable, not fatal.
	Raw string `json:"raw_response,omitempty"`

	// Degraded reports that some stage was unavailable and the result is
	// partial. Reason names the stage (e.g. "gateway", "classifier").
	Degraded       bool   `json:"degraded,omitempty"`
	DegradedReason string `json:"degraded_reason,omitempty"`
}

// ImprovementResult is the output of the improve operation.
type ImprovementResult struct {
	ImprovedArgument string `json:"improved_argument"`
	Explanation      string `json:"explanation,omitempty"`
	Raw              string `json:"raw_response,omitempty"`
}

// CounterResult is the output of the counter-argue operation.
type CounterResult struct {
	Response string `json:"response"`
}

// EvaluationResult is the output of the evaluate operation.
type EvaluationResult struct {
	DetectedFallacy        string         `json:"detected_fallacy,omitempty"`
	UserCounteredCorrectly bool           `json:"user_countered_correctly"`
	ToulminScores          map[string]int `json:"toulmin_scores,omitempty"`
	OverallReasoningScore  int            `json:"overall_reasoning_score"`
	AnalysisNotes          string         `json:"analysis_notes,omitempty"`
	Raw                    string         `json:"raw_response,omitempty"`
}
