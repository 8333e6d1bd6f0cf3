package model

// Config holds the full application configuration.
type Config struct {
	Gateway    GatewayConfig    `yaml:"gateway" mapstructure:"gateway"`
	Classifier ClassifierConfig `yaml:"classifier" mapstructure:"classifier"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit" mapstructure:"rate_limit"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Data       DataConfig       `yaml:"data" mapstructure:"data"`
}

// GatewayConfig configures the remote LLM gateway.
type GatewayConfig struct {
	// APIKey authenticates against the endpoint. Usually set via
	// OPENROUTER_API_KEY / OPENAI_API_KEY rather than the config file.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`

	// BaseURL is an OpenAI-protocol endpoint. Defaults to OpenRouter.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// Model is the primary model, tried first.
	Model string `yaml:"model" mapstructure:"model"`

	// FallbackModels are tried in declared order after the primary fails.
	FallbackModels []string `yaml:"fallback_models" mapstructure:"fallback_models"`

	// Timeout is the per-attempt wall-clock limit in seconds.
	Timeout int `yaml:"timeout" mapstructure:"timeout"`

	// MaxTokens bounds the response length per attempt.
	MaxTokens int `yaml:"max_tokens" mapstructure:"max_tokens"`

	// MaxInputChars caps total message content per request.
	MaxInputChars int `yaml:"max_input_chars" mapstructure:"max_input_chars"`

	// Temperature is the default sampling temperature.
	Temperature float32 `yaml:"temperature" mapstructure:"temperature"`

	// RequestsPerSecond paces outbound attempts across the fallback chain.
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// ClassifierConfig configures the local zero-shot classifier.
type ClassifierConfig struct {
	// ModelPath is the directory holding model.onnx and tokenizer.json.
	ModelPath string `yaml:"model_path" mapstructure:"model_path"`

	// MappingPath is an optional CSV of per-label hypothesis fields.
	// Empty means the bundled mapping table.
	MappingPath string `yaml:"mapping_path" mapstructure:"mapping_path"`

	// Mode selects the hypothesis phrasing strategy.
	Mode string `yaml:"mode" mapstructure:"mode"`

	// TopK bounds how many predictions are returned.
	TopK int `yaml:"topk" mapstructure:"topk"`

	// Threshold drops predictions scoring below it.
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"`

	// EntailmentIndex is the logit column holding the entailment class.
	// 0 for the electra-logic checkpoints, 2 for MNLI-style label maps.
	EntailmentIndex int `yaml:"entailment_index" mapstructure:"entailment_index"`
}

// RateLimitConfig configures per-identifier admission control.
type RateLimitConfig struct {
	MaxRequests   int `yaml:"max_requests" mapstructure:"max_requests"`
	WindowSeconds int `yaml:"window_seconds" mapstructure:"window_seconds"`
}

// CacheConfig configures the improved-statement cache.
type CacheConfig struct {
	// Dir holds the persisted improved-statement file.
	Dir string `yaml:"dir" mapstructure:"dir"`

	// SimilarityThreshold is the fuzzy-match cutoff for loop suppression.
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`

	// MaxEntries bounds the persisted map; oldest entries are evicted.
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries"`
}

// DataConfig points at external reference data overriding the bundled sets.
type DataConfig struct {
	// FallaciesPath is an optional JSON file with the canonical taxonomy.
	FallaciesPath string `yaml:"fallacies_path" mapstructure:"fallacies_path"`

	// TemplatesPath is an optional JSON file with prompt templates.
	TemplatesPath string `yaml:"templates_path" mapstructure:"templates_path"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Gateway: GatewayConfig{
			BaseURL: "https://openrouter.ai/api/v1",
			Model:   "meta-llama/llama-3.3-70b-instruct:free",
			FallbackModels: []string{
				"google/gemini-2.0-flash-exp:free",
				"meta-llama/llama-3.2-3b-instruct:free",
				"qwen/qwen-2-7b-instruct:free",
			},
			Timeout:           30,
			MaxTokens:         1500,
			MaxInputChars:     10000,
			Temperature:       0.7,
			RequestsPerSecond: 2,
		},
		Classifier: ClassifierConfig{
			Mode:            "base",
			TopK:            5,
			Threshold:       0.3,
			EntailmentIndex: 0,
		},
		RateLimit: RateLimitConfig{
			MaxRequests:   10,
			WindowSeconds: 60,
		},
		Cache: CacheConfig{
			SimilarityThreshold: 0.90,
			MaxEntries:          10000,
		},
	}
}
