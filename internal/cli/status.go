package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show gateway, classifier and cache status",
	Long:  `Display the effective gateway model chain, classifier configuration and improved-statement cache size.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}

		gw := a.gw.Describe()
		status := map[string]interface{}{
			"gateway": gw,
			"classifier": map[string]interface{}{
				"model_path":       a.cfg.Classifier.ModelPath,
				"mode":             a.cfg.Classifier.Mode,
				"topk":             a.cfg.Classifier.TopK,
				"threshold":        a.cfg.Classifier.Threshold,
				"entailment_index": a.cfg.Classifier.EntailmentIndex,
				"taxonomy_size":    a.tax.Len(),
			},
			"rate_limit": map[string]interface{}{
				"max_requests":   a.cfg.RateLimit.MaxRequests,
				"window_seconds": a.cfg.RateLimit.WindowSeconds,
			},
			"improved_cache": map[string]interface{}{
				"dir":                  a.cfg.Cache.Dir,
				"entries":              a.cache.Len(),
				"similarity_threshold": a.cfg.Cache.SimilarityThreshold,
			},
		}
		if !gw.Configured {
			fmt.Fprintln(cmd.ErrOrStderr(), "Warning: no API key configured, gateway operations will fail")
		}
		return printJSON(status)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
