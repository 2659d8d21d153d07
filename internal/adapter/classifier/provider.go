package classifier

import (
	"context"
	"fmt"

	"github.com/sutakip/sutakip/internal/config"
)

// NewCompleter returns the backend selected by CLASSIFIER_PROVIDER.
func NewCompleter(ctx context.Context, cfg *config.Config) (Completer, error) {
	switch cfg.ClassifierProvider {
	case config.ProviderOpenAI:
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.ClassifierTimeout), nil
	case config.ProviderGemini:
		return NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	default:
		return nil, fmt.Errorf("unknown classifier provider %q", cfg.ClassifierProvider)
	}
}
