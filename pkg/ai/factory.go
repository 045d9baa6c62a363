package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Config selects and configures a generative backend.
type Config struct {
	Provider  string
	Model     string
	OpenAI    OpenAIConfig
	Anthropic AnthropicConfig
	Gemini    GeminiConfig
	Retry     RetryConfig
}

// NewProvider builds the configured backend wrapped with retries and instrumentation.
func NewProvider(ctx context.Context, cfg Config, logger zerolog.Logger) (Provider, error) {
	var (
		base Provider
		err  error
	)

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "openai":
		openaiCfg := cfg.OpenAI
		if openaiCfg.Model == "" {
			openaiCfg.Model = cfg.Model
		}
		base, err = NewOpenAIProvider(openaiCfg)
	case "anthropic":
		anthropicCfg := cfg.Anthropic
		if anthropicCfg.Model == "" {
			anthropicCfg.Model = cfg.Model
		}
		base, err = NewAnthropicProvider(anthropicCfg)
	case "gemini":
		geminiCfg := cfg.Gemini
		if geminiCfg.Model == "" {
			geminiCfg.Model = cfg.Model
		}
		base, err = NewGeminiProvider(ctx, geminiCfg)
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryConfig()
	}

	return WithInstrumentation(WithRetry(base, retry), logger), nil
}
