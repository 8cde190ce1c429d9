package embedder

import (
	"fmt"

	"github.com/crossgrep/crossgrep/config"
)

// NewFromConfig creates an Embedder based on the workspace embedder
// section. Centralizing provider initialization keeps CLI commands,
// the workspace manager, and the MCP server in sync.
func NewFromConfig(cfg config.EmbedderConfig) (Embedder, error) {
	switch cfg.Provider {
	case "ollama":
		opts := []OllamaOption{
			WithOllamaEndpoint(cfg.Endpoint),
			WithOllamaModel(cfg.Model),
		}
		if cfg.Dimensions != nil {
			opts = append(opts, WithOllamaDimensions(*cfg.Dimensions))
		}
		return NewOllamaEmbedder(opts...), nil

	case "openai":
		opts := []OpenAIOption{
			WithOpenAIEndpoint(cfg.Endpoint),
			WithOpenAIModel(cfg.Model),
			WithOpenAIKey(cfg.APIKey),
		}
		if cfg.Dimensions != nil {
			opts = append(opts, WithOpenAIDimensions(*cfg.Dimensions))
		}
		return NewOpenAIEmbedder(opts...)

	case "local":
		var opts []LocalOption
		if cfg.Dimensions != nil {
			opts = append(opts, WithLocalDimensions(*cfg.Dimensions))
		}
		return NewLocalEmbedder(opts...), nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}
