package model

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms/ollama"
)

const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "all-minilm"
)

type OllamaConfig struct {
	BaseURL string
	Model   string
	// MaxTokens truncates input before it is sent. Zero disables truncation.
	MaxTokens int
}

// OllamaBackend computes embeddings on an Ollama server.
type OllamaBackend struct {
	llm       *ollama.LLM
	model     string
	maxTokens int
	tokens    *TokenCounter
	logger    *slog.Logger
}

// OllamaLoader connects to Ollama and verifies the model answers with
// vectors of the expected size before the backend is handed out.
func OllamaLoader(cfg OllamaConfig, dimensions int, logger *slog.Logger) Loader {
	return func(ctx context.Context) (Backend, error) {
		if cfg.BaseURL == "" {
			cfg.BaseURL = DefaultOllamaURL
		}
		if cfg.Model == "" {
			cfg.Model = DefaultOllamaModel
		}
		if logger == nil {
			logger = slog.Default()
		}

		llm, err := ollama.New(ollama.WithModel(cfg.Model), ollama.WithServerURL(cfg.BaseURL))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama client: %w", err)
		}

		b := &OllamaBackend{
			llm:       llm,
			model:     cfg.Model,
			maxTokens: cfg.MaxTokens,
			logger:    logger,
		}
		if cfg.MaxTokens > 0 {
			b.tokens = NewTokenCounter()
		}

		sample, err := llm.CreateEmbedding(ctx, []string{"ping"})
		if err != nil {
			return nil, fmt.Errorf("ollama embedding check: %w", err)
		}
		if len(sample) != 1 || len(sample[0]) != dimensions {
			return nil, fmt.Errorf("model %s does not produce %d-dimensional vectors", cfg.Model, dimensions)
		}

		logger.Info("uses Ollama for embeddings", "model", cfg.Model, "url", cfg.BaseURL)
		return b, nil
	}
}

func (b *OllamaBackend) Name() string {
	return "ollama/" + b.model
}

func (b *OllamaBackend) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	input := texts
	if b.tokens != nil {
		input = make([]string, len(texts))
		for i, t := range texts {
			truncated, n, err := b.tokens.Truncate(t, b.maxTokens)
			if err != nil {
				b.logger.Warn("token truncation unavailable, sending full text", "error", err)
				truncated = t
			} else if n > b.maxTokens {
				b.logger.Debug("input truncated", "tokens", n, "max_tokens", b.maxTokens)
			}
			input[i] = truncated
		}
	}

	embeddings, err := b.llm.CreateEmbedding(ctx, input)
	if err != nil {
		return nil, err
	}
	for i := range embeddings {
		embeddings[i] = normalize32(embeddings[i])
	}
	return embeddings, nil
}
