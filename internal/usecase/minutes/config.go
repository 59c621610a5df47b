package minutes

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-minutes/pkg/ai"
	"github.com/johnquangdev/meeting-minutes/pkg/config"
	"github.com/johnquangdev/meeting-minutes/pkg/retry"
)

// FromConfig builds a pipeline for the configured providers. A prompts file,
// when set, replaces the embedded catalog.
func FromConfig(cfg *config.Config, logger *zap.Logger) (*Pipeline, error) {
	if err := cfg.AI.Validate(); err != nil {
		return nil, fmt.Errorf("ai config: %w", err)
	}
	gen, err := ai.NewGenerator(&cfg.AI)
	if err != nil {
		return nil, err
	}
	transcriber, err := ai.NewTranscriber(&cfg.AI)
	if err != nil {
		return nil, err
	}

	catalog, err := LoadCatalog(cfg.Pipeline.PromptsFile)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	rc := retry.DefaultConfig()
	rc.MaxAttempts = cfg.Pipeline.MaxAttempts
	rc.BaseDelay = cfg.Pipeline.BaseDelay
	if cfg.Pipeline.MaxDelay > 0 {
		rc.MaxDelay = cfg.Pipeline.MaxDelay
	}

	opts := Options{
		ChunkSize:  cfg.Pipeline.ChunkSize,
		ChunkDelay: cfg.Pipeline.ChunkDelay,
		Retry:      rc,
	}
	if logger != nil {
		opts.OnChunk = func(index, total int, err error) {
			if err != nil {
				logger.Warn("⚠️ Chunk failed", zap.Int("chunk", index), zap.Int("total", total), zap.Error(err))
				return
			}
			logger.Debug("Chunk transcribed", zap.Int("chunk", index), zap.Int("total", total))
		}
	}

	return NewPipeline(gen, transcriber, catalog, logger, opts), nil
}
