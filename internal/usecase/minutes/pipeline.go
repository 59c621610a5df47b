// Package minutes turns meeting audio into structured minutes.
//
// Short recordings go to the model in one combined transcribe+extract call.
// Longer ones, and any recording when the model is text only, are split into
// chunks that are transcribed one at a time with a pause in between, then a
// single extraction call runs on the merged text.
package minutes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-minutes/internal/domain/entities"
	ucerrors "github.com/johnquangdev/meeting-minutes/internal/usecase/errors"
	"github.com/johnquangdev/meeting-minutes/pkg/ai"
	"github.com/johnquangdev/meeting-minutes/pkg/audio"
	"github.com/johnquangdev/meeting-minutes/pkg/flowchart"
	"github.com/johnquangdev/meeting-minutes/pkg/retry"
)

// DefaultChunkDelay is the pause between two chunk transcriptions
const DefaultChunkDelay = 2 * time.Second

// placeholderFormat replaces the text of a chunk that could not be transcribed
const placeholderFormat = "[error transcribing part %d]"

// Placeholder returns the marker inserted for a failed chunk (1-based)
func Placeholder(part int) string {
	return fmt.Sprintf(placeholderFormat, part)
}

// Audio is a recording handed to the pipeline
type Audio struct {
	Data     []byte
	MIMEType string
}

// Options tunes a Pipeline. Zero values take the defaults.
type Options struct {
	ChunkSize  int64
	ChunkDelay time.Duration
	Retry      retry.Config
	// Sleep waits between chunks; replaced in tests
	Sleep func(ctx context.Context, d time.Duration) error
	// OnChunk reports each finished chunk (1-based) and its error, if any
	OnChunk func(index, total int, err error)
}

// Pipeline orchestrates transcription, extraction and rendering
type Pipeline struct {
	gen         ai.Generator
	transcriber ai.Transcriber
	prompts     *Catalog
	logger      *zap.Logger

	chunkSize  int64
	chunkDelay time.Duration
	retry      retry.Config
	sleep      func(ctx context.Context, d time.Duration) error
	onChunk    func(index, total int, err error)
}

// NewPipeline creates a pipeline. A nil transcriber sends chunks to gen with
// the transcription prompt; a nil catalog uses the embedded prompts.
func NewPipeline(gen ai.Generator, transcriber ai.Transcriber, prompts *Catalog, logger *zap.Logger, opts Options) *Pipeline {
	if prompts == nil {
		prompts = DefaultCatalog()
	}
	if transcriber == nil {
		transcriber = ai.NewGeneratorTranscriber(gen, prompts.TranscribePrompt)
	}

	p := &Pipeline{
		gen:         gen,
		transcriber: transcriber,
		prompts:     prompts,
		logger:      logger,
		chunkSize:   opts.ChunkSize,
		chunkDelay:  opts.ChunkDelay,
		retry:       opts.Retry,
		sleep:       opts.Sleep,
		onChunk:     opts.OnChunk,
	}
	if p.chunkSize <= 0 {
		p.chunkSize = audio.DefaultChunkSize
	}
	if p.chunkDelay < 0 {
		p.chunkDelay = 0
	}
	if p.sleep == nil {
		p.sleep = sleepContext
	}
	if p.retry.MaxAttempts == 0 && p.retry.BaseDelay == 0 {
		p.retry = retry.DefaultConfig()
	}
	return p
}

// Prompts exposes the catalog so it can be watched for changes
func (p *Pipeline) Prompts() *Catalog {
	return p.prompts
}

// ChunkSize is the direct-path threshold in bytes. A generator that cannot
// take audio never uses the direct path.
func (p *Pipeline) ChunkSize() int64 {
	return p.chunkSize
}

// ProduceMinutesFromAudio transcribes the recording and extracts minutes.
// When the final extraction fails the error is an *ExtractionError holding
// the transcript gathered so far.
func (p *Pipeline) ProduceMinutesFromAudio(ctx context.Context, rec Audio, participants []string, language, apiKey string) (*entities.Minutes, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ucerrors.ErrMissingCredential
	}
	if len(rec.Data) == 0 {
		return nil, ucerrors.ErrEmptyAudio
	}

	if int64(len(rec.Data)) <= p.chunkSize && ai.AcceptsAudio(p.gen) {
		return p.direct(ctx, rec, participants, language, apiKey)
	}
	return p.chunked(ctx, rec, participants, language, apiKey)
}

func (p *Pipeline) direct(ctx context.Context, rec Audio, participants []string, language, apiKey string) (*entities.Minutes, error) {
	if p.logger != nil {
		p.logger.Info("🎙️ Processing audio in a single call", zap.Int("bytes", len(rec.Data)))
	}

	raw, err := p.generate(ctx, "extract", apiKey, ai.GenerateRequest{
		Parts: []ai.Part{
			ai.TextPart(p.prompts.GeneratePrompt(language, participants)),
			ai.AudioPart(rec.Data, rec.MIMEType),
		},
		Schema: fullSchema(),
	})
	if err != nil {
		return nil, &ucerrors.ExtractionError{Err: err}
	}

	ext, err := ParseExtraction(raw)
	if err != nil {
		return nil, &ucerrors.ExtractionError{Err: err}
	}

	m := ext.Minutes()
	m.Flowchart = renderGraph(ext.Graph)
	return m, nil
}

func (p *Pipeline) chunked(ctx context.Context, rec Audio, participants []string, language, apiKey string) (*entities.Minutes, error) {
	chunks, err := audio.Split(int64(len(rec.Data)), p.chunkSize)
	if err != nil {
		return nil, err
	}
	if p.logger != nil {
		p.logger.Info("🎙️ Processing audio in chunks",
			zap.Int("bytes", len(rec.Data)),
			zap.Int("chunks", len(chunks)),
		)
	}

	transcript, err := p.transcribeChunks(ctx, rec, chunks, language, apiKey)
	if err != nil {
		return nil, err
	}

	raw, err := p.generate(ctx, "extract", apiKey, ai.GenerateRequest{
		Parts: []ai.Part{
			ai.TextPart(p.prompts.AnalyzePrompt(language, participants)),
			ai.TextPart(transcript),
		},
		Schema: summarySchema(),
	})
	if err != nil {
		return nil, &ucerrors.ExtractionError{Transcript: transcript, Err: err}
	}

	ext, err := ParseExtraction(raw)
	if err != nil {
		return nil, &ucerrors.ExtractionError{Transcript: transcript, Err: err}
	}

	m := ext.Minutes()
	m.FullTranscript = transcript
	m.Flowchart = renderGraph(ext.Graph)
	return m, nil
}

// transcribeChunks runs the chunks strictly in order. A chunk that fails is
// replaced by a placeholder; only cancellation stops the loop.
func (p *Pipeline) transcribeChunks(ctx context.Context, rec Audio, chunks []audio.Chunk, language, apiKey string) (string, error) {
	var transcript strings.Builder

	for i, c := range chunks {
		if i > 0 && p.chunkDelay > 0 {
			if err := p.sleep(ctx, p.chunkDelay); err != nil {
				return "", err
			}
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		part := ai.AudioPart(rec.Data[c.Start:c.End], rec.MIMEType)
		text, err := retry.Do(ctx, p.retryConfig("transcribe"), func(ctx context.Context) (string, error) {
			return p.transcriber.Transcribe(ctx, apiKey, part, language)
		})

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			if p.logger != nil {
				p.logger.Warn("⚠️ Chunk transcription failed, inserting placeholder",
					zap.Int("chunk", i+1),
					zap.Int("total", len(chunks)),
					zap.Error(err),
				)
			}
			transcript.WriteString(Placeholder(i + 1))
		} else {
			transcript.WriteString(text)
		}
		transcript.WriteString("\n")

		if p.onChunk != nil {
			p.onChunk(i+1, len(chunks), err)
		}
	}

	return transcript.String(), nil
}

// RefineMinutes asks the model to edit existing minutes. The transcript is
// not sent and is carried over unchanged.
func (p *Pipeline) RefineMinutes(ctx context.Context, existing *entities.Minutes, instruction, language, apiKey string) (*entities.Minutes, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ucerrors.ErrMissingCredential
	}
	if existing == nil {
		return nil, ucerrors.ErrNoMinutes
	}
	if strings.TrimSpace(instruction) == "" {
		return nil, fmt.Errorf("%w: instruction is required", ucerrors.ErrInvalidInput)
	}

	contextJSON, err := json.Marshal(existing.WithoutTranscript())
	if err != nil {
		return nil, err
	}

	raw, err := p.generate(ctx, "refine", apiKey, ai.GenerateRequest{
		Parts:  []ai.Part{ai.TextPart(p.prompts.RefinePrompt(language, string(contextJSON), instruction))},
		Schema: summarySchema(),
	})
	if err != nil {
		return nil, err
	}

	ext, err := ParseExtraction(raw)
	if err != nil {
		return nil, err
	}

	refined := ext.Minutes()
	refined.FullTranscript = existing.FullTranscript
	if ext.Graph != nil {
		refined.Flowchart = renderGraph(ext.Graph)
	} else {
		refined.Flowchart = existing.Flowchart
	}
	return refined, nil
}

// RegenerateFlowchart builds a fresh graph from a transcript and renders it
func (p *Pipeline) RegenerateFlowchart(ctx context.Context, transcript, language, apiKey string) (*entities.FlowchartGraph, string, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, "", ucerrors.ErrMissingCredential
	}
	if strings.TrimSpace(transcript) == "" {
		return nil, "", fmt.Errorf("%w: transcript is empty", ucerrors.ErrInvalidInput)
	}

	raw, err := p.generate(ctx, "flowchart", apiKey, ai.GenerateRequest{
		Parts: []ai.Part{
			ai.TextPart(p.prompts.FlowchartPrompt(language)),
			ai.TextPart(transcript),
		},
		Schema: flowchartOnlySchema(),
	})
	if err != nil {
		return nil, "", err
	}

	g, err := ParseGraph(raw)
	if err != nil {
		return nil, "", err
	}
	return g, flowchart.Render(*g), nil
}

// RenderGraph converts a graph to diagram text. It never fails.
func (p *Pipeline) RenderGraph(g entities.FlowchartGraph) string {
	return flowchart.Render(g)
}

// generate runs one retried model call. Parsing happens outside the retry so
// a malformed reply is never re-requested.
func (p *Pipeline) generate(ctx context.Context, op, apiKey string, req ai.GenerateRequest) (string, error) {
	raw, err := retry.Do(ctx, p.retryConfig(op), func(ctx context.Context) (string, error) {
		return p.gen.Generate(ctx, apiKey, req)
	})
	if err != nil {
		if errors.Is(err, ai.ErrEmptyResponse) {
			return "", fmt.Errorf("%w: %w", ucerrors.ErrMalformedResponse, err)
		}
		return "", err
	}
	return raw, nil
}

func (p *Pipeline) retryConfig(op string) retry.Config {
	cfg := p.retry
	next := cfg.Notify
	cfg.Notify = func(attempt int, err error, wait time.Duration) {
		if p.logger != nil {
			p.logger.Warn("🔁 Remote call failed, backing off",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Duration("delay", wait),
				zap.Error(err),
			)
		}
		if next != nil {
			next(attempt, err, wait)
		}
	}
	return cfg
}

func renderGraph(g *entities.FlowchartGraph) string {
	if g == nil {
		return flowchart.Render(flowchart.Graph{})
	}
	return flowchart.Render(*g)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
