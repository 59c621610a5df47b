package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/johnquangdev/meeting-minutes/pkg/config"
)

var (
	// ErrEmptyResponse means the model answered without any text
	ErrEmptyResponse = errors.New("empty response from model")
	// ErrAudioUnsupported means the provider cannot take inline audio
	ErrAudioUnsupported = errors.New("provider does not accept audio input")
	// ErrMissingAPIKey means a service key was not configured
	ErrMissingAPIKey = errors.New("service api key not configured")
)

// Part is either a text prompt or an inline binary payload
type Part struct {
	Text     string
	Data     []byte
	MIMEType string
}

// TextPart builds a text part
func TextPart(text string) Part {
	return Part{Text: text}
}

// AudioPart builds an inline audio part
func AudioPart(data []byte, mimeType string) Part {
	if mimeType == "" {
		mimeType = "audio/webm"
	}
	return Part{Data: data, MIMEType: mimeType}
}

// IsBinary reports whether the part carries inline data
func (p Part) IsBinary() bool {
	return len(p.Data) > 0
}

// Schema is the subset of OpenAPI schema accepted as a response contract
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

const (
	TypeObject = "OBJECT"
	TypeArray  = "ARRAY"
	TypeString = "STRING"
)

// GenerateRequest is one model call
type GenerateRequest struct {
	Parts []Part
	// Schema constrains the JSON reply; nil means free text
	Schema *Schema
}

// Generator is a remote model able to answer a multipart prompt
type Generator interface {
	Generate(ctx context.Context, apiKey string, req GenerateRequest) (string, error)
}

// AudioInput is implemented by generators that report whether they take
// inline audio parts
type AudioInput interface {
	AcceptsAudio() bool
}

// AcceptsAudio reports whether gen can be sent audio parts. Generators that
// do not say otherwise are assumed to.
func AcceptsAudio(gen Generator) bool {
	if a, ok := gen.(AudioInput); ok {
		return a.AcceptsAudio()
	}
	return true
}

// Transcriber turns one audio segment into raw text
type Transcriber interface {
	Transcribe(ctx context.Context, apiKey string, audio Part, language string) (string, error)
}

// APIError is a non-2xx reply from a provider
type APIError struct {
	Service    string
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	status := e.Status
	if status == "" {
		status = http.StatusText(e.StatusCode)
	}
	msg := fmt.Sprintf("%s returned status %d %s", e.Service, e.StatusCode, status)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// NewGenerator builds the configured provider
func NewGenerator(cfg *config.AIConfig) (Generator, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", config.ProviderGemini:
		return NewGeminiClient(cfg), nil
	case config.ProviderGroq:
		return NewGroqClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}

// NewTranscriber returns a dedicated chunk transcriber, or nil when chunks
// should go through the generator
func NewTranscriber(cfg *config.AIConfig) (Transcriber, error) {
	switch strings.ToLower(cfg.Transcriber) {
	case "", config.ProviderGemini:
		return nil, nil
	case config.ProviderAssemblyAI:
		return NewAssemblyAITranscriber(cfg), nil
	default:
		return nil, fmt.Errorf("unknown transcriber %q", cfg.Transcriber)
	}
}

// GeneratorTranscriber transcribes through a multimodal Generator using a
// per-language transcription prompt
type GeneratorTranscriber struct {
	gen    Generator
	prompt func(language string) string
}

// NewGeneratorTranscriber adapts gen to the Transcriber interface
func NewGeneratorTranscriber(gen Generator, prompt func(language string) string) *GeneratorTranscriber {
	return &GeneratorTranscriber{gen: gen, prompt: prompt}
}

// Transcribe sends the audio with the transcription prompt and no schema
func (t *GeneratorTranscriber) Transcribe(ctx context.Context, apiKey string, audio Part, language string) (string, error) {
	return t.gen.Generate(ctx, apiKey, GenerateRequest{
		Parts: []Part{audio, TextPart(t.prompt(language))},
	})
}
