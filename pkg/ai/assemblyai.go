package ai

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	aai "github.com/AssemblyAI/assemblyai-go-sdk"

	"github.com/johnquangdev/meeting-minutes/pkg/config"
)

// AssemblyAITranscriber transcribes chunks with the AssemblyAI SDK using the
// service key from the config. The per-user key passed to Transcribe belongs
// to the generator provider and is never sent here.
type AssemblyAITranscriber struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewAssemblyAITranscriber creates a transcriber from the AI config
func NewAssemblyAITranscriber(cfg *config.AIConfig) *AssemblyAITranscriber {
	timeout := 10 * time.Minute
	var key, base string
	if cfg != nil {
		key = cfg.AssemblyAIAPIKey
		base = cfg.AssemblyAIBaseURL
	}
	return &AssemblyAITranscriber{
		apiKey:     key,
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (t *AssemblyAITranscriber) client() *aai.Client {
	opts := []aai.ClientOption{
		aai.WithAPIKey(t.apiKey),
		aai.WithHTTPClient(t.httpClient),
	}
	if t.baseURL != "" {
		opts = append(opts, aai.WithBaseURL(t.baseURL))
	}
	return aai.NewClientWithOptions(opts...)
}

// Transcribe uploads the segment and waits for its transcript text
func (t *AssemblyAITranscriber) Transcribe(ctx context.Context, _ string, audio Part, language string) (string, error) {
	if t.apiKey == "" {
		return "", fmt.Errorf("assemblyai: %w", ErrMissingAPIKey)
	}
	client := t.client()

	uploadURL, err := client.Upload(ctx, bytes.NewReader(audio.Data))
	if err != nil {
		return "", fmt.Errorf("assemblyai upload: %w", err)
	}

	params := &aai.TranscriptOptionalParams{
		SpeakerLabels: aai.Bool(true),
	}
	if language != "" {
		params.LanguageCode = aai.TranscriptLanguageCode(language)
	} else {
		params.LanguageDetection = aai.Bool(true)
	}

	transcript, err := client.Transcripts.TranscribeFromURL(ctx, uploadURL, params)
	if err != nil {
		return "", fmt.Errorf("assemblyai transcribe: %w", err)
	}

	if transcript.Status == aai.TranscriptStatusError {
		msg := "transcription failed"
		if transcript.Error != nil {
			msg = *transcript.Error
		}
		return "", &APIError{Service: "assemblyai", StatusCode: http.StatusUnprocessableEntity, Status: "error", Message: msg}
	}

	if transcript.Text == nil {
		return "", nil
	}
	return *transcript.Text, nil
}
