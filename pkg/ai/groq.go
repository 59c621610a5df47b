package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/johnquangdev/meeting-minutes/pkg/config"
)

const (
	defaultGroqBaseURL = "https://api.groq.com"
	defaultGroqModel   = "llama-3.3-70b-versatile"
)

// GroqClient is a text-only client for Groq's OpenAI-compatible API
type GroqClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewGroqClient creates a Groq client using values from the provided config
func NewGroqClient(cfg *config.AIConfig) *GroqClient {
	base := defaultGroqBaseURL
	model := defaultGroqModel
	timeout := 60 * time.Second
	if cfg != nil {
		if cfg.BaseURL != "" {
			base = cfg.BaseURL
		}
		if cfg.Model != "" {
			model = cfg.Model
		}
		if cfg.Timeout > 0 {
			timeout = cfg.Timeout
		}
	}

	return &GroqClient{
		baseURL: strings.TrimRight(base, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// AcceptsAudio is false; Groq chat completions are text only
func (g *GroqClient) AcceptsAudio() bool {
	return false
}

// ChatMessage is one chat turn
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat toggles JSON mode
type ResponseFormat struct {
	Type string `json:"type"`
}

// ChatRequest is the shape for chat completion requests
type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// ChatResponse is a minimal response shape
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type groqErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Generate joins the text parts into one user message. A schema switches on
// JSON mode and is appended to the prompt, since Groq does not enforce it.
func (g *GroqClient) Generate(ctx context.Context, apiKey string, req GenerateRequest) (string, error) {
	var prompt strings.Builder
	for _, p := range req.Parts {
		if p.IsBinary() {
			return "", ErrAudioUnsupported
		}
		if prompt.Len() > 0 {
			prompt.WriteString("\n\n")
		}
		prompt.WriteString(p.Text)
	}

	reqBody := ChatRequest{
		Model:       g.model,
		Temperature: 0.2,
		MaxTokens:   8000,
	}
	if req.Schema != nil {
		schema, err := json.Marshal(req.Schema)
		if err != nil {
			return "", err
		}
		prompt.WriteString("\n\nRespond with a JSON object matching this schema:\n")
		prompt.Write(schema)
		reqBody.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}
	reqBody.Messages = []ChatMessage{{Role: "user", Content: prompt.String()}}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	endpoint := g.baseURL + "/openai/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Service: "groq", StatusCode: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		var body groqErrorBody
		if err := json.Unmarshal(raw, &body); err == nil && body.Error.Message != "" {
			apiErr.Status = body.Error.Code
			apiErr.Message = body.Error.Message
		}
		return "", apiErr
	}

	var cr ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decode groq response: %w", err)
	}
	if len(cr.Choices) == 0 || strings.TrimSpace(cr.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return cr.Choices[0].Message.Content, nil
}
