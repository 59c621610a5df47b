package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/johnquangdev/meeting-minutes/pkg/config"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiClient calls generateContent through the genai SDK
type GeminiClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewGeminiClient creates a Gemini client from the AI config. The API key is
// supplied per call.
func NewGeminiClient(cfg *config.AIConfig) *GeminiClient {
	model := defaultGeminiModel
	timeout := 120 * time.Second
	var base string
	if cfg != nil {
		base = cfg.BaseURL
		if cfg.Model != "" {
			model = cfg.Model
		}
		if cfg.Timeout > 0 {
			timeout = cfg.Timeout
		}
	}

	return &GeminiClient{
		baseURL:    strings.TrimRight(base, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// AcceptsAudio reports that inline audio parts are supported
func (g *GeminiClient) AcceptsAudio() bool {
	return true
}

// client is built per call because the API key belongs to the requesting user
func (g *GeminiClient) client(ctx context.Context, apiKey string) (*genai.Client, error) {
	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.httpClient,
	}
	if g.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: g.baseURL + "/", APIVersion: "v1beta"}
	}
	return genai.NewClient(ctx, cc)
}

// Generate sends the parts as one user turn and returns the reply text
func (g *GeminiClient) Generate(ctx context.Context, apiKey string, req GenerateRequest) (string, error) {
	client, err := g.client(ctx, apiKey)
	if err != nil {
		return "", fmt.Errorf("gemini client: %w", err)
	}

	parts := make([]*genai.Part, 0, len(req.Parts))
	for _, p := range req.Parts {
		if p.IsBinary() {
			parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: p.MIMEType, Data: p.Data}})
			continue
		}
		parts = append(parts, &genai.Part{Text: p.Text})
	}
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}

	var gc *genai.GenerateContentConfig
	if req.Schema != nil {
		gc = &genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   toGenaiSchema(req.Schema),
		}
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, contents, gc)
	if err != nil {
		return "", geminiError(err)
	}

	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("%w: prompt blocked (%s)", ErrEmptyResponse, resp.PromptFeedback.BlockReason)
		}
		return "", ErrEmptyResponse
	}

	var text strings.Builder
	if c := resp.Candidates[0].Content; c != nil {
		for _, p := range c.Parts {
			if p == nil || p.Thought {
				continue
			}
			text.WriteString(p.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", ErrEmptyResponse
	}
	return text.String(), nil
}

func toGenaiSchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genai.Type(s.Type),
		Description: s.Description,
		Enum:        s.Enum,
		Required:    s.Required,
		Items:       toGenaiSchema(s.Items),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenaiSchema(prop)
		}
	}
	return out
}

// geminiError keeps the status visible to the retry classifier
func geminiError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var ptr *genai.APIError
		if !errors.As(err, &ptr) || ptr == nil {
			return err
		}
		apiErr = *ptr
	}
	return &APIError{
		Service:    "gemini",
		StatusCode: apiErr.Code,
		Status:     apiErr.Status,
		Message:    apiErr.Message,
	}
}
