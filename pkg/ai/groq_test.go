package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/johnquangdev/meeting-minutes/pkg/config"
)

func TestGroqGenerate_JSONMode(t *testing.T) {
	var got ChatRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openai/v1/chat/completions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer user-key" {
			t.Fatalf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": `{"ok":true}`}}},
		})
	}))
	defer ts.Close()

	client := NewGroqClient(&config.AIConfig{BaseURL: ts.URL, Model: "m"})
	out, err := client.Generate(context.Background(), "user-key", GenerateRequest{
		Parts:  []Part{TextPart("extract")},
		Schema: &Schema{Type: TypeObject, Required: []string{"ok"}},
	})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if out != `{"ok":true}` {
		t.Fatalf("unexpected output %q", out)
	}
	if got.ResponseFormat == nil || got.ResponseFormat.Type != "json_object" {
		t.Fatalf("expected json_object response format")
	}
	if len(got.Messages) != 1 || !strings.Contains(got.Messages[0].Content, `"required":["ok"]`) {
		t.Fatalf("schema not appended to prompt: %+v", got.Messages)
	}
}

func TestGroqGenerate_RejectsAudio(t *testing.T) {
	client := NewGroqClient(nil)
	_, err := client.Generate(context.Background(), "k", GenerateRequest{Parts: []Part{AudioPart([]byte{1}, "")}})
	if !errors.Is(err, ErrAudioUnsupported) {
		t.Fatalf("expected ErrAudioUnsupported, got %v", err)
	}
}

func TestGroqGenerate_APIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"message":"over capacity","code":"service_unavailable"}}`))
	}))
	defer ts.Close()

	client := NewGroqClient(&config.AIConfig{BaseURL: ts.URL})
	_, err := client.Generate(context.Background(), "k", GenerateRequest{Parts: []Part{TextPart("x")}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 503 {
		t.Fatalf("expected 503 APIError, got %v", err)
	}
}

func TestNewGenerator(t *testing.T) {
	if _, err := NewGenerator(&config.AIConfig{Provider: "gemini"}); err != nil {
		t.Fatalf("gemini: %v", err)
	}
	g, err := NewGenerator(&config.AIConfig{Provider: "groq"})
	if err != nil {
		t.Fatalf("groq: %v", err)
	}
	if _, ok := g.(*GroqClient); !ok {
		t.Fatalf("expected groq client, got %T", g)
	}
	if AcceptsAudio(g) || !AcceptsAudio(NewGeminiClient(nil)) {
		t.Fatal("only gemini takes inline audio")
	}
	if _, err := NewGenerator(&config.AIConfig{Provider: "nope"}); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
	tr, err := NewTranscriber(&config.AIConfig{Transcriber: "gemini"})
	if err != nil || tr != nil {
		t.Fatalf("gemini transcriber should be nil, got %v %v", tr, err)
	}
}
