package minutes

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	ucerrors "github.com/johnquangdev/meeting-minutes/internal/usecase/errors"
	"github.com/johnquangdev/meeting-minutes/pkg/ai"
	"github.com/johnquangdev/meeting-minutes/pkg/flowchart"
	"github.com/johnquangdev/meeting-minutes/pkg/retry"
)

const mib = 1024 * 1024

const sampleReply = "```json\n" + `{
  "fullTranscript": "Alice: let's ship on Friday.",
  "executiveSummary": "Release planning",
  "decisions": [{"decision": "Ship on Friday"}],
  "actionItems": [{"task": "Tag release", "owner": "Bob", "dueDate": "Friday"}],
  "discussionSummary": "The team agreed on the date.",
  "flowchart": {
    "nodes": [{"id": "a", "label": "Plan"}, {"id": "b", "label": "Ready?", "kind": "decision"}],
    "edges": [{"from": "a", "to": "b"}, {"from": "b", "to": "ghost"}]
  }
}` + "\n```"

type fakeGenerator struct {
	mu       sync.Mutex
	requests []ai.GenerateRequest
	reply    func(req ai.GenerateRequest) (string, error)
}

func (f *fakeGenerator) Generate(_ context.Context, _ string, req ai.GenerateRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.reply == nil {
		return sampleReply, nil
	}
	return f.reply(req)
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeTranscriber struct {
	calls   int
	lengths []int
	reply   func(call int, audio ai.Part) (string, error)
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ string, audio ai.Part, _ string) (string, error) {
	f.calls++
	f.lengths = append(f.lengths, len(audio.Data))
	return f.reply(f.calls, audio)
}

type instantTimer struct{ ch chan time.Time }

func (t *instantTimer) Start(time.Duration) { t.ch <- time.Time{} }
func (t *instantTimer) Stop()               {}
func (t *instantTimer) C() <-chan time.Time { return t.ch }

func testOptions(sleeps *[]time.Duration) Options {
	return Options{
		ChunkSize:  18 * mib,
		ChunkDelay: 2 * time.Second,
		Retry: retry.Config{
			MaxAttempts: 3,
			BaseDelay:   time.Millisecond,
			Timer:       &instantTimer{ch: make(chan time.Time, 1)},
		},
		Sleep: func(_ context.Context, d time.Duration) error {
			if sleeps != nil {
				*sleeps = append(*sleeps, d)
			}
			return nil
		},
	}
}

func TestProduceMinutes_SmallAudioUsesSingleCall(t *testing.T) {
	gen := &fakeGenerator{}
	tr := &fakeTranscriber{reply: func(int, ai.Part) (string, error) {
		t.Fatalf("transcriber must not be called on the direct path")
		return "", nil
	}}
	p := NewPipeline(gen, tr, nil, nil, testOptions(nil))

	m, err := p.ProduceMinutesFromAudio(context.Background(), Audio{Data: make([]byte, 5*mib)}, []string{"Alice", "Bob"}, "en", "key")
	if err != nil {
		t.Fatalf("produce failed: %v", err)
	}
	if gen.calls() != 1 {
		t.Fatalf("expected exactly one model call, got %d", gen.calls())
	}
	req := gen.requests[0]
	if len(req.Parts) != 2 || !req.Parts[1].IsBinary() {
		t.Fatalf("expected prompt and audio parts, got %+v", req.Parts)
	}
	if _, ok := req.Schema.Properties["fullTranscript"]; !ok {
		t.Fatalf("direct call must request fullTranscript")
	}
	if m.FullTranscript == "" {
		t.Fatalf("expected transcript")
	}
	if !strings.HasPrefix(m.Flowchart, flowchart.Header) {
		t.Fatalf("flowchart should start with header, got %q", m.Flowchart)
	}
	if strings.Contains(m.Flowchart, "ghost") {
		t.Fatalf("dangling edge should be dropped: %q", m.Flowchart)
	}
	if len(m.Decisions) != 1 || m.ActionItems[0].Owner != "Bob" {
		t.Fatalf("unexpected minutes %+v", m)
	}
}

type textOnlyGenerator struct{ fakeGenerator }

func (*textOnlyGenerator) AcceptsAudio() bool { return false }

func TestProduceMinutes_TextOnlyModelTranscribesFirst(t *testing.T) {
	gen := &textOnlyGenerator{}
	tr := &fakeTranscriber{reply: func(int, ai.Part) (string, error) { return "Alice: ship Friday.", nil }}
	p := NewPipeline(gen, tr, nil, nil, testOptions(nil))

	m, err := p.ProduceMinutesFromAudio(context.Background(), Audio{Data: make([]byte, mib)}, nil, "en", "key")
	if err != nil {
		t.Fatalf("produce failed: %v", err)
	}
	if tr.calls != 1 || tr.lengths[0] != mib {
		t.Fatalf("expected one transcription of the whole recording, got %v", tr.lengths)
	}
	if gen.calls() != 1 {
		t.Fatalf("expected one extraction call, got %d", gen.calls())
	}
	for _, part := range gen.requests[0].Parts {
		if part.IsBinary() {
			t.Fatal("audio must not reach a text-only model")
		}
	}
	if m.FullTranscript != "Alice: ship Friday.\n" {
		t.Fatalf("unexpected transcript %q", m.FullTranscript)
	}
}

func TestProduceMinutes_LargeAudioToleratesFailedChunk(t *testing.T) {
	gen := &fakeGenerator{}
	tr := &fakeTranscriber{reply: func(call int, _ ai.Part) (string, error) {
		switch {
		case call == 1:
			return "first part", nil
		case call <= 4:
			// chunk 2 and both of its retries
			return "", errors.New("googleapi: Error 429: RESOURCE_EXHAUSTED")
		default:
			return "third part", nil
		}
	}}

	var sleeps []time.Duration
	var progress []int
	opts := testOptions(&sleeps)
	opts.OnChunk = func(index, total int, err error) {
		if total != 3 {
			t.Errorf("unexpected total %d", total)
		}
		progress = append(progress, index)
	}
	p := NewPipeline(gen, tr, nil, nil, opts)

	m, err := p.ProduceMinutesFromAudio(context.Background(), Audio{Data: make([]byte, 40*mib)}, nil, "en", "key")
	if err != nil {
		t.Fatalf("produce failed: %v", err)
	}

	want := []int{18 * mib, 18 * mib, 18 * mib, 18 * mib, 4 * mib}
	if len(tr.lengths) != len(want) {
		t.Fatalf("expected %d transcription calls, got %d", len(want), len(tr.lengths))
	}
	for i := range want {
		if tr.lengths[i] != want[i] {
			t.Fatalf("call %d got %d bytes, want %d", i+1, tr.lengths[i], want[i])
		}
	}

	expected := "first part\n" + Placeholder(2) + "\nthird part\n"
	if m.FullTranscript != expected {
		t.Fatalf("unexpected transcript %q", m.FullTranscript)
	}
	if len(sleeps) != 2 || sleeps[0] != 2*time.Second {
		t.Fatalf("expected two inter-chunk pauses, got %v", sleeps)
	}
	if len(progress) != 3 {
		t.Fatalf("expected progress for 3 chunks, got %v", progress)
	}

	if gen.calls() != 1 {
		t.Fatalf("expected one extraction call, got %d", gen.calls())
	}
	req := gen.requests[0]
	if req.Parts[1].Text != expected {
		t.Fatalf("extraction should receive merged transcript")
	}
	if _, ok := req.Schema.Properties["fullTranscript"]; ok {
		t.Fatalf("text extraction must not request fullTranscript")
	}
}

func TestProduceMinutes_MissingCredential(t *testing.T) {
	gen := &fakeGenerator{}
	tr := &fakeTranscriber{reply: func(int, ai.Part) (string, error) { return "", nil }}
	p := NewPipeline(gen, tr, nil, nil, testOptions(nil))

	for _, key := range []string{"", "   "} {
		_, err := p.ProduceMinutesFromAudio(context.Background(), Audio{Data: make([]byte, 40*mib)}, nil, "en", key)
		if !errors.Is(err, ucerrors.ErrMissingCredential) {
			t.Fatalf("expected ErrMissingCredential, got %v", err)
		}
	}
	if gen.calls() != 0 || tr.calls != 0 {
		t.Fatalf("no remote call expected, got %d/%d", gen.calls(), tr.calls)
	}
}

func TestProduceMinutes_ExtractionFailureKeepsTranscript(t *testing.T) {
	gen := &fakeGenerator{reply: func(ai.GenerateRequest) (string, error) {
		return "I could not produce JSON, sorry.", nil
	}}
	tr := &fakeTranscriber{reply: func(call int, _ ai.Part) (string, error) { return "part", nil }}
	p := NewPipeline(gen, tr, nil, nil, testOptions(nil))

	_, err := p.ProduceMinutesFromAudio(context.Background(), Audio{Data: make([]byte, 20*mib)}, nil, "it", "key")
	if !errors.Is(err, ucerrors.ErrExtractionFailed) || !errors.Is(err, ucerrors.ErrMalformedResponse) {
		t.Fatalf("expected malformed extraction error, got %v", err)
	}
	transcript, ok := ucerrors.PartialTranscript(err)
	if !ok || transcript != "part\npart\n" {
		t.Fatalf("partial transcript not preserved: %q", transcript)
	}
	if gen.calls() != 1 {
		t.Fatalf("malformed reply must not be retried, got %d calls", gen.calls())
	}
}

func TestProduceMinutes_ExtractionExhausted(t *testing.T) {
	gen := &fakeGenerator{reply: func(ai.GenerateRequest) (string, error) {
		return "", &ai.APIError{Service: "gemini", StatusCode: 503, Status: "UNAVAILABLE"}
	}}
	p := NewPipeline(gen, nil, nil, nil, testOptions(nil))

	_, err := p.ProduceMinutesFromAudio(context.Background(), Audio{Data: []byte("tiny")}, nil, "en", "key")
	if !errors.Is(err, ucerrors.ErrRemoteExhausted) || !errors.Is(err, ucerrors.ErrExtractionFailed) {
		t.Fatalf("expected exhausted extraction, got %v", err)
	}
	if gen.calls() != 3 {
		t.Fatalf("expected 3 attempts, got %d", gen.calls())
	}
}

func TestProduceMinutes_EmptyAudio(t *testing.T) {
	p := NewPipeline(&fakeGenerator{}, nil, nil, nil, testOptions(nil))
	_, err := p.ProduceMinutesFromAudio(context.Background(), Audio{}, nil, "en", "key")
	if !errors.Is(err, ucerrors.ErrEmptyAudio) {
		t.Fatalf("expected ErrEmptyAudio, got %v", err)
	}
}

func TestProduceMinutes_GeneratorTranscribesChunksByDefault(t *testing.T) {
	gen := &fakeGenerator{reply: func(req ai.GenerateRequest) (string, error) {
		if req.Schema == nil {
			return "spoken words", nil
		}
		return sampleReply, nil
	}}
	opts := testOptions(nil)
	opts.ChunkSize = 4
	p := NewPipeline(gen, nil, nil, nil, opts)

	m, err := p.ProduceMinutesFromAudio(context.Background(), Audio{Data: []byte("0123456789")}, nil, "fr", "key")
	if err != nil {
		t.Fatalf("produce failed: %v", err)
	}
	if gen.calls() != 4 {
		t.Fatalf("expected 3 transcriptions and 1 extraction, got %d calls", gen.calls())
	}
	if strings.Count(m.FullTranscript, "spoken words\n") != 3 {
		t.Fatalf("unexpected transcript %q", m.FullTranscript)
	}
	if !strings.Contains(gen.requests[0].Parts[1].Text, "mot à mot") {
		t.Fatalf("expected french transcription prompt, got %q", gen.requests[0].Parts[1].Text)
	}
}

func TestProduceMinutes_CancelledBetweenChunks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tr := &fakeTranscriber{reply: func(int, ai.Part) (string, error) {
		cancel()
		return "text", nil
	}}
	opts := testOptions(nil)
	opts.ChunkSize = 2
	opts.Sleep = sleepContext
	p := NewPipeline(&fakeGenerator{}, tr, nil, nil, opts)

	_, err := p.ProduceMinutesFromAudio(ctx, Audio{Data: []byte("abcdef")}, nil, "en", "key")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if tr.calls != 1 {
		t.Fatalf("expected to stop after first chunk, got %d calls", tr.calls)
	}
}

func TestRefineMinutes_PreservesTranscript(t *testing.T) {
	gen := &fakeGenerator{}
	p := NewPipeline(gen, nil, nil, nil, testOptions(nil))

	existing, err := p.ProduceMinutesFromAudio(context.Background(), Audio{Data: []byte("x")}, nil, "en", "key")
	if err != nil {
		t.Fatalf("produce failed: %v", err)
	}
	existing.FullTranscript = "the original words"

	refined, err := p.RefineMinutes(context.Background(), existing, "make it shorter", "en", "key")
	if err != nil {
		t.Fatalf("refine failed: %v", err)
	}
	if refined.FullTranscript != "the original words" {
		t.Fatalf("transcript changed: %q", refined.FullTranscript)
	}
	prompt := gen.requests[1].Parts[0].Text
	if strings.Contains(prompt, "the original words") {
		t.Fatalf("transcript must not be sent for refinement")
	}
	if !strings.Contains(prompt, "make it shorter") {
		t.Fatalf("instruction missing from prompt: %q", prompt)
	}
	if !strings.HasPrefix(refined.Flowchart, flowchart.Header) {
		t.Fatalf("refined flowchart not rendered: %q", refined.Flowchart)
	}
}

func TestRefineMinutes_Validation(t *testing.T) {
	p := NewPipeline(&fakeGenerator{}, nil, nil, nil, testOptions(nil))
	if _, err := p.RefineMinutes(context.Background(), nil, "x", "en", ""); !errors.Is(err, ucerrors.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	if _, err := p.RefineMinutes(context.Background(), nil, "x", "en", "k"); !errors.Is(err, ucerrors.ErrNoMinutes) {
		t.Fatalf("expected ErrNoMinutes, got %v", err)
	}
}

func TestRegenerateFlowchart(t *testing.T) {
	gen := &fakeGenerator{reply: func(ai.GenerateRequest) (string, error) {
		return `Here you go: {"flowchart": {"nodes": [{"id": "s", "label": "Start"}], "edges": []}}`, nil
	}}
	p := NewPipeline(gen, nil, nil, nil, testOptions(nil))

	g, text, err := p.RegenerateFlowchart(context.Background(), "we start", "en", "key")
	if err != nil {
		t.Fatalf("regenerate failed: %v", err)
	}
	if len(g.Nodes) != 1 {
		t.Fatalf("unexpected graph %+v", g)
	}
	if text != "graph TD\n    s[Start]" {
		t.Fatalf("unexpected diagram %q", text)
	}
}
