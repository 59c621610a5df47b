package minutes

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DefaultLanguage is used when a meeting's language has no prompts
const DefaultLanguage = "en"

//go:embed prompts.yaml
var embeddedPrompts []byte

// PromptSet holds the templates for one language
type PromptSet struct {
	Generate   string `yaml:"generate"`
	Analyze    string `yaml:"analyze"`
	Transcribe string `yaml:"transcribe"`
	Refine     string `yaml:"refine"`
	Flowchart  string `yaml:"flowchart"`
}

type promptData struct {
	Participants string
	Context      string
	Instruction  string
	Language     string
}

// Catalog is a reloadable set of prompts keyed by language code
type Catalog struct {
	mu   sync.RWMutex
	sets map[string]PromptSet
}

// DefaultCatalog returns the catalog compiled into the binary
func DefaultCatalog() *Catalog {
	sets, err := parseCatalog(embeddedPrompts)
	if err != nil {
		panic(fmt.Sprintf("embedded prompts: %v", err))
	}
	return &Catalog{sets: sets}
}

// LoadCatalog reads the embedded catalog and overlays the file at path, if any
func LoadCatalog(path string) (*Catalog, error) {
	c := DefaultCatalog()
	if path == "" {
		return c, nil
	}
	if err := c.Reload(path); err != nil {
		return nil, err
	}
	return c, nil
}

func parseCatalog(data []byte) (map[string]PromptSet, error) {
	sets := map[string]PromptSet{}
	if err := yaml.Unmarshal(data, &sets); err != nil {
		return nil, err
	}
	for lang, set := range sets {
		for name, text := range set.fields() {
			if text == "" {
				continue
			}
			if _, err := template.New(name).Parse(text); err != nil {
				return nil, fmt.Errorf("%s.%s: %w", lang, name, err)
			}
		}
	}
	return sets, nil
}

func (p PromptSet) fields() map[string]string {
	return map[string]string{
		"generate":   p.Generate,
		"analyze":    p.Analyze,
		"transcribe": p.Transcribe,
		"refine":     p.Refine,
		"flowchart":  p.Flowchart,
	}
}

// Reload overlays the prompts in path on top of the embedded ones
func (c *Catalog) Reload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read prompts: %w", err)
	}
	override, err := parseCatalog(data)
	if err != nil {
		return fmt.Errorf("parse prompts %s: %w", path, err)
	}

	merged, _ := parseCatalog(embeddedPrompts)
	for lang, set := range override {
		base := merged[lang]
		if set.Generate != "" {
			base.Generate = set.Generate
		}
		if set.Analyze != "" {
			base.Analyze = set.Analyze
		}
		if set.Transcribe != "" {
			base.Transcribe = set.Transcribe
		}
		if set.Refine != "" {
			base.Refine = set.Refine
		}
		if set.Flowchart != "" {
			base.Flowchart = set.Flowchart
		}
		merged[lang] = base
	}

	c.mu.Lock()
	c.sets = merged
	c.mu.Unlock()
	return nil
}

// Watch reloads path whenever it changes, until ctx is cancelled. The parent
// directory is watched so editors that replace the file are picked up too.
func (c *Catalog) Watch(ctx context.Context, path string, logger *zap.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}
	target := filepath.Clean(path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := c.Reload(path); err != nil {
				if logger != nil {
					logger.Warn("⚠️ Prompt reload failed", zap.String("path", path), zap.Error(err))
				}
				continue
			}
			if logger != nil {
				logger.Info("✅ Prompts reloaded", zap.String("path", path))
			}
		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if logger != nil {
				logger.Error("❌ Prompt watcher error", zap.Error(werr))
			}
		}
	}
}

// Languages lists the codes with a dedicated prompt set
func (c *Catalog) Languages() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	langs := make([]string, 0, len(c.sets))
	for l := range c.sets {
		langs = append(langs, l)
	}
	return langs
}

// lookup picks the template text for a language, falling back to English
// per field
func (c *Catalog) lookup(language string, pick func(PromptSet) string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if set, ok := c.sets[strings.ToLower(language)]; ok {
		if text := pick(set); text != "" {
			return text
		}
	}
	return pick(c.sets[DefaultLanguage])
}

func (c *Catalog) render(language string, pick func(PromptSet) string, data promptData) string {
	text := c.lookup(language, pick)
	tmpl, err := template.New("prompt").Parse(text)
	if err != nil {
		return text
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return text
	}
	return strings.TrimSpace(buf.String())
}

// GeneratePrompt is the combined transcribe+extract prompt for short audio
func (c *Catalog) GeneratePrompt(language string, participants []string) string {
	return c.render(language, func(p PromptSet) string { return p.Generate }, promptData{Participants: strings.Join(participants, ", ")})
}

// AnalyzePrompt is the extraction prompt for an already transcribed meeting
func (c *Catalog) AnalyzePrompt(language string, participants []string) string {
	return c.render(language, func(p PromptSet) string { return p.Analyze }, promptData{Participants: strings.Join(participants, ", ")})
}

// TranscribePrompt asks for a verbatim transcript of one chunk
func (c *Catalog) TranscribePrompt(language string) string {
	return c.render(language, func(p PromptSet) string { return p.Transcribe }, promptData{})
}

// RefinePrompt embeds the current minutes and the user's instruction
func (c *Catalog) RefinePrompt(language, contextJSON, instruction string) string {
	return c.render(language, func(p PromptSet) string { return p.Refine }, promptData{Context: contextJSON, Instruction: instruction})
}

// FlowchartPrompt asks for a graph only
func (c *Catalog) FlowchartPrompt(language string) string {
	return c.render(language, func(p PromptSet) string { return p.Flowchart }, promptData{Language: language})
}
