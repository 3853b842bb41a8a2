package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nao1215/driftwatch/internal/config"
	"github.com/nao1215/driftwatch/internal/model"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrNoResponse is returned when the model answered without any choice.
var ErrNoResponse = errors.New("analyzer returned no response")

// defaultMaxInputChars bounds each page version sent to the model.
const defaultMaxInputChars = 8000

const systemPrompt = `You compare two versions of a web page and report what changed.
Answer with a single JSON object and nothing else:
{"added": ["..."], "removed": ["..."], "summary": "..."}
"added" and "removed" list short phrases such as prices, contact details,
products or promises that appear only in the new or only in the old version.
"summary" is one sentence in the language of the page.`

// Analyzer describes the change between two versions of a page.
type Analyzer interface {
	Analyze(ctx context.Context, current, previous string) (model.Analysis, error)
}

// Nop is the analyzer used when no provider is configured.
type Nop struct{}

// Analyze implements Analyzer.
func (Nop) Analyze(context.Context, string, string) (model.Analysis, error) {
	return model.Analysis{}, nil
}

// LLM is an Analyzer backed by a langchaingo model.
type LLM struct {
	llm           llms.Model
	maxInputChars int
	logger        *slog.Logger
}

// Option configures an LLM analyzer.
type Option func(*LLM)

// WithMaxInputChars bounds the size of each page version sent to the model.
func WithMaxInputChars(n int) Option {
	return func(a *LLM) {
		if n > 0 {
			a.maxInputChars = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *LLM) {
		a.logger = l
	}
}

// NewLLM creates an analyzer using m.
func NewLLM(m llms.Model, opts ...Option) *LLM {
	a := &LLM{
		llm:           m,
		maxInputChars: defaultMaxInputChars,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// New creates the analyzer selected by cfg.
func New(cfg *config.Config, opts ...Option) (Analyzer, error) {
	var (
		m   llms.Model
		err error
	)

	switch cfg.AnalyzerProvider {
	case config.AnalyzerNone, "":
		return Nop{}, nil
	case config.AnalyzerOpenRouter, config.AnalyzerOpenAI:
		baseURL := cfg.AnalyzerBaseURL
		if baseURL == "" && cfg.AnalyzerProvider == config.AnalyzerOpenRouter {
			baseURL = config.DefaultOpenRouterBaseURL
		}
		openaiOpts := []openai.Option{
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.AnalyzerModel),
		}
		if baseURL != "" {
			openaiOpts = append(openaiOpts, openai.WithBaseURL(baseURL))
		}
		m, err = openai.New(openaiOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai model: %w", err)
		}
	case config.AnalyzerAnthropic:
		m, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.AnalyzerModel),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create anthropic model: %w", err)
		}
	case config.AnalyzerOllama:
		ollamaOpts := []ollama.Option{ollama.WithModel(cfg.AnalyzerModel)}
		if cfg.OllamaHost != "" {
			ollamaOpts = append(ollamaOpts, ollama.WithServerURL(cfg.OllamaHost))
		}
		m, err = ollama.New(ollamaOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama model: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrUnknownAnalyzer, cfg.AnalyzerProvider)
	}

	return NewLLM(m, opts...), nil
}

// Analyze implements Analyzer.
func (a *LLM) Analyze(ctx context.Context, current, previous string) (model.Analysis, error) {
	userPrompt := fmt.Sprintf("Previous version:\n%s\n\nCurrent version:\n%s\n",
		a.clip(previous), a.clip(current))

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	resp, err := a.llm.GenerateContent(ctx, messages, llms.WithTemperature(0))
	if err != nil {
		return model.Analysis{}, fmt.Errorf("failed to analyze content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return model.Analysis{}, ErrNoResponse
	}

	analysis := Parse(resp.Choices[0].Content)
	if analysis.Kind() == model.AnalysisFreeform {
		a.logger.Debug("analyzer answer is not structured, keeping it as text")
	}
	return analysis, nil
}

func (a *LLM) clip(s string) string {
	r := []rune(s)
	if len(r) <= a.maxInputChars {
		return s
	}
	return string(r[:a.maxInputChars])
}

// Parse turns a model answer into an Analysis. A JSON object with "added",
// "removed" or "summary" becomes a KeywordDiff; anything else is kept as text.
func Parse(answer string) model.Analysis {
	text := strings.TrimSpace(answer)
	if text == "" {
		return model.Analysis{}
	}

	candidate := stripCodeFence(text)
	if start, end := strings.Index(candidate, "{"), strings.LastIndex(candidate, "}"); start >= 0 && end > start {
		var diff model.KeywordDiff
		if err := json.Unmarshal([]byte(candidate[start:end+1]), &diff); err == nil &&
			(len(diff.Added) > 0 || len(diff.Removed) > 0 || diff.Summary != "") {
			return model.NewKeywordDiffAnalysis(diff)
		}
	}
	return model.NewFreeformAnalysis(text)
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}
