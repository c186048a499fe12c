package response

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/askgraph/askgraph/pkg/ai"
	"github.com/askgraph/askgraph/pkg/executor"
	"github.com/askgraph/askgraph/pkg/logger"
)

// Response is the final natural-language answer with its derived extras.
type Response struct {
	Answer         string          `json:"answer"`
	Insights       []string        `json:"insights"`
	Visualizations []Visualization `json:"visualizations"`
	Success        bool            `json:"success"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
}

// Config holds the synthesis knobs.
type Config struct {
	Model         string
	Temperature   float64
	MaxDataTokens int
	MaxItems      int
}

// DefaultConfig returns the standard synthesis settings.
func DefaultConfig() Config {
	return Config{
		Temperature:   0.3,
		MaxDataTokens: 2000,
		MaxItems:      20,
	}
}

// Generator turns execution results into natural-language responses.
type Generator struct {
	llm    ai.ChatClient
	config Config

	encoding *tiktoken.Tiktoken
}

// NewGenerator creates a response generator. The token encoding loads
// lazily; when unavailable, truncation falls back to the item bound alone.
func NewGenerator(llm ai.ChatClient, config Config) *Generator {
	if config.MaxDataTokens <= 0 {
		config.MaxDataTokens = 2000
	}
	if config.MaxItems <= 0 {
		config.MaxItems = 20
	}
	return &Generator{llm: llm, config: config}
}

// Generate synthesizes the answer for a non-empty result. Insights and
// visualizations are rule-based and computed regardless of the model call.
func (g *Generator) Generate(
	ctx context.Context,
	question string,
	cypher string,
	result *executor.Result,
) (*Response, error) {
	if result == nil || len(result.Data) == 0 {
		return g.GenerateEmpty(ctx, question, cypher), nil
	}

	serialized, truncated := g.serializeRows(result.Data)
	prompt := fmt.Sprintf(AnswerPrompt, question, cypher, len(result.Data), serialized)

	opts := []ai.GenerateOption{ai.WithTemperature(g.config.Temperature)}
	if g.config.Model != "" {
		opts = append(opts, ai.WithModel(g.config.Model))
	}

	answer, err := g.llm.GenerateCompletion(ctx, prompt, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize response: %w", err)
	}

	return &Response{
		Answer:         strings.TrimSpace(answer),
		Insights:       ExtractInsights(result.Data),
		Visualizations: SuggestVisualizations(cypher, result.Data),
		Success:        true,
		Metadata: map[string]any{
			"rows":      len(result.Data),
			"truncated": truncated,
		},
	}, nil
}

// GenerateStream synthesizes like Generate but streams the answer text
// through onChunk as it arrives. The assembled response is returned once the
// stream ends.
func (g *Generator) GenerateStream(
	ctx context.Context,
	question string,
	cypher string,
	result *executor.Result,
	onChunk func(string),
) (*Response, error) {
	if result == nil || len(result.Data) == 0 {
		resp := g.GenerateEmpty(ctx, question, cypher)
		if onChunk != nil {
			onChunk(resp.Answer)
		}
		return resp, nil
	}

	serialized, truncated := g.serializeRows(result.Data)
	prompt := fmt.Sprintf(AnswerPrompt, question, cypher, len(result.Data), serialized)

	opts := []ai.GenerateOption{ai.WithTemperature(g.config.Temperature)}
	if g.config.Model != "" {
		opts = append(opts, ai.WithModel(g.config.Model))
	}

	events, err := g.llm.GenerateChatStream(ctx, []ai.ChatMessage{{Role: "user", Message: prompt}}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize response: %w", err)
	}

	var b strings.Builder
	for event := range events {
		if event.Content == "" {
			continue
		}
		b.WriteString(event.Content)
		if onChunk != nil {
			onChunk(event.Content)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to synthesize response: %w", err)
	}

	return &Response{
		Answer:         strings.TrimSpace(b.String()),
		Insights:       ExtractInsights(result.Data),
		Visualizations: SuggestVisualizations(cypher, result.Data),
		Success:        true,
		Metadata: map[string]any{
			"rows":      len(result.Data),
			"truncated": truncated,
		},
	}, nil
}

// GenerateEmpty explains an empty result. A model failure degrades to the
// static fallback text instead of erroring.
func (g *Generator) GenerateEmpty(ctx context.Context, question, cypher string) *Response {
	prompt := fmt.Sprintf(EmptyPrompt, question, cypher)

	opts := []ai.GenerateOption{ai.WithTemperature(g.config.Temperature)}
	if g.config.Model != "" {
		opts = append(opts, ai.WithModel(g.config.Model))
	}

	answer, err := g.llm.GenerateCompletion(ctx, prompt, opts...)
	if err != nil || strings.TrimSpace(answer) == "" {
		if err != nil {
			logger.Warn("Empty-result synthesis failed, using fallback", "err", err)
		}
		answer = EmptyFallback
	}

	return &Response{
		Answer:         strings.TrimSpace(answer),
		Insights:       []string{},
		Visualizations: []Visualization{},
		Success:        true,
		Metadata:       map[string]any{"rows": 0},
	}
}

// GenerateError produces an apologetic answer for a failed pipeline run, with
// guidance keyed on the failure class.
func (g *Generator) GenerateError(question string, err error) *Response {
	message := ""
	if err != nil {
		message = err.Error()
	}
	lowered := strings.ToLower(message)

	guidance := "Please try rephrasing your question."
	switch {
	case executor.IsTimeout(err) || strings.Contains(lowered, "timeout") || strings.Contains(lowered, "deadline"):
		guidance = "The question needed more time than allowed. Try narrowing it down, for example to a shorter time range or a single category."
	case strings.Contains(lowered, "syntax"):
		guidance = "I could not build a valid query for this question. Try asking it more directly, naming the things you are interested in."
	}

	return &Response{
		Answer:         "I'm sorry, I was unable to answer your question. " + guidance,
		Insights:       []string{},
		Visualizations: []Visualization{},
		Success:        false,
		Metadata:       map[string]any{"error": message},
	}
}

// serializeRows renders rows as JSON lines under both the item bound and the
// token budget, reporting whether anything was cut.
func (g *Generator) serializeRows(rows []map[string]any) (string, bool) {
	truncated := false
	if len(rows) > g.config.MaxItems {
		rows = rows[:g.config.MaxItems]
		truncated = true
	}

	var b strings.Builder
	budget := g.config.MaxDataTokens
	for i, row := range rows {
		encoded, err := json.Marshal(row)
		if err != nil {
			continue
		}
		line := string(encoded)

		cost := g.countTokens(line)
		if cost > budget {
			if i > 0 {
				truncated = true
			} else {
				// Always include at least one row, clipped to the budget.
				b.WriteString(g.clipToBudget(line, budget))
				truncated = true
			}
			break
		}
		budget -= cost
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), truncated
}

func (g *Generator) countTokens(text string) int {
	if enc := g.tokenEncoding(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	// Rough heuristic when the encoding is unavailable.
	return len(text) / 4
}

func (g *Generator) clipToBudget(text string, budget int) string {
	if budget <= 0 {
		return ""
	}
	if enc := g.tokenEncoding(); enc != nil {
		tokens := enc.Encode(text, nil, nil)
		if len(tokens) <= budget {
			return text
		}
		return enc.Decode(tokens[:budget])
	}
	max := budget * 4
	if len(text) <= max {
		return text
	}
	return text[:max]
}

func (g *Generator) tokenEncoding() *tiktoken.Tiktoken {
	if g.encoding == nil {
		enc, err := tiktoken.GetEncoding("o200k_base")
		if err != nil {
			return nil
		}
		g.encoding = enc
	}
	return g.encoding
}
