package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"time"

	"github.com/askgraph/askgraph/pkg/ai"

	"github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"
)

// GenerateCompletion sends a single-turn prompt and returns assistant text.
func (c *GraphOllamaClient) GenerateCompletion(
	ctx context.Context,
	prompt string,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.GenerateOptions{
		Model:       c.chatModel,
		Temperature: 0.3,
	}
	for _, o := range opts {
		o(&options)
	}

	msgs := make([]api.Message, 0, len(options.SystemPrompts)+1)
	for _, sp := range options.SystemPrompts {
		msgs = append(msgs, api.Message{Role: "system", Content: sp})
	}
	msgs = append(msgs, api.Message{Role: "user", Content: prompt})

	return c.chat(ctx, msgs, options, prompt)
}

// GenerateCompletionWithFormat enforces a JSON schema and unmarshals into out.
func (c *GraphOllamaClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	if out == nil {
		return errors.New("out must be a non-nil pointer")
	}
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.New("out must be a non-nil pointer")
	}

	schemaObj := ai.GenerateSchema(out)
	formatBytes, err := json.Marshal(schemaObj)
	if err != nil {
		return err
	}
	var format json.RawMessage = formatBytes

	options := ai.GenerateOptions{
		Model:       c.chatModel,
		Temperature: 0.1,
	}
	for _, o := range opts {
		o(&options)
	}

	msgs := make([]api.Message, 0, len(options.SystemPrompts)+1)
	for _, sp := range options.SystemPrompts {
		msgs = append(msgs, api.Message{Role: "system", Content: sp})
	}
	msgs = append(msgs, api.Message{Role: "user", Content: prompt})

	content, err := c.chatWithFormat(ctx, msgs, options, prompt, format)
	if err != nil {
		return err
	}

	return ai.UnmarshalFlexible(content, out)
}

// GenerateChat sends a multi-turn chat conversation and returns the
// assistant's reply as plain text.
func (c *GraphOllamaClient) GenerateChat(
	ctx context.Context,
	messages []ai.ChatMessage,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.GenerateOptions{
		Model:       c.chatModel,
		Temperature: 0.2,
	}
	for _, o := range opts {
		o(&options)
	}

	msgs := make([]api.Message, 0, len(options.SystemPrompts)+len(messages))
	promptText := ""
	for _, sp := range options.SystemPrompts {
		msgs = append(msgs, api.Message{Role: "system", Content: sp})
		promptText += sp
	}
	for _, message := range messages {
		msgs = append(msgs, api.Message{Role: message.Role, Content: message.Message})
		promptText += message.Message
	}

	return c.chat(ctx, msgs, options, promptText)
}

// GenerateChatStream sends a multi-turn chat conversation and returns a
// channel that streams the assistant's reply incrementally. The channel is
// closed when the stream ends or the context is canceled.
func (c *GraphOllamaClient) GenerateChatStream(
	ctx context.Context,
	messages []ai.ChatMessage,
	opts ...ai.GenerateOption,
) (<-chan ai.StreamEvent, error) {
	options := ai.GenerateOptions{
		Model:       c.chatModel,
		Temperature: 0.2,
	}
	for _, o := range opts {
		o(&options)
	}

	msgs := make([]api.Message, 0, len(options.SystemPrompts)+len(messages))
	promptText := ""
	for _, sp := range options.SystemPrompts {
		msgs = append(msgs, api.Message{Role: "system", Content: sp})
		promptText += sp
	}
	for _, message := range messages {
		msgs = append(msgs, api.Message{Role: message.Role, Content: message.Message})
		promptText += message.Message
	}

	stream := true
	req := &api.ChatRequest{
		Model:    options.Model,
		Messages: msgs,
		Stream:   &stream,
		Options:  c.requestOptions(options, promptText),
	}

	out := make(chan ai.StreamEvent, 10)
	go func() {
		defer close(out)

		start := time.Now()
		var final api.ChatResponse
		err := c.Client.Chat(ctx, req, func(cr api.ChatResponse) error {
			if cr.Message.Content != "" {
				select {
				case out <- ai.StreamEvent{Type: "content", Content: cr.Message.Content}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if cr.Done {
				final = cr
			}
			return nil
		})
		if err != nil {
			return
		}

		c.modifyMetrics(ai.ModelMetrics{
			InputTokens:  final.Metrics.PromptEvalCount,
			OutputTokens: final.Metrics.EvalCount,
			TotalTokens:  final.Metrics.PromptEvalCount + final.Metrics.EvalCount,
			DurationMs:   time.Since(start).Milliseconds(),
		})
	}()

	return out, nil
}

func (c *GraphOllamaClient) chat(
	ctx context.Context,
	msgs []api.Message,
	options ai.GenerateOptions,
	promptText string,
) (string, error) {
	return c.chatWithFormat(ctx, msgs, options, promptText, nil)
}

func (c *GraphOllamaClient) chatWithFormat(
	ctx context.Context,
	msgs []api.Message,
	options ai.GenerateOptions,
	promptText string,
	format json.RawMessage,
) (string, error) {
	rCtx, cancel := context.WithTimeout(ctx, time.Minute*time.Duration(c.timeoutMin))
	defer cancel()

	stream := false
	req := &api.ChatRequest{
		Model:    options.Model,
		Messages: msgs,
		Stream:   &stream,
		Options:  c.requestOptions(options, promptText),
	}
	if format != nil {
		req.Format = format
	}

	if err := c.reqLock.Acquire(rCtx, 1); err != nil {
		return "", err
	}
	defer c.reqLock.Release(1)

	var final api.ChatResponse
	if err := c.Client.Chat(rCtx, req, func(cr api.ChatResponse) error {
		final.Message.Content += cr.Message.Content
		if cr.Done {
			final.Done = true
			final.Metrics = cr.Metrics
		}
		return nil
	}); err != nil {
		return "", err
	}

	c.modifyMetrics(ai.ModelMetrics{
		InputTokens:  final.Metrics.PromptEvalCount,
		OutputTokens: final.Metrics.EvalCount,
		TotalTokens:  final.Metrics.PromptEvalCount + final.Metrics.EvalCount,
		DurationMs:   final.Metrics.TotalDuration.Milliseconds(),
	})

	return final.Message.Content, nil
}

// requestOptions sizes the context window to the prompt when it exceeds the
// model default, so long schema prompts are not silently truncated.
func (c *GraphOllamaClient) requestOptions(options ai.GenerateOptions, promptText string) map[string]any {
	reqOptions := map[string]any{"temperature": options.Temperature}
	if options.MaxTokens > 0 {
		reqOptions["num_predict"] = options.MaxTokens
	}

	enc, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		return reqOptions
	}
	tokens := len(enc.Encode(promptText, nil, nil)) + 200
	if tokens > 4096 {
		reqOptions["num_ctx"] = tokens
	}
	return reqOptions
}
