// Package completion adapts conversation history to the chat
// completions API of a Groq-hosted model and maps one candidate
// response back into the session message shape. The adapter is
// stateless and performs no normalization of tool output.
package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pranav/chatterbox/internal/observability"
	"github.com/pranav/chatterbox/pkg/session"
	"github.com/pranav/chatterbox/pkg/toolexecutor"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL points at Groq's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://api.groq.com/openai/v1"

var (
	// ErrToolUseFailed means the provider rejected the request because
	// the model produced a malformed tool call. The orchestrator
	// recovers from this locally with a degraded reply.
	ErrToolUseFailed = errors.New("provider rejected malformed tool call")

	// ErrInvalidResponse means the provider returned no usable
	// candidate message.
	ErrInvalidResponse = errors.New("invalid provider response")
)

// Config holds the fixed sampling parameters and tool declarations.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int64

	// Tools are the declarations sent when the caller enables tools.
	Tools []toolexecutor.ToolDefinition
}

// Client calls the completion provider.
type Client struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int64
	tools       []openai.ChatCompletionToolParam
}

// New creates a completion client.
func New(cfg Config) *Client {
	observability.EnsureRegistered()

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	tools := make([]openai.ChatCompletionToolParam, 0, len(cfg.Tools))
	for _, def := range cfg.Tools {
		tools = append(tools, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        def.Name,
				Description: openai.String(def.Description),
				Parameters:  openai.FunctionParameters(toolexecutor.SchemaObject(def)),
			},
		})
	}

	return &Client{
		client: openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(baseURL),
		),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		tools:       tools,
	}
}

// Complete sends the full history and returns the first candidate
// message. When toolsEnabled, the configured tool declarations are
// attached with automatic tool choice.
func (c *Client) Complete(ctx context.Context, history []session.Message, toolsEnabled bool) (session.Message, error) {
	messages, err := toProviderMessages(history)
	if err != nil {
		return session.Message{}, err
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
	}
	if c.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(c.maxTokens)
	}
	if c.temperature > 0 {
		params.Temperature = openai.Float(c.temperature)
	}
	if toolsEnabled && len(c.tools) > 0 {
		params.Tools = c.tools
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: openai.String("auto"),
		}
	}

	start := time.Now()
	response, err := c.client.Chat.Completions.New(ctx, params)
	observability.RecordCompletion(time.Since(start), err == nil)

	if err != nil {
		if isToolUseFailure(err) {
			return session.Message{}, fmt.Errorf("%w: %v", ErrToolUseFailed, err)
		}
		return session.Message{}, fmt.Errorf("completion request failed: %w", err)
	}

	if len(response.Choices) == 0 {
		return session.Message{}, fmt.Errorf("%w: no choices returned", ErrInvalidResponse)
	}

	candidate := response.Choices[0].Message

	log.Debug().
		Str("model", c.model).
		Int("toolCalls", len(candidate.ToolCalls)).
		Bool("hasContent", candidate.Content != "").
		Msg("Completion received")

	return fromProviderMessage(candidate), nil
}

// toProviderMessages converts session history to the wire shape.
func toProviderMessages(history []session.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history))

	for _, msg := range history {
		switch msg.Role {
		case session.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case session.RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		case session.RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				messages = append(messages, openai.AssistantMessage(msg.Content))
				continue
			}
			toolCalls := make([]openai.ChatCompletionMessageToolCall, 0, len(msg.ToolCalls))
			for _, tc := range msg.ToolCalls {
				toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunction{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			assistantMsg := openai.ChatCompletionMessage{
				Role:      "assistant",
				Content:   msg.Content,
				ToolCalls: toolCalls,
			}
			messages = append(messages, assistantMsg.ToParam())
		case session.RoleTool:
			messages = append(messages, openai.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			return nil, fmt.Errorf("unsupported message role %q", msg.Role)
		}
	}

	return messages, nil
}

// fromProviderMessage converts a candidate back into session shape,
// keeping tool call arguments as the provider's raw JSON string.
func fromProviderMessage(candidate openai.ChatCompletionMessage) session.Message {
	msg := session.Message{
		Role:    session.RoleAssistant,
		Content: candidate.Content,
	}

	for _, tc := range candidate.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, session.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}

	return msg
}

// isToolUseFailure recognizes Groq's 400 response for malformed tool
// call shaping.
func isToolUseFailure(err error) bool {
	var apierr *openai.Error
	if !errors.As(err, &apierr) {
		return false
	}
	if apierr.StatusCode != http.StatusBadRequest {
		return false
	}
	return apierr.Code == "tool_use_failed" || strings.Contains(apierr.Message, "tool_use_failed")
}
