package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alohalabs/aloha/pkg/tools"
	"github.com/charmbracelet/log"
	"github.com/ollama/ollama/api"
)

const systemPrompt = `You are a dice rolling agent that can roll arbitrary N-sided dice and check if numbers are prime.

When asked to roll a dice, call the roll_dice tool with the number of sides as an integer parameter.

When asked to check if numbers are prime, call the check_prime tool with a list of integers.

When asked to roll a dice and check if the result is prime:
1. First call roll_dice to get the result
2. Then call check_prime with the result from step 1
3. Include both the dice result and prime check in your response

Always use the tools - never try to roll dice or check primes yourself.
Be conversational and friendly in your responses.`

/*
OllamaProvider is a model-backed brain that lets a local Ollama instance
decide which tool to call.  When Ollama is unreachable it degrades to the
pattern-matching DiceProvider so the agent keeps answering.
*/
type OllamaProvider struct {
	client   *api.Client
	model    string
	fallback *DiceProvider
}

type OllamaProviderOption func(*OllamaProvider)

func WithModel(model string) OllamaProviderOption {
	return func(prvdr *OllamaProvider) {
		prvdr.model = model
	}
}

func WithClient(client *api.Client) OllamaProviderOption {
	return func(prvdr *OllamaProvider) {
		prvdr.client = client
	}
}

func NewOllamaProvider(options ...OllamaProviderOption) *OllamaProvider {
	prvdr := &OllamaProvider{
		model:    "qwen2.5",
		fallback: NewDiceProvider(),
	}

	for _, option := range options {
		option(prvdr)
	}

	if prvdr.client == nil {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			log.Warn("failed to create ollama client, falling back to pattern matching", "error", err)
			return prvdr
		}
		prvdr.client = client
	}

	return prvdr
}

func (prvdr *OllamaProvider) Name() string { return "ollama" }

func (prvdr *OllamaProvider) Invoke(ctx context.Context, text string) (string, error) {
	if prvdr.client == nil {
		return prvdr.fallback.Invoke(ctx, text)
	}

	response, err := prvdr.chat(ctx, text)
	if err != nil {
		// Validation errors are the brain refusing the request, not the
		// model being unreachable; those propagate as task failures.
		var verr *ValidationError
		if errors.As(err, &verr) {
			return "", err
		}

		log.Warn("ollama chat failed, falling back to pattern matching", "error", err)
		return prvdr.fallback.Invoke(ctx, text)
	}

	return response, nil
}

func (prvdr *OllamaProvider) chat(ctx context.Context, text string) (string, error) {
	messages := []api.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: text},
	}

	req := &api.ChatRequest{
		Model:    prvdr.model,
		Messages: messages,
		Tools:    ollamaTools(),
		Stream:   new(bool),
	}

	var response string
	var toolCalls []api.ToolCall

	respFunc := func(resp api.ChatResponse) error {
		if len(resp.Message.ToolCalls) > 0 {
			toolCalls = resp.Message.ToolCalls
		}
		if resp.Message.Content != "" {
			response = resp.Message.Content
		}
		return nil
	}

	if err := prvdr.client.Chat(ctx, req, respFunc); err != nil {
		return "", fmt.Errorf("ollama chat error: %w", err)
	}

	if len(toolCalls) == 0 {
		return response, nil
	}

	log.Info("model requested tool calls", "count", len(toolCalls))

	for _, toolCall := range toolCalls {
		result, err := executeTool(toolCall)
		if err != nil {
			return "", err
		}

		messages = append(messages, api.Message{
			Role:      "assistant",
			ToolCalls: []api.ToolCall{toolCall},
		})
		messages = append(messages, api.Message{
			Role:    "tool",
			Content: result,
		})
	}

	req.Messages = messages
	req.Tools = nil

	var finalResponse string
	finalFunc := func(resp api.ChatResponse) error {
		if resp.Message.Content != "" {
			finalResponse = resp.Message.Content
		}
		return nil
	}

	if err := prvdr.client.Chat(ctx, req, finalFunc); err != nil {
		return "", fmt.Errorf("ollama follow-up chat error: %w", err)
	}

	return finalResponse, nil
}

// executeTool runs one tool call against the local dice/prime functions
// and returns the result as JSON for the model to phrase.
func executeTool(toolCall api.ToolCall) (string, error) {
	args := map[string]any{}
	if err := json.Unmarshal([]byte(toolCall.Function.Arguments.String()), &args); err != nil {
		return "", fmt.Errorf("invalid tool arguments: %w", err)
	}

	switch toolCall.Function.Name {
	case "roll_dice":
		sides, ok := args["sides"].(float64)
		if !ok {
			return "", fmt.Errorf("invalid 'sides' parameter")
		}
		result, err := tools.RollDice(int(sides))
		if err != nil {
			return "", &ValidationError{Message: err.Error()}
		}
		return fmt.Sprintf(`{"result": %d}`, result), nil

	case "check_prime":
		raw, ok := args["numbers"].([]any)
		if !ok {
			return "", fmt.Errorf("invalid 'numbers' parameter")
		}
		if len(raw) > tools.MaxNumbers {
			return "", &ValidationError{Message: fmt.Sprintf("'numbers' list too large (max %d), got %d", tools.MaxNumbers, len(raw))}
		}
		numbers := make([]int, len(raw))
		for i, n := range raw {
			num, ok := n.(float64)
			if !ok {
				return "", fmt.Errorf("invalid number at index %d", i)
			}
			if num < 0 {
				return "", &ValidationError{Message: fmt.Sprintf("all numbers must be non-negative, got %d", int(num))}
			}
			numbers[i] = int(num)
		}
		buf, _ := json.Marshal(map[string]string{"result": tools.CheckPrime(numbers)})
		return string(buf), nil
	}

	return "", fmt.Errorf("unknown tool: %s", toolCall.Function.Name)
}

func ollamaTools() []api.Tool {
	return []api.Tool{
		newTool(
			"roll_dice",
			"Rolls an N-sided dice and returns a random number between 1 and N",
			map[string]toolProperty{
				"sides": {Type: api.PropertyType{"integer"}, Description: "The number of sides on the dice (must be positive)"},
			},
			[]string{"sides"},
		),
		newTool(
			"check_prime",
			"Checks if the given numbers are prime and returns which ones are prime",
			map[string]toolProperty{
				"numbers": {
					Type:        api.PropertyType{"array"},
					Description: "List of integers to check for primality",
					Items:       map[string]any{"type": "integer"},
				},
			},
			[]string{"numbers"},
		),
	}
}

// toolProperty mirrors the anonymous property struct the ollama API
// expects inside tool parameter schemas.
type toolProperty struct {
	Type        api.PropertyType
	Description string
	Items       any
}

func newTool(name, description string, properties map[string]toolProperty, required []string) api.Tool {
	type apiProperty = struct {
		Type        api.PropertyType `json:"type"`
		Items       any              `json:"items,omitempty"`
		Description string           `json:"description"`
		Enum        []any            `json:"enum,omitempty"`
	}

	props := make(map[string]apiProperty, len(properties))
	for name, prop := range properties {
		props[name] = apiProperty{
			Type:        prop.Type,
			Items:       prop.Items,
			Description: prop.Description,
		}
	}

	return api.Tool{
		Type: "function",
		Function: api.ToolFunction{
			Name:        name,
			Description: description,
			Parameters: struct {
				Type       string   `json:"type"`
				Defs       any      `json:"$defs,omitempty"`
				Items      any      `json:"items,omitempty"`
				Required   []string `json:"required"`
				Properties map[string]struct {
					Type        api.PropertyType `json:"type"`
					Items       any              `json:"items,omitempty"`
					Description string           `json:"description"`
					Enum        []any            `json:"enum,omitempty"`
				} `json:"properties"`
			}{
				Type:       "object",
				Required:   required,
				Properties: props,
			},
		},
	}
}
