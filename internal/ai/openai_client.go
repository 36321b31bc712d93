package ai

import (
	"context"
	"fmt"
	"log"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient implements Completer over the OpenAI chat completion API.
type OpenAIClient struct {
	model string
}

func NewOpenAIClient() *OpenAIClient {
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = openai.GPT3Dot5Turbo
	}
	return &OpenAIClient{model: model}
}

func (c *OpenAIClient) Complete(
	ctx context.Context,
	apiKey string,
	systemPrompt string,
	turns []Turn,
) (string, error) {
	if apiKey == "" {
		return "", fmt.Errorf("no OpenAI API key configured")
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, t := range turns {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    t.Role,
			Content: t.Content,
		})
	}

	// The key lives in bot_config and can change between messages, so the
	// client is built per call.
	client := openai.NewClient(apiKey)

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: msgs,
	})
	if err != nil {
		log.Printf("❌ OpenAI error: %v", err)
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}
