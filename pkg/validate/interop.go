package validate

import (
	"context"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// openaiClient builds an official openai-go client aimed at the target,
// the way third-party OpenAI SDK users consume a deployment.
func openaiClient(env *Env) openai.Client {
	return openai.NewClient(
		option.WithBaseURL(strings.TrimRight(env.BaseURL, "/")+"/v1/"),
		option.WithAPIKey(env.APIKey),
	)
}

func checkSDKInteropBasic(ctx context.Context, env *Env) Outcome {
	if env.APIKey == "" && env.Credentials != nil {
		return Skipf("interop checks need a static API key")
	}
	client := openaiClient(env)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(env.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage("Say 'SDK interop successful' and nothing else."),
		},
		MaxTokens: openai.Int(20),
	})
	if err != nil {
		return Failf("openai-go request failed: %v", err)
	}

	if resp.ID == "" {
		return Failf("response has no id")
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return Failf("empty response content")
	}
	return Passf("id %s via openai-go", resp.ID)
}

func checkSDKInteropStreaming(ctx context.Context, env *Env) Outcome {
	if env.APIKey == "" && env.Credentials != nil {
		return Skipf("interop checks need a static API key")
	}
	client := openaiClient(env)

	stream := client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(env.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage("Please count from 1 to 5"),
		},
	})
	defer stream.Close()

	var chunks int
	var content strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		chunks++
		for _, choice := range chunk.Choices {
			content.WriteString(choice.Delta.Content)
		}
	}
	if err := stream.Err(); err != nil {
		return Failf("openai-go stream failed after %d chunks: %v", chunks, err)
	}

	if chunks == 0 || content.Len() == 0 {
		return Failf("no streamed content via openai-go")
	}
	return Passf("%d chunks via openai-go", chunks)
}
