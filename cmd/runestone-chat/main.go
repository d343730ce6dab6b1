// Command runestone-chat streams a chat completion from a Runestone
// deployment to stdout, token by token.
//
//	runestone-chat -model runestone-mock "why is the sky blue?"
//
// RUNESTONE_API_URL and RUNESTONE_API_KEY supply the connection when the
// flags are absent; a .env file in the working directory is loaded first.
// Ctrl-C cancels the stream mid-flight.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/runestone-ai/runestone-go/pkg/api"
	"github.com/runestone-ai/runestone-go/pkg/runestone"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is a convenience for local runs; real env wins.
	_ = godotenv.Load()

	var (
		baseURL = flag.String("url", os.Getenv("RUNESTONE_API_URL"), "deployment base URL")
		apiKey  = flag.String("key", os.Getenv("RUNESTONE_API_KEY"), "API key")
		model   = flag.String("model", envOrDefault("RUNESTONE_MODEL", "runestone-mock"), "model to use")
		system  = flag.String("system", "", "optional system prompt")
	)
	flag.Parse()

	prompt := strings.Join(flag.Args(), " ")
	if prompt == "" {
		prompt = "Count from one to five."
	}

	client := runestone.New(runestone.Config{
		BaseURL: *baseURL,
		APIKey:  *apiKey,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var messages []api.ChatMessage
	if *system != "" {
		messages = append(messages, api.ChatMessage{Role: "system", Content: *system})
	}
	messages = append(messages, api.ChatMessage{Role: "user", Content: prompt})

	stream, err := client.StreamChatCompletion(ctx, &api.ChatCompletionRequest{
		Model:    *model,
		Messages: messages,
	})
	if err != nil {
		return err
	}
	defer stream.Close()

	var usage *api.Usage
	for stream.Next() {
		chunk := stream.Current()
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content != nil {
				fmt.Print(*choice.Delta.Content)
			}
		}
	}
	fmt.Println()

	if err := stream.Err(); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "interrupted")
			return nil
		}
		return err
	}
	if n := stream.Skipped(); n > 0 {
		fmt.Fprintf(os.Stderr, "note: %d malformed frames skipped\n", n)
	}
	if usage != nil {
		fmt.Fprintf(os.Stderr, "tokens: %d prompt / %d completion / %d total\n",
			usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens)
	}
	return nil
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
