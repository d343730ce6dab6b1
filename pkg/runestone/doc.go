// Package runestone is the client SDK for the Runestone inference
// gateway. It speaks the OpenAI-compatible surface (/v1/chat/completions,
// /v1/completions, /v1/embeddings, /v1/models) plus the Runestone-native
// streaming endpoint (/v1/chat/stream) and the health probes.
//
// Construct a client with New or FromEnv:
//
//	client, err := runestone.New(runestone.Config{
//		BaseURL: "http://localhost:4001",
//		APIKey:  os.Getenv("RUNESTONE_API_KEY"),
//	})
//
// Non-streaming calls return decoded response structs from pkg/api.
// Streaming calls return a *ChatCompletionStream which the caller pulls
// with Next/Current and must Close.
//
// Failures map onto the typed errors in pkg/api: AuthenticationError,
// RateLimitError, RequestError and TransportError. Status-based errors
// for streaming calls are detected before any stream is constructed, so
// a 401 or 429 never produces a half-open stream.
package runestone
