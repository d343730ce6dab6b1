package runestone

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/runestone-ai/runestone-go/pkg/api"
	"github.com/runestone-ai/runestone-go/pkg/debug"
	"github.com/runestone-ai/runestone-go/pkg/observability"
	"github.com/runestone-ai/runestone-go/pkg/sse"
)

// ChatCompletionStream is a pull-based stream of chat completion chunks.
// See pkg/sse for the iteration contract.
type ChatCompletionStream = sse.Stream[api.ChatCompletionChunk]

// StreamChatCompletion opens a streaming chat completion. The HTTP status
// is checked before any decoder is constructed: authentication failures,
// throttling and other non-success statuses return a typed error and no
// stream. The caller must Close the returned stream.
func (c *Client) StreamChatCompletion(ctx context.Context, req *api.ChatCompletionRequest) (*ChatCompletionStream, error) {
	reqCopy := *req
	reqCopy.Stream = true
	return c.openStream(ctx, "chat_completions", "/v1/chat/completions", &reqCopy)
}

// StreamChat opens a stream on the Runestone-native /v1/chat/stream
// endpoint, which takes an explicit provider and tenant.
func (c *Client) StreamChat(ctx context.Context, req *api.ChatStreamRequest) (*ChatCompletionStream, error) {
	return c.openStream(ctx, "chat_stream", "/v1/chat/stream", req)
}

func (c *Client) openStream(ctx context.Context, endpoint, path string, payload any) (*ChatCompletionStream, error) {
	req, err := c.newRequest(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	debug.Log("stream", "opening stream", "path", path)

	start := time.Now()
	resp, err := c.stream.Do(req)
	if err != nil {
		observability.ClientRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, mapNetworkError("open stream", err)
	}

	observability.ClientRequestsTotal.WithLabelValues(endpoint, observability.StatusClass(resp.StatusCode)).Inc()
	observability.ClientRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	// Status-based failures short-circuit before a decoder exists.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		mapped := mapHTTPError(resp)
		resp.Body.Close()
		return nil, mapped
	}

	observability.StreamsActive.Inc()
	body := &gaugedBody{ReadCloser: resp.Body}
	return sse.NewStream[api.ChatCompletionChunk](sse.NewDecoder(body), nil), nil
}

// gaugedBody decrements the active-streams gauge on first Close. The
// decoder guarantees Close reaches the body exactly once.
type gaugedBody struct {
	io.ReadCloser
	once sync.Once
}

func (b *gaugedBody) Close() error {
	b.once.Do(func() { observability.StreamsActive.Dec() })
	return b.ReadCloser.Close()
}
