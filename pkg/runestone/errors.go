package runestone

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/runestone-ai/runestone-go/pkg/api"
)

// mapHTTPError converts a non-2xx response into the typed error taxonomy.
// It reads a bounded amount of the body to extract the server's message.
func mapHTTPError(resp *http.Response) error {
	message, raw := extractErrorMessage(resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		if message == "" {
			message = "invalid API key"
		}
		return &api.AuthenticationError{StatusCode: resp.StatusCode, Message: message}

	case resp.StatusCode == http.StatusTooManyRequests:
		if message == "" {
			message = "rate limit exceeded"
		}
		return &api.RateLimitError{StatusCode: resp.StatusCode, Message: message}

	default:
		if message == "" {
			message = fmt.Sprintf("unexpected response (HTTP %d)", resp.StatusCode)
		}
		return &api.RequestError{StatusCode: resp.StatusCode, Message: message, Body: raw}
	}
}

// mapNetworkError wraps a network-level failure (connection refused,
// timeout, DNS) with the operation that hit it.
func mapNetworkError(op string, err error) error {
	return &api.TransportError{Op: op, Err: err}
}

// extractErrorMessage tries to parse the response body as an OpenAI-style
// error envelope. It returns the extracted message (empty when the body is
// not the expected shape) and the raw body text.
func extractErrorMessage(body io.Reader) (message, raw string) {
	if body == nil {
		return "", ""
	}

	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return "", ""
	}
	raw = string(data)

	var errResp api.ErrorResponse
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message, raw
	}

	return "", raw
}
