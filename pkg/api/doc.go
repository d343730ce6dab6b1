// Package api defines the wire types and error taxonomy for the Runestone
// OpenAI-compatible API.
//
// The types mirror the OpenAI Chat Completions wire format plus the
// Runestone routing extensions (model family, capability and cost hints,
// tenant scoping). Decoding is forward-compatible: unknown fields sent by
// newer servers are ignored, and optional fields are pointers or omitempty
// so absent and zero values stay distinguishable.
//
// The package has zero external dependencies and performs no I/O. Error
// values returned by the client (pkg/runestone) are defined here:
//   - [AuthenticationError]: the server rejected the credentials (401/403)
//   - [RateLimitError]: the server throttled the request (429)
//   - [RequestError]: any other non-success HTTP status
//   - [TransportError]: a network-level failure, wrapping the cause
//
// Malformed streaming frames are not part of the taxonomy: they are skipped
// with a diagnostic and never surface as errors (see pkg/sse).
package api
