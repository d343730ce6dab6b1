// Package sse decodes Server-Sent-Events streams into typed values, pulled
// one at a time by the caller.
//
// [Decoder] handles the framing layer: it reads lines from an open response
// body, ignores blank lines and non-data fields, strips the "data: " prefix
// and stops at the "[DONE]" sentinel. [Stream] layers JSON decoding on top
// and yields values of any chunk type.
//
// The contract both layers share:
//   - single pass, non-restartable: one decoder per streaming call
//   - pull-based: the consumer drives iteration, no goroutines, no
//     buffering beyond the current line
//   - malformed frames are skipped with a logged diagnostic, never a hard
//     failure; one bad frame must not abort a healthy stream
//   - transport failures mid-stream end iteration and surface through Err
//     as an [api.TransportError]
//   - Close is idempotent and safe at any point, including mid-stream
//
// Typical use:
//
//	stream := sse.NewStream[api.ChatCompletionChunk](sse.NewDecoder(res.Body), nil)
//	defer stream.Close()
//	for stream.Next() {
//		chunk := stream.Current()
//		// ...
//	}
//	if err := stream.Err(); err != nil {
//		// transport failure; malformed frames never end up here
//	}
package sse
