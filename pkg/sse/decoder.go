package sse

import (
	"bufio"
	"io"
	"strings"
	"sync"

	"github.com/runestone-ai/runestone-go/pkg/api"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"

	// maxFrameSize bounds a single SSE line. Chunks carrying large deltas
	// or logprobs can exceed bufio.Scanner's 64 KiB default.
	maxFrameSize = 1 << 20
)

// Decoder reads SSE framing from a response body and yields raw data frame
// payloads. It consumes the body exactly once; a new streaming call needs a
// new Decoder.
type Decoder struct {
	body    io.ReadCloser
	scanner *bufio.Scanner

	data []byte
	err  error
	done bool

	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// NewDecoder wraps an open response body. The caller keeps ownership of the
// connection lifetime through Close.
func NewDecoder(body io.ReadCloser) *Decoder {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
	return &Decoder{body: body, scanner: scanner}
}

// Next advances to the next data frame. It returns false when the [DONE]
// sentinel is seen, the stream ends, or a read fails; after that it keeps
// returning false. Err reports whether termination was clean.
func (d *Decoder) Next() bool {
	if d.done || d.closed {
		return false
	}

	for d.scanner.Scan() {
		line := d.scanner.Text()

		// Lines without the data prefix are frame separators, comments
		// or SSE fields (event:, id:, retry:) this protocol does not use.
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))

		// The sentinel ends the stream; it is never surfaced as data and
		// nothing past it is read.
		if payload == doneSentinel {
			d.done = true
			return false
		}

		d.data = []byte(payload)
		return true
	}

	d.done = true
	if err := d.scanner.Err(); err != nil && !d.closed {
		d.err = &api.TransportError{Op: "read stream", Err: err}
	}
	return false
}

// Data returns the payload of the current frame.
func (d *Decoder) Data() []byte {
	return d.data
}

// Err returns the transport error that ended the stream, or nil after clean
// termination ([DONE] or EOF).
func (d *Decoder) Err() error {
	return d.err
}

// Close releases the underlying body. It is idempotent; closing a decoder
// that is still mid-stream abandons the connection without error.
func (d *Decoder) Close() error {
	d.closeOnce.Do(func() {
		d.closed = true
		d.closeErr = d.body.Close()
	})
	return d.closeErr
}
