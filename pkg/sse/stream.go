package sse

import (
	"encoding/json"
	"log/slog"

	"github.com/runestone-ai/runestone-go/pkg/debug"
)

// Stream decodes SSE data frames into values of type T.
//
// Frames that fail JSON decoding are skipped with a logged diagnostic and
// counted in Skipped; decoding continues with the next frame. Transport
// failures end the stream and are reported by Err.
type Stream[T any] struct {
	dec     *Decoder
	cur     T
	err     error
	skipped int
}

// NewStream pairs a decoder with the error from stream setup. When err is
// non-nil (or dec is nil) the stream yields nothing and Err reports err,
// which lets setup paths return a stream unconditionally.
func NewStream[T any](dec *Decoder, err error) *Stream[T] {
	return &Stream[T]{dec: dec, err: err}
}

// Next advances to the next decoded value, skipping malformed frames.
func (s *Stream[T]) Next() bool {
	if s.err != nil || s.dec == nil {
		return false
	}

	for s.dec.Next() {
		var v T
		if err := json.Unmarshal(s.dec.Data(), &v); err != nil {
			s.skipped++
			slog.Warn("skipping malformed SSE frame",
				"error", err.Error(),
				"data", debug.Truncate(string(s.dec.Data()), 200),
			)
			continue
		}
		s.cur = v
		return true
	}

	s.err = s.dec.Err()
	return false
}

// Current returns the value decoded by the most recent successful Next.
func (s *Stream[T]) Current() T {
	return s.cur
}

// Err returns the error that ended the stream, or nil after clean
// termination. Skipped frames are not errors.
func (s *Stream[T]) Err() error {
	return s.err
}

// Skipped returns the number of malformed frames skipped so far.
func (s *Stream[T]) Skipped() int {
	return s.skipped
}

// Close releases the underlying connection. It is idempotent and safe to
// call at any point.
func (s *Stream[T]) Close() error {
	if s.dec == nil {
		return nil
	}
	return s.dec.Close()
}
