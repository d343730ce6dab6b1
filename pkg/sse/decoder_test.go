package sse

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/runestone-ai/runestone-go/pkg/api"
)

// failingReader yields its data, then fails every subsequent read with err.
// Simulates a connection dropping mid-stream.
type failingReader struct {
	data []byte
	err  error
	off  int
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.off >= len(r.data) {
		return 0, r.err
	}
	n := copy(p, r.data[r.off:])
	r.off += n
	return n, nil
}

// countingCloser records how often the body was closed.
type countingCloser struct {
	io.Reader
	closes int
}

func (c *countingCloser) Close() error {
	c.closes++
	return nil
}

func newTestDecoder(body string) *Decoder {
	return NewDecoder(io.NopCloser(strings.NewReader(body)))
}

// collectFrames drains the decoder and returns every payload it yielded.
func collectFrames(t *testing.T, d *Decoder) []string {
	t.Helper()
	var frames []string
	for d.Next() {
		frames = append(frames, string(d.Data()))
	}
	return frames
}

func TestDecoder_DataFrames(t *testing.T) {
	d := newTestDecoder("data: {\"a\":1}\n\ndata: {\"b\":2}\n\ndata: [DONE]\n\n")
	defer d.Close()

	frames := collectFrames(t, d)
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d: %v", len(frames), frames)
	}
	if frames[0] != `{"a":1}` || frames[1] != `{"b":2}` {
		t.Errorf("unexpected frames: %v", frames)
	}
	if err := d.Err(); err != nil {
		t.Errorf("expected clean termination, got %v", err)
	}
}

func TestDecoder_DoneSentinelStopsReading(t *testing.T) {
	// Frames after the sentinel must never be read.
	d := newTestDecoder("data: {\"a\":1}\n\ndata: [DONE]\n\ndata: {\"late\":true}\n\n")
	defer d.Close()

	frames := collectFrames(t, d)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d: %v", len(frames), frames)
	}
	if d.Err() != nil {
		t.Errorf("expected clean termination, got %v", d.Err())
	}

	// Terminal state is sticky.
	if d.Next() {
		t.Error("Next after termination should stay false")
	}
}

func TestDecoder_IgnoresNonDataLines(t *testing.T) {
	body := ": keep-alive comment\n" +
		"event: message\n" +
		"id: 42\n" +
		"retry: 1000\n" +
		"\n" +
		"data: {\"a\":1}\n" +
		"\n" +
		"data: [DONE]\n\n"
	d := newTestDecoder(body)
	defer d.Close()

	frames := collectFrames(t, d)
	if len(frames) != 1 || frames[0] != `{"a":1}` {
		t.Errorf("expected only the data frame, got %v", frames)
	}
}

func TestDecoder_TrimsPayloadWhitespace(t *testing.T) {
	d := newTestDecoder("data:  {\"a\":1} \n\ndata: [DONE] \n\n")
	defer d.Close()

	frames := collectFrames(t, d)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d: %v", len(frames), frames)
	}
	if frames[0] != `{"a":1}` {
		t.Errorf("payload should be trimmed, got %q", frames[0])
	}
	// The padded sentinel still terminated the stream.
	if d.Err() != nil {
		t.Errorf("expected clean termination, got %v", d.Err())
	}
}

func TestDecoder_CleanEOFWithoutSentinel(t *testing.T) {
	// A server closing the stream without [DONE] is a normal end, not an error.
	d := newTestDecoder("data: {\"a\":1}\n\n")
	defer d.Close()

	frames := collectFrames(t, d)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if d.Err() != nil {
		t.Errorf("clean EOF should not be an error, got %v", d.Err())
	}
}

func TestDecoder_TransportErrorMidStream(t *testing.T) {
	cause := errors.New("connection reset by peer")
	body := &countingCloser{Reader: &failingReader{
		data: []byte("data: {\"a\":1}\n\ndata: {\"b\":2}\n\n"),
		err:  cause,
	}}
	d := NewDecoder(body)
	defer d.Close()

	frames := collectFrames(t, d)
	if len(frames) != 2 {
		t.Fatalf("expected the 2 complete frames before the drop, got %d", len(frames))
	}

	var te *api.TransportError
	if !errors.As(d.Err(), &te) {
		t.Fatalf("expected TransportError, got %v", d.Err())
	}
	if !errors.Is(d.Err(), cause) {
		t.Error("TransportError should wrap the underlying cause")
	}
}

func TestDecoder_CloseIdempotent(t *testing.T) {
	body := &countingCloser{Reader: strings.NewReader("data: {\"a\":1}\n\n")}
	d := NewDecoder(body)

	if err := d.Close(); err != nil {
		t.Fatalf("first close failed: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("second close failed: %v", err)
	}
	if body.closes != 1 {
		t.Errorf("body closed %d times, want 1", body.closes)
	}

	// A closed decoder yields nothing and reports no error.
	if d.Next() {
		t.Error("Next after Close should return false")
	}
	if d.Err() != nil {
		t.Errorf("Err after Close should be nil, got %v", d.Err())
	}
}

func TestDecoder_CloseMidStream(t *testing.T) {
	body := &countingCloser{Reader: strings.NewReader("data: {\"a\":1}\n\ndata: {\"b\":2}\n\ndata: [DONE]\n\n")}
	d := NewDecoder(body)

	if !d.Next() {
		t.Fatal("expected first frame")
	}
	if err := d.Close(); err != nil {
		t.Fatalf("close mid-stream failed: %v", err)
	}
	if d.Next() {
		t.Error("Next after mid-stream Close should return false")
	}
	if d.Err() != nil {
		t.Errorf("abandoning the stream is not an error, got %v", d.Err())
	}
}
