package mockserver

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// streamWriter emits OpenAI-style SSE data frames, flushing after each so
// clients observe chunks as they are produced. sent counts data frames,
// which is what the drop-after-N fault injection keys on.
type streamWriter struct {
	w    http.ResponseWriter
	rc   *http.ResponseController
	sent int
}

func newStreamWriter(w http.ResponseWriter) *streamWriter {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return &streamWriter{w: w, rc: http.NewResponseController(w)}
}

func (sw *streamWriter) writeData(data []byte) error {
	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", data); err != nil {
		return err
	}
	sw.sent++
	return sw.rc.Flush()
}

func (sw *streamWriter) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return sw.writeData(data)
}

func (sw *streamWriter) writeDone() error {
	if _, err := fmt.Fprint(sw.w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	return sw.rc.Flush()
}
