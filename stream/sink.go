package stream

import (
	"fmt"
	"net/http"
)

// sseSink writes frames to one HTTP response in text/event-stream framing:
// an event line naming the kind, a data line carrying the JSON body, and a
// blank line terminating the frame. The owning session serializes calls, so
// the sink itself carries no locking.
type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSESink(w http.ResponseWriter, flusher http.Flusher) *sseSink {
	return &sseSink{w: w, flusher: flusher}
}

func (s *sseSink) Push(kind string, data []byte) error {
	if len(data) == 0 {
		data = []byte("{}")
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", kind, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
