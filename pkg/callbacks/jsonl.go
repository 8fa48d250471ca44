package callbacks

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/aretw0/reqtrace/pkg/domain"
)

// JSONLines writes one JSON object per event. It is safe to share between
// tracers; lines from concurrent streams never interleave.
type JSONLines struct {
	mu  sync.Mutex
	enc *json.Encoder
}

type jsonlState struct {
	streamID string
}

type jsonlRecord struct {
	StreamID string `json:"stream_id"`
	domain.TraceEvent
}

// NewJSONLines creates a JSON-lines callback writing to w.
func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{enc: json.NewEncoder(w)}
}

func (j *JSONLines) OnInit(streamID string, _ *domain.RequestContext, _ domain.Options) (domain.State, error) {
	return jsonlState{streamID: streamID}, nil
}

func (j *JSONLines) OnEvent(ev domain.TraceEvent, st domain.State) (domain.State, error) {
	s := st.(jsonlState)
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.enc.Encode(jsonlRecord{StreamID: s.streamID, TraceEvent: ev}); err != nil {
		return st, err
	}
	return st, nil
}

func (j *JSONLines) OnTerminate(domain.State) {}
