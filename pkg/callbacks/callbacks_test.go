package callbacks_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/aretw0/reqtrace/internal/logging"
	"github.com/aretw0/reqtrace/pkg/callbacks"
	"github.com/aretw0/reqtrace/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fold drives a callback the way a tracer worker does.
func fold(t *testing.T, cb domain.Callback, streamID string, evs ...domain.TraceEvent) domain.State {
	t.Helper()
	st, err := cb.OnInit(streamID, &domain.RequestContext{Method: "GET", Path: "/"}, nil)
	require.NoError(t, err)
	for _, ev := range evs {
		st, err = cb.OnEvent(ev, st)
		require.NoError(t, err)
	}
	cb.OnTerminate(st)
	return st
}

var sample = []domain.TraceEvent{
	{Kind: domain.EventCall, Seq: 1, Routine: "handler"},
	{Kind: domain.EventReturn, Seq: 2, Routine: "handler", Payload: "ok"},
}

func TestFuncs_Defaults(t *testing.T) {
	st := fold(t, callbacks.Funcs{}, "s1", sample...)
	assert.Nil(t, st)

	var terminated domain.State
	cb := callbacks.Funcs{
		Init:      func(string, *domain.RequestContext, domain.Options) (domain.State, error) { return 0, nil },
		Event:     func(_ domain.TraceEvent, st domain.State) (domain.State, error) { return st.(int) + 1, nil },
		Terminate: func(st domain.State) { terminated = st },
	}
	fold(t, cb, "s1", sample...)
	assert.Equal(t, 2, terminated)
}

func TestFuncs_PropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	cb := callbacks.Funcs{Event: func(domain.TraceEvent, domain.State) (domain.State, error) { return nil, boom }}
	_, err := cb.OnEvent(sample[0], nil)
	assert.ErrorIs(t, err, boom)
}

func TestRecorder(t *testing.T) {
	rec := callbacks.NewRecorder()
	st := fold(t, rec, "s1", sample...)

	assert.Equal(t, sample, callbacks.Recorded(st))
	evs, ok := rec.Events("s1")
	require.True(t, ok)
	assert.Equal(t, sample, evs)
	assert.Equal(t, "s1", <-rec.Finished())
	assert.Equal(t, 1, rec.Streams())

	_, ok = rec.Events("s2")
	assert.False(t, ok)
	assert.Nil(t, callbacks.Recorded("not a recording"))
}

func TestJSONLines(t *testing.T) {
	var buf bytes.Buffer
	fold(t, callbacks.NewJSONLines(&buf), "s1", sample...)

	sc := bufio.NewScanner(&buf)
	var lines []map[string]any
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "s1", lines[0]["stream_id"])
	assert.Equal(t, "call", lines[0]["kind"])
	assert.Equal(t, "ok", lines[1]["payload"])
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cb := callbacks.NewLogger(logging.NewWithWriter(&buf, slog.LevelDebug), slog.LevelDebug)
	fold(t, cb, "s1", sample...)

	out := buf.String()
	assert.Contains(t, out, "Trace started")
	assert.Contains(t, out, "routine=handler")
	assert.Contains(t, out, "events=2")
}
