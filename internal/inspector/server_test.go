package inspector

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/cgast/affordkit/pkg/affordance"
	"github.com/cgast/affordkit/pkg/events"
	"github.com/cgast/affordkit/pkg/guard"
)

func newTestServer(t *testing.T) (*Server, *events.MemoryBus, *Latest) {
	t.Helper()
	reg, err := affordance.Init(affordance.DefaultCatalog())
	require.NoError(t, err)
	bus := events.NewMemoryBus()
	latest := &Latest{}
	return New(bus, latest, reg), bus, latest
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestStatus(t *testing.T) {
	s, bus, latest := newTestServer(t)

	bus.Publish(events.NewEvent(events.EventRunStart, 6))
	bus.Publish(events.NewEvent(events.EventRunEnd, events.RunData{Pass: false, Cases: 6}))
	bus.Publish(events.NewEvent(events.EventRunEnd, events.RunData{Pass: true, Cases: 6}))
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	latest.Set(guard.Report{At: at, Pass: true})

	rec := get(t, s.Handler(), "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var st Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, 3, st.Events)
	assert.Equal(t, 2, st.Runs)
	assert.Equal(t, 1, st.Failures)
	require.NotNil(t, st.LastRun)
	assert.True(t, at.Equal(*st.LastRun))
	require.NotNil(t, st.LastPass)
	assert.True(t, *st.LastPass)
}

func TestReport(t *testing.T) {
	s, _, latest := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, get(t, s.Handler(), "/api/report").Code)

	latest.Set(guard.Report{RunID: "r1", Unavailable: "generator unavailable: none"})
	rec := get(t, s.Handler(), "/api/report")
	require.Equal(t, http.StatusOK, rec.Code)

	var got guard.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "r1", got.RunID)
	assert.False(t, got.Pass)
}

func TestHistory(t *testing.T) {
	s, bus, _ := newTestServer(t)

	rec := get(t, s.Handler(), "/api/history")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	bus.Publish(events.NewEvent(events.EventGeneratorResolved, "generator/generator.go"))
	rec = get(t, s.Handler(), "/api/history")
	var history []events.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, events.EventGeneratorResolved, history[0].Type)

	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	rec = get(t, s.Handler(), "/api/history?since="+future)
	assert.Equal(t, "[]\n", rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, get(t, s.Handler(), "/api/history?since=yesterday").Code)
}

func TestWidgets(t *testing.T) {
	s, _, _ := newTestServer(t)

	var widgets []affordance.Widget
	require.NoError(t, json.Unmarshal(get(t, s.Handler(), "/api/widgets").Body.Bytes(), &widgets))
	assert.Len(t, widgets, len(affordance.DefaultCatalog()))

	bare := New(events.NewMemoryBus(), &Latest{}, nil)
	assert.Equal(t, "[]\n", get(t, bare.Handler(), "/api/widgets").Body.String())
}

func TestMethodNotAllowed(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServeStreamsEvents(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, bus, _ := newTestServer(t)
	bus.Publish(events.NewEvent(events.EventRunStart, 6))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	reqCtx, reqCancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, "http://"+ln.Addr().String()+"/events", nil)
	require.NoError(t, err)
	client := &http.Client{Transport: &http.Transport{}}
	resp, err := client.Do(req)
	require.NoError(t, err)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	next := func() events.Event {
		t.Helper()
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if data, ok := strings.CutPrefix(strings.TrimSpace(line), "data: "); ok {
				var ev events.Event
				require.NoError(t, json.Unmarshal([]byte(data), &ev))
				return ev
			}
		}
	}

	// history first, then live events
	assert.Equal(t, events.EventRunStart, next().Type)
	bus.Publish(events.NewEvent(events.EventRunEnd, events.RunData{Pass: true}))
	assert.Equal(t, events.EventRunEnd, next().Type)

	reqCancel()
	resp.Body.Close()
	client.CloseIdleConnections()
	cancel()
	require.NoError(t, <-done)
}
