package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spigell/interviewd/internal/dialog"
	"github.com/spigell/interviewd/internal/interview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeInterviewer completes a session on "quit" and fails the test if turns of one
// session ever overlap.
type fakeInterviewer struct {
	inFlight sync.Map
	overlaps atomic.Int32
}

func (f *fakeInterviewer) Start(_ context.Context, candidate, role string) (*interview.Session, dialog.Reply) {
	s := interview.NewSession(candidate, role, time.Now())
	_ = s.Append(interview.Turn{Role: interview.RoleSystem, Text: "Hello " + candidate})
	return s, dialog.Reply{Text: "Hello " + candidate, Stage: s.Stage, Outcome: dialog.OutcomeAccepted}
}

func (f *fakeInterviewer) Process(_ context.Context, s *interview.Session, text string) dialog.Reply {
	counter, _ := f.inFlight.LoadOrStore(s.ID, new(atomic.Int32))
	if counter.(*atomic.Int32).Add(1) > 1 {
		f.overlaps.Add(1)
	}
	defer counter.(*atomic.Int32).Add(-1)
	time.Sleep(time.Millisecond)

	if s.Complete {
		return dialog.Reply{Text: dialog.AlreadyCompleteReply, Stage: s.Stage, Outcome: dialog.OutcomeAlreadyComplete, Complete: true}
	}
	_ = s.Append(interview.Turn{Role: interview.RoleCandidate, Text: text})
	if text == "quit" {
		s.Evaluation = &interview.ScoreCard{Overall: 3, Recommendation: interview.RecommendHire}
		s.MarkComplete(time.Now())
		return dialog.Reply{Text: "bye", Stage: s.Stage, Outcome: dialog.OutcomeCommand, Complete: true, Evaluation: s.Evaluation}
	}
	return dialog.Reply{Text: "ok", Stage: s.Stage, Outcome: dialog.OutcomeAccepted}
}

type countingGauge struct {
	open atomic.Int32
}

func (g *countingGauge) SessionOpened() { g.open.Add(1) }
func (g *countingGauge) SessionClosed() { g.open.Add(-1) }

type fixture struct {
	srv       *httptest.Server
	fake      *fakeInterviewer
	gauge     *countingGauge
	persisted atomic.Int32
}

func newFixture(t *testing.T, persistErr error) *fixture {
	t.Helper()
	f := &fixture{fake: &fakeInterviewer{}, gauge: &countingGauge{}}

	s, err := New(Options{
		Interviewer: f.fake,
		Gauge:       f.gauge,
		Metrics:     http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("interviewd_turns_total 0\n")) }),
		Logger:      zap.NewNop(),
		Persist: func(_ context.Context, s *interview.Session) error {
			f.persisted.Add(1)
			return persistErr
		},
	})
	require.NoError(t, err)

	f.srv = httptest.NewServer(s.Router())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) post(t *testing.T, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(f.srv.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func (f *fixture) create(t *testing.T) string {
	t.Helper()
	resp, out := f.post(t, "/api/v1/sessions", map[string]string{"candidate": "Ada", "role": "backend"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return out["session_id"].(string)
}

func TestCreateSession(t *testing.T) {
	f := newFixture(t, nil)

	resp, out := f.post(t, "/api/v1/sessions", map[string]string{"candidate": "Ada", "role": "backend"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, out["session_id"])
	assert.Equal(t, "Hello Ada", out["reply"])
	assert.Equal(t, "introduction", out["stage"])
	assert.Equal(t, int32(1), f.gauge.open.Load())
}

func TestCreateSessionValidates(t *testing.T) {
	f := newFixture(t, nil)

	resp, out := f.post(t, "/api/v1/sessions", map[string]string{"candidate": " "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "candidate and role are required", out["error"])

	r, err := http.Post(f.srv.URL+"/api/v1/sessions", "application/json", bytes.NewBufferString("{"))
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusBadRequest, r.StatusCode)
}

func TestTurnUnknownSession(t *testing.T) {
	f := newFixture(t, nil)

	resp, out := f.post(t, "/api/v1/sessions/missing/turns", map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "session not found", out["error"])
}

func TestCompletionPersistsOnce(t *testing.T) {
	f := newFixture(t, nil)
	id := f.create(t)

	resp, out := f.post(t, "/api/v1/sessions/"+id+"/turns", map[string]string{"message": "quit"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["complete"])
	assert.NotNil(t, out["evaluation"])

	_, out = f.post(t, "/api/v1/sessions/"+id+"/turns", map[string]string{"message": "hello?"})
	assert.Equal(t, dialog.OutcomeAlreadyComplete, out["outcome"])

	assert.Equal(t, int32(1), f.persisted.Load())
	assert.Equal(t, int32(0), f.gauge.open.Load())
}

func TestPersistFailureKeepsReply(t *testing.T) {
	f := newFixture(t, errors.New("disk full"))
	id := f.create(t)

	resp, out := f.post(t, "/api/v1/sessions/"+id+"/turns", map[string]string{"message": "quit"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "bye", out["reply"])
}

func TestGetSessionSnapshot(t *testing.T) {
	f := newFixture(t, nil)
	id := f.create(t)
	f.post(t, "/api/v1/sessions/"+id+"/turns", map[string]string{"message": "I write Go"})

	resp, err := http.Get(f.srv.URL + "/api/v1/sessions/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var s interview.Session
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&s))
	assert.Equal(t, id, s.ID)
	require.Len(t, s.Turns, 2)
	assert.Equal(t, "I write Go", s.Turns[1].Text)
}

func TestTurnsAreSerializedPerSession(t *testing.T) {
	f := newFixture(t, nil)
	first, second := f.create(t), f.create(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		for _, id := range []string{first, second} {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				raw, _ := json.Marshal(map[string]string{"message": "answer"})
				resp, err := http.Post(f.srv.URL+"/api/v1/sessions/"+id+"/turns", "application/json", bytes.NewReader(raw))
				if err == nil {
					resp.Body.Close()
				}
			}(id)
		}
	}
	wg.Wait()

	assert.Equal(t, int32(0), f.fake.overlaps.Load())

	for _, id := range []string{first, second} {
		resp, err := http.Get(f.srv.URL + "/api/v1/sessions/" + id)
		require.NoError(t, err)
		var s interview.Session
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&s))
		resp.Body.Close()
		assert.Len(t, s.Turns, 11)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, nil)
	f.create(t)

	resp, err := http.Get(f.srv.URL + "/healthz")
	require.NoError(t, err)
	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, float64(1), health["sessions"])

	resp, err = http.Get(f.srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewRequiresInterviewer(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}
