package questions

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spigell/interviewd/internal/interview"
	"go.uber.org/zap"
)

const problemsetBody = `{"status":"OK","result":{"problems":[
	{"contestId":4,"index":"A","name":"Watermelon","rating":800,"tags":["brute force","math"]},
	{"contestId":9999,"index":"B","name":"Unrated"},
	{"contestId":1,"index":"A","name":"Theatre Square","rating":1000,"tags":["math"]},
	{"contestId":5000,"index":"C","name":"Random Medium","rating":1300,"tags":["greedy"]},
	{"contestId":580,"index":"C","name":"Kefa and Park","rating":1500,"tags":["dfs and similar","graphs","trees"]}
]}}`

func newTestCodeforces(t *testing.T, calls *atomic.Int32) *Codeforces {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/problemset.problems" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		// The API answers an unknown tag with an empty problemset.
		if tag := r.URL.Query().Get("tags"); tag != "" && !strings.Contains(problemsetBody, `"`+tag+`"`) {
			_, _ = w.Write([]byte(`{"status":"OK","result":{"problems":[]}}`))
			return
		}
		_, _ = w.Write([]byte(problemsetBody))
	}))
	t.Cleanup(srv.Close)

	cf := NewCodeforces(zap.NewNop(), 0)
	cf.APIURL = srv.URL
	cf.pick = func(int) int { return 0 }
	return cf
}

func TestRatingDifficulty(t *testing.T) {
	cases := map[int]interview.Difficulty{
		800:  interview.DifficultyEasy,
		900:  interview.DifficultyEasy,
		901:  interview.DifficultyMedium,
		1400: interview.DifficultyMedium,
		1401: interview.DifficultyHard,
	}
	for rating, want := range cases {
		if got := RatingDifficulty(rating); got != want {
			t.Fatalf("rating %d: expected %s, got %s", rating, want, got)
		}
	}
}

func TestCodeforcesPrefersCuratedAndCaches(t *testing.T) {
	var calls atomic.Int32
	cf := newTestCodeforces(t, &calls)

	p, err := cf.Supply(context.Background(), Request{Difficulty: interview.DifficultyMedium})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != "codeforces:1A" {
		t.Fatalf("expected curated Theatre Square, got %s", p.ID)
	}
	if p.URL != "https://codeforces.com/contest/1/problem/A" {
		t.Fatalf("unexpected url %s", p.URL)
	}
	if !strings.Contains(p.Statement, p.URL) || p.Source != SourceCodeforces {
		t.Fatalf("unexpected statement %q", p.Statement)
	}

	p, err = cf.Supply(context.Background(), Request{Difficulty: interview.DifficultyMedium, Exclude: []string{"codeforces:1A"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != "codeforces:5000C" {
		t.Fatalf("expected non-curated fallback, got %s", p.ID)
	}

	if calls.Load() != 1 {
		t.Fatalf("expected problemset to be cached, got %d calls", calls.Load())
	}
}

func TestCodeforcesNoMatch(t *testing.T) {
	var calls atomic.Int32
	cf := newTestCodeforces(t, &calls)

	_, err := cf.Supply(context.Background(), Request{Difficulty: interview.DifficultyHard, Exclude: []string{"codeforces:580C"}})
	if err == nil {
		t.Fatalf("expected error when every hard problem is excluded")
	}
}

func TestCodeforcesTag(t *testing.T) {
	cases := map[string]string{
		"algorithms":          "",
		"":                    "",
		"Dynamic-Programming": "dp",
		" trees ":             "trees",
		"graph":               "graphs",
		"binary-search":       "binary search",
	}
	for topic, want := range cases {
		if got := CodeforcesTag(topic); got != want {
			t.Fatalf("topic %q: expected tag %q, got %q", topic, want, got)
		}
	}
}

func TestCodeforcesGeneralTopicQueriesWholeProblemset(t *testing.T) {
	var calls atomic.Int32
	cf := newTestCodeforces(t, &calls)

	p, err := cf.Supply(context.Background(), Request{Difficulty: interview.DifficultyMedium, Topic: "algorithms"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != "codeforces:1A" {
		t.Fatalf("expected curated Theatre Square, got %s", p.ID)
	}
}

func TestCodeforcesTopicFiltersByTag(t *testing.T) {
	var calls atomic.Int32
	cf := newTestCodeforces(t, &calls)

	p, err := cf.Supply(context.Background(), Request{Difficulty: interview.DifficultyEasy, Topic: "math"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != "codeforces:4A" {
		t.Fatalf("expected Watermelon, got %s", p.ID)
	}
}
