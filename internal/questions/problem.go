// Package questions supplies technical problems for the interview.
package questions

import (
	"context"
	"errors"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/spigell/interviewd/internal/interview"
)

const (
	SourceLeetCode   = "leetcode"
	SourceCodeforces = "codeforces"
	SourcePool       = "fallback-pool"
)

// ErrSupplierUnavailable is returned when no problem could be obtained.
var ErrSupplierUnavailable = errors.New("question supplier unavailable")

// Problem is a technical problem record.
type Problem struct {
	ID         string               `json:"id"`
	Title      string               `json:"title"`
	Source     string               `json:"source"`
	Difficulty interview.Difficulty `json:"difficulty"`
	Statement  string               `json:"statement"`
	Topic      string               `json:"topic"`
	Tags       []string             `json:"tags,omitempty"`
	Hints      []string             `json:"hints,omitempty"`
	URL        string               `json:"url,omitempty"`
}

// Request describes the wanted problem. Exclude lists problem ids already used.
type Request struct {
	Difficulty interview.Difficulty
	Topic      string
	Exclude    []string
}

func (r Request) excluded(id string) bool {
	for _, e := range r.Exclude {
		if e == id {
			return true
		}
	}
	return false
}

// Supplier returns a problem for the request.
type Supplier interface {
	Name() string
	Supply(ctx context.Context, req Request) (*Problem, error)
}

// Active converts the record into the session's active question.
func (p *Problem) Active(now time.Time) *interview.ActiveQuestion {
	hints := make([]string, len(p.Hints))
	copy(hints, p.Hints)
	return &interview.ActiveQuestion{
		ID:         p.ID,
		Title:      p.Title,
		Source:     p.Source,
		Difficulty: p.Difficulty,
		Statement:  p.Statement,
		Topic:      p.Topic,
		Hints:      hints,
		URL:        p.URL,
		AskedAt:    now,
	}
}

var (
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
)

// cleanHTML turns provider HTML into plain text.
func cleanHTML(s string) string {
	s = strings.ReplaceAll(s, "<br>", "\n")
	s = strings.ReplaceAll(s, "</p>", "\n")
	s = tagRe.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.ReplaceAll(s, "\r", "")
	s = blankLinesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
