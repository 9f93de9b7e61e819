// Package report persists a finished interview as four files.
package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/interviewd/internal/interview"
	"go.uber.org/zap"
)

const (
	TimestampLayout = "20060102_150405"

	KindDetailed   = "detailed.json"
	KindSummary    = "summary.txt"
	KindMetrics    = "metrics.csv"
	KindTranscript = "transcript.txt"
)

var ErrNoEvaluation = errors.New("session has no evaluation")

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

var metricsHeader = []string{
	"Candidate", "Role", "Date", "SessionID", "OverallScore", "OverallRating", "Recommendation",
	"DurationMinutes", "QuestionsCompleted",
	"TechnicalScore", "CommunicationScore", "ProblemApproachScore", "CollaborationScore",
}

// Files holds the paths of the written artifacts.
type Files struct {
	Detailed   string `json:"detailed"`
	Summary    string `json:"summary"`
	Metrics    string `json:"metrics"`
	Transcript string `json:"transcript"`
}

// Document is the content of the detailed JSON file.
type Document struct {
	Session         *interview.Session   `json:"session"`
	Evaluation      *interview.ScoreCard `json:"evaluation"`
	DurationMinutes float64              `json:"duration_minutes"`
	GeneratedAt     time.Time            `json:"generated_at"`
}

type Writer struct {
	dir      string
	redactor Redactor
	logger   *zap.Logger
	now      func() time.Time
}

func NewWriter(dir string, redactor Redactor, logger *zap.Logger) *Writer {
	if redactor == nil {
		redactor = NoopRedactor{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{dir: dir, redactor: redactor, logger: logger, now: time.Now}
}

// FileName builds "{candidate}_{timestamp}_{kind}". Unsafe characters in the candidate name become underscores.
func FileName(candidate string, at time.Time, kind string) string {
	name := strings.Trim(unsafeName.ReplaceAllString(strings.TrimSpace(candidate), "_"), "_")
	if name == "" {
		name = "candidate"
	}
	return fmt.Sprintf("%s_%s_%s", name, at.Format(TimestampLayout), kind)
}

// Write renders and stores all four artifacts of a completed, evaluated session.
func (w *Writer) Write(s *interview.Session) (Files, error) {
	if s.Evaluation == nil {
		return Files{}, ErrNoEvaluation
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return Files{}, fmt.Errorf("create report directory: %w", err)
	}

	at := s.CompletedAt
	if at.IsZero() {
		at = w.now()
	}

	redacted := w.redact(s)

	detailed, err := renderDetailed(redacted, at, w.now())
	if err != nil {
		return Files{}, err
	}
	metrics, err := renderMetrics(redacted, at)
	if err != nil {
		return Files{}, err
	}

	var files Files
	outputs := []struct {
		kind string
		data []byte
		dst  *string
	}{
		{KindDetailed, detailed, &files.Detailed},
		{KindSummary, []byte(renderSummary(redacted, at)), &files.Summary},
		{KindMetrics, metrics, &files.Metrics},
		{KindTranscript, []byte(renderTranscript(redacted, at)), &files.Transcript},
	}

	for _, out := range outputs {
		path := filepath.Join(w.dir, FileName(s.CandidateName, at, out.kind))
		if err := os.WriteFile(path, out.data, 0o644); err != nil {
			return Files{}, fmt.Errorf("write %s: %w", out.kind, err)
		}
		*out.dst = path
	}

	w.logger.Info("evaluation reports saved",
		zap.String("session_id", s.ID),
		zap.String("summary", files.Summary),
	)
	return files, nil
}

// redact returns a copy of the session whose turn texts went through the redactor.
func (w *Writer) redact(s *interview.Session) *interview.Session {
	cp := *s
	cp.Turns = make([]interview.Turn, len(s.Turns))
	for i, t := range s.Turns {
		t.Text = w.redactor.Redact(t.Text)
		cp.Turns[i] = t
	}
	return &cp
}

func duration(s *interview.Session, end time.Time) float64 {
	if s.CreatedAt.IsZero() || end.Before(s.CreatedAt) {
		return 0
	}
	return float64(int(end.Sub(s.CreatedAt).Minutes()*10)) / 10
}

func renderDetailed(s *interview.Session, at, generated time.Time) ([]byte, error) {
	doc := Document{
		Session:         s,
		Evaluation:      s.Evaluation,
		DurationMinutes: duration(s, at),
		GeneratedAt:     generated,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode detailed report: %w", err)
	}
	return data, nil
}

func renderMetrics(s *interview.Session, at time.Time) ([]byte, error) {
	card := s.Evaluation

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	rows := [][]string{
		metricsHeader,
		{
			s.CandidateName,
			s.TargetRole,
			at.Format("2006-01-02"),
			s.ID,
			strconv.FormatFloat(card.Overall, 'f', 1, 64),
			card.Rating,
			card.Recommendation,
			strconv.FormatFloat(duration(s, at), 'f', 1, 64),
			strconv.Itoa(s.QuestionsAsked),
			strconv.Itoa(card.Scores.Technical),
			strconv.Itoa(card.Scores.Communication),
			strconv.Itoa(card.Scores.ProblemApproach),
			strconv.Itoa(card.Scores.Collaboration),
		},
	}
	if err := cw.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("encode metrics: %w", err)
	}
	return buf.Bytes(), nil
}

func banner(b *strings.Builder, title string) {
	line := strings.Repeat("=", 80)
	b.WriteString(line + "\n" + title + "\n" + line + "\n\n")
}

func renderSummary(s *interview.Session, at time.Time) string {
	card := s.Evaluation

	var b strings.Builder
	banner(&b, "INTERVIEW EVALUATION REPORT")
	fmt.Fprintf(&b, "CANDIDATE: %s\n", s.CandidateName)
	fmt.Fprintf(&b, "TARGET ROLE: %s\n", s.TargetRole)
	fmt.Fprintf(&b, "DATE: %s\n", at.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "SESSION ID: %s\n\n", s.ID)

	banner(&b, "OVERALL PERFORMANCE")
	fmt.Fprintf(&b, "OVERALL SCORE: %.1f/5.0\n", card.Overall)
	fmt.Fprintf(&b, "OVERALL RATING: %s\n\n", strings.ToUpper(card.Rating))
	fmt.Fprintf(&b, "HIRING RECOMMENDATION: %s\n\n", card.Decision)

	banner(&b, "DETAILED BREAKDOWN")
	criteria := []struct {
		name   string
		score  int
		weight float64
	}{
		{"Technical Skills", card.Scores.Technical, card.Weights.Technical},
		{"Communication", card.Scores.Communication, card.Weights.Communication},
		{"Problem Approach", card.Scores.ProblemApproach, card.Weights.ProblemApproach},
		{"Collaboration", card.Scores.Collaboration, card.Weights.Collaboration},
	}
	for _, c := range criteria {
		fmt.Fprintf(&b, "%s:\n", c.name)
		fmt.Fprintf(&b, "   Score: %d/5\n", c.score)
		fmt.Fprintf(&b, "   Weight: %.0f%%\n", c.weight*100)
		fmt.Fprintf(&b, "   Weighted: %.2f\n\n", c.weight*float64(c.score))
	}

	if len(card.Strengths) > 0 || len(card.Gaps) > 0 {
		banner(&b, "DETAILED ANALYSIS")
		writeList(&b, "STRENGTHS", card.Strengths)
		writeList(&b, "AREAS FOR IMPROVEMENT", card.Gaps)
	}

	banner(&b, "OVERALL ASSESSMENT")
	b.WriteString(strings.TrimSpace(card.Summary) + "\n\n")

	if len(card.NextSteps) > 0 {
		banner(&b, "RECOMMENDED NEXT STEPS")
		for i, step := range card.NextSteps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, step)
		}
		b.WriteString("\n")
	}

	banner(&b, "INTERVIEW STATISTICS")
	fmt.Fprintf(&b, "Duration: %.1f minutes\n", duration(s, at))
	fmt.Fprintf(&b, "Questions Completed: %d\n", s.QuestionsAsked)
	fmt.Fprintf(&b, "Total Exchanges: %d\n", len(s.CandidateTurns()))
	b.WriteString(strings.Repeat("=", 80) + "\n")
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "   - %s\n", item)
	}
	b.WriteString("\n")
}

func renderTranscript(s *interview.Session, at time.Time) string {
	var b strings.Builder
	banner(&b, "INTERVIEW TRANSCRIPT - "+s.CandidateName)
	fmt.Fprintf(&b, "Date: %s\n", at.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Role: %s\n\n", s.TargetRole)

	for _, t := range s.Turns {
		fmt.Fprintf(&b, "[%s] %s (%s):\n%s\n\n",
			strings.ToUpper(string(t.Stage)),
			strings.ToUpper(string(t.Role)),
			t.Timestamp.Format("15:04:05"),
			strings.TrimSpace(t.Text),
		)
	}
	b.WriteString(strings.Repeat("-", 60) + "\n")
	return b.String()
}
