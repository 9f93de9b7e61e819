// Package evaluation turns a finished interview into a weighted score card.
package evaluation

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spigell/interviewd/internal/ai"
	"github.com/spigell/interviewd/internal/interview"
	"github.com/spigell/interviewd/internal/logger"
	"github.com/spigell/interviewd/internal/utils"
	"go.uber.org/zap"
)

//go:embed evaluator.md
var evaluatorInstruction string

//go:embed assessment.md
var assessmentTemplate string

const (
	NeutralScore   = 3
	defaultTimeout = 45 * time.Second
	maxListItems   = 5
)

var (
	ErrSessionNotComplete  = errors.New("session is not complete")
	ErrMalformedAssessment = errors.New("malformed assessment")
)

type Config struct {
	Weights interview.Weights `mapstructure:"weights"`
	Timeout time.Duration     `mapstructure:"timeout"`
}

// Validate rejects negative weights and weights that do not sum to 1.0.
func (c Config) Validate() error {
	w := c.Weights
	for name, v := range map[string]float64{
		"technical":        w.Technical,
		"communication":    w.Communication,
		"problem-approach": w.ProblemApproach,
		"collaboration":    w.Collaboration,
	} {
		if v <= 0 {
			return fmt.Errorf("evaluation weight %q must be positive", name)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("evaluation weights sum to %.4f, expected 1.0", sum)
	}
	return nil
}

type Evaluator struct {
	completer ai.Completer
	cfg       Config
	logger    *zap.Logger
}

// New builds an evaluator. Zero weights fall back to the defaults.
func New(completer ai.Completer, cfg Config, log *zap.Logger) *Evaluator {
	if cfg.Weights == (interview.Weights{}) {
		cfg.Weights = interview.DefaultWeights()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Evaluator{completer: completer, cfg: cfg, logger: logger.ForComponent(log, "evaluation")}
}

// Evaluate scores a completed session. It does not modify the session.
func (e *Evaluator) Evaluate(ctx context.Context, s *interview.Session) (interview.ScoreCard, error) {
	if s == nil || s.Stage != interview.StageComplete {
		return interview.ScoreCard{}, ErrSessionNotComplete
	}

	log := logger.WithFields(e.logger, logger.SessionFields(s.ID, string(s.Stage))...)

	a, err := e.assess(ctx, s)
	if err != nil {
		log.Warn("assessment unavailable, using neutral scores", zap.Error(err))
		a = assessment{
			Scores: interview.Scores{
				Technical:       NeutralScore,
				Communication:   NeutralScore,
				ProblemApproach: NeutralScore,
				Collaboration:   NeutralScore,
			},
			Issues: []string{"assessment unavailable: neutral scores assigned"},
		}
	}

	for _, issue := range a.Issues {
		log.Warn("assessment corrected", zap.Error(fmt.Errorf("%w: %s", ErrMalformedAssessment, issue)))
	}

	card := Card(a.Scores, e.cfg.Weights)
	card.Strengths = a.Strengths
	card.Gaps = a.Gaps
	card.Issues = a.Issues
	if a.Summary != "" {
		card.Summary = a.Summary
	}
	return card, nil
}

type assessment struct {
	Scores    interview.Scores
	Strengths []string
	Gaps      []string
	Summary   string
	Issues    []string
}

func (e *Evaluator) assess(ctx context.Context, s *interview.Session) (assessment, error) {
	if e.completer == nil {
		return assessment{}, ai.ErrGenerationUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	prompt := ai.Fill(assessmentTemplate, map[string]string{
		"CANDIDATE":  s.CandidateName,
		"ROLE":       s.TargetRole,
		"STAGE":      string(lastStage(s)),
		"QUESTIONS":  describeQuestions(s),
		"TRANSCRIPT": transcript(s),
	})

	raw, err := e.completer.Complete(ctx, ai.Request{Task: ai.TaskEvaluation, System: evaluatorInstruction, Prompt: prompt})
	if err != nil {
		return assessment{}, err
	}

	e.logger.Debug("assessment received", zap.String("response_preview", utils.TruncateForLog(raw, 300)))

	obj, err := ai.ParseObject(raw)
	if err != nil {
		return assessment{}, fmt.Errorf("%w: %w", ErrMalformedAssessment, err)
	}

	return parseAssessment(obj), nil
}

// parseAssessment validates the scores. Missing or non-numeric scores become neutral,
// fractions are rounded and out of range values are clamped; each correction is recorded.
func parseAssessment(obj map[string]any) assessment {
	var a assessment

	scores, _ := obj["scores"].(map[string]any)
	if scores == nil {
		scores = obj
	}

	a.Scores.Technical = a.score(scores, "technical", "technical_skills")
	a.Scores.Communication = a.score(scores, "communication")
	a.Scores.ProblemApproach = a.score(scores, "problem_approach", "problem-approach")
	a.Scores.Collaboration = a.score(scores, "collaboration")

	a.Strengths = limit(ai.CoerceStrings(obj["strengths"]))
	a.Gaps = limit(ai.CoerceStrings(obj["gaps"]))
	a.Summary = ai.CoerceString(obj["summary"])
	return a
}

func (a *assessment) score(scores map[string]any, keys ...string) int {
	name := keys[0]

	var raw any
	found := false
	for _, k := range keys {
		if v, ok := scores[k]; ok {
			raw, found = v, true
			break
		}
	}
	if !found {
		a.Issues = append(a.Issues, fmt.Sprintf("%s score missing, set to %d", name, NeutralScore))
		return NeutralScore
	}

	f := ai.CoerceFloat(raw)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		a.Issues = append(a.Issues, fmt.Sprintf("%s score %v is not a number, set to %d", name, raw, NeutralScore))
		return NeutralScore
	}

	v := math.Round(f)
	if v != f {
		a.Issues = append(a.Issues, fmt.Sprintf("%s score %v rounded to %v", name, f, v))
	}
	if v < 1 || v > 5 {
		clamped := math.Min(math.Max(v, 1), 5)
		a.Issues = append(a.Issues, fmt.Sprintf("%s score %v clamped to %v", name, v, clamped))
		v = clamped
	}
	return int(v)
}

func limit(items []string) []string {
	if len(items) > maxListItems {
		return items[:maxListItems]
	}
	return items
}

// lastStage is the stage the candidate reached before the session completed.
func lastStage(s *interview.Session) interview.Stage {
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if st := s.Turns[i].Stage; st != "" && st != interview.StageComplete {
			return st
		}
	}
	return interview.StageIntroduction
}

func describeQuestions(s *interview.Session) string {
	if s.QuestionsAsked == 0 {
		return "(no technical problem was reached)"
	}

	hints := 0
	for _, t := range s.Turns {
		if t.Signals != nil && t.Signals.UsedHint {
			hints++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d problem(s) asked: %s\n", s.QuestionsAsked, strings.Join(s.AskedQuestionIDs, ", "))
	if s.Active != nil {
		fmt.Fprintf(&b, "Last problem: %s (%s, %s)\n", s.Active.Title, s.Active.Difficulty, s.Active.Source)
	}
	fmt.Fprintf(&b, "Hints used in total: %d", hints)
	return b.String()
}

func transcript(s *interview.Session) string {
	var b strings.Builder
	for _, t := range s.Turns {
		fmt.Fprintf(&b, "[%s] %s: %s\n", t.Stage, t.Role, strings.TrimSpace(t.Text))
	}
	return strings.TrimRight(b.String(), "\n")
}
