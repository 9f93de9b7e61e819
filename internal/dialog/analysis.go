package dialog

import (
	"context"
	_ "embed"
	"math"
	"strings"

	"github.com/spigell/interviewd/internal/ai"
	"github.com/spigell/interviewd/internal/interview"
	"github.com/spigell/interviewd/internal/utils"
	"go.uber.org/zap"
)

//go:embed analysis.md
var analysisTemplate string

// Answer classifications in the technical stage.
const (
	ClassCorrect      = "correct"
	ClassPartial      = "partial"
	ClassOffBase      = "off_base"
	ClassHintRequest  = "hint_request"
	ClassMetaQuestion = "meta_question"
)

// analysis is the signal set the completer returns for one candidate message.
type analysis struct {
	Classification    string
	Quality           int
	IntroAdequate     bool
	FollowUp          bool
	TechnicalComplete bool
	Finished          bool
}

func (o *Orchestrator) analyse(ctx context.Context, s *interview.Session, text string) (analysis, error) {
	question := "none"
	if s.Active != nil {
		question = s.Active.Title + "\n" + s.Active.Statement
	}

	prompt := ai.Fill(analysisTemplate, map[string]string{
		"STAGE":    string(s.Stage),
		"QUESTION": question,
		"HISTORY":  interview.FormatHistory(s.Turns, o.cfg.HistoryTurns),
		"MESSAGE":  text,
	})

	raw, err := o.generate(ctx, ai.TaskAnalysis, prompt)
	if err != nil {
		return analysis{}, err
	}

	obj, err := ai.ParseObject(raw)
	if err != nil {
		o.logger.Warn("analysis answer is not valid JSON",
			zap.String("response_preview", utils.TruncateForLog(raw, 200)),
			zap.Error(err),
		)
		return analysis{}, err
	}

	return analysis{
		Classification:    normalizeClass(ai.CoerceString(obj["classification"])),
		Quality:           clampQuality(ai.CoerceFloat(obj["quality"])),
		IntroAdequate:     ai.CoerceBool(obj["intro_adequate"]),
		FollowUp:          ai.CoerceBool(obj["follow_up"]),
		TechnicalComplete: ai.CoerceBool(obj["technical_complete"]),
		Finished:          ai.CoerceBool(obj["interview_finished"]),
	}, nil
}

func normalizeClass(raw string) string {
	c := strings.ToLower(strings.TrimSpace(raw))
	c = strings.NewReplacer("-", "_", " ", "_").Replace(c)
	switch c {
	case ClassCorrect, ClassPartial, ClassOffBase, ClassHintRequest, ClassMetaQuestion:
		return c
	case "complete", "correct_complete":
		return ClassCorrect
	case "incorrect", "wrong":
		return ClassOffBase
	case "hint":
		return ClassHintRequest
	case "question", "clarification":
		return ClassMetaQuestion
	default:
		return ClassPartial
	}
}

// clampQuality maps the estimate to 1..5, with 0 meaning unknown.
func clampQuality(f float64) int {
	if math.IsNaN(f) || f <= 0 {
		return 0
	}
	q := int(math.Round(f))
	if q < 1 {
		return 1
	}
	if q > 5 {
		return 5
	}
	return q
}
