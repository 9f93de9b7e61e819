// Package content checks that candidate messages stay professional and on topic.
package content

import (
	"context"
	_ "embed"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/spigell/interviewd/internal/ai"
	"github.com/spigell/interviewd/internal/interview"
	"go.uber.org/zap"
)

//go:embed classifier.md
var classifierInstruction string

//go:embed prompt.md
var promptTemplate string

const defaultTimeout = 15 * time.Second

// BoundaryReply answers inappropriate messages.
const BoundaryReply = "I'd like to keep our conversation respectful and professional. " +
	"Let's continue with the interview, and please keep your responses focused on the discussion."

var redirects = []string{
	"That's an interesting thought, but let's bring our focus back to %s.",
	"I appreciate you sharing that. To make the most of our time, let's get back to %s.",
	"Let's stay on track. Could you tell me more about %s?",
	"Good to hear, but I'd like to keep us focused on %s.",
}

type Config struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// Guard annotates messages; it never blocks them itself.
type Guard struct {
	completer ai.Completer
	cfg       Config
	logger    *zap.Logger
}

// New builds a guard. A nil completer restricts it to the pattern and coherence checks.
func New(completer ai.Completer, cfg Config, logger *zap.Logger) *Guard {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{completer: completer, cfg: cfg, logger: logger}
}

func (g *Guard) Evaluate(ctx context.Context, text string, stage interview.Stage, active *interview.ActiveQuestion) interview.ContentVerdict {
	text = strings.TrimSpace(text)
	if text == "" {
		return interview.ContentVerdict{Approved: true, Reason: interview.ContentOnTopic}
	}

	score := patternScore(text)
	if score > SevereScore {
		g.logger.Info("message flagged as inappropriate by patterns", zap.Int("pattern_score", score))
		return inappropriate(score, "unprofessional language")
	}

	if bad, detail := incoherent(text); bad {
		g.logger.Info("message flagged as incoherent", zap.String("detail", detail))
		return offTopic(text, stage, active, score, detail)
	}

	label, detail, err := g.classify(ctx, text, stage, active)
	if err != nil {
		g.logger.Warn("content classification unavailable, using patterns only", zap.Error(err))
		return interview.ContentVerdict{Approved: true, Reason: interview.ContentOnTopic, PatternScore: score, Detail: "classification unavailable"}
	}

	switch label {
	case "INAPPROPRIATE":
		return inappropriate(score, detail)
	case "OFF_TOPIC":
		return offTopic(text, stage, active, score, detail)
	default:
		return interview.ContentVerdict{Approved: true, Reason: interview.ContentOnTopic, PatternScore: score, Detail: detail}
	}
}

func (g *Guard) classify(ctx context.Context, text string, stage interview.Stage, active *interview.ActiveQuestion) (string, string, error) {
	if g.completer == nil {
		return "", "", ai.ErrGenerationUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	topic, question := "none", "none yet"
	if active != nil {
		if active.Topic != "" {
			topic = active.Topic
		}
		question = active.Title
	}

	prompt := ai.Fill(promptTemplate, map[string]string{
		"STAGE":    string(stage),
		"TOPIC":    topic,
		"QUESTION": question,
		"MESSAGE":  text,
	})

	raw, err := g.completer.Complete(ctx, ai.Request{Task: ai.TaskContent, System: classifierInstruction, Prompt: prompt})
	if err != nil {
		return "", "", err
	}

	label, fields := ai.ParseLabeled(raw)
	switch label {
	case "ON_TOPIC", "OFF_TOPIC", "INAPPROPRIATE":
		return label, strings.Join(fields, " "), nil
	case "APPROPRIATE":
		return "ON_TOPIC", strings.Join(fields, " "), nil
	default:
		return "", "", fmt.Errorf("unexpected content classification %q", label)
	}
}

func inappropriate(score int, detail string) interview.ContentVerdict {
	return interview.ContentVerdict{
		Reason:       interview.ContentInappropriate,
		Redirect:     BoundaryReply,
		Detail:       detail,
		PatternScore: score,
	}
}

func offTopic(text string, stage interview.Stage, active *interview.ActiveQuestion, score int, detail string) interview.ContentVerdict {
	return interview.ContentVerdict{
		Reason:       interview.ContentOffTopic,
		Redirect:     Redirect(text, stage, active),
		Detail:       detail,
		PatternScore: score,
	}
}

// Redirect picks a redirect message deterministically from the message text.
func Redirect(text string, stage interview.Stage, active *interview.ActiveQuestion) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	tmpl := redirects[h.Sum32()%uint32(len(redirects))]
	return fmt.Sprintf(tmpl, focus(stage, active))
}

func focus(stage interview.Stage, active *interview.ActiveQuestion) string {
	switch stage {
	case interview.StageIntroduction:
		return "your background and experience"
	case interview.StageTechnical:
		if active != nil && active.Title != "" {
			return fmt.Sprintf("the %q problem", active.Title)
		}
		return "the technical problem"
	case interview.StageWrapUp:
		return "wrapping up the interview"
	default:
		return "the interview"
	}
}
