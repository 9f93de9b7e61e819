package dialog

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"github.com/spigell/interviewd/internal/ai"
	"github.com/spigell/interviewd/internal/interview"
	"go.uber.org/zap"
)

//go:embed hint.md
var hintTemplate string

type command string

const (
	commandHelp command = "help"
	commandHint command = "hint"
	commandQuit command = "quit"
)

// parseCommand matches the whole message, case-insensitively.
func parseCommand(text string) (command, bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "help":
		return commandHelp, true
	case "hint":
		return commandHint, true
	case "quit", "exit", "end":
		return commandQuit, true
	default:
		return "", false
	}
}

// command handles an in-band command. Commands skip both gates and the analysis.
func (o *Orchestrator) command(ctx context.Context, s *interview.Session, text string, cmd command) Reply {
	o.sessionLogger(s).Debug("command received", zap.String("command", string(cmd)))

	o.append(s, interview.Turn{
		Role:      interview.RoleCandidate,
		Text:      text,
		Timestamp: o.now(),
		Signals:   &interview.Signals{Outcome: OutcomeCommand, Command: string(cmd)},
	})

	switch cmd {
	case commandHint:
		return o.dispenseHint(ctx, s, OutcomeCommand)
	case commandQuit:
		return o.finish(ctx, s, SignalTerminate, OutcomeCommand)
	default:
		o.say(s, HelpReply, &interview.Signals{Outcome: OutcomeCommand, Command: string(cmd)})
		return o.reply(s, HelpReply, OutcomeCommand)
	}
}

// dispenseHint gives the next distinct hint for the active question until the cap is reached.
func (o *Orchestrator) dispenseHint(ctx context.Context, s *interview.Session, outcome string) Reply {
	q := s.Active
	if s.Stage != interview.StageTechnical || q == nil {
		o.say(s, NoActiveQuestionReply, &interview.Signals{Outcome: outcome})
		return o.reply(s, NoActiveQuestionReply, outcome)
	}

	if q.HintsUsed >= o.cfg.HintCap {
		o.sessionLogger(s).Info("hint cap reached", zap.String("question", q.ID), zap.Int("hints_used", q.HintsUsed))
		o.say(s, NoMoreHintsReply, &interview.Signals{Outcome: outcome})
		return o.reply(s, NoMoreHintsReply, outcome)
	}

	hint, fallback := o.nextHint(ctx, s, q)
	q.HintsUsed++
	q.HintsGiven = append(q.HintsGiven, hint)

	text := hintReply(q.HintsUsed, hint)
	o.say(s, text, &interview.Signals{
		Outcome:    outcome,
		UsedHint:   true,
		HintNumber: q.HintsUsed,
		Fallback:   fallback,
	})
	return o.reply(s, text, outcome)
}

// nextHint prefers provider hints, then a generated one, then the generic list.
func (o *Orchestrator) nextHint(ctx context.Context, s *interview.Session, q *interview.ActiveQuestion) (string, bool) {
	for _, h := range q.Hints {
		if h = strings.TrimSpace(h); h != "" && !hintGiven(q, h) {
			return h, false
		}
	}

	given := "(none)"
	if len(q.HintsGiven) > 0 {
		given = "- " + strings.Join(q.HintsGiven, "\n- ")
	}

	prompt := ai.Fill(hintTemplate, map[string]string{
		"QUESTION":  q.Title,
		"STATEMENT": strings.TrimSpace(q.Statement),
		"GIVEN":     given,
		"HISTORY":   interview.FormatHistory(s.Turns, o.cfg.HistoryTurns),
		"NUMBER":    strconv.Itoa(q.HintsUsed + 1),
	})

	text, err := o.generate(ctx, ai.TaskHint, prompt)
	if err == nil && !hintGiven(q, text) {
		return text, false
	}
	if err != nil {
		o.sessionLogger(s).Warn("hint generation unavailable, using generic hint", zap.Error(err))
		o.recorder.GenerationFallback(ai.TaskHint)
	}

	for _, h := range genericHints {
		if !hintGiven(q, h) {
			return h, true
		}
	}
	return fmt.Sprintf("Focus on the smallest part of %q you are unsure about and test it on a tiny input (step %d).", q.Title, q.HintsUsed+1), true
}

func hintGiven(q *interview.ActiveQuestion, hint string) bool {
	for _, h := range q.HintsGiven {
		if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(hint)) {
			return true
		}
	}
	return false
}
