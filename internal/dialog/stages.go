package dialog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/interviewd/internal/ai"
	"github.com/spigell/interviewd/internal/interview"
	"github.com/spigell/interviewd/internal/logger"
	"github.com/spigell/interviewd/internal/questions"
	"go.uber.org/zap"
)

//go:embed reply.md
var replyTemplate string

// directive is the instruction sent downstream for a reply.
type directive string

const (
	directiveContinueIntro directive = "continue_intro"
	directiveAskQuestion   directive = "ask_question"
	directiveNudge         directive = "nudge"
	directiveClarify       directive = "clarify"
	directiveFollowUp      directive = "follow_up"
	directiveStartWrapUp   directive = "start_wrap_up"
	directiveWrapUp        directive = "wrap_up"
	directiveClose         directive = "close"
)

var directiveText = map[directive]string{
	directiveContinueIntro: "Acknowledge what the candidate shared and ask one more question about their background or experience.",
	directiveAskQuestion:   "Present the current problem to the candidate: give its title and full statement, then ask them to explain their approach before coding.",
	directiveNudge:         "The answer is incomplete or heading the wrong way. Nudge the candidate with a guiding question that does not reveal the solution. Stay on the same problem.",
	directiveClarify:       "The candidate asked about the problem or the process. Clarify the question using the problem statement without revealing the solution.",
	directiveFollowUp:      "The approach is correct. Ask one targeted follow-up question on the same problem, for example about complexity, edge cases or an alternative approach.",
	directiveStartWrapUp:   "The technical part is over. Briefly acknowledge the candidate's work and ask whether they have any questions about the role or the team.",
	directiveWrapUp:        "Answer the candidate's wrap-up message briefly and ask whether there is anything else they want to discuss.",
	directiveClose:         "The interview is over. Thank the candidate by name and tell them the interview has concluded. Do not share any scores.",
}

func (o *Orchestrator) introduction(ctx context.Context, s *interview.Session, a analysis) Reply {
	if !a.IntroAdequate {
		return o.compose(ctx, s, directiveContinueIntro)
	}

	difficulty, _ := interview.ParseDifficulty(o.cfg.StartingDifficulty)
	q, err := o.nextQuestion(ctx, s, difficulty)
	if err != nil {
		o.sessionLogger(s).Error("no problem available, staying in introduction", zap.Error(err))
		return o.compose(ctx, s, directiveContinueIntro)
	}

	o.advance(s, SignalIntroAdequate)
	s.Ask(q)
	return o.compose(ctx, s, directiveAskQuestion)
}

func (o *Orchestrator) technical(ctx context.Context, s *interview.Session, a analysis) Reply {
	if a.TechnicalComplete {
		o.advance(s, SignalTechnicalDone)
		return o.compose(ctx, s, directiveStartWrapUp)
	}

	switch a.Classification {
	case ClassHintRequest:
		return o.dispenseHint(ctx, s, OutcomeAccepted)
	case ClassMetaQuestion:
		return o.compose(ctx, s, directiveClarify)
	case ClassCorrect:
		return o.solved(ctx, s, a)
	default:
		return o.compose(ctx, s, directiveNudge)
	}
}

// solved handles a correct answer: a follow-up on the same problem, the next problem,
// or the move to wrap-up once the question budget is spent.
func (o *Orchestrator) solved(ctx context.Context, s *interview.Session, a analysis) Reply {
	active := s.Active
	if active == nil {
		o.advance(s, SignalTechnicalDone)
		return o.compose(ctx, s, directiveStartWrapUp)
	}

	if a.FollowUp && active.FollowUps < o.cfg.FollowUpsPerQuestion {
		active.FollowUps++
		return o.compose(ctx, s, directiveFollowUp)
	}

	s.Performance = append(s.Performance, a.Quality)

	if s.QuestionsAsked >= o.cfg.MaxQuestions {
		o.advance(s, SignalQuestionsExhausted)
		return o.compose(ctx, s, directiveStartWrapUp)
	}

	q, err := o.nextQuestion(ctx, s, nextDifficulty(active, a.Quality, o.cfg.HintCap))
	if err != nil {
		o.sessionLogger(s).Error("no further problem available, wrapping up", zap.Error(err))
		o.advance(s, SignalQuestionsExhausted)
		return o.compose(ctx, s, directiveStartWrapUp)
	}

	s.Ask(q)
	return o.compose(ctx, s, directiveAskQuestion)
}

func (o *Orchestrator) wrapUp(ctx context.Context, s *interview.Session) Reply {
	s.WrapUpExchanges++
	if s.WrapUpExchanges >= o.cfg.MinWrapUpExchanges {
		return o.finish(ctx, s, SignalWrapUpDone, OutcomeAccepted)
	}
	return o.compose(ctx, s, directiveWrapUp)
}

// nextDifficulty escalates after a strong unaided answer and eases after a weak one.
func nextDifficulty(q *interview.ActiveQuestion, quality, hintCap int) interview.Difficulty {
	switch {
	case quality >= 4 && q.HintsUsed == 0:
		return q.Difficulty.Harder()
	case quality > 0 && quality <= 2, hintCap > 0 && q.HintsUsed >= hintCap:
		return q.Difficulty.Easier()
	default:
		return q.Difficulty
	}
}

// nextQuestion asks the supplier for a problem and falls back to the local pool at the same difficulty.
func (o *Orchestrator) nextQuestion(ctx context.Context, s *interview.Session, difficulty interview.Difficulty) (*interview.ActiveQuestion, error) {
	log := o.sessionLogger(s)
	req := questions.Request{
		Difficulty: difficulty,
		Topic:      o.cfg.Topic,
		Exclude:    append([]string(nil), s.AskedQuestionIDs...),
	}

	if o.supplier != nil {
		sctx, cancel := context.WithTimeout(ctx, o.cfg.SupplierTimeout)
		p, err := o.supplier.Supply(sctx, req)
		cancel()
		if err == nil && p != nil && !s.Asked(p.ID) {
			log.Info("problem selected", logger.QuestionFields(p.ID, p.Source, string(p.Difficulty))...)
			return p.Active(o.now()), nil
		}
		if err == nil {
			err = errors.New("supplier returned no new problem")
		}
		log.Warn("question supplier unavailable, using fallback pool", zap.Error(err))
		o.recorder.SupplierFallback()
	}

	p, err := o.fallback.Supply(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSupplierUnavailable, err)
	}

	q := p.Active(o.now())
	q.Source = questions.SourcePool
	log.Info("fallback problem selected", logger.QuestionFields(q.ID, q.Source, string(q.Difficulty))...)
	return q, nil
}

// compose generates the reply for the directive, falling back to a template, and appends it.
func (o *Orchestrator) compose(ctx context.Context, s *interview.Session, d directive) Reply {
	text, err := o.generate(ctx, ai.TaskReply, o.replyPrompt(s, d))
	fallback := false
	if err != nil {
		o.sessionLogger(s).Warn("reply generation unavailable, using template",
			zap.String("directive", string(d)),
			zap.Error(err),
		)
		o.recorder.GenerationFallback(ai.TaskReply)
		text = fallbackReply(d, s)
		fallback = true
	}

	o.say(s, text, &interview.Signals{Outcome: OutcomeAccepted, Fallback: fallback})
	return o.reply(s, text, OutcomeAccepted)
}

func (o *Orchestrator) replyPrompt(s *interview.Session, d directive) string {
	question, statement, difficulty := "none", "none", "n/a"
	if s.Active != nil {
		question = s.Active.Title
		statement = strings.TrimSpace(s.Active.Statement)
		difficulty = string(s.Active.Difficulty)
	}

	return ai.Fill(replyTemplate, map[string]string{
		"CANDIDATE":      s.CandidateName,
		"ROLE":           s.TargetRole,
		"STAGE":          string(s.Stage),
		"QUESTION":       question,
		"DIFFICULTY":     difficulty,
		"STATEMENT":      statement,
		"CLASSIFICATION": lastClassification(s),
		"HISTORY":        interview.FormatHistory(s.Turns, o.cfg.HistoryTurns),
		"DIRECTIVE":      directiveText[d],
	})
}

func lastClassification(s *interview.Session) string {
	for i := len(s.Turns) - 1; i >= 0; i-- {
		t := s.Turns[i]
		if t.Role != interview.RoleCandidate {
			continue
		}
		if t.Signals != nil && t.Signals.Classification != "" {
			return t.Signals.Classification
		}
		break
	}
	return "none"
}
