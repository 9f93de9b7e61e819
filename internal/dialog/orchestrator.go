// Package dialog drives an interview session one candidate message at a time.
package dialog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/interviewd/internal/ai"
	"github.com/spigell/interviewd/internal/content"
	"github.com/spigell/interviewd/internal/interview"
	"github.com/spigell/interviewd/internal/logger"
	"github.com/spigell/interviewd/internal/questions"
	"go.uber.org/zap"
)

//go:embed interviewer.md
var interviewerInstruction string

//go:embed greeting.md
var greetingTemplate string

const (
	defaultGenerationTimeout = 30 * time.Second
	defaultSupplierTimeout   = 15 * time.Second
)

// ErrSupplierUnavailable is returned when neither the supplier nor the fallback pool had a problem.
var ErrSupplierUnavailable = questions.ErrSupplierUnavailable

type SecurityGate interface {
	Evaluate(ctx context.Context, text string, history []interview.Turn) interview.SecurityVerdict
}

type ContentGuard interface {
	Evaluate(ctx context.Context, text string, stage interview.Stage, active *interview.ActiveQuestion) interview.ContentVerdict
}

type Evaluator interface {
	Evaluate(ctx context.Context, session *interview.Session) (interview.ScoreCard, error)
}

// Recorder receives turn-level events, typically for metrics.
type Recorder interface {
	Turn(outcome string)
	Transition(from, to interview.Stage)
	GenerationFallback(task string)
	SupplierFallback()
	Evaluated(recommendation string)
}

type noopRecorder struct{}

func (noopRecorder) Turn(string) {}
func (noopRecorder) Transition(interview.Stage, interview.Stage) {}
func (noopRecorder) GenerationFallback(string) {}
func (noopRecorder) SupplierFallback() {}
func (noopRecorder) Evaluated(string) {}

type Config struct {
	StartingDifficulty   string        `mapstructure:"starting-difficulty"`
	MaxQuestions         int           `mapstructure:"max-questions"`
	HintCap              int           `mapstructure:"hint-cap"`
	MinWrapUpExchanges   int           `mapstructure:"min-wrap-up-exchanges"`
	FollowUpsPerQuestion int           `mapstructure:"follow-ups-per-question"`
	Topic                string        `mapstructure:"topic"`
	GenerationTimeout    time.Duration `mapstructure:"generation-timeout"`
	SupplierTimeout      time.Duration `mapstructure:"supplier-timeout"`
	// HistoryTurns caps the turns quoted in prompts. Zero quotes the whole conversation.
	HistoryTurns         int           `mapstructure:"history-turns"`
}

func (c Config) Validate() error {
	if _, ok := interview.ParseDifficulty(c.StartingDifficulty); !ok {
		return fmt.Errorf("unknown starting difficulty %q", c.StartingDifficulty)
	}
	if c.MaxQuestions < 1 {
		return errors.New("max questions must be at least 1")
	}
	if c.HintCap < 0 {
		return errors.New("hint cap must not be negative")
	}
	if c.MinWrapUpExchanges < 1 {
		return errors.New("min wrap-up exchanges must be at least 1")
	}
	if c.FollowUpsPerQuestion < 0 {
		return errors.New("follow-ups per question must not be negative")
	}
	return nil
}

// Deps are the collaborators of the orchestrator. Supplier may be nil, in which case
// problems come from Fallback only.
type Deps struct {
	Completer ai.Completer
	Security  SecurityGate
	Content   ContentGuard
	Evaluator Evaluator
	Supplier  questions.Supplier
	Fallback  questions.Supplier
	Recorder  Recorder
}

// Reply is what the candidate sees after a turn.
type Reply struct {
	Text       string               `json:"reply"`
	Stage      interview.Stage      `json:"stage"`
	Outcome    string               `json:"outcome"`
	Complete   bool                 `json:"complete"`
	Evaluation *interview.ScoreCard `json:"evaluation,omitempty"`
}

// Orchestrator owns stage and question bookkeeping. It holds no session state, so one
// instance serves any number of sessions as long as each session is processed sequentially.
type Orchestrator struct {
	completer ai.Completer
	security  SecurityGate
	content   ContentGuard
	evaluator Evaluator
	supplier  questions.Supplier
	fallback  questions.Supplier
	recorder  Recorder
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
}

func New(deps Deps, cfg Config, log *zap.Logger) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Security == nil || deps.Content == nil || deps.Evaluator == nil {
		return nil, errors.New("security gate, content guard and evaluator are required")
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = defaultGenerationTimeout
	}
	if cfg.SupplierTimeout <= 0 {
		cfg.SupplierTimeout = defaultSupplierTimeout
	}
	if cfg.HistoryTurns < 0 {
		cfg.HistoryTurns = 0
	}

	fallback := deps.Fallback
	if fallback == nil {
		pool, err := questions.NewPool()
		if err != nil {
			return nil, fmt.Errorf("load fallback pool: %w", err)
		}
		fallback = pool
	}

	recorder := deps.Recorder
	if recorder == nil {
		recorder = noopRecorder{}
	}

	return &Orchestrator{
		completer: deps.Completer,
		security:  deps.Security,
		content:   deps.Content,
		evaluator: deps.Evaluator,
		supplier:  deps.Supplier,
		fallback:  fallback,
		recorder:  recorder,
		cfg:       cfg,
		logger:    logger.ForComponent(log, "dialog"),
		now:       time.Now,
	}, nil
}

// Start creates a session and greets the candidate.
func (o *Orchestrator) Start(ctx context.Context, candidate, role string) (*interview.Session, Reply) {
	s := interview.NewSession(candidate, role, o.now())
	log := o.sessionLogger(s)

	prompt := ai.Fill(greetingTemplate, map[string]string{
		"CANDIDATE": s.CandidateName,
		"ROLE":      s.TargetRole,
	})

	text, err := o.generate(ctx, ai.TaskGreeting, prompt)
	fallback := false
	if err != nil {
		log.Warn("greeting generation unavailable, using template", zap.Error(err))
		o.recorder.GenerationFallback(ai.TaskGreeting)
		text = greetingFallback(s)
		fallback = true
	}

	o.say(s, text, &interview.Signals{Outcome: OutcomeAccepted, Fallback: fallback})
	log.Info("interview started", zap.String("candidate", s.CandidateName), zap.String("role", s.TargetRole))

	return s, o.reply(s, text, OutcomeAccepted)
}

// Process handles one candidate message. Calls for the same session must not overlap.
func (o *Orchestrator) Process(ctx context.Context, s *interview.Session, text string) Reply {
	if s.Complete || s.Stage == interview.StageComplete {
		return o.reply(s, AlreadyCompleteReply, OutcomeAlreadyComplete)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return o.reply(s, EmptyInputReply, OutcomeEmptyInput)
	}

	if cmd, ok := parseCommand(text); ok {
		return o.command(ctx, s, text, cmd)
	}

	log := o.sessionLogger(s)
	turn := interview.Turn{Role: interview.RoleCandidate, Text: text, Timestamp: o.now()}

	security := o.security.Evaluate(ctx, text, s.History())
	turn.Security = &security
	if !security.Approved {
		log.Info("candidate message rejected by security gate",
			zap.String("decision", security.Decision),
			zap.Strings("patterns", security.MatchedPatterns),
		)
		turn.Signals = &interview.Signals{Outcome: OutcomeSecurityRejection}
		o.append(s, turn)
		o.say(s, RejectionReply, &interview.Signals{Outcome: OutcomeSecurityRejection})
		return o.reply(s, RejectionReply, OutcomeSecurityRejection)
	}

	verdict := o.content.Evaluate(ctx, text, s.Stage, s.Active)
	turn.Content = &verdict
	if !verdict.Approved {
		outcome, answer := OutcomeContentRedirect, verdict.Redirect
		if verdict.Reason == interview.ContentInappropriate {
			outcome, answer = OutcomeContentBoundary, content.BoundaryReply
		}
		if answer == "" {
			answer = content.Redirect(text, s.Stage, s.Active)
		}
		log.Info("candidate message redirected", zap.String("reason", verdict.Reason))
		turn.Signals = &interview.Signals{Outcome: outcome}
		o.append(s, turn)
		o.say(s, answer, &interview.Signals{Outcome: outcome})
		return o.reply(s, answer, outcome)
	}

	a, err := o.analyse(ctx, s, text)
	if err != nil {
		log.Warn("message analysis unavailable, stage unchanged", zap.Error(err))
		o.recorder.GenerationFallback(ai.TaskAnalysis)
		turn.Signals = &interview.Signals{Outcome: OutcomeGenerationUnavailable}
		o.append(s, turn)
		o.say(s, GenerationAckReply, &interview.Signals{Outcome: OutcomeGenerationUnavailable, Fallback: true})
		return o.reply(s, GenerationAckReply, OutcomeGenerationUnavailable)
	}

	signals := &interview.Signals{Outcome: OutcomeAccepted, Quality: a.Quality}
	if s.Stage == interview.StageTechnical {
		signals.Classification = a.Classification
	}
	if s.Active != nil {
		signals.QuestionID = s.Active.ID
	}
	turn.Signals = signals
	o.append(s, turn)

	if a.Finished {
		log.Info("interview finished by conversation signal")
		return o.finish(ctx, s, SignalInterviewFinished, OutcomeAccepted)
	}

	switch s.Stage {
	case interview.StageIntroduction:
		return o.introduction(ctx, s, a)
	case interview.StageTechnical:
		return o.technical(ctx, s, a)
	default:
		return o.wrapUp(ctx, s)
	}
}

// finish moves the session to complete, appends the closing turn and evaluates the session once.
func (o *Orchestrator) finish(ctx context.Context, s *interview.Session, sig Signal, outcome string) Reply {
	log := o.sessionLogger(s)
	o.advance(s, sig)

	text, err := o.generate(ctx, ai.TaskReply, o.replyPrompt(s, directiveClose))
	fallback := false
	if err != nil {
		o.recorder.GenerationFallback(ai.TaskReply)
		text = closingFallback(s)
		fallback = true
	}

	o.say(s, text, &interview.Signals{Outcome: outcome, Fallback: fallback})
	s.MarkComplete(o.now())

	if s.Evaluation == nil {
		card, err := o.evaluator.Evaluate(ctx, s)
		if err != nil {
			log.Error("evaluation failed", zap.Error(err))
		} else {
			s.Evaluation = &card
			o.recorder.Evaluated(card.Recommendation)
			log.Info("interview evaluated",
				zap.Float64("overall", card.Overall),
				zap.String("rating", card.Rating),
				zap.String("recommendation", card.Recommendation),
			)
		}
	}

	return o.reply(s, text, outcome)
}

// advance applies the signal to the state machine and records any transition.
func (o *Orchestrator) advance(s *interview.Session, sig Signal) {
	from := s.Stage
	to := Transition(from, sig)
	if to == from {
		return
	}
	s.Stage = to
	o.recorder.Transition(from, to)
	o.sessionLogger(s).Info("stage transition",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("signal", string(sig)),
	)
}

func (o *Orchestrator) generate(ctx context.Context, task, prompt string) (string, error) {
	if o.completer == nil {
		return "", ai.ErrGenerationUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.GenerationTimeout)
	defer cancel()

	text, err := o.completer.Complete(ctx, ai.Request{Task: task, System: interviewerInstruction, Prompt: prompt})
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty %s response", ai.ErrGenerationUnavailable, task)
	}
	return text, nil
}

func (o *Orchestrator) append(s *interview.Session, turn interview.Turn) {
	if err := s.Append(turn); err != nil {
		o.sessionLogger(s).Error("failed to append turn", zap.Error(err))
	}
}

// say appends a system turn.
func (o *Orchestrator) say(s *interview.Session, text string, signals *interview.Signals) {
	if signals != nil && signals.QuestionID == "" && s.Active != nil {
		signals.QuestionID = s.Active.ID
	}
	o.append(s, interview.Turn{Role: interview.RoleSystem, Text: text, Timestamp: o.now(), Signals: signals})
}

func (o *Orchestrator) reply(s *interview.Session, text, outcome string) Reply {
	o.recorder.Turn(outcome)
	return Reply{
		Text:       text,
		Stage:      s.Stage,
		Outcome:    outcome,
		Complete:   s.Complete,
		Evaluation: s.Evaluation,
	}
}

func (o *Orchestrator) sessionLogger(s *interview.Session) *zap.Logger {
	return logger.WithFields(o.logger, logger.SessionFields(s.ID, string(s.Stage))...)
}
