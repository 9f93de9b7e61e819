package interview

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Stage is a phase of the interview dialog.
type Stage string

const (
	StageIntroduction Stage = "introduction"
	StageTechnical    Stage = "technical"
	StageWrapUp       Stage = "wrap_up"
	StageComplete     Stage = "complete"
)

// Rank returns the forward position of the stage. Unknown stages rank below introduction.
func (s Stage) Rank() int {
	switch s {
	case StageIntroduction:
		return 0
	case StageTechnical:
		return 1
	case StageWrapUp:
		return 2
	case StageComplete:
		return 3
	default:
		return -1
	}
}

func (s Stage) Valid() bool {
	return s.Rank() >= 0
}

// Role identifies the author of a turn.
type Role string

const (
	RoleCandidate Role = "candidate"
	RoleSystem    Role = "system"
)

// ErrSessionComplete is returned when a turn is appended to a concluded session.
var ErrSessionComplete = errors.New("session is complete")

// Turn is one message of the transcript.
type Turn struct {
	Role      Role             `json:"role"`
	Text      string           `json:"text"`
	Timestamp time.Time        `json:"timestamp"`
	Stage     Stage            `json:"stage"`
	Security  *SecurityVerdict `json:"security,omitempty"`
	Content   *ContentVerdict  `json:"content,omitempty"`
	Signals   *Signals         `json:"signals,omitempty"`
}

// Signals are the annotations the orchestrator attaches to a turn.
type Signals struct {
	Outcome        string `json:"outcome,omitempty"`
	Command        string `json:"command,omitempty"`
	Classification string `json:"classification,omitempty"`
	Quality        int    `json:"quality,omitempty"`
	UsedHint       bool   `json:"used_hint,omitempty"`
	HintNumber     int    `json:"hint_number,omitempty"`
	QuestionID     string `json:"question_id,omitempty"`
	Fallback       bool   `json:"fallback,omitempty"`
}

// Difficulty of a technical problem.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

var difficultyOrder = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// ParseDifficulty normalizes a difficulty name. Unknown values are reported as invalid.
func ParseDifficulty(s string) (Difficulty, bool) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range difficultyOrder {
		if d == known {
			return d, true
		}
	}
	return "", false
}

// Level returns 0 for easy, 1 for medium, 2 for hard and -1 for anything else.
func (d Difficulty) Level() int {
	for i, known := range difficultyOrder {
		if d == known {
			return i
		}
	}
	return -1
}

// Harder returns the next difficulty up, saturating at hard.
func (d Difficulty) Harder() Difficulty {
	lvl := d.Level()
	if lvl < 0 {
		return DifficultyMedium
	}
	if lvl+1 >= len(difficultyOrder) {
		return d
	}
	return difficultyOrder[lvl+1]
}

// Easier returns the next difficulty down, saturating at easy.
func (d Difficulty) Easier() Difficulty {
	lvl := d.Level()
	if lvl < 0 {
		return DifficultyMedium
	}
	if lvl == 0 {
		return d
	}
	return difficultyOrder[lvl-1]
}

// ActiveQuestion is the problem currently under discussion.
type ActiveQuestion struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Source     string     `json:"source"`
	Difficulty Difficulty `json:"difficulty"`
	Statement  string     `json:"statement"`
	Topic      string     `json:"topic,omitempty"`
	Hints      []string   `json:"hints,omitempty"`
	URL        string     `json:"url,omitempty"`
	HintsUsed  int        `json:"hints_used"`
	HintsGiven []string   `json:"hints_given,omitempty"`
	FollowUps  int        `json:"follow_ups"`
	AskedAt    time.Time  `json:"asked_at"`
}

// Session is the state of one interview.
type Session struct {
	ID               string          `json:"id"`
	CandidateName    string          `json:"candidate_name"`
	TargetRole       string          `json:"target_role"`
	CreatedAt        time.Time       `json:"created_at"`
	CompletedAt      time.Time       `json:"completed_at,omitempty"`
	Turns            []Turn          `json:"turns"`
	Stage            Stage           `json:"stage"`
	QuestionsAsked   int             `json:"questions_asked"`
	AskedQuestionIDs []string        `json:"asked_question_ids,omitempty"`
	Active           *ActiveQuestion `json:"active_question,omitempty"`
	Complete         bool            `json:"complete"`
	Evaluation       *ScoreCard      `json:"evaluation,omitempty"`
	WrapUpExchanges  int             `json:"wrap_up_exchanges"`
	// Performance holds the answer quality recorded for each solved question.
	Performance []int `json:"performance,omitempty"`
}

// NewSession creates a session in the introduction stage.
func NewSession(candidate, role string, now time.Time) *Session {
	return &Session{
		ID:            uuid.NewString(),
		CandidateName: strings.TrimSpace(candidate),
		TargetRole:    strings.TrimSpace(role),
		CreatedAt:     now,
		Stage:         StageIntroduction,
	}
}

// Append adds a turn to the transcript. Turns are never removed or edited.
func (s *Session) Append(turn Turn) error {
	if s.Complete {
		return ErrSessionComplete
	}
	if turn.Stage == "" {
		turn.Stage = s.Stage
	}
	s.Turns = append(s.Turns, turn)
	return nil
}

// MarkComplete moves the session to its terminal stage.
func (s *Session) MarkComplete(now time.Time) {
	s.Stage = StageComplete
	s.Complete = true
	if s.CompletedAt.IsZero() {
		s.CompletedAt = now
	}
}

// History returns a copy of the transcript.
func (s *Session) History() []Turn {
	out := make([]Turn, len(s.Turns))
	copy(out, s.Turns)
	return out
}

// CandidateTurns returns the turns written by the candidate.
func (s *Session) CandidateTurns() []Turn {
	var out []Turn
	for _, t := range s.Turns {
		if t.Role == RoleCandidate {
			out = append(out, t)
		}
	}
	return out
}

// Asked reports whether the question id was already used in this session.
func (s *Session) Asked(id string) bool {
	for _, asked := range s.AskedQuestionIDs {
		if asked == id {
			return true
		}
	}
	return false
}

// Ask replaces the active question and counts it.
func (s *Session) Ask(q *ActiveQuestion) {
	s.Active = q
	s.QuestionsAsked++
	s.AskedQuestionIDs = append(s.AskedQuestionIDs, q.ID)
}
