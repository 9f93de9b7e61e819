package dialog

import "github.com/spigell/interviewd/internal/interview"

// Signal is a classified event that may move the interview forward.
type Signal string

const (
	SignalNone               Signal = ""
	SignalIntroAdequate      Signal = "intro_adequate"
	SignalQuestionsExhausted Signal = "questions_exhausted"
	SignalTechnicalDone      Signal = "technical_done"
	SignalWrapUpDone         Signal = "wrap_up_done"
	SignalTerminate          Signal = "terminate"
	SignalInterviewFinished  Signal = "interview_finished"
)

// Transition is the interview state machine. Stages only move forward, terminate and
// interview_finished lead to complete from anywhere, and complete is absorbing.
func Transition(stage interview.Stage, sig Signal) interview.Stage {
	if stage == interview.StageComplete {
		return stage
	}

	switch sig {
	case SignalTerminate, SignalInterviewFinished:
		return interview.StageComplete
	case SignalIntroAdequate:
		if stage == interview.StageIntroduction {
			return interview.StageTechnical
		}
	case SignalQuestionsExhausted, SignalTechnicalDone:
		if stage == interview.StageTechnical {
			return interview.StageWrapUp
		}
	case SignalWrapUpDone:
		if stage == interview.StageWrapUp {
			return interview.StageComplete
		}
	}

	return stage
}
