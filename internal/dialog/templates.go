package dialog

import (
	"fmt"
	"strings"

	"github.com/spigell/interviewd/internal/interview"
)

// Outcome codes attached to every reply.
const (
	OutcomeAccepted              = "accepted"
	OutcomeCommand               = "command"
	OutcomeSecurityRejection     = "security_rejection"
	OutcomeContentRedirect       = "content_redirect"
	OutcomeContentBoundary       = "content_boundary"
	OutcomeGenerationUnavailable = "generation_unavailable"
	OutcomeAlreadyComplete       = "already_complete"
	OutcomeEmptyInput            = "empty_input"
)

const (
	RejectionReply = "I noticed your message might contain inappropriate content. " +
		"Let's keep our conversation focused on the interview. Could you please rephrase your response?"
	EmptyInputReply       = "Please provide a response or type 'help' for commands."
	AlreadyCompleteReply  = "This interview has already concluded. Thank you for your time!"
	NoMoreHintsReply      = "I've already given you all the hints I can for this problem. Try working from what you have so far."
	NoActiveQuestionReply = "Hints are available once we're working on a technical problem."
	HelpReply             = "Available commands:\n" +
		"  help - show this list\n" +
		"  hint - get a hint for the current problem\n" +
		"  quit - end the interview and receive your evaluation"
	GenerationAckReply = "Thank you, I've noted your response. I'm having a brief technical issue on my side. " +
		"Could you send that again or add a little more detail?"
)

var genericHints = []string{
	"Start by restating the problem in your own words and working through a small example by hand.",
	"Think about which data structure would let you look up what you've already seen in constant time.",
	"Consider the edge cases first: empty input, a single element and duplicates.",
	"Can you describe a brute-force approach first, then look for repeated work you could avoid?",
}

func greetingFallback(s *interview.Session) string {
	name := s.CandidateName
	if name == "" {
		name = "there"
	}
	role := s.TargetRole
	if role == "" {
		role = "software engineering"
	}
	return fmt.Sprintf("Hello %s, welcome to your interview for the %s position! "+
		"We'll start with a short introduction, then work through a technical problem, and finish with a brief wrap-up. "+
		"To begin, could you tell me a little about yourself and your experience?", name, role)
}

func presentQuestion(q *interview.ActiveQuestion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Let's move on to a technical problem: %s (%s).\n\n", q.Title, q.Difficulty)
	b.WriteString(strings.TrimSpace(q.Statement))
	b.WriteString("\n\nPlease walk me through your approach before writing any code.")
	return b.String()
}

func hintReply(number int, hint string) string {
	return fmt.Sprintf("Hint %d: %s", number, hint)
}

func closingFallback(s *interview.Session) string {
	name := s.CandidateName
	if name == "" {
		return "Thank you for your time today. This concludes the interview."
	}
	return fmt.Sprintf("Thank you for your time today, %s. This concludes the interview.", name)
}

// fallbackReply is the templated answer used when reply generation fails after bookkeeping.
func fallbackReply(d directive, s *interview.Session) string {
	switch d {
	case directiveAskQuestion:
		if s.Active != nil {
			return presentQuestion(s.Active)
		}
	case directiveFollowUp:
		return "Good. What is the time and space complexity of your approach, and could it be improved?"
	case directiveNudge:
		return "You're making progress. Take another look at your approach and check it against a small example."
	case directiveClarify:
		if s.Active != nil {
			return "Here is the problem statement again:\n\n" + strings.TrimSpace(s.Active.Statement)
		}
	case directiveContinueIntro:
		return "Thanks for sharing. Could you tell me a bit more about a recent project you worked on?"
	case directiveStartWrapUp:
		return "Nice work on the technical part. Before we finish, do you have any questions for me about the role or the team?"
	case directiveWrapUp:
		return "Thanks. Is there anything else you'd like to ask or add before we wrap up?"
	}
	return GenerationAckReply
}
