package content

import (
	"regexp"
	"strings"
	"unicode"
)

// SevereScore is the pattern score above which a message is inappropriate whatever the model says.
const SevereScore = 3

var inappropriatePhrases = []string{
	"fuck",
	"shit",
	"damn you",
	"stupid interviewer",
	"this sucks",
}

var profanityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(damn|hell|shit|fuck\w*|bitch|ass)\b`),
	regexp.MustCompile(`(?i)\b(stupid|dumb|idiot|moron)\b`),
}

var hostilityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(hate|suck|sucks|terrible)\b.{0,20}\b(you|this|interview)\b`),
	regexp.MustCompile(`(?i)\b(waste\s+of\s+(my\s+)?time|shut\s+up)\b`),
}

// patternScore counts listed phrases once each and every matching pattern twice.
func patternScore(text string) int {
	lower := strings.ToLower(text)

	score := 0
	for _, phrase := range inappropriatePhrases {
		if strings.Contains(lower, phrase) {
			score++
		}
	}
	for _, re := range profanityPatterns {
		if re.MatchString(text) {
			score += 2
		}
	}
	for _, re := range hostilityPatterns {
		if re.MatchString(text) {
			score += 2
		}
	}
	return score
}

const maxWords = 1000

// incoherent reports spam-like input: too long, or a long run of one or two repeated characters.
func incoherent(text string) (bool, string) {
	if len(strings.Fields(text)) > maxWords {
		return true, "message is too long"
	}

	distinct := make(map[rune]struct{})
	length := 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		distinct[r] = struct{}{}
		length++
	}
	if length > 10 && len(distinct) <= 2 {
		return true, "repeated characters"
	}

	return false, ""
}
