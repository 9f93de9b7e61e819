package security

import (
	"regexp"
	"strings"
)

// InjectionWeight is the risk added by one manipulation pattern. A pattern threshold at or
// below it guarantees that any single hit blocks the message.
const InjectionWeight = 2.0

const structuralWeight = 0.5

const (
	CategoryIgnoreInstructions = "ignore_instructions"
	CategoryRoleReassignment   = "role_reassignment"
	CategorySolutionExtraction = "solution_extraction"
	CategoryPromptProbing      = "prompt_probing"
	CategoryStructure          = "structure"
)

// Rule is one manipulation pattern.
type Rule struct {
	ID       string
	Category string
	Weight   float64
	re       *regexp.Regexp
}

func rule(id, category, pattern string) Rule {
	return Rule{ID: id, Category: category, Weight: InjectionWeight, re: regexp.MustCompile(`(?is)` + pattern)}
}

// DefaultRules are evaluated in order; every matching rule contributes its weight.
var DefaultRules = []Rule{
	rule("ignore_instructions", CategoryIgnoreInstructions, `\b(ignore|disregard)\b.{0,40}\b(instructions?|rules|prompt|guidelines)\b`),
	rule("forget_everything", CategoryIgnoreInstructions, `\bforget\b.{0,20}\b(everything|all)\b`),
	rule("override_behavior", CategoryIgnoreInstructions, `\b(skip|bypass|override)\b.{0,30}\b(instructions?|behaviou?r|rules|restrictions)\b`),

	rule("you_are_now", CategoryRoleReassignment, `\byou\s+are\s+now\b`),
	rule("new_role", CategoryRoleReassignment, `\b(your|a)\s+new\s+role\s+(is|will\s+be)\b|\bnew\s+role\s*:`),
	rule("act_as", CategoryRoleReassignment, `\bact\s+as\s+(if|though)\b|\bact\s+as\s+(an?\s+|the\s+)?(interviewer|candidate|assistant|system)\b`),
	rule("pretend", CategoryRoleReassignment, `\bpretend\s+(to\s+be|you\s+are)\b`),
	rule("switch_roles", CategoryRoleReassignment, `\bswitch\s+(our\s+)?roles?\b`),
	rule("become_interviewer", CategoryRoleReassignment, `\bi\b.{0,10}\bbecome\b.{0,10}\bthe\s+interviewer\b`),
	rule("you_be_candidate", CategoryRoleReassignment, `\byou\b.{0,10}\bbe\b.{0,10}\bthe\s+candidate\b`),
	rule("you_answer_now", CategoryRoleReassignment, `\byou\b.{0,10}\bgive\b.{0,10}\banswers?\b.{0,10}\bnow\b`),

	rule("give_answer", CategorySolutionExtraction, `\bgive\s+(me\s+)?(the\s+)?answers?\b`),
	rule("tell_solution", CategorySolutionExtraction, `\btell\s+(me\s+)?the\s+solution\b`),
	rule("show_code", CategorySolutionExtraction, `\bshow\s+me\s+the\s+(code|solution)\b`),
	rule("provide_solution", CategorySolutionExtraction, `\bprovide\s+(me\s+)?(with\s+)?the\s+solution\b`),
	rule("what_is_solution", CategorySolutionExtraction, `\bwhat\s+is\s+the\s+solution\b`),
	rule("solve_for_me", CategorySolutionExtraction, `\b(write|solve)\s+(it|this|the\s+problem)\s+for\s+me\b`),

	rule("system_prompt", CategoryPromptProbing, `\bsystem\s+prompt\b`),
	rule("reveal_instructions", CategoryPromptProbing, `\b(reveal|print|repeat)\b.{0,20}\b(your|the)\s+(instructions|prompt|rules)\b`),
	rule("jailbreak", CategoryPromptProbing, `\bjailbreak`),
	rule("prompt_injection", CategoryPromptProbing, `\bprompt\s+injection\b`),
}

// Match is a rule that fired.
type Match struct {
	ID       string
	Category string
	Weight   float64
}

// Scan applies the rules plus the structural checks and returns the accumulated risk.
func Scan(rules []Rule, text string) (float64, []Match) {
	var (
		risk    float64
		matches []Match
	)

	for _, r := range rules {
		if r.re.MatchString(text) {
			risk += r.Weight
			matches = append(matches, Match{ID: r.ID, Category: r.Category, Weight: r.Weight})
		}
	}

	if len(strings.Fields(text)) > 200 {
		risk += structuralWeight
		matches = append(matches, Match{ID: "long_input", Category: CategoryStructure, Weight: structuralWeight})
	}

	if strings.Count(text, "\n") > 10 {
		risk += structuralWeight
		matches = append(matches, Match{ID: "many_line_breaks", Category: CategoryStructure, Weight: structuralWeight})
	}

	return risk, matches
}
