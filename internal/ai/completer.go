package ai

import (
	"context"
	"errors"
	"strings"
)

// Tasks name the purpose of a generation request. Providers log them and test doubles route by them.
const (
	TaskSecurity   = "security"
	TaskContent    = "content"
	TaskGreeting   = "greeting"
	TaskAnalysis   = "analysis"
	TaskReply      = "reply"
	TaskHint       = "hint"
	TaskEvaluation = "evaluation"
)

// ErrGenerationUnavailable marks a failed, timed out or empty generation.
var ErrGenerationUnavailable = errors.New("text generation unavailable")

// Request is a single-shot generation request.
type Request struct {
	Task   string
	System string
	Prompt string
}

// Completer produces text for a request. Implementations must be safe for concurrent use.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Fill replaces {{KEY}} placeholders in template with the provided values in a single pass,
// so placeholders inside values are left alone.
func Fill(template string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for key, value := range values {
		pairs = append(pairs, "{{"+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
