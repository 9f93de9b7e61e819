// Package security screens candidate messages for attempts to manipulate the interviewer.
package security

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/interviewd/internal/ai"
	"github.com/spigell/interviewd/internal/interview"
	"github.com/spigell/interviewd/internal/utils"
	"go.uber.org/zap"
)

//go:embed classifier.md
var classifierInstruction string

//go:embed prompt.md
var promptTemplate string

const (
	DefaultPatternThreshold  = 2.0
	DefaultSemanticThreshold = 0.5
	defaultTimeout           = 15 * time.Second
	defaultHistoryTurns      = 4
)

var errUnparseable = errors.New("unparseable classifier answer")

type Config struct {
	PatternThreshold  float64       `mapstructure:"pattern-threshold"`
	SemanticThreshold float64       `mapstructure:"semantic-threshold"`
	Timeout           time.Duration `mapstructure:"timeout"`
	HistoryTurns      int           `mapstructure:"history-turns"`
}

// Validate reports thresholds that are missing or would let a pattern hit through.
func (c Config) Validate() error {
	if c.PatternThreshold <= 0 {
		return errors.New("security pattern threshold must be positive")
	}
	if c.PatternThreshold > InjectionWeight {
		return fmt.Errorf("security pattern threshold %.2f exceeds the injection weight %.2f", c.PatternThreshold, InjectionWeight)
	}
	if c.SemanticThreshold <= 0 || c.SemanticThreshold > 1 {
		return fmt.Errorf("security semantic threshold %.2f must be in (0, 1]", c.SemanticThreshold)
	}
	return nil
}

// Gate combines pattern rules with a semantic judgment from the completer.
type Gate struct {
	completer ai.Completer
	rules     []Rule
	cfg       Config
	logger    *zap.Logger
}

// New builds a gate. A nil completer restricts the gate to pattern rules.
func New(completer ai.Completer, cfg Config, logger *zap.Logger) *Gate {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = defaultHistoryTurns
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{completer: completer, rules: DefaultRules, cfg: cfg, logger: logger}
}

// Evaluate screens text. It never mutates history. A pattern hit always blocks; a failed
// semantic check leaves the decision to the patterns alone.
func (g *Gate) Evaluate(ctx context.Context, text string, history []interview.Turn) interview.SecurityVerdict {
	text = strings.TrimSpace(text)
	if text == "" {
		return interview.SecurityVerdict{Approved: true, Decision: interview.DecisionAllow}
	}

	risk, matches := Scan(g.rules, text)
	verdict := interview.SecurityVerdict{PatternRisk: risk}
	for _, m := range matches {
		verdict.MatchedPatterns = append(verdict.MatchedPatterns, m.ID)
	}

	if risk >= g.cfg.PatternThreshold {
		verdict.Decision = interview.DecisionBlockPattern
		verdict.Reason = "matched manipulation patterns"
		g.logger.Info("message blocked by patterns",
			zap.Float64("pattern_risk", risk),
			zap.Strings("patterns", verdict.MatchedPatterns),
		)
		return verdict
	}

	semantic, reason, err := g.semanticRisk(ctx, text, history)
	if err != nil {
		g.logger.Warn("semantic security check unavailable, using patterns only", zap.Error(err))
		verdict.Approved = true
		verdict.Decision = interview.DecisionAllow
		verdict.Reason = "semantic check unavailable"
		return verdict
	}

	verdict.SemanticChecked = true
	verdict.SemanticRisk = semantic
	verdict.Reason = reason

	if semantic >= g.cfg.SemanticThreshold {
		verdict.Decision = interview.DecisionBlockSemantic
		g.logger.Info("message blocked by semantic check",
			zap.Float64("semantic_risk", semantic),
			zap.String("reason", reason),
		)
		return verdict
	}

	verdict.Approved = true
	verdict.Decision = interview.DecisionAllow
	return verdict
}

func (g *Gate) semanticRisk(ctx context.Context, text string, history []interview.Turn) (float64, string, error) {
	if g.completer == nil {
		return 0, "", ai.ErrGenerationUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	prompt := ai.Fill(promptTemplate, map[string]string{
		"HISTORY": interview.FormatHistory(history, g.cfg.HistoryTurns),
		"MESSAGE": text,
	})

	raw, err := g.completer.Complete(ctx, ai.Request{Task: ai.TaskSecurity, System: classifierInstruction, Prompt: prompt})
	if err != nil {
		return 0, "", err
	}

	risk, reason, err := parseClassification(raw)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %q", err, utils.TruncateForLog(raw, 80))
	}
	return risk, reason, nil
}

// parseClassification turns "SAFE|0.9|reason" into a risk in [0,1].
func parseClassification(raw string) (float64, string, error) {
	label, fields := ai.ParseLabeled(raw)

	confidence := 1.0
	reason := ""
	if len(fields) > 0 {
		if f, err := strconv.ParseFloat(fields[0], 64); err == nil && !math.IsNaN(f) {
			confidence = math.Max(0, math.Min(1, f))
			fields = fields[1:]
		}
		reason = strings.Join(fields, " ")
	}

	switch label {
	case "UNSAFE":
		return confidence, reason, nil
	case "SAFE":
		return 1 - confidence, reason, nil
	default:
		return 0, "", errUnparseable
	}
}
