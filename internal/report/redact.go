package report

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
	"go.uber.org/zap"
)

// Redactor removes sensitive values from text before it is persisted.
type Redactor interface {
	Redact(text string) string
}

// NoopRedactor returns text unchanged.
type NoopRedactor struct{}

func (NoopRedactor) Redact(text string) string { return text }

// SecretRedactor replaces credentials found by the gitleaks default rules with markers.
type SecretRedactor struct {
	mu       sync.Mutex
	detector *detect.Detector
	logger   *zap.Logger
}

func NewSecretRedactor(logger *zap.Logger) (*SecretRedactor, error) {
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("create secret detector: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SecretRedactor{detector: detector, logger: logger}, nil
}

func (r *SecretRedactor) Redact(text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}

	r.mu.Lock()
	findings := r.detector.DetectString(text)
	r.mu.Unlock()

	if len(findings) == 0 {
		return text
	}

	// Longest secrets first so a secret containing another is replaced whole.
	sort.SliceStable(findings, func(i, j int) bool {
		return len(findings[i].Secret) > len(findings[j].Secret)
	})

	redacted := text
	for _, f := range findings {
		if f.Secret == "" {
			continue
		}
		redacted = strings.ReplaceAll(redacted, f.Secret, "[REDACTED:"+f.RuleID+"]")
		r.logger.Info("secret redacted from report", zap.String("rule", f.RuleID), zap.Int("line", f.StartLine))
	}
	return redacted
}
