package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/interviewd/internal/ai"
	"github.com/spigell/interviewd/internal/ai/gemini"
	"github.com/spigell/interviewd/internal/ai/openai"
	"github.com/spigell/interviewd/internal/content"
	"github.com/spigell/interviewd/internal/dialog"
	"github.com/spigell/interviewd/internal/evaluation"
	"github.com/spigell/interviewd/internal/interview"
	"github.com/spigell/interviewd/internal/logger"
	"github.com/spigell/interviewd/internal/metrics"
	"github.com/spigell/interviewd/internal/questions"
	"github.com/spigell/interviewd/internal/report"
	"github.com/spigell/interviewd/internal/secrets"
	"github.com/spigell/interviewd/internal/security"
	"github.com/spigell/interviewd/internal/store"
	"go.uber.org/zap"
)

// components are the wired parts of one process.
type components struct {
	orchestrator *dialog.Orchestrator
	metrics      *metrics.Recorder
	reports      *report.Writer
	archive      *store.SQLiteStore
	logger       *zap.Logger
}

func build(ctx context.Context, config *Config, log *zap.Logger) (*components, error) {
	completer, err := newCompleter(ctx, config.AI, log)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	recorder := metrics.New()

	pool, err := questions.NewPool()
	if err != nil {
		return nil, fmt.Errorf("load fallback pool: %w", err)
	}

	orchestrator, err := dialog.New(dialog.Deps{
		Completer: completer,
		Security:  security.New(completer, config.Security, logger.ForComponent(log, "security")),
		Content:   content.New(completer, config.Content, logger.ForComponent(log, "content")),
		Evaluator: evaluation.New(completer, config.Evaluation, log),
		Supplier:  newSupplier(config.Questions, pool, log),
		Fallback:  pool,
		Recorder:  recorder,
	}, config.Interview, log)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	var redactor report.Redactor = report.NoopRedactor{}
	if config.Output.RedactSecrets {
		secretRedactor, err := report.NewSecretRedactor(logger.ForComponent(log, "redaction"))
		if err != nil {
			return nil, err
		}
		redactor = secretRedactor
	}

	c := &components{
		orchestrator: orchestrator,
		metrics:      recorder,
		reports:      report.NewWriter(config.Output.Dir, redactor, logger.ForComponent(log, "report")),
		logger:       log,
	}

	if path := strings.TrimSpace(config.Output.Database); path != "" {
		archive, err := store.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open evaluation archive: %w", err)
		}
		c.archive = archive
	}

	return c, nil
}

// persist writes the report files and archives the evaluation.
func (c *components) persist(ctx context.Context, s *interview.Session) error {
	files, err := c.reports.Write(s)
	if err != nil {
		return fmt.Errorf("write reports: %w", err)
	}

	c.logger.Info("reports written",
		zap.String("detailed", files.Detailed),
		zap.String("summary", files.Summary),
		zap.String("metrics", files.Metrics),
		zap.String("transcript", files.Transcript),
	)

	if c.archive == nil {
		return nil
	}
	if err := c.archive.Save(ctx, s); err != nil {
		return fmt.Errorf("archive evaluation: %w", err)
	}
	return nil
}

func (c *components) Close() error {
	if c.archive == nil {
		return nil
	}
	return c.archive.Close()
}

// newCompleter returns a nil Completer for the "none" provider; every generation then
// falls back to templates and the gates rely on their patterns.
func newCompleter(ctx context.Context, cfg *AIConfig, log *zap.Logger) (ai.Completer, error) {
	log = logger.WithFields(log)
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))

	switch provider {
	case ProviderNone:
		log.Warn("text generation disabled, using templated replies only")
		return nil, nil
	case ProviderOpenAI:
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "openai-compatible api key",
			File:  cfg.OpenAI.APIKeyFile,
			Env:   "GROQ_API_KEY",
			Value: cfg.OpenAI.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.openai.api-key-file or GROQ_API_KEY)", err)
		}

		client, err := openai.New(openai.Config{
			BaseURL:    cfg.OpenAI.BaseURL,
			Model:      cfg.OpenAI.Model,
			APIKey:     apiKey,
			Timeout:    cfg.OpenAI.Timeout,
			RateLimit:  cfg.OpenAI.RateLimit,
			Burst:      cfg.OpenAI.Burst,
			MaxRetries: cfg.OpenAI.MaxRetries,
		}, logger.WithCommonFields(log, provider, cfg.OpenAI.Model))
		if err != nil {
			return nil, err
		}
		return client, nil
	case ProviderGemini:
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			File:  cfg.Gemini.APIKeyFile,
			Env:   "GEMINI_API_KEY",
			Value: cfg.Gemini.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
		}

		genLogger := logger.WithCommonFields(log, provider, cfg.Gemini.Model).With(
			zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries),
		)

		generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, cfg.Gemini.MaxLogLength, genLogger)
		if err != nil {
			return nil, err
		}
		return generator, nil
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}

// newSupplier builds the rotating supplier over the configured sources. The pool is
// always the orchestrator's last resort, so listing it here only adds it to the rotation.
func newSupplier(cfg *QuestionsConfig, pool *questions.Pool, log *zap.Logger) questions.Supplier {
	if cfg == nil {
		return nil
	}

	supplierLogger := logger.ForComponent(log, "questions")

	var suppliers []questions.Supplier
	for _, src := range cfg.Sources {
		switch strings.ToLower(strings.TrimSpace(src)) {
		case questions.SourceLeetCode:
			suppliers = append(suppliers, questions.NewLeetCode(supplierLogger, cfg.Timeout))
		case questions.SourceCodeforces:
			suppliers = append(suppliers, questions.NewCodeforces(supplierLogger, cfg.Timeout))
		case SourcePool:
			suppliers = append(suppliers, pool)
		}
	}

	if len(suppliers) == 0 {
		return nil
	}
	return questions.NewRotating(supplierLogger, suppliers...)
}

var errNoArchive = errors.New("evaluation archive is disabled (output.database is empty)")
