package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/spigell/interviewd/internal/content"
	"github.com/spigell/interviewd/internal/dialog"
	"github.com/spigell/interviewd/internal/evaluation"
	"github.com/spigell/interviewd/internal/interview"
	"github.com/spigell/interviewd/internal/questions"
	"github.com/spigell/interviewd/internal/security"
)

// ErrConfiguration marks a configuration the process cannot start with.
var ErrConfiguration = errors.New("invalid configuration")

var envKeyReplacer = strings.NewReplacer(".", "_", "-", "_")

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderNone   = "none"

	SourcePool = "pool"
)

type Config struct {
	Interview  dialog.Config     `mapstructure:"interview"`
	Security   security.Config   `mapstructure:"security"`
	Content    content.Config    `mapstructure:"content"`
	Evaluation evaluation.Config `mapstructure:"evaluation"`
	AI         *AIConfig         `mapstructure:"ai"`
	Questions  *QuestionsConfig  `mapstructure:"questions"`
	Output     *OutputConfig     `mapstructure:"output"`
	Server     *ServerConfig     `mapstructure:"server"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
	OpenAI   *OpenAIConfig `mapstructure:"openai"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

// OpenAIConfig targets any OpenAI-compatible chat completions API. Groq is the default.
type OpenAIConfig struct {
	BaseURL    string        `mapstructure:"base-url"`
	APIKey     string        `mapstructure:"api-key"`
	APIKeyFile string        `mapstructure:"api-key-file"`
	Model      string        `mapstructure:"model"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RateLimit  float64       `mapstructure:"rate-limit"`
	Burst      int           `mapstructure:"burst"`
	MaxRetries int           `mapstructure:"max-retries"`
}

type QuestionsConfig struct {
	Sources []string      `mapstructure:"sources"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type OutputConfig struct {
	Dir           string `mapstructure:"dir"`
	Database      string `mapstructure:"database"`
	RedactSecrets bool   `mapstructure:"redact-secrets"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	weights := interview.DefaultWeights()

	v.SetDefault("interview.starting-difficulty", string(interview.DifficultyMedium))
	v.SetDefault("interview.max-questions", 3)
	v.SetDefault("interview.hint-cap", 3)
	v.SetDefault("interview.min-wrap-up-exchanges", 2)
	v.SetDefault("interview.follow-ups-per-question", 1)
	v.SetDefault("interview.topic", "algorithms")
	v.SetDefault("interview.generation-timeout", "30s")
	v.SetDefault("interview.supplier-timeout", "15s")

	v.SetDefault("security.pattern-threshold", security.DefaultPatternThreshold)
	v.SetDefault("security.semantic-threshold", security.DefaultSemanticThreshold)

	v.SetDefault("evaluation.weights.technical", weights.Technical)
	v.SetDefault("evaluation.weights.communication", weights.Communication)
	v.SetDefault("evaluation.weights.problem-approach", weights.ProblemApproach)
	v.SetDefault("evaluation.weights.collaboration", weights.Collaboration)

	v.SetDefault("ai.provider", ProviderGemini)
	v.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	v.SetDefault("ai.gemini.max-retries", 3)

	v.SetDefault("questions.sources", []string{questions.SourceLeetCode, questions.SourceCodeforces})
	v.SetDefault("questions.timeout", "10s")

	v.SetDefault("output.dir", "interview_results")
	v.SetDefault("output.database", "interview_results/interviewd.db")
	v.SetDefault("output.redact-secrets", true)

	v.SetDefault("server.addr", ":8080")
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if config == nil {
		return nil, fmt.Errorf("%w: config is required", ErrConfiguration)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks everything that does not need network or secrets.
func (c *Config) Validate() error {
	wrap := func(err error) error { return fmt.Errorf("%w: %w", ErrConfiguration, err) }

	if err := c.Interview.Validate(); err != nil {
		return wrap(err)
	}
	if err := c.Security.Validate(); err != nil {
		return wrap(err)
	}
	if err := c.Evaluation.Validate(); err != nil {
		return wrap(err)
	}

	if c.AI == nil {
		return wrap(errors.New("ai section is required"))
	}
	switch provider := strings.ToLower(strings.TrimSpace(c.AI.Provider)); provider {
	case ProviderGemini:
		if c.AI.Gemini == nil {
			return wrap(errors.New("ai.gemini section is required for the gemini provider"))
		}
	case ProviderOpenAI:
		if c.AI.OpenAI == nil {
			return wrap(errors.New("ai.openai section is required for the openai provider"))
		}
	case ProviderNone:
	default:
		return wrap(fmt.Errorf("unsupported ai provider: %s", c.AI.Provider))
	}

	if c.Questions != nil {
		for _, src := range c.Questions.Sources {
			switch strings.ToLower(strings.TrimSpace(src)) {
			case questions.SourceLeetCode, questions.SourceCodeforces, SourcePool:
			default:
				return wrap(fmt.Errorf("unknown question source: %s", src))
			}
		}
	}

	if c.Output == nil || strings.TrimSpace(c.Output.Dir) == "" {
		return wrap(errors.New("output.dir is required"))
	}
	return nil
}
