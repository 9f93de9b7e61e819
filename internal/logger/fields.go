package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Structured field keys shared by all components.
const (
	FieldProvider   = "ai_provider"
	FieldModel      = "ai_model"
	FieldSession    = "session_id"
	FieldStage      = "stage"
	FieldComponent  = "component"
	FieldQuestion   = "question_id"
	FieldSource     = "question_source"
	FieldDifficulty = "difficulty"
)

type StringField struct {
	Key   string
	Value string
}

// StringFields converts key/value pairs into zap fields. Pairs with a blank key or value are dropped.
func StringFields(fields ...StringField) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		key, value := strings.TrimSpace(f.Key), strings.TrimSpace(f.Value)
		if key == "" || value == "" {
			continue
		}
		out = append(out, zap.String(key, value))
	}
	return out
}

// WithFields attaches fields to logger. A nil logger becomes a no-op logger.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}

// CommonFields describe the text generation provider.
func CommonFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

func WithCommonFields(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, CommonFields(provider, model)...)
}

// SessionFields describe the interview session a log entry belongs to.
func SessionFields(sessionID, stage string) []zap.Field {
	return StringFields(
		StringField{Key: FieldSession, Value: sessionID},
		StringField{Key: FieldStage, Value: stage},
	)
}

// QuestionFields describe a technical problem.
func QuestionFields(id, source, difficulty string) []zap.Field {
	return StringFields(
		StringField{Key: FieldQuestion, Value: id},
		StringField{Key: FieldSource, Value: source},
		StringField{Key: FieldDifficulty, Value: difficulty},
	)
}

// ForComponent returns a logger tagged with the component name.
func ForComponent(logger *zap.Logger, component string) *zap.Logger {
	return WithFields(logger, StringFields(StringField{Key: FieldComponent, Value: component})...)
}
