package engine

import (
	"context"
	"log/slog"
	"time"
)

// Languages used by the translate feature.
const (
	SourceLang = "en"
	TargetLang = "ur"
)

// TranslationEngine translates English to Urdu through a Translator.
type TranslationEngine struct {
	translator Translator
	latency    time.Duration
}

// NewTranslationEngine creates a TranslationEngine.
func NewTranslationEngine(t Translator, simulate bool) *TranslationEngine {
	return &TranslationEngine{translator: t, latency: latency(simulate, translateLatency)}
}

// Translate returns the translation of text. On failure the returned string
// describes the error instead.
func (e *TranslationEngine) Translate(ctx context.Context, text string) string {
	if err := sleep(ctx, e.latency); err != nil {
		return translationError(err)
	}
	out, err := e.translator.Translate(ctx, text, TargetLang, SourceLang)
	if err != nil {
		slog.Error("translation failed", "error", err)
		return translationError(err)
	}
	return out
}

func translationError(err error) string {
	return "Error in translation: " + err.Error()
}

// StubTranslator echoes the input with a language tag (for development/testing).
type StubTranslator struct{}

func (StubTranslator) Translate(_ context.Context, text, targetLang, _ string) (string, error) {
	return "[" + targetLang + "] " + text, nil
}
