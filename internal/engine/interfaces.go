// Package engine holds the processing engines behind each API feature and
// the external collaborators (translation, speech synthesis, chat models)
// they delegate to. Stub and real implementations share one interface per
// capability so the API layer never knows which one it is talking to.
package engine

import (
	"context"
	"image"

	"github.com/yangwenmai/aiworkspace/internal/model"
)

// ImageClassifier labels a decoded image. Results are ranked, best first,
// and always contain at least one entry.
type ImageClassifier interface {
	Classify(ctx context.Context, img image.Image) ([]model.Classification, error)
}

// SentimentAnalyzer transcribes an audio file and labels its sentiment.
type SentimentAnalyzer interface {
	Analyze(ctx context.Context, audioPath string) (model.Sentiment, error)
}

// QuestionAnswerer answers the question spoken in audioPath and writes a
// spoken reply into outputDir.
type QuestionAnswerer interface {
	Ask(ctx context.Context, audioPath, outputDir string) (model.Answer, error)
}

// TextGenerator continues a prompt. The result starts with the prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// TextTranslator produces translated text. It never fails: collaborator
// errors are folded into the returned string.
type TextTranslator interface {
	Translate(ctx context.Context, text string) string
}

// Translator abstracts an external translation service.
type Translator interface {
	Translate(ctx context.Context, text, targetLang, sourceLang string) (string, error)
}

// Synthesizer abstracts an external text-to-speech service.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang string) ([]byte, error)
}

// ModelClient abstracts chat-completion calls to an LLM.
type ModelClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ReplyNamer hands out collision-free filenames for generated replies.
type ReplyNamer interface {
	NewName(prefix, ext string) string
}
