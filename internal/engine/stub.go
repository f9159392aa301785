package engine

import (
	"context"
	"image"
	"math/rand/v2"
	"time"

	"github.com/yangwenmai/aiworkspace/internal/model"
)

// Simulated processing delays of the stub engines.
const (
	classifyLatency  = 1500 * time.Millisecond
	sentimentLatency = 1500 * time.Millisecond
	answerLatency    = 2 * time.Second
	generateLatency  = 1200 * time.Millisecond
	translateLatency = time.Second
)

// ClassLabels are the labels StubClassifier picks from.
var ClassLabels = []string{"Male", "Female"}

var sentimentSamples = []model.Sentiment{
	{Transcription: "I really enjoy using this AI workspace, it is amazing!", Sentiment: "Positive"},
	{Transcription: "The project is quite difficult and frustrating at times.", Sentiment: "Negative"},
	{Transcription: "I am currently testing the voice recognition features.", Sentiment: "Neutral"},
	{Transcription: "Today is a beautiful day for coding.", Sentiment: "Positive"},
}

var qaPairs = [][2]string{
	{"What is Machine Learning?", "Machine learning is a field of artificial intelligence focusing on data-driven systems."},
	{"What are Transformers?", "Transformers are neural network architectures using self-attention mechanisms."},
	{"Is AI helpful?", "Yes, AI can automate complex tasks and assist in creative processes."},
}

var continuations = []string{
	" This technology is evolving rapidly and changing how we interact with machines.",
	" Experiments show that using larger datasets often leads to better performance.",
	" The integration of AI in web applications provides a seamless user experience.",
}

// StubClassifier returns a random label with a high confidence score.
type StubClassifier struct {
	Latency time.Duration
}

// NewStubClassifier creates a StubClassifier. simulate enables the artificial delay.
func NewStubClassifier(simulate bool) *StubClassifier {
	return &StubClassifier{Latency: latency(simulate, classifyLatency)}
}

func (c *StubClassifier) Classify(ctx context.Context, _ image.Image) ([]model.Classification, error) {
	if err := sleep(ctx, c.Latency); err != nil {
		return nil, err
	}
	return []model.Classification{{
		Label: ClassLabels[rand.IntN(len(ClassLabels))],
		Score: 0.85 + rand.Float64()*0.13,
	}}, nil
}

// StubSentimentAnalyzer returns one of a few canned transcripts.
type StubSentimentAnalyzer struct {
	Latency time.Duration
}

// NewStubSentimentAnalyzer creates a StubSentimentAnalyzer.
func NewStubSentimentAnalyzer(simulate bool) *StubSentimentAnalyzer {
	return &StubSentimentAnalyzer{Latency: latency(simulate, sentimentLatency)}
}

func (a *StubSentimentAnalyzer) Analyze(ctx context.Context, _ string) (model.Sentiment, error) {
	if err := sleep(ctx, a.Latency); err != nil {
		return model.Sentiment{}, err
	}
	return sentimentSamples[rand.IntN(len(sentimentSamples))], nil
}

// StubGenerator appends a canned continuation to the prompt.
type StubGenerator struct {
	Latency time.Duration
}

// NewStubGenerator creates a StubGenerator.
func NewStubGenerator(simulate bool) *StubGenerator {
	return &StubGenerator{Latency: latency(simulate, generateLatency)}
}

func (g *StubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := sleep(ctx, g.Latency); err != nil {
		return "", err
	}
	return prompt + continuations[rand.IntN(len(continuations))], nil
}

func latency(simulate bool, d time.Duration) time.Duration {
	if !simulate {
		return 0
	}
	return d
}

// sleep blocks for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// silentFrame is a single silent MPEG-1 Layer III frame header followed by
// zero padding; enough for browsers to accept the file.
var silentFrame = append([]byte{0xFF, 0xFB, 0x90, 0x64}, make([]byte, 413)...)

// StubSynthesizer returns a silent MP3 frame for any non-empty text.
type StubSynthesizer struct{}

func (StubSynthesizer) Synthesize(_ context.Context, text, _ string) ([]byte, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	return silentFrame, nil
}
