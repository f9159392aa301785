package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/yangwenmai/aiworkspace/internal/files"
	"github.com/yangwenmai/aiworkspace/internal/model"
)

const (
	replyExt  = ".mp3"
	replyLang = "en"
)

// SpeakingAnswerer answers with one of a few canned question/answer pairs
// and speaks the answer through a Synthesizer.
//
// A synthesis failure never fails Ask: the textual answer is still returned,
// AudioFile still names the reply, and AudioAvailable is false.
type SpeakingAnswerer struct {
	Speech  Synthesizer
	Names   ReplyNamer
	Latency time.Duration
}

// NewSpeakingAnswerer creates a SpeakingAnswerer that names replies through names.
func NewSpeakingAnswerer(speech Synthesizer, names ReplyNamer, simulate bool) *SpeakingAnswerer {
	return &SpeakingAnswerer{Speech: speech, Names: names, Latency: latency(simulate, answerLatency)}
}

func (a *SpeakingAnswerer) Ask(ctx context.Context, _ string, outputDir string) (model.Answer, error) {
	if err := sleep(ctx, a.Latency); err != nil {
		return model.Answer{}, err
	}
	pair := qaPairs[rand.IntN(len(qaPairs))]

	name := a.Names.NewName(files.PrefixSpeechReply, replyExt)
	ans := model.Answer{Question: pair[0], Answer: pair[1], AudioFile: name}

	if err := a.speak(ctx, pair[1], filepath.Join(outputDir, name)); err != nil {
		slog.Warn("speech synthesis failed", "audio_file", name, "error", err)
		return ans, nil
	}
	ans.AudioAvailable = true
	return ans, nil
}

func (a *SpeakingAnswerer) speak(ctx context.Context, text, path string) error {
	if a.Speech == nil {
		return fmt.Errorf("no synthesizer configured")
	}
	audio, err := a.Speech.Synthesize(ctx, text, replyLang)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}
	return nil
}
