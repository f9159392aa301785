package engine

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyContinuation is returned when the model produced no text.
var ErrEmptyContinuation = errors.New("model returned an empty continuation")

// CompletionGenerator continues prompts with a chat model.
type CompletionGenerator struct {
	model ModelClient
}

// NewCompletionGenerator creates a CompletionGenerator.
func NewCompletionGenerator(mc ModelClient) *CompletionGenerator {
	return &CompletionGenerator{model: mc}
}

func (g *CompletionGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	cont, err := g.model.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	cont = strings.TrimRight(cont, " \n")
	if strings.TrimSpace(cont) == "" {
		return "", ErrEmptyContinuation
	}
	if !strings.HasPrefix(cont, " ") && prompt != "" {
		cont = " " + cont
	}
	return prompt + cont, nil
}
