package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tbourn/go-narration-backend/internal/domain"
)

// Stub is a deterministic offline collaborator. Generated narrations restate
// the slide summary, translations are prefixed with "[lang] ", and answers
// quote the slide topic.
type Stub struct {
	// Delay simulates model latency.
	Delay time.Duration
	// ModelName is returned by Model (default "stub").
	ModelName string
}

// Model returns the configured model name.
func (s *Stub) Model() string {
	if s.ModelName == "" {
		return "stub"
	}
	return s.ModelName
}

// GenerateNarrations returns one narration per summary.
func (s *Stub) GenerateNarrations(ctx context.Context, summaries []string, language string) ([]string, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	out := make([]string, len(summaries))
	for i, sm := range summaries {
		out[i] = fmt.Sprintf("[%s] In this part we look at %s", language, strings.TrimSpace(sm))
	}
	return out, nil
}

// Translate prefixes every text with the target language.
func (s *Stub) Translate(ctx context.Context, texts []string, targetLanguage string) ([]string, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = "[" + targetLanguage + "] " + t
	}
	return out, nil
}

// Answer returns a fixed reply naming the slide topic.
func (s *Stub) Answer(ctx context.Context, question string, slide domain.Slide, language string) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	topic := strings.TrimSpace(slide.Topic)
	if topic == "" {
		topic = "this slide"
	}
	return fmt.Sprintf("Good question. %s covers this in more detail.", topic), nil
}

func (s *Stub) wait(ctx context.Context) error {
	if s.Delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(s.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
