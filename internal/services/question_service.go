// Package services – QuestionService
//
// QuestionService records audience questions against a deck and, when the
// referenced slide exists in that deck, a slide. References to slides that
// are missing or belong to another deck are dropped with a warning instead
// of failing the write.
package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-narration-backend/internal/domain"
	"github.com/tbourn/go-narration-backend/internal/repo"
)

// MaxQuestionRunes caps question text length.
const MaxQuestionRunes = 2000

// QuestionService manages the append-only question log.
type QuestionService struct {
	DB  *gorm.DB
	Log zerolog.Logger
}

// Record validates and stores a question. slideID may be nil.
func (s *QuestionService) Record(ctx context.Context, deckID string, slideID *int, text string) (*domain.Question, error) {
	tr := otel.Tracer("services/QuestionService")
	ctx, span := tr.Start(ctx, "Record",
		trace.WithAttributes(attribute.String("deck.id", deckID)),
	)
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if utf8.RuneCountInString(text) > MaxQuestionRunes {
		return nil, ErrTooLong
	}

	ok, err := repo.DeckExists(ctx, s.DB, deckID)
	if err != nil {
		return nil, infra("load deck", err)
	}
	if !ok {
		return nil, ErrDeckNotFound
	}

	var ref *int
	if slideID != nil {
		in, err := repo.SlideInDeck(ctx, s.DB, *slideID, deckID)
		switch {
		case err != nil:
			return nil, infra("load slide", err)
		case in:
			v := *slideID
			ref = &v
		default:
			s.Log.Warn().
				Str("deck_id", deckID).
				Int("slide_id", *slideID).
				Msg("question references unknown slide; storing without slide link")
		}
	}

	q, err := repo.CreateQuestion(ctx, s.DB, deckID, ref, text)
	if err != nil {
		return nil, infra("create question", err)
	}
	return q, nil
}

// ListByDeck returns a deck's questions, newest first.
func (s *QuestionService) ListByDeck(ctx context.Context, deckID string) ([]domain.Question, error) {
	tr := otel.Tracer("services/QuestionService")
	ctx, span := tr.Start(ctx, "ListByDeck",
		trace.WithAttributes(attribute.String("deck.id", deckID)),
	)
	defer span.End()

	ok, err := repo.DeckExists(ctx, s.DB, deckID)
	if err != nil {
		return nil, infra("load deck", err)
	}
	if !ok {
		return nil, ErrDeckNotFound
	}
	out, err := repo.ListQuestionsByDeck(ctx, s.DB, deckID)
	if err != nil {
		return nil, infra("list questions", err)
	}
	return out, nil
}

// Delete removes one question (moderator action).
func (s *QuestionService) Delete(ctx context.Context, id string) error {
	err := repo.DeleteQuestion(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrQuestionNotFound
	}
	if err != nil {
		return infra("delete question", err)
	}
	return nil
}
