// Package services – DeckService
//
// This file implements DeckService, the slide store. A deck and its slides
// are created together in one transaction; slides are never edited
// afterwards and are removed only with their deck. Slide order is the
// playback order defined by domain.SortSlides.
package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-narration-backend/internal/domain"
)

// DeckRepo defines the repository contract required by DeckService.
type DeckRepo interface {
	// CreateDeck inserts a deck together with its slides.
	CreateDeck(ctx context.Context, db *gorm.DB, d *domain.Deck) error

	// GetDeck fetches a deck by ID.
	GetDeck(ctx context.Context, db *gorm.DB, id string) (*domain.Deck, error)

	// CountDecks returns the total number of decks for pagination.
	CountDecks(ctx context.Context, db *gorm.DB) (int64, error)

	// ListDecksPage returns a page of decks, newest first.
	ListDecksPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Deck, error)

	// DeleteDecks removes decks and everything they own.
	DeleteDecks(ctx context.Context, db *gorm.DB, ids []string) (int64, error)

	// ListSlides returns the slides of a deck in playback order.
	ListSlides(ctx context.Context, db *gorm.DB, deckID string) ([]domain.Slide, error)
}

// SlideInput is one slide of a CreateDeckInput.
type SlideInput struct {
	Alt     string `json:"alt"`
	Topic   string `json:"topic"`
	Content string `json:"content"`
	Image   string `json:"image"`
}

// CreateDeckInput describes a new deck with its ordered slides.
type CreateDeckInput struct {
	Title   string       `json:"title"`
	Avatar  string       `json:"avatar"`
	FileURL string       `json:"fileUrl"`
	Slides  []SlideInput `json:"slides"`
}

// Validate checks required fields and bounds.
func (in CreateDeckInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.By(notBlank), validation.RuneLength(0, 255)),
		validation.Field(&in.Avatar, validation.By(notBlank), validation.RuneLength(0, 128)),
		validation.Field(&in.Slides, validation.Required.Error(ErrNoSlides.Error())),
	)
}

// DeckService provides deck and slide operations.
type DeckService struct {
	DB   *gorm.DB
	Repo DeckRepo

	// PublicBaseURL prefixes presentation links ("<base>/?deck=<id>").
	PublicBaseURL string
	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int

	// Cache, when set, is invalidated for every deleted deck.
	Cache NarrationCache
	Log   zerolog.Logger
}

// NewDeckService constructs a DeckService with default title handling.
func NewDeckService(db *gorm.DB, r DeckRepo, publicBaseURL string) *DeckService {
	return &DeckService{
		DB:            db,
		Repo:          r,
		PublicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		TitleMaxLen:   255,
	}
}

// Create validates in and persists the deck with its slides. Missing slide
// labels default to "<title> - Slide N" and missing topics to "Slide N".
func (s *DeckService) Create(ctx context.Context, in CreateDeckInput) (*domain.Deck, error) {
	tr := otel.Tracer("services/DeckService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.Int("slides", len(in.Slides))),
	)
	defer span.End()

	in.Title = s.clip(normalizeTitle(in.Title))
	in.Avatar = strings.TrimSpace(in.Avatar)
	if err := in.Validate(); err != nil {
		return nil, toValidationError(err)
	}

	id := uuid.NewString()
	d := &domain.Deck{
		ID:              id,
		Title:           in.Title,
		Avatar:          in.Avatar,
		FileURL:         strings.TrimSpace(in.FileURL),
		PresentationURL: s.presentationURL(id),
		Slides:          make([]domain.Slide, 0, len(in.Slides)),
	}
	for i, si := range in.Slides {
		n := i + 1
		alt := strings.TrimSpace(si.Alt)
		if alt == "" {
			alt = fmt.Sprintf("%s - Slide %d", in.Title, n)
		}
		topic := strings.TrimSpace(si.Topic)
		if topic == "" {
			topic = fmt.Sprintf("Slide %d", n)
		}
		d.Slides = append(d.Slides, domain.Slide{
			Position: i,
			Alt:      alt,
			Topic:    topic,
			Content:  si.Content,
			Image:    si.Image,
		})
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.Repo.CreateDeck(ctx, tx, d)
	})
	if err != nil {
		return nil, infra("create deck", err)
	}
	domain.SortSlides(d.Slides)
	span.SetAttributes(attribute.String("deck.id", id))
	return d, nil
}

// Get returns a deck with its slides in playback order.
func (s *DeckService) Get(ctx context.Context, id string) (*domain.Deck, error) {
	tr := otel.Tracer("services/DeckService")
	ctx, span := tr.Start(ctx, "Get", trace.WithAttributes(attribute.String("deck.id", id)))
	defer span.End()

	d, err := s.Repo.GetDeck(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeckNotFound
		}
		return nil, infra("get deck", err)
	}
	slides, err := s.Repo.ListSlides(ctx, s.DB, id)
	if err != nil {
		return nil, infra("list slides", err)
	}
	d.Slides = slides
	return d, nil
}

// Slides returns the ordered slides of a deck, or ErrDeckNotFound.
func (s *DeckService) Slides(ctx context.Context, deckID string) ([]domain.Slide, error) {
	d, err := s.Get(ctx, deckID)
	if err != nil {
		return nil, err
	}
	return d.Slides, nil
}

// ListPage returns a page of decks (without slides) and the total count.
// It applies defaults for invalid page/pageSize.
func (s *DeckService) ListPage(ctx context.Context, page, pageSize int) ([]domain.Deck, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountDecks(ctx, s.DB)
	if err != nil {
		return nil, 0, infra("count decks", err)
	}
	if total == 0 {
		return []domain.Deck{}, 0, nil
	}
	items, err := s.Repo.ListDecksPage(ctx, s.DB, offset, pageSize)
	if err != nil {
		return nil, 0, infra("list decks", err)
	}
	return items, total, nil
}

// Delete removes a deck with its slides, narrations and questions.
func (s *DeckService) Delete(ctx context.Context, id string) error {
	n, err := s.BulkDelete(ctx, []string{id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDeckNotFound
	}
	return nil
}

// BulkDelete removes every deck in ids and returns how many existed.
func (s *DeckService) BulkDelete(ctx context.Context, ids []string) (int64, error) {
	tr := otel.Tracer("services/DeckService")
	ctx, span := tr.Start(ctx, "BulkDelete", trace.WithAttributes(attribute.Int("ids", len(ids))))
	defer span.End()

	clean := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			clean = append(clean, id)
		}
	}
	if len(clean) == 0 {
		return 0, &ValidationError{Field: "ids", Message: "at least one deck id is required"}
	}
	n, err := s.Repo.DeleteDecks(ctx, s.DB, clean)
	if err != nil {
		return 0, infra("delete decks", err)
	}
	if s.Cache != nil {
		for _, id := range clean {
			if err := s.Cache.InvalidateDeck(ctx, id); err != nil {
				s.Log.Warn().Err(err).Str("deck_id", id).Msg("narration cache invalidation failed")
			}
		}
	}
	return n, nil
}

func (s *DeckService) presentationURL(id string) string {
	return s.PublicBaseURL + "/?deck=" + id
}

// clip truncates a title to the configured maximum rune length.
func (s *DeckService) clip(title string) string {
	if s.TitleMaxLen > 0 && utf8.RuneCountInString(title) > s.TitleMaxLen {
		return string([]rune(title)[:s.TitleMaxLen])
	}
	return title
}

// normalizeTitle trims whitespace and collapses multiple spaces to one.
func normalizeTitle(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
