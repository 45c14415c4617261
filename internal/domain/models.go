// Package domain defines the persistence models for decks, slides, narrations
// and audience questions. These types are mapped with GORM and form the core
// data layer of the narration backend.
package domain

import (
	"regexp"
	"sort"
	"strconv"
	"time"
)

// Narration lifecycle and provenance values.
const (
	NarrationStatusReady = "ready"

	// NarrationModelManual marks rows saved by a person rather than a generator.
	NarrationModelManual = "manual"

	// DefaultLanguage is applied to narration items that omit a language.
	DefaultLanguage = "en"

	// MaxNarrationRunes caps narration text length.
	MaxNarrationRunes = 4000
)

// Deck is a named, ordered collection of slides presented by an avatar.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Title: human-readable deck title.
//   - Avatar: identifier of the avatar selected for playback.
//   - FileURL: optional source file reference (e.g. uploaded PDF blob URL).
//   - PresentationURL: public link to the presentation page.
//   - Slides: owned slides; destroyed with the deck.
//   - Questions: owned audience questions; destroyed with the deck.
type Deck struct {
	ID              string    `json:"id"               gorm:"type:char(36);primaryKey"`
	Title           string    `json:"title"            gorm:"type:varchar(255);not null"`
	Avatar          string    `json:"avatar"           gorm:"type:varchar(128);not null"`
	FileURL         string    `json:"file_url"         gorm:"type:text;not null;default:''"`
	PresentationURL string    `json:"presentation_url" gorm:"type:text;not null;default:''"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	Slides    []Slide    `json:"slides,omitempty" gorm:"foreignKey:DeckID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Questions []Question `json:"-"                gorm:"foreignKey:DeckID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Deck.
func (Deck) TableName() string { return "decks" }

// Slide is one unit of presented content. Its integer ID is stable across
// edits; Position and Alt determine playback order.
type Slide struct {
	ID       int    `json:"id"       gorm:"primaryKey;autoIncrement"`
	DeckID   string `json:"deck_id"  gorm:"type:char(36);not null;index:idx_deck_slides,priority:1"`
	Position int    `json:"position" gorm:"not null;default:0;index:idx_deck_slides,priority:2"`
	Alt      string `json:"alt"      gorm:"type:varchar(512);not null;default:''"`
	Topic    string `json:"topic"    gorm:"type:text;not null;default:''"`
	Content  string `json:"content"  gorm:"type:text;not null;default:''"`
	Image    string `json:"image"    gorm:"type:text;not null;default:''"`
}

// TableName returns the database table name for Slide.
func (Slide) TableName() string { return "slides" }

// Narration is language-specific spoken text attached to a slide.
//
// At most one row per (SlideID, Language) has IsActive set; the partial
// unique index ux_narrations_active backs that up in the database. Rows are
// never physically deleted except through the owning deck.
type Narration struct {
	ID        int       `json:"id"         gorm:"primaryKey;autoIncrement"`
	SlideID   int       `json:"slide_id"   gorm:"not null;index:idx_narr_lookup,priority:1;uniqueIndex:ux_narrations_active,where:is_active"`
	Language  string    `json:"language"   gorm:"type:varchar(16);not null;index:idx_narr_lookup,priority:2;uniqueIndex:ux_narrations_active"`
	Text      string    `json:"text"       gorm:"type:text;not null"`
	IsActive  bool      `json:"is_active"  gorm:"not null"`
	Version   int       `json:"version"    gorm:"not null;index:idx_narr_lookup,priority:3"`
	Status    string    `json:"status"     gorm:"type:varchar(16);not null"`
	Model     string    `json:"model"      gorm:"type:varchar(64);not null;default:''"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Slide is the narrated slide. Narrations are cascade-deleted with it.
	Slide *Slide `json:"slide,omitempty" gorm:"foreignKey:SlideID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Narration.
func (Narration) TableName() string { return "narrations" }

// Question is an audience question recorded during playback. SlideID is only
// set when the referenced slide existed in the deck at write time.
type Question struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	DeckID    string    `json:"deck_id"    gorm:"type:char(36);not null;index:idx_deck_questions,priority:1"`
	SlideID   *int      `json:"slide_id"   gorm:"index"`
	Text      string    `json:"text"       gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_deck_questions,priority:2"`

	Slide *Slide `json:"slide,omitempty" gorm:"foreignKey:SlideID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

// TableName returns the database table name for Question.
func (Question) TableName() string { return "questions" }

// slideNumberRE extracts the page number from labels like "Intro - Slide 3"
// or "PDF page 12".
var slideNumberRE = regexp.MustCompile(`(?i)\b(?:slide|page)\s+(\d+)`)

// SlideNumber returns the page number embedded in an alt label, or 0.
func SlideNumber(alt string) int {
	m := slideNumberRE.FindStringSubmatch(alt)
	if len(m) < 2 {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// SortSlides orders slides for playback: by the number in Alt when both
// slides carry one, then by Position, then by ID.
func SortSlides(slides []Slide) {
	sort.SliceStable(slides, func(i, j int) bool {
		a, b := slides[i], slides[j]
		na, nb := SlideNumber(a.Alt), SlideNumber(b.Alt)
		if na > 0 && nb > 0 && na != nb {
			return na < nb
		}
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return a.ID < b.ID
	})
}
