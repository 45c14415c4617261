package presentation

import (
	"context"
	"errors"

	"github.com/tbourn/go-narration-backend/internal/domain"
)

// FallbackAnswerer asks Primary and falls back to Secondary when Primary is
// nil or fails.
type FallbackAnswerer struct {
	Primary   Answerer
	Secondary Answerer
}

// Answer implements Answerer.
func (f FallbackAnswerer) Answer(ctx context.Context, question string, slide domain.Slide, language string) (string, error) {
	var primaryErr error
	if f.Primary != nil {
		a, err := f.Primary.Answer(ctx, question, slide, language)
		if err == nil {
			return a, nil
		}
		primaryErr = err
		if ctx.Err() != nil {
			return "", err
		}
	}
	if f.Secondary == nil {
		if primaryErr == nil {
			primaryErr = errors.New("no answerer configured")
		}
		return "", primaryErr
	}
	a, err := f.Secondary.Answer(ctx, question, slide, language)
	if err != nil {
		return "", errors.Join(primaryErr, err)
	}
	return a, nil
}
