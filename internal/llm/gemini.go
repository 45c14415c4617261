// Package llm provides the text collaborators of the narration pipeline:
// narration generation, translation and slide-scoped question answering.
//
// Gemini talks to the Google Generative Language REST API. Stub is a
// deterministic, offline implementation for development and tests.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-narration-backend/internal/domain"
)

// Defaults for Config.
const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-2.5-flash"
	DefaultTimeout = 60 * time.Second
)

// ErrMissingAPIKey is returned by NewGemini without an API key.
var ErrMissingAPIKey = errors.New("llm: missing Gemini API key")

// Config configures a Gemini client.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration

	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// Gemini implements narration generation, translation and answering on top
// of the generateContent endpoint. Safe for concurrent use.
type Gemini struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewGemini validates cfg and returns a client.
func NewGemini(cfg Config, lg zerolog.Logger) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Gemini{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		model:   cfg.Model,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    hc,
		log:     lg.With().Str("component", "gemini").Logger(),
	}, nil
}

// Model returns the model name stored on generated narrations.
func (g *Gemini) Model() string { return g.model }

// GenerateNarrations returns one spoken paragraph per slide summary. The
// response is not length-checked here; callers heal it to the batch size.
func (g *Gemini) GenerateNarrations(ctx context.Context, summaries []string, language string) ([]string, error) {
	if len(summaries) == 0 {
		return []string{}, nil
	}
	prompt := fmt.Sprintf(
		"Generate an engaging narration script in %s based on the following slide contents:\n%s\n"+
			"For each slide, write one narrative paragraph of 4-6 sentences that explains the topic like a "+
			"professor teaching a class. Spell out numbers and technical notation for clear pronunciation. "+
			"Do not mention the slide number. Output ONLY a JSON array of strings with exactly %d items, "+
			"one per slide, in order.",
		strings.ToUpper(language), strings.Join(summaries, "\n"), len(summaries))

	text, err := g.generate(ctx, prompt, true)
	if err != nil {
		return nil, err
	}
	return parseStringArray(text)
}

// Translate translates texts into targetLanguage, keeping order.
func (g *Gemini) Translate(ctx context.Context, texts []string, targetLanguage string) ([]string, error) {
	if len(texts) == 0 {
		return []string{}, nil
	}
	src, err := json.Marshal(texts)
	if err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf(
		"Translate the following array of presentation narration strings into %s. "+
			"Return ONLY a valid JSON array of strings with the same number of items. "+
			"Maintain the tone and length.\n\n%s",
		targetLanguage, src)

	text, err := g.generate(ctx, prompt, true)
	if err != nil {
		return nil, err
	}
	return parseStringArray(text)
}

// Answer answers question from the content of slide, in language.
func (g *Gemini) Answer(ctx context.Context, question string, slide domain.Slide, language string) (string, error) {
	prompt := fmt.Sprintf(
		"You are presenting a slide titled %q with this content:\n%s\n\n"+
			"An audience member asks: %q\n"+
			"Answer in %s in at most three spoken sentences, using only the slide content and general knowledge "+
			"of the topic. Do not use Markdown.",
		slide.Topic, slide.Content, question, language)

	text, err := g.generate(ctx, prompt, false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// ----------------------------------------------------------------------------
// Wire types

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type schema struct {
	Type  string  `json:"type"`
	Items *schema `json:"items,omitempty"`
}

type generationConfig struct {
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
	ResponseSchema   *schema `json:"responseSchema,omitempty"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

// HTTPError is a non-2xx response from the API.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("gemini http %d: %s", e.StatusCode, e.Body)
}

// generate calls generateContent once and returns the concatenated text of
// the first candidate.
func (g *Gemini) generate(ctx context.Context, prompt string, jsonArray bool) (string, error) {
	body := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	}
	if jsonArray {
		body.GenerationConfig = &generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   &schema{Type: "ARRAY", Items: &schema{Type: "STRING"}},
		}
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	start := time.Now()
	resp, err := g.http.Do(req)
	if err != nil {
		return "", err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return "", readErr
	}

	g.log.Debug().
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Int("prompt_len", len(prompt)).
		Msg("generateContent")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &HTTPError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 512)}
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("gemini decode error: %w", err)
	}
	if len(out.Candidates) == 0 {
		return "", errors.New("gemini: empty candidates")
	}
	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", fmt.Errorf("gemini: empty response (finish reason %q)", out.Candidates[0].FinishReason)
	}
	return sb.String(), nil
}

// fenceRE matches Markdown code fences, with or without a language tag.
var fenceRE = regexp.MustCompile("```[a-zA-Z]*")

// StripFences removes Markdown code fences the model sometimes wraps JSON in.
func StripFences(s string) string {
	return strings.TrimSpace(fenceRE.ReplaceAllString(s, ""))
}

// parseStringArray decodes a JSON array of strings after fence stripping.
func parseStringArray(text string) ([]string, error) {
	var out []string
	if err := json.Unmarshal([]byte(StripFences(text)), &out); err != nil {
		return nil, fmt.Errorf("gemini: response is not a JSON string array: %w", err)
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
