// Package avatar drives a streaming talking-head avatar. HeyGen talks to the
// HeyGen streaming REST API; Recorder is an in-memory stand-in.
package avatar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Defaults for Config.
const (
	DefaultBaseURL     = "https://api.heygen.com"
	DefaultIdleTimeout = 180 * time.Second
	DefaultQuality     = "medium"
	DefaultTimeout     = 30 * time.Second
	FallbackLanguage   = "en"
)

// Errors.
var (
	ErrMissingAPIKey   = errors.New("avatar: missing HeyGen API key")
	ErrUnknownSession  = errors.New("avatar: unknown session")
	ErrNoToken         = errors.New("avatar: token missing in response")
	ErrSessionNotReady = errors.New("avatar: session id missing in response")
)

// Options selects the avatar and voice for a new stream.
type Options struct {
	AvatarName string
	Language   string
}

// Session describes a started stream. URL and AccessToken let a browser join
// the media room.
type Session struct {
	ID          string `json:"id"`
	URL         string `json:"url,omitempty"`
	AccessToken string `json:"accessToken,omitempty"`
	Language    string `json:"language"`
	VoiceID     string `json:"voiceId,omitempty"`
}

// Config configures a HeyGen client.
type Config struct {
	APIKey      string
	BaseURL     string
	Quality     string
	IdleTimeout time.Duration
	Timeout     time.Duration

	// Voices maps a language code to a voice id. Languages without a voice
	// use the "en" voice and speak English.
	Voices map[string]string

	HTTPClient *http.Client
}

// HeyGen is a streaming avatar client. Safe for concurrent use.
type HeyGen struct {
	cfg  Config
	http *http.Client
	log  zerolog.Logger

	mu     sync.Mutex
	tokens map[string]string // session id -> bearer token
}

// NewHeyGen validates cfg and returns a client.
func NewHeyGen(cfg Config, lg zerolog.Logger) (*HeyGen, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Quality == "" {
		cfg.Quality = DefaultQuality
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &HeyGen{
		cfg:    cfg,
		http:   hc,
		log:    lg.With().Str("component", "heygen").Logger(),
		tokens: make(map[string]string),
	}, nil
}

// Voice resolves the voice id and effective language for lang.
func Voice(voices map[string]string, lang string) (voiceID, language string) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if v, ok := voices[lang]; ok && v != "" {
		return v, lang
	}
	return voices[FallbackLanguage], FallbackLanguage
}

// CreateToken issues a short-lived streaming token.
func (h *HeyGen) CreateToken(ctx context.Context) (string, error) {
	var out struct {
		AccessToken string `json:"access_token"`
		Data        struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := h.do(ctx, "/v1/streaming.create_token", nil, "", &out); err != nil {
		return "", err
	}
	switch {
	case out.AccessToken != "":
		return out.AccessToken, nil
	case out.Data.Token != "":
		return out.Data.Token, nil
	}
	return "", ErrNoToken
}

// Connect creates and starts a new stream.
func (h *HeyGen) Connect(ctx context.Context, opts Options) (Session, error) {
	token, err := h.CreateToken(ctx)
	if err != nil {
		return Session{}, err
	}

	voiceID, lang := Voice(h.cfg.Voices, opts.Language)
	body := map[string]any{
		"quality":               h.cfg.Quality,
		"avatar_name":           opts.AvatarName,
		"language":              lang,
		"version":               "v2",
		"activity_idle_timeout": int(h.cfg.IdleTimeout / time.Second),
	}
	if voiceID != "" {
		body["voice"] = map[string]any{"voice_id": voiceID}
	}

	var created struct {
		Data struct {
			SessionID   string `json:"session_id"`
			URL         string `json:"url"`
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	if err := h.do(ctx, "/v1/streaming.new", body, token, &created); err != nil {
		return Session{}, err
	}
	sid := created.Data.SessionID
	if sid == "" {
		return Session{}, ErrSessionNotReady
	}
	if err := h.do(ctx, "/v1/streaming.start", map[string]any{"session_id": sid}, token, nil); err != nil {
		return Session{}, err
	}

	h.mu.Lock()
	h.tokens[sid] = token
	h.mu.Unlock()

	h.log.Info().Str("session_id", sid).Str("language", lang).Msg("avatar stream started")
	return Session{
		ID:          sid,
		URL:         created.Data.URL,
		AccessToken: created.Data.AccessToken,
		Language:    lang,
		VoiceID:     voiceID,
	}, nil
}

// Speak makes the avatar repeat text verbatim.
func (h *HeyGen) Speak(ctx context.Context, sessionID, text string) error {
	token, err := h.token(sessionID)
	if err != nil {
		return err
	}
	return h.do(ctx, "/v1/streaming.task", map[string]any{
		"session_id": sessionID,
		"text":       text,
		"task_type":  "repeat",
	}, token, nil)
}

// Interrupt stops in-flight speech.
func (h *HeyGen) Interrupt(ctx context.Context, sessionID string) error {
	token, err := h.token(sessionID)
	if err != nil {
		return err
	}
	return h.do(ctx, "/v1/streaming.interrupt", map[string]any{"session_id": sessionID}, token, nil)
}

// Disconnect stops the stream. The session is forgotten even if the call fails.
func (h *HeyGen) Disconnect(ctx context.Context, sessionID string) error {
	token, err := h.token(sessionID)
	if err != nil {
		return err
	}
	h.mu.Lock()
	delete(h.tokens, sessionID)
	h.mu.Unlock()
	return h.do(ctx, "/v1/streaming.stop", map[string]any{"session_id": sessionID}, token, nil)
}

func (h *HeyGen) token(sessionID string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.tokens[sessionID]
	if !ok {
		return "", ErrUnknownSession
	}
	return t, nil
}

// HTTPError is a non-2xx response from the API.
type HTTPError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("heygen %s: http %d: %s", e.Path, e.StatusCode, e.Body)
}

// do POSTs body to path. With a bearer token it authenticates as the session,
// otherwise with the API key.
func (h *HeyGen) do(ctx context.Context, path string, body any, bearer string, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.BaseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	} else {
		req.Header.Set("x-api-key", h.cfg.APIKey)
	}

	resp, err := h.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(raw)
		if len(msg) > 512 {
			msg = msg[:512]
		}
		return &HTTPError{Path: path, StatusCode: resp.StatusCode, Body: msg}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("heygen %s: decode: %w", path, err)
	}
	return nil
}
