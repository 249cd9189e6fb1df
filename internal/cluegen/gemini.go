// Package cluegen generates song clue matrices with the Gemini
// generateContent API.
package cluegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/dossier/pkg/types"
)

// Defaults for the Gemini client.
const (
	DefaultBaseURL    = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel      = "gemini-2.5-flash"
	DefaultTimeout    = 90 * time.Second
	DefaultMaxRetries = 2
)

// Config holds Gemini client settings.
type Config struct {
	APIKey     string        `mapstructure:"api_key" yaml:"-"`
	Model      string        `mapstructure:"model" yaml:"model"`
	BaseURL    string        `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
}

// ErrNoAPIKey is returned by New when the API key is empty.
var ErrNoAPIKey = errors.New("cluegen: gemini api key is not set")

// Client calls Gemini to build clue matrices.
type Client struct {
	cfg     Config
	http    *http.Client
	log     zerolog.Logger
	backoff func() backoff.BackOff
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithBackOff replaces the retry schedule between failed attempts.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(c *Client) { c.backoff = f }
}

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a Client, filling defaults for unset fields.
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNoAPIKey
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
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	c := &Client{
		cfg:     cfg,
		log:     zerolog.Nop(),
		backoff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: cfg.Timeout}
	}
	c.log = c.log.With().Str("component", "cluegen").Str("model", cfg.Model).Logger()
	return c, nil
}

// Generate asks Gemini for a full matrix for the song and validates that it
// has SegmentCount(duration) segments. Failures wrap ErrExternalService.
func (c *Client) Generate(ctx context.Context, title string, durationSeconds int) (types.ClueMatrix, error) {
	segments := types.SegmentCount(durationSeconds)
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: Prompt(title, segments)}}}},
		GenerationConfig: &generationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   matrixSchema(),
		},
	})
	if err != nil {
		return types.ClueMatrix{}, fmt.Errorf("cluegen: marshal request: %w", err)
	}

	var text string
	attempt := 0
	op := func() error {
		attempt++
		t, err := c.call(ctx, body)
		if err != nil {
			c.log.Warn().Err(err).Int("attempt", attempt).Msg("generateContent failed")
			return err
		}
		text = t
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(c.backoff(), uint64(c.cfg.MaxRetries)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return types.ClueMatrix{}, fmt.Errorf("%w: gemini: %w", types.ErrExternalService, err)
	}

	m, err := ParseMatrix(text)
	if err != nil {
		return types.ClueMatrix{}, fmt.Errorf("%w: %w", types.ErrExternalService, err)
	}
	if m.Segments() != segments {
		return types.ClueMatrix{}, fmt.Errorf("%w: %w: got %d segments, want %d",
			types.ErrExternalService, types.ErrInvalidClueMatrix, m.Segments(), segments)
	}
	c.log.Info().Str("title", title).Int("segments", segments).Int("attempts", attempt).Msg("clue matrix generated")
	return m, nil
}

// call performs one generateContent request. Client errors other than rate
// limiting are permanent.
func (c *Client) call(ctx context.Context, body []byte) (string, error) {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(c.cfg.Model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", backoff.Permanent(err)
		}
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", err
	}

	var out generateResponse
	_ = json.Unmarshal(raw, &out)
	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		err := fmt.Errorf("status %d: %s", resp.StatusCode, msg)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", err
		}
		return "", backoff.Permanent(err)
	}
	if out.Error != nil {
		return "", backoff.Permanent(fmt.Errorf("api error %d: %s", out.Error.Code, out.Error.Message))
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("empty response")
	}
	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}
