// Package recognition identifies audio samples with the ACRCloud identify
// API and serves that lookup over HTTP.
package recognition

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/dossier/pkg/types"
)

const (
	identifyPath     = "/v1/identify"
	dataType         = "audio"
	signatureVersion = "1"
)

// Recognition errors.
var (
	ErrNoMatch       = errors.New("no match found")
	ErrNotConfigured = errors.New("recognition service is not configured")
)

// Config holds ACRCloud credentials.
type Config struct {
	Host         string        `mapstructure:"host" yaml:"host"`
	AccessKey    string        `mapstructure:"access_key" yaml:"-"`
	AccessSecret string        `mapstructure:"access_secret" yaml:"-"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// BaseURL overrides https://<Host>.
	BaseURL string `mapstructure:"base_url" yaml:"base_url,omitempty"`
}

// Match is the first music result for a sample.
type Match struct {
	Title    string
	Artist   string
	Album    string
	ACRID    string
	Offset   int // playback offset of the sample, seconds
	Duration int // track length, seconds
}

// Identifier recognizes an audio sample.
type Identifier interface {
	Identify(ctx context.Context, sample []byte, filename string) (Match, error)
}

// Client calls the ACRCloud identify endpoint.
type Client struct {
	cfg  Config
	http *http.Client
	log  zerolog.Logger
	now  func() time.Time
}

var _ Identifier = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a Client. Host (or BaseURL), AccessKey and AccessSecret are
// required.
func New(cfg Config, opts ...Option) (*Client, error) {
	if (cfg.Host == "" && cfg.BaseURL == "") || cfg.AccessKey == "" || cfg.AccessSecret == "" {
		return nil, ErrNotConfigured
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://" + cfg.Host
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	c := &Client{cfg: cfg, log: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: cfg.Timeout}
	}
	c.log = c.log.With().Str("component", "recognition").Logger()
	return c, nil
}

// Sign returns the base64 HMAC-SHA1 request signature for a timestamp.
func Sign(accessKey, accessSecret string, timestamp int64) string {
	toSign := strings.Join([]string{
		http.MethodPost, identifyPath, accessKey, dataType, signatureVersion, strconv.FormatInt(timestamp, 10),
	}, "\n")
	mac := hmac.New(sha1.New, []byte(accessSecret))
	mac.Write([]byte(toSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Identify uploads the sample and returns the first music match. A non-zero
// service status or an empty music list yields ErrNoMatch. Transport and
// decoding failures wrap ErrExternalService.
func (c *Client) Identify(ctx context.Context, sample []byte, filename string) (Match, error) {
	if len(sample) == 0 {
		return Match{}, fmt.Errorf("%w: empty audio sample", types.ErrValidation)
	}
	if filename == "" {
		filename = "sample.webm"
	}
	ts := c.now().Unix()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("sample", filename)
	if err != nil {
		return Match{}, err
	}
	if _, err := fw.Write(sample); err != nil {
		return Match{}, err
	}
	fields := [][2]string{
		{"access_key", c.cfg.AccessKey},
		{"data_type", dataType},
		{"signature_version", signatureVersion},
		{"signature", Sign(c.cfg.AccessKey, c.cfg.AccessSecret, ts)},
		{"sample_bytes", strconv.Itoa(len(sample))},
		{"timestamp", strconv.FormatInt(ts, 10)},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return Match{}, err
		}
	}
	if err := mw.Close(); err != nil {
		return Match{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+identifyPath, &body)
	if err != nil {
		return Match{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return Match{}, fmt.Errorf("%w: acrcloud: %w", types.ErrExternalService, err)
	}
	defer resp.Body.Close()

	var out identifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return Match{}, fmt.Errorf("%w: acrcloud: status %d: %w", types.ErrExternalService, resp.StatusCode, err)
	}
	if out.Status.Code != 0 || len(out.Metadata.Music) == 0 {
		c.log.Debug().Int("code", out.Status.Code).Str("msg", out.Status.Msg).Msg("no match")
		return Match{}, ErrNoMatch
	}

	m := out.Metadata.Music[0]
	match := Match{
		Title:    m.Title,
		Album:    m.Album.Name,
		ACRID:    m.ACRID,
		Offset:   m.PlayOffsetMs / 1000,
		Duration: m.DurationMs / 1000,
	}
	if len(m.Artists) > 0 {
		match.Artist = m.Artists[0].Name
	}
	c.log.Info().Str("acrid", match.ACRID).Str("title", match.Title).Int("offset", match.Offset).Msg("sample identified")
	return match, nil
}

type identifyResponse struct {
	Status struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	} `json:"status"`
	Metadata struct {
		Music []struct {
			Title   string `json:"title"`
			ACRID   string `json:"acrid"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
			Album struct {
				Name string `json:"name"`
			} `json:"album"`
			PlayOffsetMs int `json:"play_offset_ms"`
			DurationMs   int `json:"duration_ms"`
		} `json:"music"`
	} `json:"metadata"`
}
