package ingest

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// ErrInvalidVideoURL is returned when no video ID can be found in a URL.
var ErrInvalidVideoURL = errors.New("invalid YouTube URL")

var videoIDPattern = regexp.MustCompile(`(?:https?://)?(?:www\.|m\.)?(?:youtube\.com/(?:[^/\n\s]+/\S+/|(?:v|e(?:mbed)?|shorts)/|\S*?[?&]v=)|youtu\.be/)([a-zA-Z0-9_-]{11})`)

// VideoID extracts the 11-character video ID from a watch, short, embed or
// youtu.be URL.
func VideoID(rawURL string) (string, error) {
	m := videoIDPattern.FindStringSubmatch(strings.TrimSpace(rawURL))
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidVideoURL, rawURL)
	}
	return m[1], nil
}

// TranscriptConfig configures transcript retrieval.
type TranscriptConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Language string        `yaml:"language"`
	Timeout  time.Duration `yaml:"timeout"`
}

// DefaultTranscriptConfig returns defaults for the public timed-text
// endpoint.
func DefaultTranscriptConfig() TranscriptConfig {
	return TranscriptConfig{
		BaseURL:  "https://video.google.com/timedtext",
		Language: "en",
		Timeout:  15 * time.Second,
	}
}

// TranscriptFetcher downloads video captions.
type TranscriptFetcher struct {
	cfg    TranscriptConfig
	client *http.Client
}

// NewTranscriptFetcher creates a fetcher. A nil client gets one with
// cfg.Timeout.
func NewTranscriptFetcher(cfg TranscriptConfig, client *http.Client) *TranscriptFetcher {
	def := DefaultTranscriptConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Language == "" {
		cfg.Language = def.Language
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &TranscriptFetcher{cfg: cfg, client: client}
}

type timedText struct {
	Lines []struct {
		Text string `xml:",chardata"`
	} `xml:"text"`
}

// Fetch returns the transcript of the video at rawURL as plain text.
func (f *TranscriptFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	id, err := VideoID(rawURL)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(f.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("transcript base url: %w", err)
	}
	q := u.Query()
	q.Set("v", id)
	q.Set("lang", f.cfg.Language)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("transcript request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch transcript for %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch transcript for %s: unexpected status %d", id, resp.StatusCode)
	}

	var tt timedText
	err = xml.NewDecoder(resp.Body).Decode(&tt)
	if errors.Is(err, io.EOF) {
		return "", fmt.Errorf("transcript for %s: %w", id, ErrEmptySource)
	}
	if err != nil {
		return "", fmt.Errorf("parse transcript for %s: %w", id, err)
	}

	parts := make([]string, 0, len(tt.Lines))
	for _, l := range tt.Lines {
		if s := strings.TrimSpace(html.UnescapeString(l.Text)); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("transcript for %s: %w", id, ErrEmptySource)
	}
	return strings.Join(parts, " "), nil
}
