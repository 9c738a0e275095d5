// Package search looks up web snippets used as secondary lesson grounding.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Result is one web search hit.
type Result struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// Config configures the DuckDuckGo client.
type Config struct {
	Enabled    bool          `yaml:"enabled"`
	BaseURL    string        `yaml:"base_url"`
	MaxResults int           `yaml:"max_results"`
	MaxSnippet int           `yaml:"max_snippet"`
	Timeout    time.Duration `yaml:"timeout"`
}

// DefaultConfig returns defaults pointing at the public instant-answer API.
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		BaseURL:    "https://api.duckduckgo.com/",
		MaxResults: 3,
		MaxSnippet: 2000,
		Timeout:    10 * time.Second,
	}
}

// DuckDuckGo queries the DuckDuckGo instant-answer API.
type DuckDuckGo struct {
	cfg    Config
	client *http.Client
}

// NewDuckDuckGo creates a client. A nil http.Client gets one with
// cfg.Timeout.
func NewDuckDuckGo(cfg Config, client *http.Client) *DuckDuckGo {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig().BaseURL
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultConfig().MaxResults
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &DuckDuckGo{cfg: cfg, client: client}
}

type instantAnswer struct {
	Heading      string  `json:"Heading"`
	AbstractText string  `json:"AbstractText"`
	AbstractURL  string  `json:"AbstractURL"`
	Related      []topic `json:"RelatedTopics"`
}

type topic struct {
	Text     string  `json:"Text"`
	FirstURL string  `json:"FirstURL"`
	Topics   []topic `json:"Topics"`
}

// Search returns up to MaxResults snippets for query. An empty result set
// is not an error.
func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search: empty query")
	}

	u, err := url.Parse(d.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("search: parse base url: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")
	q.Set("skip_disambig", "1")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "tutorly")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search: unexpected status %d", resp.StatusCode)
	}

	var ia instantAnswer
	if err := json.NewDecoder(resp.Body).Decode(&ia); err != nil {
		return nil, fmt.Errorf("search: decode response: %w", err)
	}

	var results []Result
	add := func(title, text, link string) {
		text = strings.TrimSpace(text)
		if text == "" || len(results) >= d.cfg.MaxResults {
			return
		}
		results = append(results, Result{Title: title, Snippet: d.clip(text), URL: link})
	}

	add(ia.Heading, ia.AbstractText, ia.AbstractURL)
	for _, t := range flatten(ia.Related) {
		add(t.Text, t.Text, t.FirstURL)
	}
	return results, nil
}

func (d *DuckDuckGo) clip(s string) string {
	if d.cfg.MaxSnippet <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= d.cfg.MaxSnippet {
		return s
	}
	return string(r[:d.cfg.MaxSnippet])
}

// flatten expands grouped related topics in order.
func flatten(topics []topic) []topic {
	var out []topic
	for _, t := range topics {
		if len(t.Topics) > 0 {
			out = append(out, flatten(t.Topics)...)
			continue
		}
		out = append(out, t)
	}
	return out
}
