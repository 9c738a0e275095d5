package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abhisek/tutorly/internal/llm"
)

// DigestConfig controls how extracted text becomes a source digest.
type DigestConfig struct {
	// MaxDigestChars is the largest text passed through unchanged. Longer
	// text is distilled by the provider.
	MaxDigestChars int `yaml:"max_digest_chars"`

	// ChunkChars is the target size of the chunks sent for distillation.
	ChunkChars int `yaml:"chunk_chars"`

	// BatchChunks is how many chunks go into one distillation call.
	BatchChunks int `yaml:"batch_chunks"`

	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// DefaultDigestConfig returns sensible defaults.
func DefaultDigestConfig() DigestConfig {
	return DigestConfig{
		MaxDigestChars: 6000,
		ChunkChars:     1000,
		BatchChunks:    12,
		MaxTokens:      1024,
		Temperature:    0.2,
	}
}

var DigestSchema = &llm.Schema{
	Name:        "source-digest",
	Description: "Faithful condensed notes of learner-supplied source material",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"digest": map[string]any{
				"type":        "string",
				"description": "Plain-text notes keeping every definition, fact, figure and worked example",
			},
		},
		"required":             []any{"digest"},
		"additionalProperties": false,
	},
}

const digestSystemPrompt = `You condense study material for a tutor. Keep the definitions, facts, numbers and examples the material actually states. Do not add knowledge that is not in the text.`

// Digester distills extracted text into an opaque digest.
type Digester struct {
	provider llm.Provider
	cfg      DigestConfig
}

// NewDigester creates a Digester.
func NewDigester(provider llm.Provider, cfg DigestConfig) *Digester {
	def := DefaultDigestConfig()
	if cfg.ChunkChars <= 0 {
		cfg.ChunkChars = def.ChunkChars
	}
	if cfg.BatchChunks <= 0 {
		cfg.BatchChunks = def.BatchChunks
	}
	if cfg.MaxDigestChars <= 0 {
		cfg.MaxDigestChars = def.MaxDigestChars
	}
	return &Digester{provider: provider, cfg: cfg}
}

// Digest normalizes text and, if it is too long, distills it batch by
// batch. The result is plain text.
func (d *Digester) Digest(ctx context.Context, text string) (string, error) {
	text = normalizeSpace(text)
	if text == "" {
		return "", ErrEmptySource
	}
	if len(text) <= d.cfg.MaxDigestChars {
		return text, nil
	}

	chunks := Chunk(text, d.cfg.ChunkChars)
	var notes []string
	for start := 0; start < len(chunks); start += d.cfg.BatchChunks {
		end := min(start+d.cfg.BatchChunks, len(chunks))
		note, err := d.distill(ctx, chunks[start:end], start, len(chunks))
		if err != nil {
			return "", err
		}
		notes = append(notes, note)
	}

	digest := strings.Join(notes, "\n\n")
	if r := []rune(digest); len(r) > d.cfg.MaxDigestChars {
		digest = string(r[:d.cfg.MaxDigestChars])
	}
	return digest, nil
}

type digestOutput struct {
	Digest string `json:"digest"`
}

func (d *Digester) distill(ctx context.Context, chunks []string, offset, total int) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Source excerpt, parts %d-%d of %d:\n\n", offset+1, offset+len(chunks), total)
	for _, c := range chunks {
		b.WriteString(c)
		b.WriteString("\n\n")
	}
	b.WriteString("Condense these parts into study notes.")

	resp, err := d.provider.Generate(llm.WithPurpose(ctx, llm.PurposeSourceDigest), llm.Request{
		System: digestSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: b.String()},
		},
		Schema:      DigestSchema,
		MaxTokens:   d.cfg.MaxTokens,
		Temperature: d.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("source digest: %w", err)
	}

	var out digestOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return "", fmt.Errorf("parse source digest: %w", err)
	}
	note := strings.TrimSpace(out.Digest)
	if note == "" {
		return "", fmt.Errorf("source digest: empty digest")
	}
	return note, nil
}

// Chunk splits text into pieces of at most size bytes, breaking at spaces
// where possible.
func Chunk(text string, size int) []string {
	var chunks []string
	for len(text) > size {
		cut := strings.LastIndexByte(text[:size+1], ' ')
		if cut <= 0 {
			cut = size
			for cut > 0 && !utf8Start(text[cut]) {
				cut--
			}
			if cut == 0 {
				cut = size
			}
		}
		chunks = append(chunks, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

func utf8Start(b byte) bool { return b&0xC0 != 0x80 }

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
