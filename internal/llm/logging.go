package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/abhisek/tutorly/internal/store"
)

// LLMEventRecorder persists one record per generation call.
type LLMEventRecorder interface {
	AppendLLMRequest(ctx context.Context, data store.LLMRequestEventData) error
}

// LoggingProvider is a decorator that records every generation call as an
// event and logs failures.
type LoggingProvider struct {
	inner  Provider
	events LLMEventRecorder
	logger hclog.Logger
}

// WithLogging wraps a Provider with event logging. A nil recorder disables
// event persistence; a nil logger discards log output.
func WithLogging(p Provider, events LLMEventRecorder, logger hclog.Logger) Provider {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &LoggingProvider{inner: p, events: events, logger: logger.Named("llm")}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	purpose := PurposeFrom(ctx)

	resp, err := l.inner.Generate(ctx, req)

	latencyMs := time.Since(start).Milliseconds()

	data := store.LLMRequestEventData{
		Provider:    l.inner.ModelID(),
		Model:       l.inner.ModelID(),
		Purpose:     purpose,
		SessionID:   SessionFrom(ctx),
		LatencyMs:   latencyMs,
		Success:     err == nil,
		RequestBody: serializeRequest(req),
	}

	if resp != nil {
		data.InputTokens = resp.Usage.InputTokens
		data.OutputTokens = resp.Usage.OutputTokens
		data.Model = resp.Model
		data.ResponseBody = string(resp.Content)
	}

	if err != nil {
		data.ErrorMessage = err.Error()
		l.logger.Warn("generation failed", "purpose", purpose, "latency_ms", latencyMs, "error", err)
	} else {
		l.logger.Debug("generation complete", "purpose", purpose, "latency_ms", latencyMs,
			"input_tokens", data.InputTokens, "output_tokens", data.OutputTokens)
	}

	if l.events != nil {
		// Use a detached context so a cancelled request is still recorded.
		if logErr := l.events.AppendLLMRequest(context.WithoutCancel(ctx), data); logErr != nil {
			l.logger.Warn("failed to record LLM request event", "error", logErr)
		}
	}

	return resp, err
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}

// serializeRequest builds a readable representation of the request.
func serializeRequest(req Request) string {
	var b strings.Builder

	if req.System != "" {
		b.WriteString("[system]\n")
		b.WriteString(req.System)
		b.WriteString("\n\n")
	}

	for _, m := range req.Messages {
		b.WriteString(fmt.Sprintf("[%s]\n", m.Role))
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}

	if req.Schema != nil {
		schemaDef, err := json.Marshal(req.Schema.Definition)
		if err == nil {
			b.WriteString(fmt.Sprintf("[schema: %s]\n", req.Schema.Name))
			b.WriteString(string(schemaDef))
			b.WriteString("\n")
		}
	}

	return b.String()
}
