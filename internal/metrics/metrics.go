// Package metrics exposes Prometheus instrumentation for sessions and
// generation calls.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/abhisek/tutorly/internal/llm"
	"github.com/abhisek/tutorly/internal/session"
)

// Metrics holds every collector. Register it with its own registry in
// tests to avoid clashing with the default one.
type Metrics struct {
	transitions *prometheus.CounterVec
	completed   prometheus.Counter
	progress    prometheus.Histogram
	generations *prometheus.HistogramVec
	tokens      *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		transitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tutorly_session_transitions_total",
				Help: "Committed session transitions by operation and resulting phase",
			},
			[]string{"op", "phase"},
		),
		completed: f.NewCounter(
			prometheus.CounterOpts{
				Name: "tutorly_sessions_completed_total",
				Help: "Sessions that finished the final quiz",
			},
		),
		progress: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tutorly_session_final_progress_ratio",
				Help:    "Fraction of steps mastered or remediated when a session completes",
				Buckets: prometheus.LinearBuckets(0, 0.25, 5),
			},
		),
		generations: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tutorly_generation_duration_seconds",
				Help:    "Latency of generation calls by purpose and outcome",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"purpose", "status"},
		),
		tokens: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tutorly_generation_tokens_total",
				Help: "Tokens used by generation calls",
			},
			[]string{"purpose", "direction"},
		),
	}
}

// OnTransition implements session.Observer.
func (m *Metrics) OnTransition(ctx context.Context, t session.Transition) {
	m.transitions.WithLabelValues(t.Op, string(t.To)).Inc()
	if t.To == session.PhaseComplete && t.From != session.PhaseComplete {
		m.completed.Inc()
		m.progress.Observe(t.Progress.Fraction)
	}
}

// Instrument wraps p so every call is timed and its tokens counted.
func (m *Metrics) Instrument(p llm.Provider) llm.Provider {
	return &instrumentedProvider{inner: p, m: m}
}

type instrumentedProvider struct {
	inner llm.Provider
	m     *Metrics
}

func (p *instrumentedProvider) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	purpose := llm.PurposeFrom(ctx)
	if purpose == "" {
		purpose = "unknown"
	}

	start := time.Now()
	resp, err := p.inner.Generate(ctx, req)

	p.m.generations.WithLabelValues(purpose, status(err)).Observe(time.Since(start).Seconds())
	if resp != nil {
		p.m.tokens.WithLabelValues(purpose, "input").Add(float64(resp.Usage.InputTokens))
		p.m.tokens.WithLabelValues(purpose, "output").Add(float64(resp.Usage.OutputTokens))
	}
	return resp, err
}

func (p *instrumentedProvider) ModelID() string {
	return p.inner.ModelID()
}

func status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case llm.IsPolicy(err):
		return "policy"
	case llm.IsTransient(err):
		return "transient"
	default:
		return "error"
	}
}
