package cmd

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/abhisek/tutorly/internal/config"
	"github.com/abhisek/tutorly/internal/events"
	"github.com/abhisek/tutorly/internal/ingest"
	"github.com/abhisek/tutorly/internal/lesson"
	"github.com/abhisek/tutorly/internal/llm"
	"github.com/abhisek/tutorly/internal/metrics"
	"github.com/abhisek/tutorly/internal/quiz"
	"github.com/abhisek/tutorly/internal/search"
	"github.com/abhisek/tutorly/internal/session"
	"github.com/abhisek/tutorly/internal/store"
)

// app holds the dependencies shared by every command that runs sessions.
type app struct {
	cfg      config.Config
	logger   hclog.Logger
	store    *store.Store
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	manager  *session.Manager
	sources  *ingest.Service

	publisher *events.Publisher
}

// newApp opens the store, builds the LLM provider and wires the session
// manager with its observers.
func newApp(cmd *cobra.Command) (*app, error) {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger()

	llmCfg, ok := llm.Discover(cfg.LLM)
	if !ok {
		return nil, fmt.Errorf("LLM provider not configured: %w", cfg.LLM.Validate())
	}

	dbPath, err := resolveDBPath(cmd, cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve DB path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		registry: prometheus.NewRegistry(),
	}
	a.metrics = metrics.New(a.registry)

	provider, err := llm.NewProvider(ctx, llmCfg, st.EventRepo(), logger)
	if err != nil {
		st.Close()
		return nil, err
	}
	provider = a.metrics.Instrument(provider)

	observers := session.MultiObserver{
		events.NewRecorder(st.EventRepo(), logger),
		a.metrics,
	}
	if cfg.AMQP.Enabled() {
		pub, err := events.NewPublisher(cfg.AMQP, logger)
		if err != nil {
			logger.Warn("transition publishing disabled", "error", err)
		} else {
			a.publisher = pub
			observers = append(observers, pub)
		}
	}

	deps := session.ManagerDeps{
		Planner:  lesson.NewPlanner(provider, cfg.Lesson),
		Quizzes:  quiz.NewEngine(provider, cfg.Quiz),
		Store:    st.SnapshotRepo(),
		Identity: st.LevelRepo(),
		Observer: observers,
		Logger:   logger,
	}
	if cfg.Search.Enabled {
		deps.Searcher = search.NewDuckDuckGo(cfg.Search, nil)
	}

	a.manager, err = session.NewManager(deps, cfg.Session)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.sources = ingest.NewService(
		ingest.NewTranscriptFetcher(cfg.Transcript, nil),
		ingest.NewDigester(provider, cfg.Digest),
	)
	return a, nil
}

func (a *app) Close() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	a.store.Close()
}

// resume loads the session named by --session, or the most recently
// updated one.
func (a *app) resume(cmd *cobra.Command) (*session.Session, error) {
	ctx := cmd.Context()
	id, _ := cmd.Flags().GetString("session")
	if id == "" {
		latest, err := a.store.SnapshotRepo().ListSessions(ctx, 1)
		if err != nil {
			return nil, err
		}
		if len(latest) == 0 {
			return nil, errors.New("no sessions yet; run `tutorly start` first")
		}
		id = latest[0].SessionID
	}
	return a.manager.Resume(ctx, id)
}

// sessionCommand wraps a command body that operates on one session.
func sessionCommand(run func(cmd *cobra.Command, args []string, a *app, s *session.Session) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.resume(cmd)
		if err != nil {
			return err
		}
		return run(cmd, args, a, s)
	}
}
