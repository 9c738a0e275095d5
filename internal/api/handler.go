// Package api serves guided learning sessions over HTTP.
package api

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"

	"github.com/abhisek/tutorly/internal/level"
	"github.com/abhisek/tutorly/internal/quiz"
	"github.com/abhisek/tutorly/internal/session"
)

// LearnerHeader carries the caller-supplied learner identity.
const LearnerHeader = "X-Learner-ID"

// Sources digests learner-supplied material.
type Sources interface {
	FromPDF(ctx context.Context, r io.ReaderAt, size int64) (string, error)
	FromVideo(ctx context.Context, rawURL string) (string, error)
}

// Handler serves the session endpoints.
type Handler struct {
	sessions *session.Manager
	sources  Sources
	logger   hclog.Logger
}

// NewHandler creates a Handler. sources may be nil, which disables the
// source endpoints.
func NewHandler(sessions *session.Manager, sources Sources, logger hclog.Logger) *Handler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Handler{sessions: sessions, sources: sources, logger: logger.Named("api")}
}

// QuestionView is a question without its answer key.
type QuestionView struct {
	ID        string    `json:"id"`
	StepIndex int       `json:"step_index"`
	Prompt    string    `json:"prompt"`
	Kind      quiz.Kind `json:"kind"`
	Options   []string  `json:"options,omitempty"`
}

// QuizView is a quiz as shown to the learner.
type QuizView struct {
	ID        string         `json:"id"`
	Final     bool           `json:"final"`
	Questions []QuestionView `json:"questions"`
}

func viewQuiz(q *quiz.Quiz) QuizView {
	v := QuizView{ID: q.ID, Final: q.Final(), Questions: make([]QuestionView, len(q.Questions))}
	for i, qq := range q.Questions {
		v.Questions[i] = QuestionView{
			ID:        qq.ID,
			StepIndex: qq.StepIndex,
			Prompt:    qq.Prompt,
			Kind:      qq.Kind,
			Options:   qq.Options,
		}
	}
	return v
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "status", status, "error", err)
	} else {
		h.logger.Debug("request rejected", "method", c.Request.Method, "path", c.FullPath(), "status", status, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// learnerID is the caller's identity. Requests without the header act as
// the default local learner.
func learnerID(c *gin.Context) string {
	if id := c.GetHeader(LearnerHeader); id != "" {
		return id
	}
	return session.DefaultLearnerID
}

// session resolves the :id parameter, restoring the session from its
// snapshot when needed. Sessions owned by another learner are reported as
// not found.
func (h *Handler) session(c *gin.Context) (*session.Session, bool) {
	s, err := h.sessions.Resume(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	if learnerID(c) != s.LearnerID() {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	return s, true
}

type startRequest struct {
	Topic        string `json:"topic" binding:"required"`
	Goal         string `json:"goal" binding:"required"`
	Level        string `json:"level"`
	SourceDigest string `json:"source_digest"`
	WebSearch    bool   `json:"web_search"`
}

// StartSession plans a lesson and creates a session.
func (h *Handler) StartSession(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	var lvl level.Level
	if req.Level != "" {
		parsed, err := level.Parse(req.Level)
		if err != nil {
			h.fail(c, err)
			return
		}
		lvl = parsed
	}

	s, err := h.sessions.Start(c.Request.Context(), session.StartInput{
		LearnerID:    learnerID(c),
		Topic:        req.Topic,
		Goal:         req.Goal,
		Level:        lvl,
		SourceDigest: req.SourceDigest,
		WebSearch:    req.WebSearch,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, s.Summary())
}

// GetSession returns the session summary.
func (h *Handler) GetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Summary())
}

// StepContent delivers the current step.
func (h *Handler) StepContent(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	view, err := s.StepContent(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// RevisitStep returns an earlier step.
func (h *Handler) RevisitStep(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "step index must be a number"})
		return
	}
	view, err := s.RevisitStep(index)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type miniQuizRequest struct {
	Regenerate bool `json:"regenerate"`
}

// MiniQuiz returns the current step's mini-quiz.
func (h *Handler) MiniQuiz(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req miniQuizRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
			return
		}
	}
	q, err := s.MiniQuiz(c.Request.Context(), req.Regenerate)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewQuiz(q))
}

// answersRequest accepts answers keyed by question ID, or in question
// order.
type answersRequest struct {
	Answers    map[string]string `json:"answers"`
	Positional []string          `json:"positional"`
}

func (r answersRequest) resolve(q *quiz.Quiz) map[string]string {
	if len(r.Answers) > 0 {
		return r.Answers
	}
	return quiz.AnswersByPosition(q, r.Positional)
}

// SubmitMiniQuiz grades the pending mini-quiz. A remediating step is
// moved back to its quiz first.
func (h *Handler) SubmitMiniQuiz(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req answersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	q, err := s.MiniQuiz(c.Request.Context(), false)
	if err != nil {
		h.fail(c, err)
		return
	}
	answers := req.resolve(q)

	res, err := s.SubmitMiniQuiz(c.Request.Context(), answers)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// FinalQuiz returns the comprehensive quiz.
func (h *Handler) FinalQuiz(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	q, err := s.FinalQuiz(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewQuiz(q))
}

// SubmitFinalQuiz grades the comprehensive quiz.
func (h *Handler) SubmitFinalQuiz(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req answersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	q, err := s.FinalQuiz(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	answers := req.resolve(q)

	res, err := s.SubmitFinalQuiz(c.Request.Context(), answers)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type levelRequest struct {
	Level string `json:"level" binding:"required"`
}

// SetLevel changes the session's knowledge level.
func (h *Handler) SetLevel(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req levelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	lvl, err := level.Parse(req.Level)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.sessions.SetLevel(c.Request.Context(), s.ID(), lvl); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Summary())
}

// Progress returns goal progress.
func (h *Handler) Progress(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Progress())
}

// Attempts returns every quiz attempt.
func (h *Handler) Attempts(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Attempts())
}

// Feedback returns the explanation for one attempt.
func (h *Handler) Feedback(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	fb, err := s.Feedback(c.Request.Context(), c.Param("attemptID"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempt_id": c.Param("attemptID"), "feedback": fb})
}

type askRequest struct {
	Question string `json:"question" binding:"required"`
}

// Ask answers a learner question about the current step.
func (h *Handler) Ask(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	answer, err := s.Ask(c.Request.Context(), req.Question)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer, "phase": s.Phase()})
}

// Conversation returns the session's conversation history.
func (h *Handler) Conversation(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Conversation())
}

// PDFSource digests an uploaded PDF (multipart field "file").
func (h *Handler) PDFSource(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file", "details": err.Error()})
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.fail(c, err)
		return
	}
	defer f.Close()

	digest, err := h.sources.FromPDF(c.Request.Context(), f, fh.Size)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"source_digest": digest})
}

type videoRequest struct {
	URL string `json:"url" binding:"required"`
}

// VideoSource digests a video transcript.
func (h *Handler) VideoSource(c *gin.Context) {
	var req videoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	digest, err := h.sources.FromVideo(c.Request.Context(), req.URL)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"source_digest": digest})
}
