package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/abhisek/tutorly/internal/ingest"
	"github.com/abhisek/tutorly/internal/lesson"
	"github.com/abhisek/tutorly/internal/level"
	"github.com/abhisek/tutorly/internal/llm"
	"github.com/abhisek/tutorly/internal/quiz"
	"github.com/abhisek/tutorly/internal/session"
)

// statusFor maps an error to the HTTP status reported to the client.
func statusFor(err error) int {
	var (
		ite *session.InvalidTransitionError
		pge *lesson.PlanGenerationError
		cge *lesson.ContentGenerationError
		age *lesson.AnswerGenerationError
		qge *quiz.QuizGenerationError
	)

	switch {
	case errors.Is(err, session.ErrSessionBusy):
		return http.StatusConflict
	case errors.As(err, &ite):
		return http.StatusConflict
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, session.ErrAttemptNotFound),
		errors.Is(err, session.ErrStepOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, lesson.ErrInvalidInput),
		errors.Is(err, level.ErrUnknownLevel),
		errors.Is(err, ingest.ErrEmptySource),
		errors.Is(err, ingest.ErrInvalidVideoURL):
		return http.StatusBadRequest
	case llm.IsPolicy(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case llm.IsTransient(err):
		return http.StatusServiceUnavailable
	case errors.As(err, &pge), errors.As(err, &cge), errors.As(err, &age), errors.As(err, &qge):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
