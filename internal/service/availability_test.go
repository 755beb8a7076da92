package service

import (
	"lms_backend/internal/model"
	"lms_backend/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCanAttempt(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	before := now.Add(-time.Hour)
	after := now.Add(time.Hour)

	base := func() *model.Quiz {
		return &model.Quiz{IsPublished: true, AttemptsAllowed: 3}
	}

	t.Run("published and open", func(t *testing.T) {
		require.NoError(t, CanAttempt(base(), 0, now))
	})

	t.Run("unpublished", func(t *testing.T) {
		quiz := base()
		quiz.IsPublished = false
		require.ErrorIs(t, CanAttempt(quiz, 0, now), util.ErrQuizNotPublished)
	})

	t.Run("not yet available", func(t *testing.T) {
		quiz := base()
		quiz.AvailableFrom = &after
		require.ErrorIs(t, CanAttempt(quiz, 0, now), util.ErrQuizNotAvailableYet)
	})

	t.Run("window closed", func(t *testing.T) {
		quiz := base()
		quiz.AvailableUntil = &before
		require.ErrorIs(t, CanAttempt(quiz, 0, now), util.ErrQuizNoLongerAvailable)
	})

	t.Run("window boundaries inclusive", func(t *testing.T) {
		quiz := base()
		quiz.AvailableFrom = &now
		quiz.AvailableUntil = &now
		require.NoError(t, CanAttempt(quiz, 0, now))
	})

	t.Run("attempts exhausted", func(t *testing.T) {
		quiz := base()
		require.NoError(t, CanAttempt(quiz, 2, now))
		require.ErrorIs(t, CanAttempt(quiz, 3, now), util.ErrAttemptsExhausted)
	})

	t.Run("unlimited attempts", func(t *testing.T) {
		quiz := base()
		quiz.AttemptsAllowed = 0
		require.NoError(t, CanAttempt(quiz, 1000, now))
	})
}
