package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/prize-competition/internal/middleware"
	"github.com/iliyamo/prize-competition/internal/quiz"
	"github.com/iliyamo/prize-competition/internal/repository"
)

// QuestionHandler validates skill-question answers.  Wrong answers run
// through the attempt tracker; a correct one sets the passed flag that
// checkout requires.  The accepted answer is compared case-insensitively
// after trimming.
type QuestionHandler struct {
	Tracker      *quiz.Tracker
	Competitions *repository.CompetitionRepo
}

func NewQuestionHandler(tracker *quiz.Tracker, competitions *repository.CompetitionRepo) *QuestionHandler {
	return &QuestionHandler{Tracker: tracker, Competitions: competitions}
}

// SubmitAnswer handles POST /v1/competitions/:id/answer.
func (h *QuestionHandler) SubmitAnswer(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	competitionID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || competitionID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid competition id"})
	}

	var req struct {
		Answer string `json:"answer"`
	}
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Answer) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "answer is required"})
	}

	ctx := c.Request().Context()
	comp, err := h.Competitions.GetByID(ctx, competitionID)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "competition not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	status, err := h.Tracker.CheckBlocked(ctx, competitionID, userID)
	if err != nil {
		return storeFailure(c, err)
	}
	if status.Blocked {
		return c.JSON(http.StatusTooManyRequests, echo.Map{
			"correct":           false,
			"blocked":           true,
			"message":           "too many wrong answers, try again later",
			"remaining_seconds": int(status.Remaining.Seconds()),
		})
	}

	given := strings.ToLower(strings.TrimSpace(req.Answer))
	if given == strings.ToLower(strings.TrimSpace(comp.Answer)) {
		if err := h.Tracker.MarkPassed(ctx, competitionID, userID); err != nil {
			return storeFailure(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{
			"correct": true,
			"message": "correct, you can proceed to checkout",
		})
	}

	attempt, err := h.Tracker.RecordAttempt(ctx, competitionID, userID)
	if err != nil {
		return storeFailure(c, err)
	}
	if attempt.Blocked {
		return c.JSON(http.StatusTooManyRequests, echo.Map{
			"correct":     false,
			"blocked":     true,
			"message":     "too many wrong answers, try again later",
			"block_until": attempt.BlockUntil.UTC(),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"correct":            false,
		"blocked":            false,
		"message":            "wrong answer",
		"attempts_remaining": attempt.MaxAttempts - attempt.Attempts,
	})
}

// AnswerStatus handles GET /v1/competitions/:id/answer/status, letting
// the UI decide whether to show the question, a lockout countdown, or
// the checkout button.
func (h *QuestionHandler) AnswerStatus(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	competitionID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || competitionID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid competition id"})
	}

	ctx := c.Request().Context()
	passed, err := h.Tracker.HasPassed(ctx, competitionID, userID)
	if err != nil {
		return storeFailure(c, err)
	}
	status, err := h.Tracker.CheckBlocked(ctx, competitionID, userID)
	if err != nil {
		return storeFailure(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"passed":            passed,
		"blocked":           status.Blocked,
		"attempts":          status.Attempts,
		"remaining_seconds": int(status.Remaining.Seconds()),
	})
}
