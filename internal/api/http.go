package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/quizforge/internal/errors"
)

const headerUserID = "X-User-ID"

func (a *API) registerHTTP(r gin.IRouter) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")

	v1.PUT("/documents/:document_id", func(c *gin.Context) {
		var req PutDocumentRequest
		if !bind(c, &req) {
			return
		}
		req.DocumentID = c.Param("document_id")
		respond(c, http.StatusOK, func(ctx context.Context) (any, error) { return a.putDocument(ctx, req) })
	})

	v1.POST("/quizzes", func(c *gin.Context) {
		var req GenerateQuizRequest
		if !bind(c, &req) {
			return
		}
		req.UserID = userID(c, req.UserID)
		respond(c, http.StatusCreated, func(ctx context.Context) (any, error) { return a.generateQuiz(ctx, req) })
	})

	v1.GET("/quizzes/:quiz_id", func(c *gin.Context) {
		req := GetQuizRequest{QuizID: c.Param("quiz_id")}
		respond(c, http.StatusOK, func(ctx context.Context) (any, error) { return a.getQuiz(ctx, req) })
	})

	v1.POST("/quizzes/:quiz_id/sessions", func(c *gin.Context) {
		var req CreateSessionRequest
		if !bind(c, &req) {
			return
		}
		req.QuizID = c.Param("quiz_id")
		req.UserID = userID(c, req.UserID)
		respond(c, http.StatusCreated, func(ctx context.Context) (any, error) { return a.createSession(ctx, req) })
	})

	v1.GET("/quizzes/:quiz_id/leaderboard", func(c *gin.Context) {
		req := GetLeaderboardRequest{QuizID: c.Param("quiz_id")}
		respond(c, http.StatusOK, func(ctx context.Context) (any, error) { return a.getLeaderboard(ctx, req) })
	})

	v1.GET("/sessions/:session_id", func(c *gin.Context) {
		req := GetSessionRequest{SessionID: c.Param("session_id"), UserID: userID(c, c.Query("user_id"))}
		respond(c, http.StatusOK, func(ctx context.Context) (any, error) { return a.getSession(ctx, req) })
	})

	v1.POST("/sessions/:session_id/submit", func(c *gin.Context) {
		var req SubmitAnswersRequest
		if !bind(c, &req) {
			return
		}
		req.SessionID = c.Param("session_id")
		req.UserID = userID(c, req.UserID)
		respond(c, http.StatusOK, func(ctx context.Context) (any, error) { return a.submitAnswers(ctx, req) })
	})

	v1.GET("/sessions/:session_id/result", func(c *gin.Context) {
		req := GetSessionRequest{SessionID: c.Param("session_id"), UserID: userID(c, c.Query("user_id"))}
		respond(c, http.StatusOK, func(ctx context.Context) (any, error) { return a.getResult(ctx, req) })
	})
}

// userID prefers the X-User-ID header over the identity carried by the request itself.
func userID(c *gin.Context, fallback string) string {
	if id := c.GetHeader(headerUserID); id != "" {
		return id
	}
	return fallback
}

// bind decodes an optional JSON body. It writes a 400 response and returns false on malformed input.
// The binding rules run later, once path and header values are merged into the request.
func bind(c *gin.Context, v any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}

	if err := json.NewDecoder(c.Request.Body).Decode(v); err != nil && err != io.EOF {
		writeError(c, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("malformed request body"),
			errors.WithCause(err),
		))
		return false
	}

	return true
}

func respond(c *gin.Context, status int, fn func(ctx context.Context) (any, error)) {
	res, err := fn(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(status, res)
}

func writeError(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		slog.ErrorContext(c.Request.Context(), "api: request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), e)
}
