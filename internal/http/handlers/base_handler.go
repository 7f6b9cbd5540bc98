// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"taxifare/internal/modules/aggregation"
	"taxifare/internal/modules/submission"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeSubmissionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, submission.ErrValidation):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, submission.ErrAuthRequired):
		writeError(c, http.StatusUnauthorized, "missing or invalid bearer token")
	default:
		log.Printf("[http] submit-route: %v", err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writeAggregationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, aggregation.ErrAlreadyRunning):
		writeError(c, http.StatusConflict, err.Error())
	default:
		log.Printf("[http] aggregation: %v", err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
