package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// errorCase pairs a sentinel error with the HTTP status and message it maps to.
type errorCase struct {
	Err     error
	Status  int
	Message string
}

// respondWithMappedError walks the cases in order and writes the first match.
// Unmatched errors get the fallback response so internal detail never leaks
// to clients.
func respondWithMappedError(c *gin.Context, err error, cases []errorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			c.JSON(cs.Status, NewErrorResponse(c, cs.Message))
			return
		}
	}

	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}
