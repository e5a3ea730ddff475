// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"rakshak/internal/modules/incident"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func isValidID(v string) bool {
	_, err := uuid.Parse(v)
	return err == nil
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, errorResponse{Success: false, Error: msg})
}

func writeIncidentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, incident.ErrValidation):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, incident.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, incident.ErrInvalidTransition):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
