package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/workorders-tracker/internal/common"
)

type errorBody struct {
	Error       string `json:"error"`
	Code        string `json:"code"`
	Details     string `json:"details,omitempty"`
	RawResponse string `json:"rawResponse,omitempty"`
}

// statusFor maps sentinel errors to HTTP statuses. Anything unrecognised is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	body := errorBody{Error: "internal server error", Code: common.CodeInternal}
	if ae, ok := common.AsAppError(err); ok {
		body.Error = ae.Message
		body.Code = ae.Code
		body.Details = ae.Details
		body.RawResponse = ae.RawResponse
	}

	logger := common.LoggerFromContext(c.Request.Context(), nil)
	if status >= 500 {
		logger.Error("http.error", "status", status, "code", body.Code, "error", err)
	} else {
		logger.Info("http.error", "status", status, "code", body.Code, "error", err)
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	writeError(c, common.InvalidInputError(msg))
}
