package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/LLMConfigService/internal/service"
)

// statusFor maps a service error code to an HTTP status.
func statusFor(code service.Code) int {
	switch code {
	case service.CodeValidation:
		return http.StatusBadRequest
	case service.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes a service failure as {"error", "code"}.
func respondError(c *gin.Context, err error) {
	code := service.CodeOf(err)
	if code == "" {
		code = service.CodeStore
	}
	message := "storage failure"
	var svcErr *service.Error
	if errors.As(err, &svcErr) && svcErr.Message != "" {
		message = svcErr.Message
	}
	c.JSON(statusFor(code), gin.H{"error": message, "code": code})
}

// respondInvalidJSON rejects an unparsable body.
func respondInvalidJSON(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json", "code": service.CodeValidation})
}
