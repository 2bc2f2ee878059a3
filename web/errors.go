package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/socialdistance/socialdistance/domain"
	"github.com/socialdistance/socialdistance/logging"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrAlreadyAccepted):
		return http.StatusConflict
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

// abortWithError writes err as {"detail": ...}. Unclassified errors are logged and
// hidden from the client.
func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	detail := err.Error()
	switch status {
	case http.StatusInternalServerError:
		logger := logging.Ctx(c.Request.Context())
		logger.Error().Err(err).Msg("request failed")
		detail = http.StatusText(status)
	case http.StatusNotFound:
		detail = "Not Found"
	case http.StatusUnauthorized:
		c.Header("WWW-Authenticate", `Bearer realm="socialdistance"`)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

func notFound(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
}
