package rest

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/blogify/internal/common"
	"github.com/dmitrijs2005/blogify/internal/server/ratelimit"
	"github.com/gin-gonic/gin"
)

const internalErrorMessage = "Internal Server Error"

// errorTranslator renders the last error recorded by a handler or
// middleware. Handlers never write error responses themselves.
func (s *HTTPServer) errorTranslator() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status, body := s.translate(c, err)
		c.JSON(status, body)
	}
}

func (s *HTTPServer) translate(c *gin.Context, err error) (int, any) {
	var verr *common.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, gin.H{"errors": verr.Fields}
	}

	var limited *ratelimit.LimitedError
	if errors.As(err, &limited) {
		secs := int(math.Ceil(limited.RetryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.Itoa(secs))
		return http.StatusTooManyRequests, message("Too many login attempts")
	}

	switch {
	case errors.Is(err, common.ErrTooManyAttempts):
		return http.StatusTooManyRequests, message("Too many login attempts")
	case errors.Is(err, common.ErrorAlreadyExists):
		return http.StatusBadRequest, message("User already exists")
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, message("Invalid credentials")
	case errors.Is(err, common.ErrMissingToken):
		return http.StatusUnauthorized, message("Authentication failed")
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, message("Invalid token")
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden, message("Unauthorized")
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, message("Not found")
	}

	s.logger.Error(c.Request.Context(), "request failed",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"error", err,
	)
	return http.StatusInternalServerError, message(internalErrorMessage)
}

func message(m string) gin.H {
	return gin.H{"message": m}
}
