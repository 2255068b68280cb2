package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yt-dashboard/internal/auth"
	"github.com/yt-dashboard/internal/youtube"
)

// readStatus maps a classified upstream error to the status of a read route.
func readStatus(err error) int {
	switch {
	case errors.Is(err, youtube.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, youtube.ErrQuota):
		return http.StatusTooManyRequests
	case errors.Is(err, youtube.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, youtube.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, youtube.ErrNetwork), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) writeReadError(c *gin.Context, summary string, err error) {
	status := readStatus(err)
	s.logger.Warn().Err(err).Int("status", status).Str("path", c.FullPath()).Msg(summary)
	_ = c.Error(err)

	if status == http.StatusUnauthorized {
		c.JSON(status, gin.H{
			"error":   "YouTube API access denied",
			"message": "Your Google account needs additional permissions for YouTube access",
		})
		return
	}
	c.JSON(status, gin.H{
		"error":   summary,
		"message": err.Error(),
	})
}

// denyRead answers read routes whose caller could not be resolved.
func denyRead(c *gin.Context, err error) {
	if isAuthFailure(err) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{
		"error":   "Identity provider unavailable",
		"message": err.Error(),
	})
}

func isAuthFailure(err error) bool {
	return errors.Is(err, auth.ErrUnauthenticated) || errors.Is(err, auth.ErrNoToken)
}

// uploadFailure is the error body of the upload routes.
func uploadFailure(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"error":   message,
		"code":    code,
		"success": false,
	})
}

func (s *Server) writeUploadError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "UPLOAD_FAILED"
	switch {
	case errors.Is(err, youtube.ErrAuth):
		status, code = http.StatusUnauthorized, "AUTH_ERROR"
	case errors.Is(err, youtube.ErrQuota):
		status, code = http.StatusTooManyRequests, "QUOTA_EXCEEDED"
	case errors.Is(err, youtube.ErrNetwork), errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusServiceUnavailable, "NETWORK_ERROR"
	}
	s.logger.Error().Err(err).Str("code", code).Msg("video upload failed")
	_ = c.Error(err)
	uploadFailure(c, status, code, err.Error())
}
