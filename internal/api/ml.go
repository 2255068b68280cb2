package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// formOverhead is allowed on top of the video for multipart framing.
const formOverhead = 1 << 20

// suggestMetadata handles title/description suggestions for a video
func (s *Server) suggestMetadata(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "User ID is required",
			"code":  "MISSING_USER_ID",
		})
		return
	}
	if s.suggester == nil {
		uploadFailure(c, http.StatusServiceUnavailable, "ML_UNAVAILABLE", "Suggestions are not configured")
		return
	}

	maxBytes := s.cfg.ML.MaxBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+formOverhead)
	fh, err := c.FormFile("videoFile")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			uploadFailure(c, http.StatusRequestEntityTooLarge, "VIDEO_TOO_LARGE", "Video file is too large for suggestions")
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Video file is required",
			"code":  "MISSING_VIDEO_FILE",
		})
		return
	}
	if fh.Size > maxBytes {
		uploadFailure(c, http.StatusRequestEntityTooLarge, "VIDEO_TOO_LARGE", "Video file is too large for suggestions")
		return
	}

	f, err := fh.Open()
	if err != nil {
		uploadFailure(c, http.StatusBadRequest, "REQUEST_FAILED", "Failed to read video file")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		uploadFailure(c, http.StatusBadRequest, "REQUEST_FAILED", "Failed to read video file")
		return
	}

	suggestion, err := s.suggester.Suggest(c.Request.Context(), data, fh.Header.Get("Content-Type"))
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("suggestion failed")
		_ = c.Error(err)
		uploadFailure(c, http.StatusBadGateway, "ML_FAILED", "Failed to generate suggestions")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"suggestion": suggestion,
	})
}
