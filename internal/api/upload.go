package api

import (
	"context"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/yt-dashboard/internal/auth"
	"github.com/yt-dashboard/internal/models"
	"github.com/yt-dashboard/internal/youtube"
)

const watchURL = "https://www.youtube.com/watch?v="

// getUploadProgress handles progress polling for a user's running upload
func (s *Server) getUploadProgress(c *gin.Context) {
	subject := auth.SubjectFor(c.Request, auth.UserID(c.Request))
	if subject == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "User ID is required to check upload progress",
			"code":  "MISSING_USER_ID",
		})
		return
	}

	pct, err := s.progress.Get(c.Request.Context(), subject)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", subject).Msg("failed to read upload progress")
		uploadFailure(c, http.StatusInternalServerError, "PROGRESS_FETCH_ERROR", "Failed to retrieve upload progress. Please try again.")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"progress": pct,
		"success":  true,
	})
}

// uploadVideo handles the multipart upload form
func (s *Server) uploadVideo(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		s.logger.Warn().Err(err).Msg("unreadable upload form")
		uploadFailure(c, http.StatusBadRequest, "REQUEST_FAILED", "Failed to process upload request")
		return
	}

	title := strings.TrimSpace(formValue(form, "title"))
	video := formFile(form, "videoFile")
	userID := formValue(form, "userId")
	if userID == "" {
		userID = auth.UserID(c.Request)
	}

	var missing []string
	if video == nil || video.Size == 0 {
		missing = append(missing, "video file")
	}
	if title == "" {
		missing = append(missing, "title")
	}
	if userID == "" {
		missing = append(missing, "user ID")
	}
	if len(missing) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Missing required fields: " + strings.Join(missing, ", "),
			"code":    "MISSING_REQUIRED_FIELDS",
			"fields":  missing,
			"success": false,
		})
		return
	}

	privacy := strings.ToLower(strings.TrimSpace(formValue(form, "privacy")))
	if privacy == "" {
		privacy = models.PrivacyPrivate
	}
	if !models.ValidPrivacy(privacy) {
		uploadFailure(c, http.StatusBadRequest, "INVALID_PRIVACY", "privacy must be one of private, public, unlisted")
		return
	}
	category := strings.TrimSpace(formValue(form, "category"))
	if category == "" {
		category = models.DefaultCategoryID
	}

	id, err := s.resolver.ResolveFor(c.Request, userID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("upload caller not authenticated")
		uploadFailure(c, http.StatusUnauthorized, "AUTH_ERROR", err.Error())
		return
	}

	file, err := video.Open()
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to open uploaded video")
		uploadFailure(c, http.StatusBadRequest, "REQUEST_FAILED", "Failed to process upload request")
		return
	}
	defer file.Close()

	uploadID := uuid.NewString()
	logger := s.logger.With().Str("upload_id", uploadID).Str("user_id", userID).Logger()
	// Progress is only written under the identity the credentials prove.
	subject := id.Subject
	ctx := c.Request.Context()

	meta := models.UploadMetadata{
		Title:       title,
		Description: formValue(form, "description"),
		Tags:        splitTags(formValue(form, "tags")),
		CategoryID:  category,
		Privacy:     privacy,
	}
	s.setProgress(ctx, logger, subject, 0)

	logger.Info().Int64("size", video.Size).Str("privacy", privacy).Msg("video upload started")
	uploaded, err := s.uploader.Upload(ctx, id.Caller, youtube.UploadRequest{
		Metadata:    meta,
		Media:       file,
		Size:        video.Size,
		ContentType: video.Header.Get("Content-Type"),
	}, func(pct int) {
		s.setProgress(ctx, logger, subject, pct)
	})
	if err != nil {
		if cerr := s.progress.Clear(context.WithoutCancel(ctx), subject); cerr != nil {
			logger.Warn().Err(cerr).Msg("failed to clear upload progress")
		}
		s.writeUploadError(c, err)
		return
	}

	result := models.UploadResult{
		Success:       true,
		UploadID:      uploadID,
		VideoID:       uploaded.Id,
		VideoURL:      watchURL + uploaded.Id,
		Title:         meta.Title,
		PrivacyStatus: meta.Privacy,
		Progress:      100,
	}
	if uploaded.Snippet != nil && uploaded.Snippet.Title != "" {
		result.Title = uploaded.Snippet.Title
	}
	if uploaded.Status != nil && uploaded.Status.PrivacyStatus != "" {
		result.PrivacyStatus = uploaded.Status.PrivacyStatus
	}
	if thumb := formFile(form, "thumbnail"); thumb != nil && thumb.Size > 0 {
		result.ThumbnailUploaded = s.setThumbnail(ctx, logger, id.Caller, uploaded.Id, thumb)
	}

	if err := s.progress.Complete(ctx, subject); err != nil {
		logger.Warn().Err(err).Msg("failed to mark upload complete")
	}
	logger.Info().Str("video_id", uploaded.Id).Bool("thumbnail", result.ThumbnailUploaded).Msg("video upload finished")
	c.JSON(http.StatusOK, result)
}

func (s *Server) setProgress(ctx context.Context, logger zerolog.Logger, userID string, pct int) {
	if err := s.progress.Set(ctx, userID, pct); err != nil {
		logger.Warn().Err(err).Int("progress", pct).Msg("failed to record upload progress")
	}
}

// setThumbnail reports whether the thumbnail was attached. Failures do not
// fail the upload.
func (s *Server) setThumbnail(ctx context.Context, logger zerolog.Logger, caller youtube.Caller, videoID string, fh *multipart.FileHeader) bool {
	f, err := fh.Open()
	if err != nil {
		logger.Warn().Err(err).Msg("failed to open thumbnail")
		return false
	}
	defer f.Close()

	if err := s.thumbnails.SetThumbnail(ctx, caller, videoID, f, fh.Header.Get("Content-Type")); err != nil {
		logger.Warn().Err(err).Str("video_id", videoID).Msg("thumbnail upload failed")
		return false
	}
	return true
}

// splitTags splits a comma-separated list, trimming entries and dropping
// empty ones.
func splitTags(raw string) []string {
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func formValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func formFile(form *multipart.Form, key string) *multipart.FileHeader {
	if f := form.File[key]; len(f) > 0 {
		return f[0]
	}
	return nil
}
