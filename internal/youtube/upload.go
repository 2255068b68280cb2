package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"github.com/yt-dashboard/internal/metrics"
	"github.com/yt-dashboard/internal/models"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	ytv3 "google.golang.org/api/youtube/v3"
)

const (
	// ChunkGranularity is the unit upload chunks must be a multiple of.
	ChunkGranularity = 256 * 1024

	defaultUploadBaseURL   = "https://www.googleapis.com/"
	defaultChunkSize       = 32 * ChunkGranularity
	uploadPath             = "upload/youtube/v3/videos"
	statusResumeIncomplete = 308
)

// UploaderConfig configures the resumable uploader.
type UploaderConfig struct {
	BaseURL        string
	ChunkSize      int64
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Transport is the base round tripper; nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

// Uploader implements the Data API resumable upload protocol: initiate a
// session, PUT fixed-size byte ranges, and after a failure query the session
// and resume from the last acknowledged byte.
type Uploader struct {
	baseURL        string
	chunkSize      int64
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	transport      http.RoundTripper
	logger         zerolog.Logger
}

// UploadRequest is one video to upload.
type UploadRequest struct {
	Metadata    models.UploadMetadata
	Media       io.ReaderAt
	Size        int64
	ContentType string
}

// ProgressFunc receives the acknowledged share of the file in percent.
type ProgressFunc func(percent int)

// NewUploader creates an Uploader. A chunk size that is not a positive
// multiple of ChunkGranularity is rounded up to one.
func NewUploader(cfg UploaderConfig, logger zerolog.Logger) *Uploader {
	base := cfg.BaseURL
	if base == "" {
		base = defaultUploadBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	chunk := cfg.ChunkSize
	if chunk <= 0 {
		chunk = defaultChunkSize
	}
	if rem := chunk % ChunkGranularity; rem != 0 {
		chunk += ChunkGranularity - rem
	}
	initial := cfg.InitialBackoff
	if initial <= 0 {
		initial = time.Second
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff < initial {
		maxBackoff = initial
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Uploader{
		baseURL:        base,
		chunkSize:      chunk,
		maxRetries:     max(cfg.MaxRetries, 0),
		initialBackoff: initial,
		maxBackoff:     maxBackoff,
		transport:      transport,
		logger:         logger,
	}
}

// Upload sends req.Media to YouTube and returns the created video resource.
func (u *Uploader) Upload(ctx context.Context, caller Caller, req UploadRequest, progress ProgressFunc) (*ytv3.Video, error) {
	if req.Media == nil || req.Size <= 0 {
		return nil, invalidArgument("video file is empty")
	}
	if strings.TrimSpace(req.Metadata.Title) == "" {
		return nil, invalidArgument("video title is required")
	}
	if caller.Tokens == nil {
		return nil, &Error{Kind: ErrAuth, Status: http.StatusUnauthorized, Message: "User not authenticated"}
	}
	if req.ContentType == "" {
		req.ContentType = "video/*"
	}

	client := sessionClient(u.transport, caller.Tokens)
	session, err := u.initiate(ctx, client, req)
	if err != nil {
		return nil, err
	}
	u.logger.Debug().Int64("size", req.Size).Int64("chunk_size", u.chunkSize).Msg("upload session started")

	return u.transfer(ctx, client, session, req, progress)
}

func (u *Uploader) retryOptions(stage string) []backoff.RetryOption {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = u.initialBackoff
	b.MaxInterval = u.maxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0.5

	return []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(u.maxRetries + 1)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			metrics.ObserveChunk("retry")
			u.logger.Warn().Err(err).Str("stage", stage).Dur("wait", wait).Msg("upload request failed, retrying")
		}),
	}
}

func (u *Uploader) initiate(ctx context.Context, client *http.Client, req UploadRequest) (string, error) {
	body, err := json.Marshal(&ytv3.Video{
		Snippet: &ytv3.VideoSnippet{
			Title:       req.Metadata.Title,
			Description: req.Metadata.Description,
			Tags:        req.Metadata.Tags,
			CategoryId:  req.Metadata.CategoryID,
		},
		Status: &ytv3.VideoStatus{PrivacyStatus: req.Metadata.Privacy},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode video metadata: %w", err)
	}
	endpoint := u.baseURL + uploadPath + "?uploadType=resumable&part=snippet,status"

	op := func() (string, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return "", backoff.Permanent(err)
		}
		r.Header.Set("Content-Type", "application/json; charset=UTF-8")
		r.Header.Set("X-Upload-Content-Length", strconv.FormatInt(req.Size, 10))
		r.Header.Set("X-Upload-Content-Type", req.ContentType)

		resp, err := client.Do(r)
		if err != nil {
			return "", transportError(ctx, err)
		}
		defer drain(resp)

		switch {
		case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
			loc := resp.Header.Get("Location")
			if loc == "" {
				return "", backoff.Permanent(errors.New("upload session response has no Location header"))
			}
			return loc, nil
		case retryableStatus(resp.StatusCode):
			return "", statusError(resp)
		default:
			return "", backoff.Permanent(statusError(resp))
		}
	}

	loc, err := backoff.Retry(ctx, op, u.retryOptions("initiate")...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", classify(err, "Failed to start upload")
	}
	return loc, nil
}

type chunkResult struct {
	done  bool
	video *ytv3.Video
	// next is the first byte the server has not acknowledged.
	next int64
}

func (u *Uploader) transfer(ctx context.Context, client *http.Client, session string, req UploadRequest, progress ProgressFunc) (*ytv3.Video, error) {
	reported := -1
	report := func(pct int) {
		if progress != nil && pct > reported {
			reported = pct
			progress(pct)
		}
	}
	report(0)

	var offset, acked int64
	for {
		resync := false
		op := func() (chunkResult, error) {
			if resync {
				st, err := u.queryStatus(ctx, client, session, req.Size)
				if err != nil {
					return st, err
				}
				// Acknowledged progress ends this round so the next range
				// starts with a fresh retry budget.
				if st.done || st.next > offset {
					return st, nil
				}
				offset = st.next
			}
			res, err := u.putChunk(ctx, client, session, req, offset)
			if err != nil {
				resync = true
				return res, err
			}
			if !res.done && res.next <= offset {
				resync = true
				return res, &Error{Kind: ErrNetwork, Message: fmt.Sprintf("upload made no progress at byte %d", offset)}
			}
			return res, nil
		}

		res, err := backoff.Retry(ctx, op, u.retryOptions("chunk")...)
		if err != nil {
			metrics.ObserveChunk("failed")
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, classify(err, "Failed to upload video")
		}
		if res.done {
			metrics.ObserveChunk("complete")
			metrics.AddUploadedBytes(req.Size - acked)
			report(100)
			return res.video, nil
		}

		metrics.ObserveChunk("incomplete")
		if res.next > acked {
			metrics.AddUploadedBytes(res.next - acked)
			acked = res.next
		}
		offset = res.next
		report(int(offset * 100 / req.Size))
	}
}

func (u *Uploader) putChunk(ctx context.Context, client *http.Client, session string, req UploadRequest, offset int64) (chunkResult, error) {
	end := min(offset+u.chunkSize, req.Size)
	length := end - offset

	r, err := http.NewRequestWithContext(ctx, http.MethodPut, session, io.NewSectionReader(req.Media, offset, length))
	if err != nil {
		return chunkResult{}, backoff.Permanent(err)
	}
	r.ContentLength = length
	r.Header.Set("Content-Type", req.ContentType)
	r.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, end-1, req.Size))

	resp, err := client.Do(r)
	if err != nil {
		return chunkResult{}, transportError(ctx, err)
	}
	defer drain(resp)
	return readSessionResponse(resp)
}

// queryStatus asks the session how many bytes it holds.
func (u *Uploader) queryStatus(ctx context.Context, client *http.Client, session string, size int64) (chunkResult, error) {
	r, err := http.NewRequestWithContext(ctx, http.MethodPut, session, http.NoBody)
	if err != nil {
		return chunkResult{}, backoff.Permanent(err)
	}
	r.ContentLength = 0
	r.Header.Set("Content-Range", fmt.Sprintf("bytes */%d", size))

	resp, err := client.Do(r)
	if err != nil {
		return chunkResult{}, transportError(ctx, err)
	}
	defer drain(resp)
	return readSessionResponse(resp)
}

func readSessionResponse(resp *http.Response) (chunkResult, error) {
	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var video ytv3.Video
		if err := json.NewDecoder(resp.Body).Decode(&video); err != nil {
			return chunkResult{}, backoff.Permanent(fmt.Errorf("failed to decode uploaded video: %w", err))
		}
		return chunkResult{done: true, video: &video}, nil
	case resp.StatusCode == statusResumeIncomplete:
		next, err := parseRange(resp.Header.Get("Range"))
		if err != nil {
			return chunkResult{}, backoff.Permanent(err)
		}
		return chunkResult{next: next}, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return chunkResult{}, backoff.Permanent(&Error{Kind: ErrNotFound, Status: resp.StatusCode, Message: "upload session expired"})
	case retryableStatus(resp.StatusCode):
		return chunkResult{}, statusError(resp)
	default:
		return chunkResult{}, backoff.Permanent(statusError(resp))
	}
}

// parseRange turns a "bytes=0-n" header into n+1. An absent header means no
// bytes were received.
func parseRange(h string) (int64, error) {
	if h == "" {
		return 0, nil
	}
	byteRange, ok := strings.CutPrefix(h, "bytes=")
	if !ok {
		return 0, fmt.Errorf("malformed Range header %q", h)
	}
	_, last, ok := strings.Cut(byteRange, "-")
	if !ok {
		return 0, fmt.Errorf("malformed Range header %q", h)
	}
	n, err := strconv.ParseInt(last, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("malformed Range header %q", h)
	}
	return n + 1, nil
}

func retryableStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

// statusError converts a non-2xx response into a classified error.
func statusError(resp *http.Response) error {
	err := googleapi.CheckResponse(resp)
	if err == nil {
		err = &googleapi.Error{Code: resp.StatusCode}
	}
	return classify(err, http.StatusText(resp.StatusCode))
}

func transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return backoff.Permanent(ctxErr)
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return backoff.Permanent(&Error{Kind: ErrAuth, Status: http.StatusUnauthorized, Message: "access token refresh failed, please sign in again"})
	}
	return &Error{Kind: ErrNetwork, Message: fmt.Sprintf("network error: %v", err)}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
