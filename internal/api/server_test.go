package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yt-dashboard/internal/auth"
	"github.com/yt-dashboard/internal/cache"
	"github.com/yt-dashboard/internal/config"
	"github.com/yt-dashboard/internal/models"
	"github.com/yt-dashboard/internal/progress"
	"github.com/yt-dashboard/internal/suggest"
	"github.com/yt-dashboard/internal/youtube"
	"golang.org/x/oauth2"
	ytv3 "google.golang.org/api/youtube/v3"
)

type fakeDashboard struct {
	channel *models.ChannelListResponse
	videos  []models.VideoSummary
	stats   map[string]*models.VideoStatistics
	err     error

	lastCaller youtube.Caller
	lastID     string
}

func (d *fakeDashboard) ChannelData(_ context.Context, caller youtube.Caller) (*models.ChannelListResponse, error) {
	d.lastCaller = caller
	return d.channel, d.err
}

func (d *fakeDashboard) TrendingVideos(_ context.Context, caller youtube.Caller) ([]models.VideoSummary, error) {
	d.lastCaller = caller
	return d.videos, d.err
}

func (d *fakeDashboard) VideoStats(_ context.Context, caller youtube.Caller, videoID string) (*models.VideoStatistics, error) {
	d.lastCaller = caller
	d.lastID = videoID
	if d.err != nil {
		return nil, d.err
	}
	return d.stats[videoID], nil
}

type fakeUploader struct {
	video *ytv3.Video
	err   error
	// during runs after the first progress report.
	during func()

	req  youtube.UploadRequest
	body []byte
}

func (u *fakeUploader) Upload(_ context.Context, _ youtube.Caller, req youtube.UploadRequest, progress youtube.ProgressFunc) (*ytv3.Video, error) {
	u.req = req
	data, err := io.ReadAll(io.NewSectionReader(req.Media, 0, req.Size))
	if err != nil {
		return nil, err
	}
	u.body = data
	progress(40)
	if u.during != nil {
		u.during()
	}
	if u.err != nil {
		return nil, u.err
	}
	progress(100)
	return u.video, nil
}

type fakeThumbnails struct {
	err         error
	calls       int
	contentType string
	videoID     string
}

func (f *fakeThumbnails) SetThumbnail(_ context.Context, _ youtube.Caller, videoID string, image io.Reader, contentType string) error {
	f.calls++
	f.videoID = videoID
	f.contentType = contentType
	_, _ = io.Copy(io.Discard, image)
	return f.err
}

type fakeBroker struct{}

func (fakeBroker) AccessToken(_ context.Context, userID string) (*oauth2.Token, error) {
	if userID != "user_1" {
		return nil, auth.ErrNoToken
	}
	return &oauth2.Token{AccessToken: "ya29.user"}, nil
}

type fakeSuggester struct {
	got  []byte
	mime string
	err  error
}

func (s *fakeSuggester) Suggest(_ context.Context, video []byte, mimeType string) (*suggest.Suggestion, error) {
	s.got = video
	s.mime = mimeType
	if s.err != nil {
		return nil, s.err
	}
	return &suggest.Suggestion{Title: "Catchy", Description: "Short and sweet."}, nil
}

type testEnv struct {
	server     *Server
	cache      cache.Store
	cfg        *config.Config
	dashboard  *fakeDashboard
	uploader   *fakeUploader
	thumbnails *fakeThumbnails
	tracker    *progress.Tracker
	suggester  *fakeSuggester
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := cache.NewMemoryStore(0)
	t.Cleanup(func() { _ = store.Close() })

	env := &testEnv{
		cache:      store,
		cfg:        config.Default(),
		dashboard:  &fakeDashboard{},
		uploader:   &fakeUploader{video: &ytv3.Video{Id: "vid123", Snippet: &ytv3.VideoSnippet{Title: "Launch"}, Status: &ytv3.VideoStatus{PrivacyStatus: "unlisted"}}},
		thumbnails: &fakeThumbnails{},
		tracker:    progress.NewTracker(store),
		suggester:  &fakeSuggester{},
	}
	env.server = env.build()
	return env
}

func (e *testEnv) build() *Server {
	deps := Deps{
		Cache:      e.cache,
		Dashboard:  e.dashboard,
		Uploader:   e.uploader,
		Thumbnails: e.thumbnails,
		Progress:   e.tracker,
		Resolver:   auth.NewResolver(fakeBroker{}, zerolog.Nop()),
		Logger:     zerolog.Nop(),
	}
	if e.suggester != nil {
		deps.Suggester = e.suggester
	}
	return NewServer(e.cfg, deps)
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

type filePart struct {
	name        string
	contentType string
	data        []byte
}

func multipartRequest(t *testing.T, target string, fields map[string]string, files map[string]filePart) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for field, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, f.name))
		h.Set("Content-Type", f.contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestHealthReportsUnreachableCache(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := cache.NewRedisStore(context.Background(), cache.RedisConfig{Addr: mr.Addr()}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	env := newTestEnv(t)
	env.cache = store
	env.server = env.build()

	rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	mr.Close()
	rec = env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status": "unavailable", "error": "cache unreachable"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ytdash_http_requests_total")
}

func TestCategories(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/youtube/categories", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success    bool              `json:"success"`
		Categories []models.Category `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, models.Categories, body.Categories)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/youtube/channel", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	req.Header.Set("Access-Control-Request-Headers", "X-User-ID")

	rec := env.do(req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
