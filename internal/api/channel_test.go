package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yt-dashboard/internal/models"
	"github.com/yt-dashboard/internal/youtube"
)

func authed(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("X-User-ID", "user_1")
	return req
}

func TestGetChannel(t *testing.T) {
	env := newTestEnv(t)
	env.dashboard.channel = &models.ChannelListResponse{
		Kind:  "youtube#channelListResponse",
		Items: []models.ChannelItem{{ID: "UCabc", Statistics: &models.ChannelStatistics{SubscriberCount: "1000"}}},
	}

	rec := env.do(authed(http.MethodGet, "/api/youtube/channel"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "public, max-age=300", rec.Header().Get("Cache-Control"))

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "YouTube channel data retrieved successfully", body["message"])
	items := body["channelData"].(map[string]any)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "UCabc", items[0].(map[string]any)["id"])

	assert.Equal(t, "user:user_1", env.dashboard.lastCaller.Key)
	tok, err := env.dashboard.lastCaller.Tokens.Token()
	require.NoError(t, err)
	assert.Equal(t, "ya29.user", tok.AccessToken)
}

func TestGetChannelWithBearerToken(t *testing.T) {
	env := newTestEnv(t)
	env.dashboard.channel = &models.ChannelListResponse{}

	req := httptest.NewRequest(http.MethodGet, "/api/youtube/channel", nil)
	req.Header.Set("Authorization", "Bearer ya29.direct")
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	tok, err := env.dashboard.lastCaller.Tokens.Token()
	require.NoError(t, err)
	assert.Equal(t, "ya29.direct", tok.AccessToken)
}

func TestReadRoutesRequireCaller(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/api/youtube/channel", "/api/youtube/playlistItems", "/api/youtube/videos?Id=v1"} {
		t.Run(path, func(t *testing.T) {
			rec := env.do(httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"error": "User not authenticated"}`, rec.Body.String())
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/api/youtube/channel?userId=user_404", nil)
	rec := env.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error": "No OAuth access token found for the user"}`, rec.Body.String())
}

func TestReadErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"auth", &youtube.Error{Kind: youtube.ErrAuth, Message: "Insufficient Permission"}, http.StatusUnauthorized},
		{"quota", &youtube.Error{Kind: youtube.ErrQuota, Message: "quota exceeded"}, http.StatusTooManyRequests},
		{"invalid", &youtube.Error{Kind: youtube.ErrInvalidArgument, Message: "Video ID is null or undefined"}, http.StatusBadRequest},
		{"not found", &youtube.Error{Kind: youtube.ErrNotFound, Message: "Could not find uploads playlist"}, http.StatusNotFound},
		{"network", &youtube.Error{Kind: youtube.ErrNetwork, Message: "network error: timeout"}, http.StatusServiceUnavailable},
		{"other", fmt.Errorf("Unable to get channel data: %w", errors.New("boom")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.dashboard.err = tt.err

			rec := env.do(authed(http.MethodGet, "/api/youtube/channel"))
			require.Equal(t, tt.status, rec.Code)
			body := decodeBody(t, rec)
			if tt.status == http.StatusUnauthorized {
				assert.Equal(t, "YouTube API access denied", body["error"])
				assert.Equal(t, "Your Google account needs additional permissions for YouTube access", body["message"])
				return
			}
			assert.Equal(t, "Failed to fetch channel data", body["error"])
			assert.Equal(t, tt.err.Error(), body["message"])
		})
	}
}

func TestGetPlaylistItems(t *testing.T) {
	env := newTestEnv(t)
	env.dashboard.videos = []models.VideoSummary{
		{ID: "v1", Title: "First", Views: "100", Likes: "10", Comments: "0", EngagementScore: 120},
	}

	rec := env.do(authed(http.MethodGet, "/api/youtube/playlistItems"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=300", rec.Header().Get("Cache-Control"))

	body := decodeBody(t, rec)
	assert.Equal(t, "Videos fetched successfully", body["message"])
	videos := body["videos"].([]any)
	require.Len(t, videos, 1)
	assert.Equal(t, "v1", videos[0].(map[string]any)["id"])
	assert.Equal(t, "0", videos[0].(map[string]any)["comments"])
}

func TestGetPlaylistItemsError(t *testing.T) {
	env := newTestEnv(t)
	env.dashboard.err = &youtube.Error{Kind: youtube.ErrNotFound, Message: "No videos found in playlist"}

	rec := env.do(authed(http.MethodGet, "/api/youtube/playlistItems"))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Header().Get("Cache-Control"))
	assert.Equal(t, "Failed to fetch videos", decodeBody(t, rec)["error"])
}

func TestGetVideoStats(t *testing.T) {
	env := newTestEnv(t)
	env.dashboard.stats = map[string]*models.VideoStatistics{
		"v1": {ViewCount: 100, LikeCount: 10, CommentCount: 2},
	}

	rec := env.do(authed(http.MethodGet, "/api/youtube/videos?Id=v1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v1", env.dashboard.lastID)
	assert.JSONEq(t, `{
		"success": true,
		"message": "All videos fetched successfully",
		"videoStats": {"viewCount": "100", "likeCount": "10", "commentCount": "2", "favoriteCount": "0"}
	}`, rec.Body.String())

	rec = env.do(authed(http.MethodGet, "/api/youtube/videos?id=v1"))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGetVideoStatsMissingID(t *testing.T) {
	env := newTestEnv(t)
	env.dashboard.err = &youtube.Error{Kind: youtube.ErrInvalidArgument, Message: "Video ID is null or undefined"}

	rec := env.do(authed(http.MethodGet, "/api/youtube/videos"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "", env.dashboard.lastID)
	assert.Equal(t, "Video ID is null or undefined", decodeBody(t, rec)["message"])
}

func TestBearerCallersAreKeyedByToken(t *testing.T) {
	env := newTestEnv(t)

	victim := authed(http.MethodGet, "/api/youtube/playlistItems")
	victim.Header.Set("X-User-ID", "victim")
	victim.Header.Set("Authorization", "Bearer victim-token")
	require.Equal(t, http.StatusOK, env.do(victim).Code)
	victimKey := env.dashboard.lastCaller.Key

	other := authed(http.MethodGet, "/api/youtube/playlistItems")
	other.Header.Set("X-User-ID", "victim")
	other.Header.Set("Authorization", "Bearer garbage")
	require.Equal(t, http.StatusOK, env.do(other).Code)

	assert.NotEqual(t, victimKey, env.dashboard.lastCaller.Key)
	assert.NotEqual(t, "user:victim", env.dashboard.lastCaller.Key)
}
