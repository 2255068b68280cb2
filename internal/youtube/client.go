package youtube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/yt-dashboard/internal/metrics"
	"github.com/yt-dashboard/internal/models"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	ytv3 "google.golang.org/api/youtube/v3"
)

const (
	defaultAPIBaseURL = "https://youtube.googleapis.com/"
	topVideosLimit    = 10
)

// ClientConfig configures the Data API client.
type ClientConfig struct {
	APIBaseURL        string
	RequestsPerSecond float64
	Burst             int
	// Transport is the base round tripper; nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

// Client issues Data API calls on behalf of a Caller.
type Client struct {
	endpoint  string
	transport http.RoundTripper
	logger    zerolog.Logger
}

// NewClient creates a Data API client. All callers share one rate limiter.
func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	endpoint := cfg.APIBaseURL
	if endpoint == "" {
		endpoint = defaultAPIBaseURL
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	return &Client{
		endpoint:  endpoint,
		transport: newLimitedTransport(cfg.Transport, cfg.RequestsPerSecond, cfg.Burst),
		logger:    logger,
	}
}

func (c *Client) service(ctx context.Context, caller Caller) (*ytv3.Service, error) {
	if caller.Tokens == nil {
		return nil, &Error{Kind: ErrAuth, Status: http.StatusUnauthorized, Message: "User not authenticated"}
	}
	svc, err := ytv3.NewService(ctx,
		option.WithHTTPClient(authorizedClient(c.transport, caller.Tokens)),
		option.WithEndpoint(c.endpoint),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}
	return svc, nil
}

// MyChannel fetches the caller's own channel with snippet, statistics and
// contentDetails.
func (c *Client) MyChannel(ctx context.Context, caller Caller) (*ytv3.ChannelListResponse, error) {
	svc, err := c.service(ctx, caller)
	if err != nil {
		return nil, err
	}
	resp, err := svc.Channels.List([]string{"snippet", "statistics", "contentDetails"}).
		Mine(true).
		Context(ctx).
		Do()
	metrics.ObserveUpstream("channels", err)
	if err != nil {
		return nil, classify(err, "Unable to get channel data")
	}
	return resp, nil
}

// UploadsPlaylistID returns the id of the caller's uploads playlist.
func (c *Client) UploadsPlaylistID(ctx context.Context, caller Caller) (string, error) {
	svc, err := c.service(ctx, caller)
	if err != nil {
		return "", err
	}
	resp, err := svc.Channels.List([]string{"contentDetails"}).
		Mine(true).
		Context(ctx).
		Do()
	metrics.ObserveUpstream("channels", err)
	if err != nil {
		return "", classify(err, "Failed to fetch trending videos")
	}
	return uploadsPlaylist(resp)
}

func uploadsPlaylist(resp *ytv3.ChannelListResponse) (string, error) {
	if resp == nil || len(resp.Items) == 0 {
		return "", notFound("Could not find uploads playlist")
	}
	cd := resp.Items[0].ContentDetails
	if cd == nil || cd.RelatedPlaylists == nil || cd.RelatedPlaylists.Uploads == "" {
		return "", notFound("Could not find uploads playlist")
	}
	return cd.RelatedPlaylists.Uploads, nil
}

// RecentUploads lists the newest items of a playlist, up to the top-10 limit.
func (c *Client) RecentUploads(ctx context.Context, caller Caller, playlistID string) ([]*ytv3.PlaylistItem, error) {
	svc, err := c.service(ctx, caller)
	if err != nil {
		return nil, err
	}
	resp, err := svc.PlaylistItems.List([]string{"snippet", "contentDetails"}).
		PlaylistId(playlistID).
		MaxResults(topVideosLimit).
		Context(ctx).
		Do()
	metrics.ObserveUpstream("playlistItems", err)
	if err != nil {
		return nil, classify(err, "Failed to fetch trending videos")
	}
	if resp.Items == nil {
		return nil, notFound("No videos found in playlist")
	}
	return resp.Items, nil
}

// VideoStatistics fetches the statistics of one video.
func (c *Client) VideoStatistics(ctx context.Context, caller Caller, videoID string) (*models.VideoStatistics, error) {
	if videoID == "" {
		return nil, invalidArgument("Video ID is null or undefined")
	}
	svc, err := c.service(ctx, caller)
	if err != nil {
		return nil, err
	}
	resp, err := svc.Videos.List([]string{"statistics"}).
		Id(videoID).
		Context(ctx).
		Do()
	metrics.ObserveUpstream("videos", err)
	if err != nil {
		return nil, classify(err, "Unable to get Stats of Video")
	}
	if len(resp.Items) == 0 || resp.Items[0].Statistics == nil {
		return nil, notFound(fmt.Sprintf("video %s not found", videoID))
	}
	s := resp.Items[0].Statistics
	return &models.VideoStatistics{
		ViewCount:     s.ViewCount,
		LikeCount:     s.LikeCount,
		CommentCount:  s.CommentCount,
		FavoriteCount: s.FavoriteCount,
	}, nil
}

// SetThumbnail uploads a custom thumbnail for an existing video.
func (c *Client) SetThumbnail(ctx context.Context, caller Caller, videoID string, image io.Reader, contentType string) error {
	svc, err := c.service(ctx, caller)
	if err != nil {
		return err
	}
	call := svc.Thumbnails.Set(videoID).Context(ctx)
	if contentType != "" {
		call = call.Media(image, googleapi.ContentType(contentType))
	} else {
		call = call.Media(image)
	}
	_, err = call.Do()
	metrics.ObserveUpstream("thumbnails", err)
	if err != nil {
		return classify(err, "Failed to set thumbnail")
	}
	return nil
}
