package youtube

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/yt-dashboard/internal/cache"
	"github.com/yt-dashboard/internal/models"
	"golang.org/x/sync/errgroup"
	ytv3 "google.golang.org/api/youtube/v3"
)

const statsConcurrency = 5

// DashboardConfig wires a Dashboard.
type DashboardConfig struct {
	Client    *Client
	Store     cache.Store
	TTL       time.Duration
	Snapshots models.SnapshotStore
	// Now defaults to time.Now.
	Now    func() time.Time
	Logger zerolog.Logger
}

// Dashboard composes Data API calls into the dashboard views. Playlist items
// are cached per caller, video statistics per video, and historical data per
// channel and period.
type Dashboard struct {
	client    *Client
	trending  *cache.Cache
	stats     *cache.Cache
	history   *cache.Cache
	snapshots models.SnapshotStore
	now       func() time.Time
	logger    zerolog.Logger
}

// NewDashboard creates a Dashboard.
func NewDashboard(cfg DashboardConfig) *Dashboard {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	snapshots := cfg.Snapshots
	if snapshots == nil {
		snapshots = models.NopSnapshotStore{}
	}
	return &Dashboard{
		client:    cfg.Client,
		trending:  cache.New("trending", cfg.Store, cfg.TTL),
		stats:     cache.New("video-stats", cfg.Store, cfg.TTL),
		history:   cache.New("historical", cfg.Store, cfg.TTL),
		snapshots: snapshots,
		now:       now,
		logger:    cfg.Logger,
	}
}

// ChannelData returns the caller's channel with last-10 aggregates and
// historical data attached to the first item.
func (d *Dashboard) ChannelData(ctx context.Context, caller Caller) (*models.ChannelListResponse, error) {
	resp, err := d.client.MyChannel(ctx, caller)
	if err != nil {
		return nil, err
	}

	out := &models.ChannelListResponse{
		Kind:  resp.Kind,
		Etag:  resp.Etag,
		Items: make([]models.ChannelItem, 0, len(resp.Items)),
	}
	for i, ch := range resp.Items {
		item := models.ChannelItem{ID: ch.Id, Snippet: ch.Snippet}
		if i == 0 && ch.Statistics != nil {
			if err := d.enrich(ctx, caller, ch, &item); err != nil {
				return nil, err
			}
		} else if ch.Statistics != nil {
			item.Statistics = baseStatistics(ch.Statistics)
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}

func (d *Dashboard) enrich(ctx context.Context, caller Caller, ch *ytv3.Channel, item *models.ChannelItem) error {
	playlistID, err := uploadsPlaylist(&ytv3.ChannelListResponse{Items: []*ytv3.Channel{ch}})
	if err != nil {
		return err
	}
	items, err := d.recentUploads(ctx, caller, func(ctx context.Context) ([]*ytv3.PlaylistItem, error) {
		return d.client.RecentUploads(ctx, caller, playlistID)
	})
	if err != nil {
		return err
	}

	ids := uniqueVideoIDs(items)
	stats := d.statsFor(ctx, caller, ids)

	var likes, comments, views uint64
	counted := 0
	for _, id := range ids {
		s, ok := stats[id]
		if !ok {
			continue
		}
		likes += s.LikeCount
		comments += s.CommentCount
		views += s.ViewCount
		counted++
	}

	st := baseStatistics(ch.Statistics)
	st.LikeCount = strconv.FormatUint(likes, 10)
	st.CommentCount = strconv.FormatUint(comments, 10)
	st.Last10ViewsCount = strconv.FormatUint(views, 10)
	if counted > 0 {
		st.AverageViews = round4(float64(views) / float64(counted))
	}
	if views > 0 {
		st.LikeToViewRatio = round4(float64(likes) / float64(views))
		st.CommentToViewRatio = round4(float64(comments) / float64(views))
	}
	item.Statistics = st

	current := Counters{
		Subscribers: ch.Statistics.SubscriberCount,
		Views:       ch.Statistics.ViewCount,
		Videos:      ch.Statistics.VideoCount,
	}
	d.saveSnapshot(ctx, ch.Id, current)
	item.HistoricalData = d.historical(ctx, ch.Id, current)
	return nil
}

func baseStatistics(s *ytv3.ChannelStatistics) *models.ChannelStatistics {
	return &models.ChannelStatistics{
		SubscriberCount:       strconv.FormatUint(s.SubscriberCount, 10),
		VideoCount:            strconv.FormatUint(s.VideoCount, 10),
		ViewCount:             strconv.FormatUint(s.ViewCount, 10),
		HiddenSubscriberCount: s.HiddenSubscriberCount,
		LikeCount:             "0",
		CommentCount:          "0",
		Last10ViewsCount:      "0",
	}
}

// TrendingVideos returns the caller's 10 most recent uploads with statistics.
// Items without a video id, duplicates, and items whose statistics cannot be
// fetched are dropped; order is preserved.
func (d *Dashboard) TrendingVideos(ctx context.Context, caller Caller) ([]models.VideoSummary, error) {
	items, err := d.recentUploads(ctx, caller, func(ctx context.Context) ([]*ytv3.PlaylistItem, error) {
		playlistID, err := d.client.UploadsPlaylistID(ctx, caller)
		if err != nil {
			return nil, err
		}
		return d.client.RecentUploads(ctx, caller, playlistID)
	})
	if err != nil {
		return nil, err
	}

	ids := uniqueVideoIDs(items)
	stats := d.statsFor(ctx, caller, ids)

	seen := make(map[string]bool, len(items))
	videos := make([]models.VideoSummary, 0, len(ids))
	for _, it := range items {
		id := videoID(it)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		s, ok := stats[id]
		if !ok {
			continue
		}
		videos = append(videos, models.VideoSummary{
			ID:              id,
			ChannelTitle:    it.Snippet.ChannelTitle,
			Title:           it.Snippet.Title,
			Description:     it.Snippet.Description,
			Thumbnail:       it.Snippet.Thumbnails,
			PublishedAt:     it.Snippet.PublishedAt,
			Likes:           strconv.FormatUint(s.LikeCount, 10),
			Comments:        strconv.FormatUint(s.CommentCount, 10),
			Views:           strconv.FormatUint(s.ViewCount, 10),
			EngagementScore: models.EngagementScore(s.ViewCount, s.LikeCount, s.CommentCount),
		})
	}
	return videos, nil
}

// VideoStats returns the cached statistics of one video.
func (d *Dashboard) VideoStats(ctx context.Context, caller Caller, videoID string) (*models.VideoStatistics, error) {
	if videoID == "" {
		return nil, invalidArgument("Video ID is null or undefined")
	}
	s, err := cache.GetOrLoad(ctx, d.stats, videoID, func(ctx context.Context) (models.VideoStatistics, error) {
		s, err := d.client.VideoStatistics(ctx, caller, videoID)
		if err != nil {
			return models.VideoStatistics{}, err
		}
		return *s, nil
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (d *Dashboard) recentUploads(ctx context.Context, caller Caller, load func(context.Context) ([]*ytv3.PlaylistItem, error)) ([]*ytv3.PlaylistItem, error) {
	// Without a caller key entries could leak across users.
	if caller.Key == "" {
		return load(ctx)
	}
	return cache.GetOrLoad(ctx, d.trending, caller.Key, load)
}

// statsFor fetches statistics for ids concurrently. Failures are logged and
// left out of the result.
func (d *Dashboard) statsFor(ctx context.Context, caller Caller, ids []string) map[string]models.VideoStatistics {
	var (
		mu  sync.Mutex
		out = make(map[string]models.VideoStatistics, len(ids))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(statsConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			s, err := d.VideoStats(gctx, caller, id)
			if err != nil {
				d.logger.Warn().Err(err).Str("video_id", id).Msg("error getting stats for video")
				return nil
			}
			mu.Lock()
			out[id] = *s
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (d *Dashboard) saveSnapshot(ctx context.Context, channelID string, c Counters) {
	err := d.snapshots.SaveSnapshot(ctx, models.ChannelSnapshot{
		ChannelID:   channelID,
		Day:         d.now(),
		Subscribers: c.Subscribers,
		Views:       c.Views,
		Videos:      c.Videos,
	})
	if err != nil {
		d.logger.Warn().Err(err).Str("channel_id", channelID).Msg("failed to store channel snapshot")
	}
}

func (d *Dashboard) historical(ctx context.Context, channelID string, current Counters) map[models.Period]models.HistoricalData {
	now := d.now()
	out := make(map[models.Period]models.HistoricalData, len(models.Periods))
	for _, p := range models.Periods {
		h, err := cache.GetOrLoad(ctx, d.history, channelID+"-"+string(p), func(ctx context.Context) (models.HistoricalData, error) {
			return d.historicalFor(ctx, channelID, current, p, now), nil
		})
		if err != nil {
			d.logger.Warn().Err(err).Str("channel_id", channelID).Str("period", string(p)).Msg("historical data unavailable")
			h = zeroHistorical()
		}
		out[p] = h
	}
	return out
}

func (d *Dashboard) historicalFor(ctx context.Context, channelID string, current Counters, p models.Period, now time.Time) models.HistoricalData {
	snap, err := d.snapshots.SnapshotOnOrBefore(ctx, channelID, now.Add(-p.Duration()))
	if err != nil {
		d.logger.Warn().Err(err).Str("channel_id", channelID).Msg("snapshot lookup failed, simulating")
	}
	if snap != nil {
		past := Counters{Subscribers: snap.Subscribers, Views: snap.Views, Videos: snap.Videos}
		return historicalData(current, past, models.SourceRecorded)
	}
	return historicalData(current, Project(channelID, current, p, now), models.SourceSimulated)
}

func videoID(it *ytv3.PlaylistItem) string {
	if it == nil || it.Snippet == nil || it.Snippet.ResourceId == nil {
		return ""
	}
	return it.Snippet.ResourceId.VideoId
}

func uniqueVideoIDs(items []*ytv3.PlaylistItem) []string {
	seen := make(map[string]bool, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		id := videoID(it)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
