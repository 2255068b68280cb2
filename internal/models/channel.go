package models

import (
	"time"

	"google.golang.org/api/youtube/v3"
)

// Period identifies a historical comparison window
type Period string

const (
	Period7Days   Period = "7d"
	Period1Month  Period = "1m"
	Period3Months Period = "3m"
)

// Periods lists the windows attached to every channel response
var Periods = []Period{Period7Days, Period1Month, Period3Months}

// Duration returns how far back the period reaches
func (p Period) Duration() time.Duration {
	const day = 24 * time.Hour
	switch p {
	case Period7Days:
		return 7 * day
	case Period1Month:
		return 30 * day
	case Period3Months:
		return 90 * day
	}
	return 0
}

// Valid reports whether p is a known period
func (p Period) Valid() bool {
	return p.Duration() > 0
}

// HistoricalSource tells whether a historical value was recorded or projected
type HistoricalSource string

const (
	SourceRecorded  HistoricalSource = "recorded"
	SourceSimulated HistoricalSource = "simulated"
)

// PercentChange holds the change from the historical value to now, per counter
type PercentChange struct {
	SubscriberCount float64 `json:"subscriberCount"`
	ViewCount       float64 `json:"viewCount"`
	VideoCount      float64 `json:"videoCount"`
}

// HistoricalData represents channel counters at the start of a period
type HistoricalData struct {
	SubscriberCount string           `json:"subscriberCount"`
	ViewCount       string           `json:"viewCount"`
	VideoCount      string           `json:"videoCount"`
	PercentChange   PercentChange    `json:"percentChange"`
	Source          HistoricalSource `json:"source"`
}

// ChannelStatistics is the upstream statistics object extended with
// aggregates over the channel's last 10 uploads
type ChannelStatistics struct {
	SubscriberCount       string `json:"subscriberCount"`
	VideoCount            string `json:"videoCount"`
	ViewCount             string `json:"viewCount"`
	HiddenSubscriberCount bool   `json:"hiddenSubscriberCount"`

	LikeCount        string `json:"likeCount"`
	CommentCount     string `json:"commentCount"`
	Last10ViewsCount string `json:"last10ViewsCount"`

	AverageViews       float64 `json:"averageViews"`
	LikeToViewRatio    float64 `json:"likeToViewRatio"`
	CommentToViewRatio float64 `json:"commentToViewRatio"`
}

// ChannelItem represents one channel in the dashboard response
type ChannelItem struct {
	ID             string                    `json:"id"`
	Snippet        *youtube.ChannelSnippet   `json:"snippet,omitempty"`
	Statistics     *ChannelStatistics        `json:"statistics,omitempty"`
	HistoricalData map[Period]HistoricalData `json:"historicalData,omitempty"`
}

// ChannelListResponse mirrors the upstream channels.list envelope
type ChannelListResponse struct {
	Kind  string        `json:"kind"`
	Etag  string        `json:"etag"`
	Items []ChannelItem `json:"items"`
}
