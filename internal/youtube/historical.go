package youtube

import (
	"math"
	"strconv"
	"time"

	"github.com/yt-dashboard/internal/models"
)

// Counters are the channel-level totals the dashboard tracks over time.
type Counters struct {
	Subscribers uint64
	Views       uint64
	Videos      uint64
}

type metric int

const (
	metricSubscribers metric = iota
	metricViews
	metricVideos
)

// Monthly base growth rates: subscribers grow steadily, views faster, the
// video count slowest.
var baseGrowth = [...]float64{
	metricSubscribers: 0.05,
	metricViews:       0.08,
	metricVideos:      0.03,
}

var periodMultiplier = map[models.Period]float64{
	models.Period7Days:   0.25,
	models.Period1Month:  1,
	models.Period3Months: 3,
}

// projectionSeed is stable for a channel within one UTC day.
func projectionSeed(channelID string, now time.Time) int {
	sum := 0
	for _, r := range channelID {
		sum += int(r)
	}
	return (sum + now.UTC().Day()) % 100
}

func growthRate(m metric, period models.Period, seed int) float64 {
	variability := float64(seed) / 100 * 0.5
	return baseGrowth[m] * periodMultiplier[period] * (1 + variability)
}

func projectBack(current uint64, m metric, period models.Period, seed int) uint64 {
	v := math.Floor(float64(current) / (1 + growthRate(m, period, seed)))
	if v < 0 {
		return 0
	}
	return uint64(v)
}

// Project simulates the counters at the start of period. It is a deterministic
// function of the channel id, the UTC day of now and the current counters.
func Project(channelID string, current Counters, period models.Period, now time.Time) Counters {
	if !period.Valid() {
		return Counters{}
	}
	seed := projectionSeed(channelID, now)
	return Counters{
		Subscribers: projectBack(current.Subscribers, metricSubscribers, period, seed),
		Views:       projectBack(current.Views, metricViews, period, seed),
		Videos:      projectBack(current.Videos, metricVideos, period, seed),
	}
}

// PercentChange returns the change from past to current in percent, rounded
// to two decimals. A zero past value yields 0.
func PercentChange(current, past uint64) float64 {
	if past == 0 {
		return 0
	}
	pct := (float64(current) - float64(past)) / float64(past) * 100
	return math.Round(pct*100) / 100
}

func historicalData(current, past Counters, source models.HistoricalSource) models.HistoricalData {
	return models.HistoricalData{
		SubscriberCount: strconv.FormatUint(past.Subscribers, 10),
		ViewCount:       strconv.FormatUint(past.Views, 10),
		VideoCount:      strconv.FormatUint(past.Videos, 10),
		PercentChange: models.PercentChange{
			SubscriberCount: PercentChange(current.Subscribers, past.Subscribers),
			ViewCount:       PercentChange(current.Views, past.Views),
			VideoCount:      PercentChange(current.Videos, past.Videos),
		},
		Source: source,
	}
}

func zeroHistorical() models.HistoricalData {
	return models.HistoricalData{
		SubscriberCount: "0",
		ViewCount:       "0",
		VideoCount:      "0",
		Source:          models.SourceSimulated,
	}
}
