// Package progress tracks upload progress per user.
package progress

import (
	"context"
	"time"

	"github.com/yt-dashboard/internal/cache"
)

const (
	// ActiveTTL bounds how long an unfinished upload's progress is kept.
	ActiveTTL = time.Hour
	// CompletedTTL is how long 100 stays readable after success.
	CompletedTTL = time.Minute
)

// Tracker stores the latest upload percentage of each user. Unknown users
// read as 0.
type Tracker struct {
	entries *cache.Cache
}

// NewTracker creates a Tracker over store.
func NewTracker(store cache.Store) *Tracker {
	return &Tracker{entries: cache.New("upload-progress", store, ActiveTTL)}
}

// Set records percent for userID, clamped to 0..100.
func (t *Tracker) Set(ctx context.Context, userID string, percent int) error {
	return t.entries.Set(ctx, userID, min(max(percent, 0), 100))
}

// Get returns the recorded percentage for userID.
func (t *Tracker) Get(ctx context.Context, userID string) (int, error) {
	var pct int
	hit, err := t.entries.Get(ctx, userID, &pct)
	if err != nil || !hit {
		return 0, err
	}
	return pct, nil
}

// Complete marks the upload finished. The 100 expires after CompletedTTL.
func (t *Tracker) Complete(ctx context.Context, userID string) error {
	return t.entries.SetTTL(ctx, userID, 100, CompletedTTL)
}

// Clear drops the progress of userID.
func (t *Tracker) Clear(ctx context.Context, userID string) error {
	return t.entries.Delete(ctx, userID)
}
