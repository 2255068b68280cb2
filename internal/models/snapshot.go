package models

import (
	"context"
	"time"
)

// ChannelSnapshot records a channel's counters on one UTC day
type ChannelSnapshot struct {
	ChannelID   string    `json:"channelId"`
	Day         time.Time `json:"day"`
	Subscribers uint64    `json:"subscriberCount"`
	Views       uint64    `json:"viewCount"`
	Videos      uint64    `json:"videoCount"`
}

// SnapshotStore persists one ChannelSnapshot per channel and day
type SnapshotStore interface {
	// SaveSnapshot inserts or replaces the snapshot for (ChannelID, Day)
	SaveSnapshot(ctx context.Context, s ChannelSnapshot) error
	// SnapshotOnOrBefore returns the latest snapshot taken on or before day,
	// or nil when there is none
	SnapshotOnOrBefore(ctx context.Context, channelID string, day time.Time) (*ChannelSnapshot, error)
	Close() error
}

const dayLayout = "2006-01-02"

// Day truncates t to its UTC calendar day
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

const createSnapshotsTable = `CREATE TABLE IF NOT EXISTS channel_snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	channel_id TEXT NOT NULL,
	snapshot_day TEXT NOT NULL,
	subscriber_count INTEGER NOT NULL,
	view_count INTEGER NOT NULL,
	video_count INTEGER NOT NULL,
	update_date TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	CONSTRAINT unique_channel_day UNIQUE(channel_id, snapshot_day)
)`

const upsertSnapshot = `INSERT INTO channel_snapshots
	(channel_id, snapshot_day, subscriber_count, view_count, video_count)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(channel_id, snapshot_day) DO UPDATE SET
		subscriber_count = excluded.subscriber_count,
		view_count = excluded.view_count,
		video_count = excluded.video_count,
		update_date = CURRENT_TIMESTAMP`

const selectSnapshotOnOrBefore = `SELECT channel_id, snapshot_day, subscriber_count, view_count, video_count
	FROM channel_snapshots
	WHERE channel_id = ? AND snapshot_day <= ?
	ORDER BY snapshot_day DESC LIMIT 1`

// NopSnapshotStore stores nothing
type NopSnapshotStore struct{}

func (NopSnapshotStore) SaveSnapshot(context.Context, ChannelSnapshot) error { return nil }
func (NopSnapshotStore) SnapshotOnOrBefore(context.Context, string, time.Time) (*ChannelSnapshot, error) {
	return nil, nil
}
func (NopSnapshotStore) Close() error { return nil }
