package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

// LocalDatabase is a SnapshotStore on a local SQLite file
type LocalDatabase struct {
	db *sql.DB
}

// NewLocalDatabase opens (or creates) the SQLite file at path
func NewLocalDatabase(ctx context.Context, path string) (*LocalDatabase, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, createSnapshotsTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return &LocalDatabase{db: db}, nil
}

func (d *LocalDatabase) SaveSnapshot(ctx context.Context, s ChannelSnapshot) error {
	_, err := d.db.ExecContext(ctx, upsertSnapshot,
		s.ChannelID,
		Day(s.Day).Format(dayLayout),
		int64(s.Subscribers),
		int64(s.Views),
		int64(s.Videos),
	)
	if err != nil {
		return fmt.Errorf("failed to store snapshot for %s: %w", s.ChannelID, err)
	}
	return nil
}

func (d *LocalDatabase) SnapshotOnOrBefore(ctx context.Context, channelID string, day time.Time) (*ChannelSnapshot, error) {
	var (
		id, snapDay          string
		subs, views, videos int64
	)
	err := d.db.QueryRowContext(ctx, selectSnapshotOnOrBefore, channelID, Day(day).Format(dayLayout)).
		Scan(&id, &snapDay, &subs, &views, &videos)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot for %s: %w", channelID, err)
	}
	return parseSnapshotRow([]string{
		id,
		snapDay,
		strconv.FormatInt(subs, 10),
		strconv.FormatInt(views, 10),
		strconv.FormatInt(videos, 10),
	})
}

func (d *LocalDatabase) Close() error {
	return d.db.Close()
}
