package models

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	sqlitecloud "github.com/sqlitecloud/sqlitecloud-go"
)

// CloudDatabase is a SnapshotStore on SQLite Cloud
type CloudDatabase struct {
	db *sqlitecloud.SQCloud
}

// NewCloudDatabase connects to SQLite Cloud and creates the snapshot table
func NewCloudDatabase(connStr string, logger zerolog.Logger) (*CloudDatabase, error) {
	logger.Info().Str("db", maskConnectionString(connStr)).Msg("connecting to SQLite Cloud")

	db, err := sqlitecloud.Connect(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite Cloud: %w", err)
	}

	database := &CloudDatabase{db: db}
	if err := database.db.Execute(createSnapshotsTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return database, nil
}

// maskConnectionString hides the API key in logs
func maskConnectionString(connStr string) string {
	if i := strings.Index(connStr, "apikey="); i >= 0 {
		return connStr[:i] + "apikey=***"
	}
	return connStr
}

// SaveSnapshot upserts the day's snapshot. The driver has no context support.
func (d *CloudDatabase) SaveSnapshot(_ context.Context, s ChannelSnapshot) error {
	args := []interface{}{
		s.ChannelID,
		Day(s.Day).Format(dayLayout),
		int64(s.Subscribers),
		int64(s.Views),
		int64(s.Videos),
	}
	if err := d.db.ExecuteArray(upsertSnapshot, args); err != nil {
		return fmt.Errorf("failed to store snapshot for %s: %w", s.ChannelID, err)
	}
	return nil
}

// SnapshotOnOrBefore returns the latest snapshot on or before day
func (d *CloudDatabase) SnapshotOnOrBefore(_ context.Context, channelID string, day time.Time) (*ChannelSnapshot, error) {
	result, err := d.db.SelectArray(selectSnapshotOnOrBefore, []interface{}{channelID, Day(day).Format(dayLayout)})
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot for %s: %w", channelID, err)
	}
	if result.GetNumberOfRows() == 0 {
		return nil, nil
	}

	cols := make([]string, 5)
	for i := range cols {
		v, err := result.GetStringValue(0, uint64(i))
		if err != nil {
			return nil, fmt.Errorf("failed to read snapshot column %d: %w", i, err)
		}
		cols[i] = v
	}
	return parseSnapshotRow(cols)
}

func parseSnapshotRow(cols []string) (*ChannelSnapshot, error) {
	day, err := time.Parse(dayLayout, cols[1])
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot_day: %w", err)
	}
	counts := make([]uint64, 3)
	for i := range counts {
		n, err := strconv.ParseUint(strings.TrimSpace(cols[i+2]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse snapshot counter: %w", err)
		}
		counts[i] = n
	}
	return &ChannelSnapshot{
		ChannelID:   cols[0],
		Day:         day,
		Subscribers: counts[0],
		Views:       counts[1],
		Videos:      counts[2],
	}, nil
}

// Close closes the database connection
func (d *CloudDatabase) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}
