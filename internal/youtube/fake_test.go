package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/yt-dashboard/internal/cache"
	"github.com/yt-dashboard/internal/models"
	"golang.org/x/oauth2"
)

const testToken = "test-access-token"

func testCaller(key string) Caller {
	return Caller{Key: key, Tokens: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: testToken})}
}

const channelJSON = `{
  "kind": "youtube#channelListResponse",
  "etag": "etag-1",
  "items": [{
    "id": "UCabc",
    "snippet": {"title": "My Channel", "customUrl": "@mine", "thumbnails": {"medium": {"url": "https://img/m.jpg"}}},
    "statistics": {"subscriberCount": "1000", "viewCount": "50000", "videoCount": "20", "hiddenSubscriberCount": false},
    "contentDetails": {"relatedPlaylists": {"uploads": "UUabc"}}
  }]
}`

// fakeYouTube serves the subset of the Data API the dashboard uses.
type fakeYouTube struct {
	t *testing.T

	mu            sync.Mutex
	channel       string
	channelStatus int
	channelError  string
	playlist      []string
	stats         map[string]string
	videoStatus   map[string]int
	calls         map[string]int
}

func newFakeYouTube(t *testing.T) (*fakeYouTube, *Client) {
	t.Helper()
	f := &fakeYouTube{
		t:           t,
		channel:     channelJSON,
		stats:       map[string]string{},
		videoStatus: map[string]int{},
		calls:       map[string]int{},
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)

	client := NewClient(ClientConfig{APIBaseURL: srv.URL}, zerolog.Nop())
	return f, client
}

func (f *fakeYouTube) serve(w http.ResponseWriter, r *http.Request) {
	if got := r.Header.Get("Authorization"); got != "Bearer "+testToken {
		writeAPIError(w, http.StatusUnauthorized, "authError", "Invalid Credentials")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	path := r.URL.Path
	switch {
	case strings.HasSuffix(path, "/channels"):
		f.calls["channels"]++
		if f.channelStatus != 0 {
			writeAPIError(w, f.channelStatus, f.channelError, "channel request rejected")
			return
		}
		fmt.Fprint(w, f.channel)
	case strings.HasSuffix(path, "/playlistItems"):
		f.calls["playlistItems"]++
		if r.URL.Query().Get("playlistId") != "UUabc" {
			writeAPIError(w, http.StatusNotFound, "playlistNotFound", "playlist not found")
			return
		}
		fmt.Fprint(w, playlistJSON(f.playlist))
	case strings.HasSuffix(path, "/videos"):
		id := r.URL.Query().Get("id")
		f.calls["videos"]++
		f.calls["videos:"+id]++
		if code := f.videoStatus[id]; code != 0 {
			writeAPIError(w, code, "backendError", "video lookup failed")
			return
		}
		stats, ok := f.stats[id]
		if !ok {
			fmt.Fprint(w, `{"items": []}`)
			return
		}
		fmt.Fprintf(w, `{"items": [{"id": %q, "statistics": %s}]}`, id, stats)
	case strings.HasSuffix(path, "/thumbnails/set"):
		f.calls["thumbnails"]++
		fmt.Fprint(w, `{"kind": "youtube#thumbnailSetResponse", "items": []}`)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeYouTube) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func playlistJSON(ids []string) string {
	type resourceID struct {
		VideoID string `json:"videoId"`
	}
	type snippet struct {
		Title        string      `json:"title"`
		Description  string      `json:"description"`
		ChannelTitle string      `json:"channelTitle"`
		PublishedAt  string      `json:"publishedAt"`
		ResourceID   *resourceID `json:"resourceId,omitempty"`
	}
	type item struct {
		Snippet snippet `json:"snippet"`
	}

	items := make([]item, 0, len(ids))
	for _, id := range ids {
		s := snippet{
			Title:        "Video " + id,
			Description:  "About " + id,
			ChannelTitle: "My Channel",
			PublishedAt:  "2026-01-01T00:00:00Z",
		}
		if id != "" {
			s.ResourceID = &resourceID{VideoID: id}
		}
		items = append(items, item{Snippet: s})
	}
	data, _ := json.Marshal(map[string]any{"kind": "youtube#playlistItemListResponse", "items": items})
	return string(data)
}

func writeAPIError(w http.ResponseWriter, code int, reason, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error": {"code": %d, "message": %q, "errors": [{"message": %q, "domain": "youtube", "reason": %q}]}}`,
		code, message, message, reason)
}

// memorySnapshots is an in-memory SnapshotStore.
type memorySnapshots struct {
	mu    sync.Mutex
	saved []models.ChannelSnapshot
}

func (m *memorySnapshots) SaveSnapshot(_ context.Context, s models.ChannelSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, s)
	return nil
}

func (m *memorySnapshots) SnapshotOnOrBefore(_ context.Context, channelID string, day time.Time) (*models.ChannelSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *models.ChannelSnapshot
	for i := range m.saved {
		s := m.saved[i]
		if s.ChannelID != channelID || models.Day(s.Day).After(models.Day(day)) {
			continue
		}
		if best == nil || s.Day.After(best.Day) {
			best = &s
		}
	}
	return best, nil
}

func (m *memorySnapshots) Close() error { return nil }

func newTestDashboard(t *testing.T, client *Client, snapshots models.SnapshotStore, now time.Time) *Dashboard {
	t.Helper()
	store := cache.NewMemoryStore(0)
	t.Cleanup(func() { _ = store.Close() })
	return NewDashboard(DashboardConfig{
		Client:    client,
		Store:     store,
		TTL:       5 * time.Minute,
		Snapshots: snapshots,
		Now:       func() time.Time { return now },
		Logger:    zerolog.Nop(),
	})
}
