package models

import "google.golang.org/api/youtube/v3"

// VideoSummary represents one entry of the top-10 list
type VideoSummary struct {
	ID              string                    `json:"id"`
	ChannelTitle    string                    `json:"channelTitle"`
	Title           string                    `json:"title"`
	Description     string                    `json:"description"`
	Thumbnail       *youtube.ThumbnailDetails `json:"thumbnail,omitempty"`
	PublishedAt     string                    `json:"publishedAt"`
	Likes           string                    `json:"likes"`
	Comments        string                    `json:"comments"`
	Views           string                    `json:"views"`
	EngagementScore float64                   `json:"engagementScore"`
}

// VideoStatistics is the upstream video statistics object
type VideoStatistics struct {
	ViewCount     uint64 `json:"viewCount,string"`
	LikeCount     uint64 `json:"likeCount,string"`
	CommentCount  uint64 `json:"commentCount,string"`
	FavoriteCount uint64 `json:"favoriteCount,string"`
}

// EngagementScore weighs comments over likes over views
func EngagementScore(views, likes, comments uint64) float64 {
	const (
		viewWeight    = 1.0
		likeWeight    = 2.0
		commentWeight = 3.0
	)
	return viewWeight*float64(views) + likeWeight*float64(likes) + commentWeight*float64(comments)
}

// Category is a video category offered by the upload form
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DefaultCategoryID is used when an upload names no category (Entertainment)
const DefaultCategoryID = "24"

// Categories lists the assignable YouTube Data API v3 categories
var Categories = []Category{
	{ID: "1", Name: "Film & Animation"},
	{ID: "2", Name: "Autos & Vehicles"},
	{ID: "10", Name: "Music"},
	{ID: "15", Name: "Pets & Animals"},
	{ID: "17", Name: "Sports"},
	{ID: "19", Name: "Travel & Events"},
	{ID: "20", Name: "Gaming"},
	{ID: "22", Name: "People & Blogs"},
	{ID: "23", Name: "Comedy"},
	{ID: "24", Name: "Entertainment"},
	{ID: "25", Name: "News & Politics"},
	{ID: "26", Name: "Howto & Style"},
	{ID: "27", Name: "Education"},
	{ID: "28", Name: "Science & Technology"},
	{ID: "29", Name: "Nonprofits & Activism"},
}

// Privacy statuses accepted by uploads
const (
	PrivacyPrivate  = "private"
	PrivacyPublic   = "public"
	PrivacyUnlisted = "unlisted"
)

// ValidPrivacy reports whether s is an accepted privacy status
func ValidPrivacy(s string) bool {
	switch s {
	case PrivacyPrivate, PrivacyPublic, PrivacyUnlisted:
		return true
	}
	return false
}

// UploadMetadata describes the video being uploaded
type UploadMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	CategoryID  string   `json:"categoryId"`
	Privacy     string   `json:"privacyStatus"`
}

// UploadResult is returned after a successful upload
type UploadResult struct {
	Success           bool   `json:"success"`
	UploadID          string `json:"uploadId"`
	VideoID           string `json:"videoId"`
	VideoURL          string `json:"videoUrl"`
	Title             string `json:"title"`
	PrivacyStatus     string `json:"privacyStatus"`
	ThumbnailUploaded bool   `json:"thumbnailUploaded"`
	Progress          int    `json:"progress"`
}
