package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yt-dashboard/internal/auth"
	"github.com/yt-dashboard/internal/models"
)

const publicCache = "public, max-age=300"

// getChannel handles requests for the caller's channel statistics
func (s *Server) getChannel(c *gin.Context) {
	id, _ := auth.FromContext(c)
	channel, err := s.dashboard.ChannelData(c.Request.Context(), id.Caller)
	if err != nil {
		s.writeReadError(c, "Failed to fetch channel data", err)
		return
	}
	c.Header("Cache-Control", publicCache)
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     "YouTube channel data retrieved successfully",
		"channelData": channel,
	})
}

// getPlaylistItems handles requests for the top-10 list
func (s *Server) getPlaylistItems(c *gin.Context) {
	id, _ := auth.FromContext(c)
	videos, err := s.dashboard.TrendingVideos(c.Request.Context(), id.Caller)
	if err != nil {
		s.writeReadError(c, "Failed to fetch videos", err)
		return
	}
	c.Header("Cache-Control", publicCache)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Videos fetched successfully",
		"videos":  videos,
	})
}

// getVideoStats handles requests for one video's statistics
func (s *Server) getVideoStats(c *gin.Context) {
	videoID := c.Query("Id")
	if videoID == "" {
		videoID = c.Query("id")
	}
	id, _ := auth.FromContext(c)
	stats, err := s.dashboard.VideoStats(c.Request.Context(), id.Caller, videoID)
	if err != nil {
		s.writeReadError(c, "Failed to fetch video statistics", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "All videos fetched successfully",
		"videoStats": stats,
	})
}

// getCategories lists the categories offered by the upload form
func (s *Server) getCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"categories": models.Categories,
	})
}
