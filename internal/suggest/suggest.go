// Package suggest produces upload metadata (title and description) for a
// video with Gemini.
package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

const (
	// MaxTitleRunes is the YouTube title limit.
	MaxTitleRunes  = 100
	defaultModel   = "gemini-2.5-flash"
	requestTimeout = 90 * time.Second
)

// ErrEmptySuggestion means the model answered without a usable title.
var ErrEmptySuggestion = errors.New("suggest: model returned no title")

const prompt = `You are given a video that will be uploaded to YouTube.
Generate:
1. A catchy YouTube video title (max 100 characters).
2. A short engaging description (max 100 words).

Return ONLY a JSON object like:
{"title":"Video Title","description":"Video description"}`

// Suggestion is proposed upload metadata.
type Suggestion struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Suggester proposes metadata for a video.
type Suggester interface {
	Suggest(ctx context.Context, video []byte, mimeType string) (*Suggestion, error)
}

// Gemini is a Suggester backed by the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
	logger zerolog.Logger
}

// NewGemini creates a Gemini suggester.
func NewGemini(ctx context.Context, apiKey, model string, logger zerolog.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	if model == "" {
		model = defaultModel
	}
	return &Gemini{client: client, model: model, logger: logger}, nil
}

// Suggest sends the video inline with the prompt and parses the JSON answer.
func (g *Gemini) Suggest(ctx context.Context, video []byte, mimeType string) (*Suggestion, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if mimeType == "" {
		mimeType = "video/mp4"
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(video, mimeType),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	text := resp.Text()
	g.logger.Debug().Int("video_bytes", len(video)).Int("response_len", len(text)).Msg("gemini suggestion received")
	return parseSuggestion(text)
}

// parseSuggestion extracts the JSON object from a model answer, tolerating
// markdown fences and surrounding prose.
func parseSuggestion(text string) (*Suggestion, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if idx := strings.Index(text, "{"); idx >= 0 {
		if end := strings.LastIndex(text, "}"); end > idx {
			text = text[idx : end+1]
		}
	}

	var s Suggestion
	if err := json.Unmarshal([]byte(text), &s); err != nil {
		return nil, fmt.Errorf("suggest: malformed model answer: %w", err)
	}
	s.Title = strings.TrimSpace(s.Title)
	s.Description = strings.TrimSpace(s.Description)
	if s.Title == "" {
		return nil, ErrEmptySuggestion
	}
	if utf8.RuneCountInString(s.Title) > MaxTitleRunes {
		s.Title = strings.TrimSpace(string([]rune(s.Title)[:MaxTitleRunes]))
	}
	return &s, nil
}
