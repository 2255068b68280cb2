package suggest

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSuggestion(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Suggestion
	}{
		{
			name: "plain json",
			in:   `{"title": "Ten Go Tips", "description": "Quick wins for gophers."}`,
			want: Suggestion{Title: "Ten Go Tips", Description: "Quick wins for gophers."},
		},
		{
			name: "fenced",
			in:   "```json\n{\"title\": \"  Fenced  \", \"description\": \"d\"}\n```",
			want: Suggestion{Title: "Fenced", Description: "d"},
		},
		{
			name: "surrounding prose",
			in:   `Here you go: {"title": "With prose", "description": ""} Enjoy!`,
			want: Suggestion{Title: "With prose"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSuggestion(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParseSuggestionTruncatesTitle(t *testing.T) {
	long := strings.Repeat("é", 150)
	got, err := parseSuggestion(`{"title": "` + long + `", "description": "x"}`)
	require.NoError(t, err)
	assert.Equal(t, MaxTitleRunes, utf8.RuneCountInString(got.Title))
}

func TestParseSuggestionErrors(t *testing.T) {
	_, err := parseSuggestion(`{"title": "   ", "description": "only text"}`)
	require.ErrorIs(t, err, ErrEmptySuggestion)

	_, err = parseSuggestion("I cannot help with that.")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptySuggestion)
}
