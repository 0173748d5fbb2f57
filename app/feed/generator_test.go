package feed

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/pressroom/app/cfg"
	"github.com/lysyi3m/pressroom/app/database"
)

func setupTestConfig(t *testing.T) {
	t.Helper()

	// Clear os.Args to prevent config parsing from failing
	oldArgs := os.Args
	os.Args = []string{"test"}
	defer func() { os.Args = oldArgs }()

	t.Setenv("BASE_URL", "https://press.example.com")

	_, err := cfg.Load()
	require.NoError(t, err)
}

func strPtr(s string) *string {
	return &s
}

func TestGenerateRSS(t *testing.T) {
	setupTestConfig(t)
	generator := NewGenerator()

	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	articles := []database.Article{
		{
			ID:          "a-1",
			Title:       "Budget approved",
			Content:     "<p>The council <b>approved</b> the budget.</p>",
			Section:     "news",
			Tags:        []string{"politics", "city"},
			MediaURLs:   []string{"https://cdn.example.com/posts/one.jpg", "https://cdn.example.com/posts/two.jpg"},
			MediaURL:    strPtr("https://cdn.example.com/posts/one.jpg"),
			AuthorName:  "Alice",
			AuthorEmail: "alice@example.com",
			CreatedAt:   created,
		},
		{
			ID:         "a-2",
			Title:      "Plain & simple",
			Content:    "No markup here",
			Section:    "news",
			AuthorName: "Bob",
			CreatedAt:  created.Add(-time.Hour),
		},
	}

	rss, err := generator.Run("news", articles)
	require.NoError(t, err)

	parsed, err := gofeed.NewParser().ParseString(rss)
	require.NoError(t, err)

	assert.Equal(t, "rss", parsed.FeedType)
	assert.Equal(t, "Pressroom: news", parsed.Title)
	assert.Equal(t, "https://press.example.com", parsed.Link)
	assert.Contains(t, parsed.FeedLink, "https://press.example.com/feeds/news")
	require.Len(t, parsed.Items, 2)

	first := parsed.Items[0]
	assert.Equal(t, "a-1", first.GUID)
	assert.Equal(t, "Budget approved", first.Title)
	assert.Equal(t, "The council approved the budget.", first.Description)
	assert.Contains(t, first.Content, "<b>approved</b>")
	assert.Equal(t, []string{"politics", "city"}, first.Categories)
	require.NotNil(t, first.PublishedParsed)
	assert.True(t, first.PublishedParsed.Equal(created))
	require.Len(t, first.Enclosures, 1)
	assert.Equal(t, "https://cdn.example.com/posts/one.jpg", first.Enclosures[0].URL)
	assert.Equal(t, "image/jpeg", first.Enclosures[0].Type)

	second := parsed.Items[1]
	assert.Equal(t, "Plain & simple", second.Title)
	assert.Equal(t, "No markup here", second.Description)
	assert.Empty(t, second.Content)
	assert.Empty(t, second.Enclosures)
}

func TestGenerateRSSEmptySection(t *testing.T) {
	setupTestConfig(t)

	rss, err := NewGenerator().Run("sport", nil)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(rss, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, rss, "<title>Pressroom: sport</title>")
	assert.NotContains(t, rss, "<item>")

	parsed, err := gofeed.NewParser().ParseString(rss)
	require.NoError(t, err)
	assert.Empty(t, parsed.Items)
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "Hello world", Excerpt("<p>Hello</p>\n\n<p>world</p>", 0))
	assert.Equal(t, "abc…", Excerpt("abcdef", 3))
	assert.Equal(t, "", Excerpt("", 10))
}

func TestEnclosureType(t *testing.T) {
	assert.Equal(t, "video/mp4", enclosureType("https://cdn.example.com/v/clip.mp4?sig=1"))
	assert.Equal(t, "image/png", enclosureType("https://cdn.example.com/p/IMG.PNG"))
	assert.Equal(t, defaultEnclosureType, enclosureType("https://cdn.example.com/raw/blob"))
}
