package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/pressroom/app/cfg"
	"github.com/lysyi3m/pressroom/app/database"
)

const (
	excerptLength        = 280
	defaultEnclosureType = "application/octet-stream"
)

// Go's built-in MIME table has no video entries
var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
}

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Run renders the articles of one section as an RSS 2.0 document. Articles
// are expected newest-priority first, as returned by ListArticles.
func (g *Generator) Run(section string, articles []database.Article) (string, error) {
	var buf bytes.Buffer

	publicURL := cfg.Get().PublicURL()
	feedURL := fmt.Sprintf("%s/feeds/%s", publicURL, url.PathEscape(section))

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", fmt.Sprintf("Pressroom: %s", section), 4)
	g.writeElement(&buf, "link", publicURL, 4)
	g.writeElement(&buf, "description", fmt.Sprintf("Latest articles in %s", section), 4)
	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(feedURL)))

	lastBuildDate := time.Now().In(time.Local)
	if len(articles) > 0 {
		lastBuildDate = latest(articles)
	}

	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("Pressroom/%s", cfg.Get().Version), 4)

	for _, article := range articles {
		g.writeItem(&buf, article)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, article database.Article) {
	buf.WriteString("    <item>\n")

	buf.WriteString("      <guid isPermaLink=\"false\">")
	xml.EscapeText(buf, []byte(article.ID))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", article.Title, 6)

	description := Excerpt(article.Content, excerptLength)
	if description == "" {
		description = "No description available"
	}
	g.writeElement(buf, "description", description, 6)

	if article.Content != "" && article.Content != description {
		buf.WriteString("      <content:encoded><![CDATA[")
		buf.WriteString(strings.ReplaceAll(article.Content, "]]>", "]]]]><![CDATA[>"))
		buf.WriteString("]]></content:encoded>\n")
	}

	g.writeElement(buf, "pubDate", article.CreatedAt.Format(time.RFC1123Z), 6)
	g.writeElement(buf, "author", formatAuthor(article), 6)

	for _, tag := range article.Tags {
		if tag != "" {
			g.writeElement(buf, "category", tag, 6)
		}
	}

	// RSS 2.0 requires url, length and type; the length is unknown for remote media
	if article.MediaURL != nil && *article.MediaURL != "" {
		buf.WriteString(fmt.Sprintf("      <enclosure url=\"%s\" length=\"0\" type=\"%s\" />\n",
			html.EscapeString(*article.MediaURL),
			html.EscapeString(enclosureType(*article.MediaURL))))
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	buf.WriteString(strings.Repeat(" ", indent))
	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

// Excerpt returns the visible text of body, collapsed to single spaces and
// cut to at most limit runes.
func Excerpt(body string, limit int) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}

	text := strings.Join(strings.Fields(doc.Text()), " ")

	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	return strings.TrimSpace(string(runes[:limit])) + "…"
}

func formatAuthor(article database.Article) string {
	if article.AuthorEmail == "" {
		return article.AuthorName
	}
	if article.AuthorName == "" {
		return article.AuthorEmail
	}
	return fmt.Sprintf("%s (%s)", article.AuthorEmail, article.AuthorName)
}

func enclosureType(mediaURL string) string {
	ext := path.Ext(mediaURL)
	if parsed, err := url.Parse(mediaURL); err == nil {
		ext = path.Ext(parsed.Path)
	}

	ext = strings.ToLower(ext)
	if contentType := mime.TypeByExtension(ext); contentType != "" {
		return contentType
	}
	if contentType, ok := videoTypes[ext]; ok {
		return contentType
	}
	return defaultEnclosureType
}

func latest(articles []database.Article) time.Time {
	newest := articles[0].CreatedAt
	for _, article := range articles[1:] {
		if article.CreatedAt.After(newest) {
			newest = article.CreatedAt
		}
	}
	return newest
}
