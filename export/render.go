package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"blogger-archiver/pkg/blog"
)

const (
	unknownDate   = "Unknown Date"
	unknownAuthor = "Unknown Author"
	unknownTitle  = "No Title"
)

// utcTimestamp is the display format for normalized publish times.
const utcTimestamp = "2006-01-02 15:04:05 UTC"

// formatPublished normalizes a source timestamp to UTC for display. The API
// emits RFC3339, but exports of old blogs have shown looser formats, so a
// lenient parse runs second. An unparseable value renders as an explicit
// unknown marker instead of failing the post.
func formatPublished(published string) string {
	if published == "" {
		return unknownDate
	}
	t, err := time.Parse(time.RFC3339, published)
	if err != nil {
		t, err = dateparse.ParseAny(published)
		if err != nil {
			return unknownDate
		}
	}
	return t.UTC().Format(utcTimestamp)
}

// renderPostPage builds the final page for one post. Content arrives
// already rewritten and is embedded as-is; everything else is escaped.
func renderPostPage(post *blog.Post, content string, nav blog.Navigation) string {
	title := post.Title
	if title == "" {
		title = unknownTitle
	}
	author := post.Author
	if author == "" {
		author = unknownAuthor
	}

	var b strings.Builder
	b.WriteString("<html>\n<head>\n")
	b.WriteString(fmt.Sprintf("<title>%s</title>\n", escapeHTML(title)))
	b.WriteString("</head>\n<body>\n")
	b.WriteString("<article>\n")
	b.WriteString(fmt.Sprintf("<h1>%s</h1>\n", escapeHTML(title)))
	b.WriteString(fmt.Sprintf("<div><strong>Published:</strong> %s</div>\n", formatPublished(post.Published)))
	b.WriteString(fmt.Sprintf("<div><strong>Author:</strong> %s</div>\n", escapeHTML(author)))
	b.WriteString(fmt.Sprintf("<div>%s</div>\n", content))
	b.WriteString("</article>\n")
	b.WriteString("<p>\n")
	b.WriteString(fmt.Sprintf("<a href=%q>Previous Post</a> |\n", nav.Previous))
	b.WriteString(fmt.Sprintf("<a href=%q>Next Post</a>\n", nav.Next))
	b.WriteString("</p>\n")
	b.WriteString("<p><a href=\"../index.html\">Back to index</a></p>\n")
	if post.URL != "" {
		b.WriteString(fmt.Sprintf("<p><a href=%q target=\"_blank\">View on Blogger</a></p>\n", post.URL))
	}
	b.WriteString("</body>\n</html>\n")

	return b.String()
}

// renderIndexPage builds the top-level listing: one timestamp-prefixed link
// per exported post plus the source's total count for comparison.
func renderIndexPage(meta *blog.Blog, posts []*blog.Post, exportedOn time.Time) string {
	name := meta.Name
	if name == "" {
		name = "Blogger Blog"
	}

	var b strings.Builder
	b.WriteString("<html>\n<head>\n")
	b.WriteString(fmt.Sprintf("<title>%s</title>\n", escapeHTML(name)))
	b.WriteString("</head>\n<body>\n")
	b.WriteString(fmt.Sprintf("<h1>%s</h1>\n", escapeHTML(name)))
	b.WriteString(fmt.Sprintf("<p><b>Total Posts:</b> %d</p>\n", meta.TotalPosts))
	b.WriteString(fmt.Sprintf("<p><b>Exported on:</b> %s</p>\n", exportedOn.Format("2006-01-02 15:04:05")))
	if meta.URL != "" {
		b.WriteString(fmt.Sprintf("<p><a href=%q target=\"_blank\">View on Blogger</a></p>\n", meta.URL))
	}
	b.WriteString("<ul>\n")
	for _, post := range posts {
		title := post.Title
		if title == "" {
			title = unknownTitle
		}
		b.WriteString(fmt.Sprintf("<li>%s &ndash; <a href=\"%s/%s.html\">%s</a></li>\n",
			formatPublished(post.Published), post.ID, post.ID, escapeHTML(title)))
	}
	b.WriteString("</ul>\n")
	b.WriteString(fmt.Sprintf("<p><b>Exported Posts:</b> %d</p>\n", len(posts)))
	b.WriteString("</body>\n</html>\n")

	return b.String()
}

// escapeHTML escapes HTML special characters for text nodes and attributes.
func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&#39;")
	return s
}
