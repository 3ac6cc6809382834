package export

import "blogger-archiver/pkg/blog"

// indexFallback is where previous/next point when no sibling exists.
const indexFallback = "../index.html"

// BuildNavigation computes the previous/next link pair for every post in
// the sequence. Order is the fetch order; both boundaries fall back to the
// index page. Pure function of the sequence, recomputed every run.
func BuildNavigation(posts []*blog.Post) map[string]blog.Navigation {
	nav := make(map[string]blog.Navigation, len(posts))

	for i, post := range posts {
		entry := blog.Navigation{Previous: indexFallback, Next: indexFallback}
		if i > 0 {
			entry.Previous = pageHref(posts[i-1].ID)
		}
		if i < len(posts)-1 {
			entry.Next = pageHref(posts[i+1].ID)
		}
		nav[post.ID] = entry
	}

	return nav
}

// pageHref is the relative path from one post's page to a sibling's page.
func pageHref(postID string) string {
	return "../" + postID + "/" + postID + ".html"
}
