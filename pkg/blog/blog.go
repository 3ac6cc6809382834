// Package blog contains the core domain types for the Blogger archive pipeline.
package blog

// Post represents a single blog post as returned by the Blogger API.
type Post struct {
	ID        string
	Title     string
	Author    string // Author display name, may be empty
	Published string // RFC3339 timestamp from the API, source timezone varies
	URL       string // Canonical URL on Blogger
	Content   string // Raw HTML fragment, untrusted structure
}

// Blog represents the blog-level metadata needed for the index page.
type Blog struct {
	ID         string
	Name       string
	URL        string
	TotalPosts int64 // Post count reported by the API, not the export
}

// Navigation holds the previous/next sibling links for one post's page.
// Either link falls back to the index page at the sequence boundaries.
type Navigation struct {
	Previous string
	Next     string
}
