package export

import (
	"testing"

	"blogger-archiver/pkg/blog"
)

func makePosts(ids ...string) []*blog.Post {
	posts := make([]*blog.Post, 0, len(ids))
	for _, id := range ids {
		posts = append(posts, &blog.Post{ID: id})
	}
	return posts
}

func TestBuildNavigationBoundaries(t *testing.T) {
	nav := BuildNavigation(makePosts("a", "b", "c"))

	if len(nav) != 3 {
		t.Fatalf("entries = %d, want 3", len(nav))
	}

	first := nav["a"]
	if first.Previous != indexFallback {
		t.Errorf("first.Previous = %q, want index fallback %q", first.Previous, indexFallback)
	}
	if first.Next != "../b/b.html" {
		t.Errorf("first.Next = %q, want %q", first.Next, "../b/b.html")
	}

	middle := nav["b"]
	if middle.Previous != "../a/a.html" || middle.Next != "../c/c.html" {
		t.Errorf("middle = %+v, want neighbors a and c", middle)
	}

	last := nav["c"]
	if last.Previous != "../b/b.html" {
		t.Errorf("last.Previous = %q, want %q", last.Previous, "../b/b.html")
	}
	if last.Next != indexFallback {
		t.Errorf("last.Next = %q, want index fallback %q", last.Next, indexFallback)
	}
}

func TestBuildNavigationSinglePost(t *testing.T) {
	nav := BuildNavigation(makePosts("only"))

	entry := nav["only"]
	if entry.Previous != indexFallback || entry.Next != indexFallback {
		t.Errorf("single post nav = %+v, want both links to fall back to the index", entry)
	}
}

func TestBuildNavigationFollowsFetchOrder(t *testing.T) {
	// Navigation reflects sequence order, not any sorting by timestamp.
	posts := makePosts("z", "a", "m")
	posts[0].Published = "2020-01-01T00:00:00Z"
	posts[1].Published = "2024-01-01T00:00:00Z"
	posts[2].Published = "2022-01-01T00:00:00Z"

	nav := BuildNavigation(posts)
	if nav["z"].Next != "../a/a.html" {
		t.Errorf("nav[z].Next = %q, want fetch-order neighbor %q", nav["z"].Next, "../a/a.html")
	}
	if nav["m"].Previous != "../a/a.html" {
		t.Errorf("nav[m].Previous = %q, want fetch-order neighbor %q", nav["m"].Previous, "../a/a.html")
	}
}

func TestBuildNavigationEmpty(t *testing.T) {
	if nav := BuildNavigation(nil); len(nav) != 0 {
		t.Errorf("entries = %d, want 0", len(nav))
	}
}
