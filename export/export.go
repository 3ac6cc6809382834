// Package export converts fetched posts into a self-contained static HTML
// archive: per-post pages with localized assets, previous/next navigation,
// and a top-level index. Each post's conversion is crash-safe and
// re-runnable via a marker-file protocol.
package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"blogger-archiver/pkg/blog"
)

// markerFile flags a post directory as mid-conversion. It is written before
// any other side effect and removed as the very last step, so its absence
// is the sole signal that a post directory is complete.
const markerFile = "semaphore.txt"

// ContentRewriter localizes asset references in one post's content,
// downloading the assets into outputDir as a side effect.
type ContentRewriter interface {
	Rewrite(ctx context.Context, postID, outputDir, content string) (string, error)
}

// Exporter writes one blog's archive under a per-run output directory.
type Exporter struct {
	rewriter   ContentRewriter
	logger     *slog.Logger
	outputDir  string
	saveSource bool // Keep the raw fragment alongside the archive (specific-post runs)
}

// New creates an exporter rooted at outputDir, which must already exist.
func New(outputDir string, rewriter ContentRewriter, saveSource bool, logger *slog.Logger) *Exporter {
	return &Exporter{
		rewriter:   rewriter,
		logger:     logger,
		outputDir:  outputDir,
		saveSource: saveSource,
	}
}

// Run converts every post in sequence order and regenerates the index. A
// post that fails conversion is logged and left for the next run to retry;
// it does not stop the remaining posts.
func (e *Exporter) Run(ctx context.Context, meta *blog.Blog, posts []*blog.Post) error {
	if err := e.WriteIndex(meta, posts); err != nil {
		return err
	}

	nav := BuildNavigation(posts)

	var converted, skipped, failed int
	for _, post := range posts {
		did, err := e.ConvertPost(ctx, post, nav[post.ID])
		switch {
		case err != nil:
			failed++
			e.logger.Warn("Post conversion failed, will retry on next run", "post_id", post.ID, "error", err)
		case did:
			converted++
		default:
			skipped++
		}
	}

	e.logger.Info("Export completed",
		"posts", len(posts),
		"converted", converted,
		"skipped", skipped,
		"failed", failed)

	if failed > 0 && converted == 0 && skipped == 0 {
		return fmt.Errorf("all %d post conversions failed", failed)
	}
	return nil
}

// ConvertPost converts one post into a durable, complete output directory.
// It reports whether the post was actually converted: a directory that
// completed on a prior run is skipped untouched, while a leftover marker
// file from an interrupted run tears the directory down and starts over.
func (e *Exporter) ConvertPost(ctx context.Context, post *blog.Post, nav blog.Navigation) (bool, error) {
	postDir := filepath.Join(e.outputDir, post.ID)
	marker := filepath.Join(postDir, markerFile)

	if _, err := os.Stat(marker); err == nil {
		e.logger.Warn("Incomplete conversion detected, cleaning up", "post_id", post.ID, "dir", postDir)
		if err := os.RemoveAll(postDir); err != nil {
			return false, fmt.Errorf("remove stale post dir: %w", err)
		}
	}

	// Mkdir doubles as the completeness check: a directory that exists
	// without a marker finished a previous run.
	if err := os.Mkdir(postDir, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			e.logger.Info("Skipped post: directory already complete", "post_id", post.ID, "dir", postDir)
			return false, nil
		}
		return false, fmt.Errorf("create post dir: %w", err)
	}

	if err := os.WriteFile(marker, nil, 0o644); err != nil {
		return false, fmt.Errorf("write marker: %w", err)
	}

	if e.saveSource {
		sourcePath := filepath.Join(e.outputDir, "blog_source.html")
		if err := os.WriteFile(sourcePath, []byte(post.Content), 0o644); err != nil {
			return false, fmt.Errorf("save source fragment: %w", err)
		}
		e.logger.Info("Saved source HTML", "post_id", post.ID, "path", sourcePath)
	}

	// Downloads happen here; on error the marker stays behind so the next
	// run restarts this post from scratch.
	content, err := e.rewriter.Rewrite(ctx, post.ID, postDir, post.Content)
	if err != nil {
		return false, fmt.Errorf("rewrite content: %w", err)
	}

	pagePath := filepath.Join(postDir, post.ID+".html")
	if err := os.WriteFile(pagePath, []byte(renderPostPage(post, content, nav)), 0o644); err != nil {
		return false, fmt.Errorf("write page: %w", err)
	}

	if err := os.Remove(marker); err != nil {
		return false, fmt.Errorf("remove marker: %w", err)
	}

	e.logger.Info("Converted post", "post_id", post.ID, "page", pagePath)
	return true, nil
}

// WriteIndex regenerates the index page unconditionally; it is cheap and
// must reflect the current run's scope.
func (e *Exporter) WriteIndex(meta *blog.Blog, posts []*blog.Post) error {
	indexPath := filepath.Join(e.outputDir, "index.html")
	page := renderIndexPage(meta, posts, time.Now())
	if err := os.WriteFile(indexPath, []byte(page), 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	e.logger.Info("Created index page", "path", indexPath, "posts", len(posts))
	return nil
}
