// Package main implements a one-shot batch exporter that archives a
// Blogger blog as self-contained static HTML: every post gets its own page
// with remotely-hosted images downloaded next to it, linked together by
// previous/next navigation and a top-level index.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	gcs "cloud.google.com/go/storage"

	"blogger-archiver/auth"
	"blogger-archiver/blogger"
	"blogger-archiver/config"
	"blogger-archiver/export"
	"blogger-archiver/fetch"
	"blogger-archiver/pkg/blog"
	"blogger-archiver/rewrite"
	"blogger-archiver/storage"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, config.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := run(ctx, cfg); err != nil {
		slog.Error("Export failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	outputDir := filepath.Join(cfg.OutputRoot, cfg.BlogID)

	// Trial and specific-post runs always start from a clean slate; full
	// runs keep completed post directories so a re-run is cheap.
	if !cfg.Full || cfg.Clean {
		if err := os.RemoveAll(outputDir); err != nil {
			return fmt.Errorf("clean output dir: %w", err)
		}
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	logger, logPath, err := setupLogger(outputDir, cfg.Debug)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	logger.Info("Output directory ready", "path", outputDir)

	provider, err := auth.New(cfg.CredentialsFile, cfg.TokenFile, logger)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	source, err := provider.TokenSource(ctx)
	if err != nil {
		return fmt.Errorf("obtain bearer token: %w", err)
	}

	client, err := blogger.New(ctx, source, cfg.PageSize, logger)
	if err != nil {
		return err
	}

	meta, err := client.Blog(ctx, cfg.BlogID)
	if err != nil {
		return fmt.Errorf("fetch blog metadata: %w", err)
	}
	logger.Info("Processing blog", "name", meta.Name, "blog_id", meta.ID)

	var posts []*blog.Post
	if cfg.Post != "" {
		logger.Info("Fetching specific post", "post_id", cfg.Post)
		post, err := client.Post(ctx, cfg.BlogID, cfg.Post)
		if err != nil {
			return fmt.Errorf("fetch post %s: %w", cfg.Post, err)
		}
		posts = []*blog.Post{post}
	} else {
		posts, err = client.Posts(ctx, cfg.BlogID, cfg.Limit)
		if err != nil {
			return fmt.Errorf("list posts: %w", err)
		}
	}
	logger.Info("Retrieved posts", "count", len(posts))

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	fetcher := fetch.New(httpClient, source, logger)
	rewriter := rewrite.New(fetcher, cfg.AssetHosts, logger)
	exporter := export.New(outputDir, rewriter, cfg.Post != "", logger)

	if err := exporter.Run(ctx, meta, posts); err != nil {
		return err
	}

	if cfg.Bucket != "" {
		if err := mirrorArchive(ctx, cfg.Bucket, outputDir, cfg.BlogID, logger); err != nil {
			return err
		}
	}

	logger.Info("Conversion completed successfully",
		"index", filepath.Join(outputDir, "index.html"),
		"log_file", logPath)
	return nil
}

// setupLogger logs to stderr and to a per-run file inside the output
// directory, so each export leaves its own audit trail next to the pages.
func setupLogger(outputDir string, debug bool) (*slog.Logger, string, error) {
	logPath := filepath.Join(outputDir, fmt.Sprintf("archive_%s.log", time.Now().Format("20060102_150405")))
	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, "", fmt.Errorf("create log file: %w", err)
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(io.MultiWriter(os.Stderr, logFile), &slog.HandlerOptions{
		Level: level,
	}))
	return logger, logPath, nil
}

func mirrorArchive(ctx context.Context, bucket, outputDir, blogID string, logger *slog.Logger) error {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("create storage client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close storage client", "error", err)
		}
	}()

	mirror := storage.New(client, bucket, logger)
	if err := mirror.Sync(ctx, outputDir, blogID); err != nil {
		return fmt.Errorf("mirror archive: %w", err)
	}
	return nil
}
