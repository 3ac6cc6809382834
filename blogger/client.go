// Package blogger retrieves blog metadata and post records from the
// Blogger v3 API.
package blogger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"golang.org/x/oauth2"
	blggr "google.golang.org/api/blogger/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"blogger-archiver/pkg/blog"
)

// isRetryable rejects client-side API errors: a 404 blog or revoked scope
// will not heal on a second attempt.
func isRetryable(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 {
		return false
	}
	return true
}

// Client wraps the Blogger v3 service.
type Client struct {
	service  *blggr.Service
	logger   *slog.Logger
	pageSize int64
}

// New creates a Blogger API client authenticated by source. Extra options
// are appended after the token source, so tests can override the endpoint.
func New(ctx context.Context, source oauth2.TokenSource, pageSize int64, logger *slog.Logger, extra ...option.ClientOption) (*Client, error) {
	opts := make([]option.ClientOption, 0, len(extra)+1)
	if source != nil {
		opts = append(opts, option.WithTokenSource(source))
	}
	opts = append(opts, extra...)

	service, err := blggr.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create blogger service: %w", err)
	}

	if pageSize <= 0 {
		pageSize = 50
	}

	return &Client{
		service:  service,
		logger:   logger,
		pageSize: pageSize,
	}, nil
}

// Blog fetches the blog-level metadata for blogID.
func (c *Client) Blog(ctx context.Context, blogID string) (*blog.Blog, error) {
	var raw *blggr.Blog

	err := retry.Do(
		func() error {
			var apiErr error
			raw, apiErr = c.service.Blogs.Get(blogID).Context(ctx).Do()
			if apiErr != nil {
				return fmt.Errorf("blogs.get: %w", apiErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(time.Minute),
		retry.Context(ctx),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Info("Retrying blog metadata fetch after error", "attempt", n, "blog_id", blogID, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("after retries: %w", err)
	}

	meta := &blog.Blog{
		ID:   raw.Id,
		Name: raw.Name,
		URL:  raw.Url,
	}
	if raw.Posts != nil {
		meta.TotalPosts = raw.Posts.TotalItems
	}

	c.logger.Info("Blog metadata fetched", "blog_id", meta.ID, "name", meta.Name, "total_posts", meta.TotalPosts)
	return meta, nil
}

// Posts pages through every post of blogID in API order. A nonzero limit
// truncates the sequence once at least that many posts have been collected.
func (c *Client) Posts(ctx context.Context, blogID string, limit int) ([]*blog.Post, error) {
	var posts []*blog.Post
	pageToken := ""

	for {
		list, err := c.listPage(ctx, blogID, pageToken)
		if err != nil {
			return nil, err
		}

		for _, item := range list.Items {
			posts = append(posts, convert(item))
		}

		c.logger.Debug("Post page fetched", "blog_id", blogID, "page_items", len(list.Items), "total_so_far", len(posts))

		pageToken = list.NextPageToken
		if pageToken == "" {
			break
		}
		if limit > 0 && len(posts) >= limit {
			break
		}
	}

	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}

	c.logger.Info("Posts fetched", "blog_id", blogID, "count", len(posts))
	return posts, nil
}

// Post fetches a single post by ID, for the specific-post export mode.
func (c *Client) Post(ctx context.Context, blogID, postID string) (*blog.Post, error) {
	var raw *blggr.Post

	err := retry.Do(
		func() error {
			var apiErr error
			raw, apiErr = c.service.Posts.Get(blogID, postID).Context(ctx).Do()
			if apiErr != nil {
				return fmt.Errorf("posts.get: %w", apiErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(time.Minute),
		retry.Context(ctx),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Info("Retrying post fetch after error", "attempt", n, "post_id", postID, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("after retries: %w", err)
	}

	return convert(raw), nil
}

func (c *Client) listPage(ctx context.Context, blogID, pageToken string) (*blggr.PostList, error) {
	var list *blggr.PostList

	err := retry.Do(
		func() error {
			call := c.service.Posts.List(blogID).MaxResults(c.pageSize).Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			var apiErr error
			list, apiErr = call.Do()
			if apiErr != nil {
				return fmt.Errorf("posts.list: %w", apiErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(time.Minute),
		retry.Context(ctx),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Info("Retrying post list fetch after error", "attempt", n, "blog_id", blogID, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("after retries: %w", err)
	}
	return list, nil
}

func convert(raw *blggr.Post) *blog.Post {
	p := &blog.Post{
		ID:        raw.Id,
		Title:     raw.Title,
		Published: raw.Published,
		URL:       raw.Url,
		Content:   raw.Content,
	}
	if raw.Author != nil {
		p.Author = raw.Author.DisplayName
	}
	return p
}
