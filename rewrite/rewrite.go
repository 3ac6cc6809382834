// Package rewrite localizes remote asset references inside a post's HTML
// fragment, downloading each referenced asset as a side effect.
package rewrite

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// Downloader fetches one asset to a local path. It reports whether a file
// was written; a false result without error means the asset was soft-skipped.
type Downloader interface {
	Download(ctx context.Context, assetURL, localPath string) (bool, error)
}

// Rewriter rewrites asset-host references in post content to local filenames.
type Rewriter struct {
	downloader Downloader
	logger     *slog.Logger
	hosts      []string // URL prefixes that mark an attribute value as an asset
}

// New creates a rewriter that localizes values starting with any of hosts.
func New(downloader Downloader, hosts []string, logger *slog.Logger) *Rewriter {
	return &Rewriter{
		downloader: downloader,
		hosts:      hosts,
		logger:     logger,
	}
}

// pass carries the per-post rewrite state: the shared image counter and the
// accumulated output. One pass value per post, never reused.
type pass struct {
	postID    string
	outputDir string
	index     int
	out       bytes.Buffer
}

// Rewrite streams content through the tokenizer and returns it with every
// asset reference replaced by a local filename. Tokens that need no change
// are echoed from their raw bytes, so untouched markup survives verbatim.
// A failed download aborts the whole post.
func (r *Rewriter) Rewrite(ctx context.Context, postID, outputDir, content string) (string, error) {
	p := &pass{postID: postID, outputDir: outputDir}
	z := html.NewTokenizer(strings.NewReader(content))

	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return p.out.String(), nil
			}
			return "", fmt.Errorf("tokenize post %s: %w", postID, z.Err())

		case html.StartTagToken, html.SelfClosingTagToken:
			if err := r.startTag(ctx, p, z); err != nil {
				return "", err
			}

		case html.EndTagToken:
			// The img element was flattened at start-tag time, so a
			// stray closing tag for it is dropped.
			name, _ := z.TagName()
			if string(name) != "img" {
				p.out.Write(z.Raw())
			}

		default:
			p.out.Write(z.Raw())
		}
	}
}

// startTag echoes the tag verbatim unless one of its href/src attributes
// points at the asset host, in which case the tag is rebuilt with those
// values swapped for local filenames.
func (r *Rewriter) startTag(ctx context.Context, p *pass, z *html.Tokenizer) error {
	raw := z.Raw()
	tok := z.Token()

	needsRewrite := false
	for _, attr := range tok.Attr {
		if r.isAsset(attr.Val) && (attr.Key == "href" || attr.Key == "src") {
			needsRewrite = true
			break
		}
	}
	if !needsRewrite {
		p.out.Write(raw)
		return nil
	}

	p.out.WriteByte('<')
	p.out.WriteString(tok.Data)
	for _, attr := range tok.Attr {
		val := attr.Val
		if r.isAsset(val) {
			switch attr.Key {
			case "href":
				// A linked full-size image advances the shared
				// counter; its thumbnail reuses the same index.
				p.index++
				local, err := r.localize(ctx, p, val, "full")
				if err != nil {
					return err
				}
				val = local
			case "src":
				local, err := r.localize(ctx, p, val, "thumbnail")
				if err != nil {
					return err
				}
				val = local
			}
		}
		fmt.Fprintf(&p.out, ` %s="%s"`, attr.Key, html.EscapeString(val))
	}
	if tok.Type == html.SelfClosingTagToken {
		p.out.WriteString("/>")
	} else {
		p.out.WriteByte('>')
	}
	return nil
}

// localize downloads value into the post directory under a deterministic
// name and returns that name. A soft-skipped download keeps the original
// reference so the page never points at a file that was not written.
func (r *Rewriter) localize(ctx context.Context, p *pass, value, role string) (string, error) {
	filename := fmt.Sprintf("%s_%s_%d.jpg", p.postID, role, p.index)

	assetURL := value
	if !strings.HasPrefix(assetURL, "http") {
		assetURL = "https:" + assetURL
	}

	written, err := r.downloader.Download(ctx, assetURL, filepath.Join(p.outputDir, filename))
	if err != nil {
		return "", fmt.Errorf("localize %s for post %s: %w", assetURL, p.postID, err)
	}
	if !written {
		r.logger.Warn("Asset not written, keeping remote reference", "post_id", p.postID, "url", assetURL)
		return value, nil
	}

	r.logger.Debug("Asset localized", "post_id", p.postID, "url", assetURL, "filename", filename)
	return filename, nil
}

// isAsset reports whether value points at one of the configured asset
// hosts, either fully qualified or in the scheme-relative form.
func (r *Rewriter) isAsset(value string) bool {
	for _, host := range r.hosts {
		if strings.HasPrefix(value, host) {
			return true
		}
		if rel, ok := strings.CutPrefix(host, "https:"); ok && strings.HasPrefix(value, rel) {
			return true
		}
	}
	return false
}
