package source

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/raysh454/repscan/internal/logging"
	"github.com/raysh454/repscan/internal/utils"
	"github.com/raysh454/repscan/internal/webclient"
)

// DefaultCrawlDepth follows links one hop from the start page. It applies
// when no positive depth is configured.
const DefaultCrawlDepth = 1

// Crawl fetches a start page and, breadth first, the same-host pages it
// links to up to MaxDepth hops. Every absolute http(s) link found on the
// visited pages is returned, outbound links included, start page first.
type Crawl struct {
	start    string
	maxDepth int
	wc       webclient.WebClient
	logger   logging.Logger
}

func NewCrawl(start string, maxDepth int, wc webclient.WebClient, logger logging.Logger) *Crawl {
	if maxDepth <= 0 {
		maxDepth = DefaultCrawlDepth
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Crawl{start: start, maxDepth: maxDepth, wc: wc, logger: logger}
}

type crawlPage struct {
	url   *url.URL
	depth int
}

func (c *Crawl) URLs(ctx context.Context) ([]string, error) {
	root, err := url.Parse(strings.TrimSpace(c.start))
	if err != nil || utils.ValidateScanURL(c.start) != nil {
		return nil, fmt.Errorf("source: invalid crawl start %q", c.start)
	}

	seen := map[string]bool{}
	visited := map[string]bool{}
	var results []string
	add := func(u string) {
		if key := canonicalKey(u); !seen[key] {
			seen[key] = true
			results = append(results, u)
		}
	}
	add(root.String())

	queue := []crawlPage{{url: root}}
	visited[canonicalKey(root.String())] = true
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := queue[0]
		queue = queue[1:]

		links, err := c.fetchLinks(ctx, page.url)
		if err != nil {
			c.logger.Warn("error while crawling page",
				logging.Field{Key: "url", Value: page.url.String()},
				logging.Field{Key: "error", Value: err.Error()})
			continue
		}

		for _, link := range links {
			add(link)
			if page.depth+1 > c.maxDepth {
				continue
			}
			u, err := url.Parse(link)
			if err != nil || !strings.EqualFold(u.Hostname(), root.Hostname()) {
				continue
			}
			u.Fragment = ""
			if key := canonicalKey(u.String()); !visited[key] {
				visited[key] = true
				queue = append(queue, crawlPage{url: u, depth: page.depth + 1})
			}
		}
	}

	c.logger.Info("crawl finished",
		logging.Field{Key: "start", Value: root.String()},
		logging.Field{Key: "pages", Value: len(visited)},
		logging.Field{Key: "urls", Value: len(results)})
	return results, nil
}

func canonicalKey(u string) string {
	key, err := utils.Canonicalize(u, utils.DedupeOptions)
	if err != nil {
		return u
	}
	return key
}

func (c *Crawl) fetchLinks(ctx context.Context, page *url.URL) ([]string, error) {
	resp, err := c.wc.Do(ctx, &webclient.Request{Method: http.MethodGet, URL: page.String(), Headers: http.Header{}})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("source: %s returned %d", page, resp.StatusCode)
	}
	if ct := resp.Headers.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "text/html") {
		return nil, nil
	}
	return extractLinks(bytes.NewReader(resp.Body), page)
}

func (c *Crawl) Close() error {
	return c.wc.Close()
}
