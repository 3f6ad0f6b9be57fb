package source

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLLinks harvests absolute http(s) anchor targets from a saved HTML
// page, such as a news listing. Relative hrefs are resolved against the
// document's <base href> when it has one and dropped otherwise.
type HTMLLinks struct {
	path string
}

func NewHTMLLinks(path string) *HTMLLinks {
	return &HTMLLinks{path: path}
}

func (h *HTMLLinks) URLs(_ context.Context) ([]string, error) {
	fh, err := os.Open(h.path)
	if err != nil {
		return nil, fmt.Errorf("source: open html: %w", err)
	}
	defer fh.Close()
	return ExtractLinks(fh)
}

func (h *HTMLLinks) Close() error { return nil }

// ExtractLinks returns the anchor targets of the document in r, in
// document order.
func ExtractLinks(r io.Reader) ([]string, error) {
	return extractLinks(r, nil)
}

// extractLinks resolves relative hrefs against the document's <base href>,
// itself resolved against page when page is non-nil.
func extractLinks(r io.Reader, page *url.URL) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("source: parse html: %w", err)
	}

	base := page
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if u, err := url.Parse(strings.TrimSpace(href)); err == nil {
			switch {
			case u.IsAbs():
				base = u
			case page != nil:
				base = page.ResolveReference(u)
			}
		}
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		u, err := url.Parse(href)
		if err != nil {
			return
		}
		if !u.IsAbs() {
			if base == nil {
				return
			}
			u = base.ResolveReference(u)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return
		}
		links = append(links, u.String())
	})
	return links, nil
}
