package extract

import (
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const (
	// maxElementsPerSelector bounds how many matches of one selector are
	// inspected.
	maxElementsPerSelector = 10
	minLinkTitle           = 10
	maxLinkTitle           = 200
)

// Link is an article link found on a listing page or feed. Feeds may also
// supply the author and publication time.
type Link struct {
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Author      string     `json:"author,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// Fill copies the link's author and publication time into c where the page
// itself provided none.
func (l Link) Fill(c *Candidate) {
	if c.Author == "" {
		c.Author = l.Author
	}
	if c.PublishedAt == nil && l.PublishedAt != nil {
		t := *l.PublishedAt
		c.PublishedAt = &t
	}
}

// DiscoverLinks finds article links on a listing page. Selectors are tried in
// order and the first one that yields any link wins. Each selector may match
// an <a> or an element containing one; titles must be 10-200 characters.
// URLs are made absolute against baseURL, restricted to http(s) and
// de-duplicated. limit <= 0 means no cap.
func DiscoverLinks(raw []byte, baseURL string, selectors []string, limit int) []Link {
	doc, err := parse(raw)
	if err != nil {
		return nil
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	var links []Link
	for _, selector := range selectors {
		doc.Find(selector).EachWithBreak(func(i int, s *goquery.Selection) bool {
			if i >= maxElementsPerSelector {
				return false
			}
			if l, ok := linkFrom(s, base); ok {
				links = append(links, l)
			}
			return true
		})
		if len(links) > 0 {
			break
		}
	}

	seen := make(map[string]bool, len(links))
	var unique []Link
	for _, l := range links {
		if seen[l.URL] {
			continue
		}
		seen[l.URL] = true
		unique = append(unique, l)
		if limit > 0 && len(unique) >= limit {
			break
		}
	}
	return unique
}

func linkFrom(s *goquery.Selection, base *url.URL) (Link, bool) {
	anchor := s
	if goquery.NodeName(s) != "a" {
		anchor = s.Find("a[href]").First()
	}
	href, ok := anchor.Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return Link{}, false
	}

	title := NormalizeText(s.Text())
	n := utf8.RuneCountInString(title)
	if n < minLinkTitle || n > maxLinkTitle {
		return Link{}, false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return Link{}, false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return Link{}, false
	}
	abs.Fragment = ""

	return Link{Title: title, URL: abs.String()}, true
}
