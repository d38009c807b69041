// Package feed discovers article links from RSS and Atom feeds for
// feed-mode targets.
package feed

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/pevans/newsharvest/extract"
)

// Entry is one feed item pointing at an article page.
type Entry struct {
	Title       string
	URL         string
	Authors     []string
	PublishedAt *time.Time
}

// Link converts the entry to a discovered link, keeping its authors and
// publication time.
func (e Entry) Link() extract.Link {
	return extract.Link{
		Title:       e.Title,
		URL:         e.URL,
		Author:      strings.Join(e.Authors, ", "),
		PublishedAt: e.PublishedAt,
	}
}

// Parse reads an RSS or Atom document. gofeed detects the format. Entries
// keep feed order; items without an http(s) link are skipped and repeated
// links are dropped. Relative links resolve against the feed's own link.
// limit <= 0 means no cap.
func Parse(raw []byte, limit int) ([]Entry, error) {
	fp := gofeed.NewParser()
	f, err := fp.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	base, _ := url.Parse(f.Link)

	seen := make(map[string]bool)
	var entries []Entry
	for _, item := range f.Items {
		link, ok := resolve(base, item.Link)
		if !ok || seen[link] {
			continue
		}
		seen[link] = true
		entries = append(entries, itemToEntry(item, link))
		if limit > 0 && len(entries) >= limit {
			break
		}
	}
	return entries, nil
}

// ParseLinks is Parse reduced to article links.
func ParseLinks(raw []byte, limit int) ([]extract.Link, error) {
	entries, err := Parse(raw, limit)
	if err != nil {
		return nil, err
	}
	links := make([]extract.Link, 0, len(entries))
	for _, e := range entries {
		links = append(links, e.Link())
	}
	return links, nil
}

func itemToEntry(item *gofeed.Item, link string) Entry {
	e := Entry{
		Title: extract.NormalizeText(item.Title),
		URL:   link,
	}

	// Authors: <author>, structured Atom authors, then Dublin Core creators
	if item.Author != nil && item.Author.Name != "" {
		e.Authors = append(e.Authors, item.Author.Name)
	}
	for _, author := range item.Authors {
		if author != nil && author.Name != "" && !contains(e.Authors, author.Name) {
			e.Authors = append(e.Authors, author.Name)
		}
	}
	if item.DublinCoreExt != nil {
		for _, creator := range item.DublinCoreExt.Creator {
			if creator != "" && !contains(e.Authors, creator) {
				e.Authors = append(e.Authors, creator)
			}
		}
	}

	// gofeed parses both <pubDate> and <published>/<updated>
	if item.PublishedParsed != nil {
		e.PublishedAt = item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		e.PublishedAt = item.UpdatedParsed
	}

	return e
}

func resolve(base *url.URL, link string) (string, bool) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", false
	}
	u, err := url.Parse(link)
	if err != nil {
		return "", false
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return u.String(), true
}

// contains checks if a string slice contains a specific string
func contains(slice []string, str string) bool {
	for _, s := range slice {
		if strings.EqualFold(s, str) {
			return true
		}
	}
	return false
}
