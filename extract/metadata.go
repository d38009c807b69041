package extract

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Metadata is what a page says about itself outside the article body.
type Metadata struct {
	Title       string
	Author      string
	Authors     []string
	SiteName    string
	Description string
	PublishedAt *time.Time
}

// ReadMetadata collects Open Graph, <title>, author and published-time
// metadata. now anchors relative dates such as "3 hours ago".
func ReadMetadata(doc *goquery.Document, now time.Time) Metadata {
	var m Metadata

	m.Title = firstNonEmpty(
		metaContent(doc, `meta[property="og:title"]`),
		metaContent(doc, `meta[name="twitter:title"]`),
		NormalizeText(doc.Find("title").First().Text()),
		NormalizeText(doc.Find("h1").First().Text()),
	)
	m.SiteName = metaContent(doc, `meta[property="og:site_name"]`)
	m.Description = firstNonEmpty(
		metaContent(doc, `meta[property="og:description"]`),
		metaContent(doc, `meta[name="description"]`),
	)

	authorText := firstNonEmpty(
		metaContent(doc, `meta[name="author"]`),
		metaContent(doc, `meta[property="article:author"]`),
		NormalizeText(doc.Find(`[rel="author"]`).First().Text()),
		NormalizeText(doc.Find(`[itemprop="author"]`).First().Text()),
	)
	m.Authors = ParseAuthors(authorText)
	m.Author = strings.Join(m.Authors, ", ")

	dateText := firstNonEmpty(
		metaContent(doc, `meta[property="article:published_time"]`),
		metaContent(doc, `meta[itemprop="datePublished"]`),
		metaContent(doc, `meta[name="pubdate"]`),
		metaContent(doc, `meta[name="date"]`),
		attr(doc, "time[datetime]", "datetime"),
		NormalizeText(doc.Find("time").First().Text()),
	)
	if t, ok := ParsePublished(dateText, now); ok {
		m.PublishedAt = &t
	}

	return m
}

// ParseAuthors splits a single author string into multiple authors if it
// contains common delimiters.
func ParseAuthors(authorText string) []string {
	authorText = strings.TrimSpace(authorText)
	if authorText == "" {
		return nil
	}

	// Try splitting by ", " first, then " and "
	for _, sep := range []string{", ", " and "} {
		if !strings.Contains(authorText, sep) {
			continue
		}
		var authors []string
		for part := range strings.SplitSeq(authorText, sep) {
			part = strings.TrimSpace(part)
			if part != "" {
				authors = append(authors, part)
			}
		}
		return authors
	}

	return []string{authorText}
}

func metaContent(doc *goquery.Document, selector string) string {
	return attr(doc, selector, "content")
}

func attr(doc *goquery.Document, selector, name string) string {
	v, _ := doc.Find(selector).First().Attr(name)
	return NormalizeText(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
