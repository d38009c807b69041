package extract

import (
	"encoding/json"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicy = bluemonday.StrictPolicy()
	breakTagRe   = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</div>|</li>|</h[1-6]>`)
)

// ArticleSchema reads the article from structured data: JSON-LD
// articleBody first, then microdata itemprop="articleBody".
func ArticleSchema() Strategy {
	return Strategy{ID: StrategyArticleSchema, Extract: extractArticleSchema}
}

func extractArticleSchema(raw []byte) (Candidate, bool) {
	doc, err := parse(raw)
	if err != nil {
		return Candidate{}, false
	}

	var cand Candidate
	found := false
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}
		cand, found = findArticle(data)
		return !found
	})
	if found {
		return cand, true
	}

	body := doc.Find(`[itemprop="articleBody"]`).First()
	if body.Length() == 0 {
		return Candidate{}, false
	}
	markup, _ := goquery.OuterHtml(body)
	cand = Candidate{
		Title:    NormalizeText(doc.Find(`[itemprop="headline"]`).First().Text()),
		BodyText: blockText(body),
		HTML:     markup,
		Author:   NormalizeText(doc.Find(`[itemprop="author"]`).First().Text()),
	}
	if v, ok := doc.Find(`[itemprop="datePublished"]`).First().Attr("content"); ok {
		if t, ok := parseAbsolute(v); ok {
			cand.PublishedAt = &t
		}
	}
	return cand, strings.TrimSpace(cand.BodyText) != ""
}

// findArticle walks a JSON-LD value for the first object carrying an
// articleBody. Only @graph, mainEntity and arrays are descended into, in
// document order.
func findArticle(v any) (Candidate, bool) {
	switch x := v.(type) {
	case []any:
		for _, item := range x {
			if c, ok := findArticle(item); ok {
				return c, true
			}
		}
	case map[string]any:
		if body, ok := x["articleBody"].(string); ok && strings.TrimSpace(body) != "" {
			c := Candidate{
				Title:    stringField(x, "headline", "name"),
				BodyText: stripMarkup(body),
				Author:   authorName(x["author"]),
			}
			if ds := stringField(x, "datePublished", "dateCreated"); ds != "" {
				if t, ok := parseAbsolute(ds); ok {
					c.PublishedAt = &t
				}
			}
			return c, true
		}
		for _, key := range []string{"@graph", "mainEntity"} {
			if inner, ok := x[key]; ok {
				if c, ok := findArticle(inner); ok {
					return c, true
				}
			}
		}
	}
	return Candidate{}, false
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// authorName flattens the shapes schema.org authors come in: a string, a
// Person object, or a list of either.
func authorName(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case map[string]any:
		return stringField(x, "name")
	case []any:
		var names []string
		for _, item := range x {
			if n := authorName(item); n != "" {
				names = append(names, n)
			}
		}
		return strings.Join(names, ", ")
	}
	return ""
}

// stripMarkup removes any HTML from a structured-data body, keeping paragraph
// breaks.
func stripMarkup(s string) string {
	s = breakTagRe.ReplaceAllString(s, "\n")
	return html.UnescapeString(strictPolicy.Sanitize(s))
}
