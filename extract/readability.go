package extract

import (
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const (
	// minBlockChars is the smallest block worth scoring.
	minBlockChars = 25
	// maxLinkDensity drops blocks that are mostly link text (menus, link lists).
	maxLinkDensity = 0.5
)

const landmarkSelector = `article, main, [role=main], [itemprop="articleBody"]`

// Readability finds the main content block by text density. Semantic
// landmarks win when present; otherwise the block with the best mix of text
// density, length and low link density is used.
func Readability() Strategy {
	return Strategy{ID: StrategyReadability, Extract: extractReadability}
}

func extractReadability(raw []byte) (Candidate, bool) {
	doc, err := parse(raw)
	if err != nil {
		return Candidate{}, false
	}
	stripBoilerplate(doc)

	best := bestLandmark(doc)
	if best == nil {
		best = densestBlock(doc)
	}
	if best == nil {
		return Candidate{}, false
	}

	markup, _ := goquery.OuterHtml(best)
	title := NormalizeText(best.Find("h1").First().Text())
	if title == "" {
		title = NormalizeText(doc.Find("h1").First().Text())
	}

	return Candidate{
		Title:    title,
		BodyText: blockText(best),
		HTML:     markup,
	}, true
}

// bestLandmark returns the landmark with the most text that is not mostly
// links.
func bestLandmark(doc *goquery.Document) *goquery.Selection {
	var best *goquery.Selection
	bestLen := 0

	doc.Find(landmarkSelector).Each(func(_ int, s *goquery.Selection) {
		textLen := utf8.RuneCountInString(NormalizeText(s.Text()))
		if textLen < minBlockChars || linkDensity(s, textLen) > maxLinkDensity {
			return
		}
		if textLen > bestLen {
			best, bestLen = s, textLen
		}
	})
	return best
}

// densestBlock scores container elements by
// density * logScale(textLen) * (1 - linkDensity).
func densestBlock(doc *goquery.Document) *goquery.Selection {
	var best *goquery.Selection
	var bestScore float64

	doc.Find("div, section, td, body").Each(func(_ int, s *goquery.Selection) {
		textLen := utf8.RuneCountInString(NormalizeText(s.Text()))
		if textLen < minBlockChars {
			return
		}
		ld := linkDensity(s, textLen)
		if ld > maxLinkDensity {
			return
		}

		markup, err := goquery.OuterHtml(s)
		if err != nil {
			return
		}
		markupLen := len(markup)
		if markupLen == 0 {
			markupLen = 1
		}

		density := float64(textLen) / float64(markupLen)
		score := density * logScale(textLen) * (1 - ld)
		if score > bestScore {
			best, bestScore = s, score
		}
	})
	return best
}

func linkDensity(s *goquery.Selection, textLen int) float64 {
	if textLen == 0 {
		return 0
	}
	linkLen := utf8.RuneCountInString(NormalizeText(s.Find("a").Text()))
	return float64(linkLen) / float64(textLen)
}

// logScale grows by one for every doubling of n past 100.
func logScale(n int) float64 {
	if n <= 0 {
		return 0
	}
	scale := 1.0
	for v := n; v > 100; v /= 2 {
		scale++
	}
	return scale
}
