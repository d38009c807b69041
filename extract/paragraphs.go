package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// minParagraphChars drops captions, bylines and other short fragments.
const minParagraphChars = 30

// Paragraphs concatenates every meaningful <p> on the page.
func Paragraphs() Strategy {
	return Strategy{ID: StrategyParagraphs, Extract: extractParagraphs}
}

func extractParagraphs(raw []byte) (Candidate, bool) {
	doc, err := parse(raw)
	if err != nil {
		return Candidate{}, false
	}
	stripBoilerplate(doc)

	var paras []string
	var markup strings.Builder
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		text := NormalizeText(s.Text())
		if utf8.RuneCountInString(text) <= minParagraphChars {
			return
		}
		paras = append(paras, text)
		if h, err := goquery.OuterHtml(s); err == nil {
			markup.WriteString(h)
		}
	})
	if len(paras) == 0 {
		return Candidate{}, false
	}

	return Candidate{
		BodyText: strings.Join(paras, "\n"),
		HTML:     markup.String(),
	}, true
}
