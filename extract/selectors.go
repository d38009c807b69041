package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// SelectorHints extracts text matched by a target's configured selectors.
// Hints are tried in order; the first one whose matches reach the chain's
// viability floor wins, otherwise the longest match is returned.
func SelectorHints(hints []string) Strategy {
	hints = append([]string(nil), hints...)
	return Strategy{
		ID: StrategySelectorHints,
		Extract: func(raw []byte) (Candidate, bool) {
			return extractSelectorHints(raw, hints, MinViableChars)
		},
		extractAt: func(raw []byte, minViable int) (Candidate, bool) {
			return extractSelectorHints(raw, hints, minViable)
		},
	}
}

func extractSelectorHints(raw []byte, hints []string, minViable int) (Candidate, bool) {
	if len(hints) == 0 {
		return Candidate{}, false
	}
	doc, err := parse(raw)
	if err != nil {
		return Candidate{}, false
	}
	stripBoilerplate(doc)

	var best Candidate
	bestLen := 0
	for _, hint := range hints {
		sel := doc.Find(hint)
		if sel.Length() == 0 {
			continue
		}

		var parts []string
		var markup strings.Builder
		sel.Each(func(_ int, s *goquery.Selection) {
			if t := strings.TrimSpace(blockText(s)); t != "" {
				parts = append(parts, t)
			}
			if h, err := goquery.OuterHtml(s); err == nil {
				markup.WriteString(h)
			}
		})
		text := strings.Join(parts, "\n")
		n := utf8.RuneCountInString(NormalizeText(text))
		if n == 0 {
			continue
		}

		cand := Candidate{BodyText: text, HTML: markup.String()}
		if n >= minViable {
			return cand, true
		}
		if n > bestLen {
			best, bestLen = cand, n
		}
	}
	return best, bestLen > 0
}
