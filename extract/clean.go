package extract

import (
	"regexp"
	"strings"
)

var multiSpaceRe = regexp.MustCompile(`\s+`)

// NormalizeText removes zero-width characters, collapses all whitespace to
// single spaces and trims.
func NormalizeText(text string) string {
	text = stripInvisible(text)
	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(text, " "))
}

// NormalizeBody is NormalizeText applied per paragraph. Paragraph breaks
// survive as a blank line.
func NormalizeBody(text string) string {
	text = stripInvisible(text)
	var paras []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(multiSpaceRe.ReplaceAllString(line, " "))
		if line != "" {
			paras = append(paras, line)
		}
	}
	return strings.Join(paras, "\n\n")
}

func stripInvisible(text string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\ufeff', '\u00ad':
			return -1
		case '\u00a0':
			return ' '
		}
		return r
	}, text)
}
