package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// boilerplateSelector matches page chrome that never holds article text.
const boilerplateSelector = "script, style, noscript, template, nav, header, footer, aside, form, iframe, svg, " +
	".ad, .ads, .advertisement, .social-share, .related-articles, " +
	"[role=navigation], [role=banner], [role=contentinfo], [aria-hidden=true]"

func stripBoilerplate(doc *goquery.Document) {
	doc.Find(boilerplateSelector).Remove()
}

// blockText returns the text of s with a newline at every block boundary,
// so paragraph structure survives normalization.
func blockText(s *goquery.Selection) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				return
			case atom.Br:
				sb.WriteByte('\n')
				return
			}
		}
		block := n.Type == html.ElementNode && isBlock(n.DataAtom)
		if block {
			sb.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			sb.WriteByte('\n')
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return sb.String()
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Section, atom.Article, atom.Main, atom.Blockquote,
		atom.Li, atom.Ul, atom.Ol, atom.Dl, atom.Dt, atom.Dd, atom.Pre, atom.Table, atom.Tr,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Figure, atom.Figcaption:
		return true
	}
	return false
}
