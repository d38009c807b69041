package extract

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

// MarkdownConverter renders extracted article HTML as Markdown for the
// downstream generation step.
type MarkdownConverter struct {
	policy *bluemonday.Policy
	conv   *converter.Converter
}

// NewMarkdownConverter creates a converter that sanitises with the UGC policy
// before conversion.
func NewMarkdownConverter() *MarkdownConverter {
	return &MarkdownConverter{
		policy: bluemonday.UGCPolicy(),
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Convert renders the candidate's HTML as Markdown with links resolved
// against pageURL. Candidates without HTML, or whose HTML fails to convert,
// fall back to the plain body text.
func (m *MarkdownConverter) Convert(c Candidate, pageURL string) string {
	if strings.TrimSpace(c.HTML) == "" {
		return c.BodyText
	}
	clean := m.policy.Sanitize(c.HTML)
	md, err := m.conv.ConvertString(clean, converter.WithDomain(pageURL))
	if err != nil || strings.TrimSpace(md) == "" {
		return c.BodyText
	}
	return strings.TrimSpace(md)
}
