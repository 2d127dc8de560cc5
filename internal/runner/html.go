package runner

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/wasilibs/go-re2"
)

var blankLines = re2.MustCompile(`\n{3,}`)

// htmlToMarkdown converts an HTML run report to Markdown. Scripts,
// styles and page chrome are dropped.
func htmlToMarkdown(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse html response: %w", err)
	}
	doc.Find("script, style, noscript, nav, footer, aside").Remove()

	converter := md.NewConverter("", true, &md.Options{
		HeadingStyle:    "atx",
		CodeBlockStyle:  "fenced",
		EmDelimiter:     "*",
		StrongDelimiter: "**",
	})

	markdown := converter.Convert(doc.Selection)
	markdown = blankLines.ReplaceAllString(markdown, "\n\n")
	return strings.TrimSpace(markdown), nil
}
