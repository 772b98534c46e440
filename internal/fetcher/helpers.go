// SPDX-License-Identifier: AGPL-3.0-only
package fetcher

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/fluffyriot/crossfeed/internal/models"
)

func stripHTMLToText(input string) string {
	doc, err := html.Parse(strings.NewReader(input))
	if err != nil {
		return ""
	}

	var b strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "br" || n.Data == "p") && b.Len() > 0 {
			b.WriteString("\n")
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)

	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// extractHashtags reads hashtag links out of status HTML. Statuses relayed from
// other servers sometimes arrive with an empty tags array.
func extractHashtags(content string) []models.Tag {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var tags []models.Tag

	doc.Find("a.hashtag, a[rel~='tag']").Each(func(_ int, s *goquery.Selection) {
		name := strings.TrimPrefix(strings.TrimSpace(s.Text()), "#")
		if name == "" {
			return
		}
		key := strings.ToLower(name)
		if _, exists := seen[key]; exists {
			return
		}
		seen[key] = struct{}{}

		href, _ := s.Attr("href")
		tags = append(tags, models.Tag{Name: name, URL: href})
	})

	return tags
}
