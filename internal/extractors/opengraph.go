package extractors

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// openGraph holds the og: meta tags of a page.
type openGraph struct {
	Title       string
	Description string
	SiteName    string
	Images      []string // every og:image, in document order
	Video       string
}

func (og openGraph) caption() string {
	if og.Description != "" {
		return og.Description
	}
	return og.Title
}

// parseOpenGraph reads og: tags declared with either property= or name=.
// The first occurrence of a scalar tag wins.
func parseOpenGraph(doc *goquery.Document) openGraph {
	var og openGraph
	seen := make(map[string]bool)

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		key, ok := s.Attr("property")
		if !ok || !strings.HasPrefix(strings.ToLower(key), "og:") {
			key, ok = s.Attr("name")
		}
		if !ok {
			return
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if !strings.HasPrefix(key, "og:") {
			return
		}
		content, _ := s.Attr("content")
		content = strings.TrimSpace(content)
		if content == "" {
			return
		}

		switch key {
		case "og:image", "og:image:url", "og:image:secure_url":
			if !seen[content] {
				seen[content] = true
				og.Images = append(og.Images, content)
			}
			return
		}
		if seen[key] {
			return
		}
		seen[key] = true

		switch key {
		case "og:title":
			og.Title = content
		case "og:description":
			og.Description = content
		case "og:site_name":
			og.SiteName = content
		case "og:video", "og:video:url", "og:video:secure_url":
			og.Video = content
		}
	})

	return og
}
