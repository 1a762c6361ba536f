package scraper

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/raphaelgruber/factsheet-go/internal/models"
)

var aboutPatterns = []string{"about", "about-us", "company", "our-story"}

var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

func extractPage(doc *html.Node) models.PageData {
	var p models.PageData
	var text strings.Builder

	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skippedElements[n.Data] {
				return
			}
			switch n.Data {
			case "title":
				if p.Title == "" {
					p.Title = strings.TrimSpace(textContent(n))
				}
				return
			case "meta":
				if strings.EqualFold(attr(n, "name"), "description") && p.Description == "" {
					p.Description = strings.TrimSpace(attr(n, "content"))
				}
			}
		}
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				text.WriteString(s)
				text.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)

	p.Content = truncate(strings.Join(strings.Fields(text.String()), " "), maxContentChars)
	return p
}

// findAboutLink returns the absolute URL of the first link that looks like
// an about page, or "" when there is none.
func findAboutLink(base string, doc *html.Node) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}

	var found string
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if found != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			href := attr(n, "href")
			if href != "" && matchesAbout(strings.ToLower(href), strings.ToLower(textContent(n))) {
				if ref, err := url.Parse(href); err == nil {
					abs := baseURL.ResolveReference(ref)
					abs.Fragment = ""
					if (abs.Scheme == "http" || abs.Scheme == "https") && !samePage(baseURL, abs) {
						found = abs.String()
						return
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)
	return found
}

func matchesAbout(href, text string) bool {
	text = strings.TrimSpace(text)
	for _, p := range aboutPatterns {
		if strings.Contains(href, p) || strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func samePage(a, b *url.URL) bool {
	return strings.EqualFold(a.Host, b.Host) &&
		strings.TrimSuffix(a.Path, "/") == strings.TrimSuffix(b.Path, "/") &&
		a.RawQuery == b.RawQuery
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var traverse func(*html.Node)
	traverse = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			sb.WriteByte(' ')
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
