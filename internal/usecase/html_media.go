package usecase

import (
	"strings"

	"golang.org/x/net/html"
)

type htmlVideo struct {
	URL    string
	Poster string
}

type htmlContent struct {
	Images []string
	Videos []htmlVideo
	Text   string
}

// extractHTML pulls media sources and visible text out of a creative fragment.
func extractHTML(fragment string) htmlContent {
	var out htmlContent
	if strings.TrimSpace(fragment) == "" {
		return out
	}

	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return out
	}

	var text []string
	var traverse func(*html.Node)

	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "img":
				if src := attr(n, "src"); src != "" && !isTrackingPixel(n) {
					out.Images = append(out.Images, src)
				}
			case "video":
				v := htmlVideo{URL: attr(n, "src"), Poster: attr(n, "poster")}
				if v.URL == "" {
					v.URL = firstSourceSrc(n)
				}
				if v.URL != "" {
					out.Videos = append(out.Videos, v)
				}
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				text = append(text, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}

	traverse(doc)
	out.Text = strings.Join(text, " ")
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func firstSourceSrc(n *html.Node) string {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "source" {
			if src := attr(c, "src"); src != "" {
				return src
			}
		}
	}
	return ""
}

func isTrackingPixel(n *html.Node) bool {
	return attr(n, "width") == "1" && attr(n, "height") == "1"
}

// looksLikeHTML reports whether a field that should hold a URL holds markup instead.
func looksLikeHTML(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "<")
}
