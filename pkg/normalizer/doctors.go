package normalizer

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dukex/visaflow/pkg/models"
	"golang.org/x/net/html"
)

var (
	addressPattern = labelPattern("Address")
	phonePattern   = labelPattern("Phone")
	cityPattern    = labelPattern("City")
)

func labelPattern(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(label) + `\s*:?\s*([^\n\r]+)`)
}

// extractDoctors reads physician entries. Every doctor is tagged with the country and URL
// the page was fetched for. Entries without a name are dropped.
func extractDoctors(doc *goquery.Document, countryCode, sourceURL string) []models.NormalizedDoctor {
	doctors := make([]models.NormalizedDoctor, 0)

	doc.Find(".doctor, .physician, .panel-physician").Each(func(_ int, entry *goquery.Selection) {
		name := strings.TrimSpace(entry.Find("h3, .name, .doctor-name").First().Text())
		if name == "" {
			return
		}

		text := blockText(entry)

		doctors = append(doctors, models.NormalizedDoctor{
			Name:        name,
			Address:     labelValue(addressPattern, text),
			Phone:       labelValue(phonePattern, text),
			City:        labelValue(cityPattern, text),
			CountryCode: countryCode,
			SourceURL:   sourceURL,
			Extras:      models.Extras{},
		})
	})

	return doctors
}

func labelValue(pattern *regexp.Regexp, text string) string {
	match := pattern.FindStringSubmatch(text)
	if match == nil {
		return ""
	}

	return strings.TrimSpace(match[1])
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// blockText returns the element text with a line break after every block element,
// so labelled values never run into each other.
func blockText(s *goquery.Selection) string {
	var b strings.Builder

	var walk func(*html.Node)

	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)

			return
		}

		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}

		if n.Type == html.ElementNode && blockElements[n.Data] {
			b.WriteString("\n")
		}
	}

	for _, node := range s.Nodes {
		walk(node)
	}

	return b.String()
}
