package normalizer

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dukex/visaflow/pkg/models"
)

// uscisParser reads .step blocks. Nested list items become the requirements extra.
type uscisParser struct{}

func (uscisParser) steps(doc *goquery.Document) []models.NormalizedStep {
	steps := make([]models.NormalizedStep, 0)

	doc.Find(".step").Each(func(_ int, block *goquery.Selection) {
		heading := block.Find("h3, h2, .step-title").First()
		if heading.Length() == 0 {
			return
		}

		title := strings.TrimSpace(heading.Text())
		if title == "" {
			return
		}

		steps = append(steps, newStep(title, stepDescription(block), stepData(block)))
	})

	return steps
}

func stepData(block *goquery.Selection) models.Extras {
	data := models.Extras{}

	requirements := make([]string, 0)

	block.Find("ul li, ol li").Each(func(_ int, li *goquery.Selection) {
		if text := strings.TrimSpace(li.Text()); text != "" {
			requirements = append(requirements, text)
		}
	})

	if len(requirements) > 0 {
		data["requirements"] = models.ListValue(requirements)
	}

	return data
}
