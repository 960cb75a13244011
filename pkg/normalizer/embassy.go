package normalizer

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dukex/visaflow/pkg/models"
	"golang.org/x/net/html"
)

var stepKeywords = []string{"step", "requirement", "examination", "appointment", "fee", "interview", "document", "form"}

// embassyParser reads list items from step containers, falling back to keyword headings.
type embassyParser struct{}

func (embassyParser) steps(doc *goquery.Document) []models.NormalizedStep {
	steps := listSteps(doc)
	if len(steps) > 0 {
		return steps
	}

	return headingSteps(doc)
}

func listSteps(doc *goquery.Document) []models.NormalizedStep {
	inContainer := make(map[*html.Node]bool)

	doc.Find("ol, .requirements-section, .steps").Find("li").Each(func(_ int, li *goquery.Selection) {
		inContainer[li.Get(0)] = true
	})

	steps := make([]models.NormalizedStep, 0, len(inContainer))

	// Walk every li so nested containers still yield document order, once per node.
	doc.Find("li").Each(func(_ int, li *goquery.Selection) {
		if !inContainer[li.Get(0)] {
			return
		}

		title := stepTitle(li)
		if title == "" {
			return
		}

		steps = append(steps, newStep(title, stepDescription(li), models.Extras{}))
	})

	return steps
}

func headingSteps(doc *goquery.Document) []models.NormalizedStep {
	steps := make([]models.NormalizedStep, 0)

	doc.Find("h2, h3, h4").Each(func(_ int, heading *goquery.Selection) {
		title := strings.TrimSpace(heading.Text())
		if !isStepTitle(title) {
			return
		}

		description := strings.Join(paragraphTexts(heading.NextUntil("h1, h2, h3, h4, h5, h6").Filter("p")), " ")

		steps = append(steps, newStep(title, description, models.Extras{}))
	})

	return steps
}

func isStepTitle(title string) bool {
	lower := strings.ToLower(title)

	for _, keyword := range stepKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}

	return false
}
