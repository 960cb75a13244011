// Package normalizer turns raw HTML captures into normalized workflows.
package normalizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dukex/visaflow/pkg/models"
)

var (
	ErrUnparseable   = errors.New("content is not parseable")
	ErrUnknownSource = errors.New("no parser for source")
)

// parser extracts the ordered steps of one source's page layout.
type parser interface {
	steps(doc *goquery.Document) []models.NormalizedStep
}

type Normalizer struct {
	parsers map[string]parser
	logger  *slog.Logger
}

func New(logger *slog.Logger) *Normalizer {
	return &Normalizer{
		parsers: map[string]parser{
			models.SourceEmbassy: embassyParser{},
			models.SourceUSCIS:   uscisParser{},
		},
		logger: logger.With("module", "normalizer"),
	}
}

// Normalize parses the capture with the parser registered for its source tag.
func (n *Normalizer) Normalize(ctx context.Context, capture *models.RawCapture) (*models.NormalizedWorkflow, error) {
	p, ok := n.parsers[capture.Source]
	if !ok {
		return nil, fmt.Errorf("%w %q: %w", ErrUnknownSource, capture.Source, ErrUnparseable)
	}

	contentType := capture.ContentType
	if contentType == "" {
		contentType = "text/html"
	}

	if !strings.Contains(strings.ToLower(contentType), "html") {
		return nil, fmt.Errorf("%w: content type %q", ErrUnparseable, contentType)
	}

	if strings.TrimSpace(capture.Body) == "" {
		return nil, fmt.Errorf("%w: empty body from %s", ErrUnparseable, capture.URL)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(capture.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnparseable, err)
	}

	steps := p.steps(doc)
	for i := range steps {
		steps[i].Ordinal = i + 1
	}

	doctors := extractDoctors(doc, capture.CountryCode, capture.URL)

	if len(steps) == 0 && len(doctors) == 0 {
		return nil, fmt.Errorf("%w: no steps or doctors found at %s", ErrUnparseable, capture.URL)
	}

	n.logger.DebugContext(ctx, "Capture normalized",
		"source", capture.Source, "url", capture.URL, "steps", len(steps), "doctors", len(doctors))

	return &models.NormalizedWorkflow{
		Source:      capture.Source,
		Steps:       steps,
		Doctors:     doctors,
		SourceURLs:  []string{capture.URL},
		ContentHash: models.Fingerprint(capture.Body),
		Metadata: models.Extras{
			"fetchedAt":   models.StringValue(capture.FetchedAt.UTC().Format(time.RFC3339)),
			"contentType": models.StringValue(contentType),
			"stepCount":   models.IntValue(len(steps)),
			"doctorCount": models.IntValue(len(doctors)),
		},
	}, nil
}

var keyUnsafe = regexp.MustCompile(`[^a-z0-9\s]`)

// GenerateStepKey derives a stable key from the first three words longer than two
// characters. Different titles may produce the same key.
func GenerateStepKey(title string) string {
	clean := keyUnsafe.ReplaceAllString(strings.ToLower(title), "")

	words := make([]string, 0, 3)

	for _, word := range strings.Fields(clean) {
		if len(word) <= 2 {
			continue
		}

		words = append(words, word)
		if len(words) == 3 {
			break
		}
	}

	return strings.Join(words, "_")
}

func newStep(title, description string, data models.Extras) models.NormalizedStep {
	return models.NormalizedStep{
		Key:         GenerateStepKey(title),
		Title:       title,
		Description: description,
		Data:        data,
	}
}

// stepTitle prefers emphasized text, then a heading, then the first line of the element.
func stepTitle(s *goquery.Selection) string {
	if strong := s.Find("strong, b, .step-title").First(); strong.Length() > 0 {
		return strings.TrimSpace(strong.Text())
	}

	if heading := s.Find("h1, h2, h3, h4, h5, h6").First(); heading.Length() > 0 {
		return strings.TrimSpace(heading.Text())
	}

	firstLine, _, _ := strings.Cut(strings.TrimSpace(s.Text()), "\n")
	firstLine = strings.TrimSpace(firstLine)

	if runes := []rune(firstLine); len(runes) > 100 {
		return string(runes[:100]) + "..."
	}

	return firstLine
}

func stepDescription(s *goquery.Selection) string {
	paragraphs := paragraphTexts(s.Find("p"))
	if len(paragraphs) > 0 {
		return strings.Join(paragraphs, " ")
	}

	return strings.TrimSpace(s.Text())
}

func paragraphTexts(s *goquery.Selection) []string {
	texts := make([]string, 0, s.Length())

	s.Each(func(_ int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); text != "" {
			texts = append(texts, text)
		}
	})

	return texts
}
