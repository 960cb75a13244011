package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/dukex/visaflow/pkg/models"
)

// EmbassySource serves embassy pages from fixture files named embassy_<country>_doctors.html.
// Countries marked in its Availability are declined.
type EmbassySource struct {
	*Availability

	fixtures fs.FS
}

type EmbassySourceOption func(*EmbassySource)

// WithAvailability shares an unavailability set with other sources.
func WithAvailability(availability *Availability) EmbassySourceOption {
	return func(s *EmbassySource) {
		s.Availability = availability
	}
}

func NewEmbassySource(fixtures fs.FS, opts ...EmbassySourceOption) *EmbassySource {
	source := &EmbassySource{
		Availability: NewAvailability(),
		fixtures:     fixtures,
	}

	for _, opt := range opts {
		opt(source)
	}

	return source
}

func (s *EmbassySource) Name() string {
	return models.SourceEmbassy
}

func (s *EmbassySource) Fetch(ctx context.Context, visaTypeCode, countryCode string) (*models.RawCapture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.IsUnavailable(countryCode) {
		return nil, fmt.Errorf("embassy for %s marked unavailable: %w", countryCode, ErrSourceUnavailable)
	}

	country := strings.ToLower(countryCode)

	body, err := fs.ReadFile(s.fixtures, "embassy_"+country+"_doctors.html")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no embassy page for %s: %w", countryCode, ErrSourceUnavailable)
		}

		return nil, fmt.Errorf("failed to read embassy page for %s: %w", countryCode, err)
	}

	url := "https://embassy-" + country + ".example.com/doctors"

	return newCapture(models.SourceEmbassy, visaTypeCode, countryCode, url, "Embassy-Fake/1.0", string(body)), nil
}
