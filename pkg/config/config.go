// Package config provides the settings of the scrape driver.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

const (
	DefaultSchedule       = "@every 72h"
	DefaultMaxConcurrency = 3
	DefaultFetchTimeout   = 30 * time.Second
)

var ErrInvalidConfig = errors.New("invalid scraper configuration")

// DefaultCountries is the country matrix scraped when none is configured.
var DefaultCountries = []string{"ES", "FR", "DE", "IT", "AD"}

// ScraperConfig holds the scrape driver settings.
type ScraperConfig struct {
	Schedule       string        `validate:"required"`
	Countries      []string      `validate:"required,min=1,dive,len=2,alpha,uppercase"`
	VisaTypes      []string      `validate:"dive,required"`
	MaxConcurrency int           `validate:"gte=1,lte=32"`
	FetchTimeout   time.Duration `validate:"gt=0"`
	RunOnStart     bool
}

func Default() ScraperConfig {
	countries := make([]string, len(DefaultCountries))
	copy(countries, DefaultCountries)

	return ScraperConfig{
		Schedule:       DefaultSchedule,
		Countries:      countries,
		MaxConcurrency: DefaultMaxConcurrency,
		FetchTimeout:   DefaultFetchTimeout,
		RunOnStart:     true,
	}
}

// ParseList splits a comma separated flag value, uppercasing and dropping empty items.
func ParseList(value string) []string {
	items := make([]string, 0)

	for item := range strings.SplitSeq(value, ",") {
		item = strings.ToUpper(strings.TrimSpace(item))
		if item != "" {
			items = append(items, item)
		}
	}

	return items
}

// Validate checks field constraints and that Schedule parses as a cron spec.
func (c ScraperConfig) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())

	err := validate.Struct(c)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	_, err = cron.ParseStandard(c.Schedule)
	if err != nil {
		return fmt.Errorf("%w: schedule %q: %w", ErrInvalidConfig, c.Schedule, err)
	}

	return nil
}
