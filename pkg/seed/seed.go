// Package seed loads reference data (visa types, country mappings and reviewers) from YAML.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dukex/visaflow/pkg/models"
	"github.com/dukex/visaflow/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var ErrInvalidSeed = errors.New("invalid seed file")

type File struct {
	VisaTypes []models.VisaType              `yaml:"visa_types"  validate:"dive"`
	Mappings  []models.CountryServiceMapping `yaml:"mappings"    validate:"dive"`
	Reviewers []models.Reviewer              `yaml:"reviewers"   validate:"dive"`
}

// Result counts the rows written by Apply.
type Result struct {
	VisaTypes int
	Mappings  int
	Reviewers int
}

func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes and validates a seed document. Country codes are uppercased.
func Parse(data []byte) (*File, error) {
	var file File

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	err := decoder.Decode(&file)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}

	for i := range file.Mappings {
		file.Mappings[i].FromCountry = strings.ToUpper(file.Mappings[i].FromCountry)
		file.Mappings[i].ToCountry = strings.ToUpper(file.Mappings[i].ToCountry)
	}

	for i := range file.VisaTypes {
		file.VisaTypes[i].Code = strings.ToUpper(file.VisaTypes[i].Code)
	}

	err = validator.New(validator.WithRequiredStructEnabled()).Struct(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}

	codes := make(map[string]bool, len(file.VisaTypes))

	for _, visaType := range file.VisaTypes {
		if codes[visaType.Code] {
			return nil, fmt.Errorf("%w: duplicate visa type %s", ErrInvalidSeed, visaType.Code)
		}

		codes[visaType.Code] = true
	}

	return &file, nil
}

// Apply upserts every row into the reference repository.
func Apply(ctx context.Context, refs persistence.ReferenceRepository, file *File, logger *slog.Logger) (Result, error) {
	var result Result

	for i := range file.VisaTypes {
		err := refs.SaveVisaType(ctx, &file.VisaTypes[i])
		if err != nil {
			return result, fmt.Errorf("failed to save visa type %s: %w", file.VisaTypes[i].Code, err)
		}

		result.VisaTypes++
	}

	for i := range file.Mappings {
		mapping := &file.Mappings[i]

		err := refs.SaveMapping(ctx, mapping)
		if err != nil {
			return result, fmt.Errorf("failed to save mapping %s %s->%s: %w", mapping.Service, mapping.FromCountry, mapping.ToCountry, err)
		}

		result.Mappings++
	}

	for i := range file.Reviewers {
		err := refs.SaveReviewer(ctx, &file.Reviewers[i])
		if err != nil {
			return result, fmt.Errorf("failed to save reviewer %s: %w", file.Reviewers[i].ID, err)
		}

		result.Reviewers++
	}

	logger.InfoContext(ctx, "Reference data seeded",
		"visa_types", result.VisaTypes, "mappings", result.Mappings, "reviewers", result.Reviewers)

	return result, nil
}
