package file

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dukex/visaflow/pkg/models"
	"github.com/dukex/visaflow/pkg/persistence"
)

const (
	visaTypesCollection = "visa_types"
	mappingsCollection  = "country_service_mappings"
	reviewersCollection = "reviewers"
)

// ReferenceRepository handles the lookup tables: visa types, country mappings and reviewers.
type ReferenceRepository struct {
	root string
}

func NewReferenceRepository(root string) *ReferenceRepository {
	return &ReferenceRepository{root: root}
}

func (rr *ReferenceRepository) VisaTypeByCode(_ context.Context, code string) (*models.VisaType, error) {
	var visaType models.VisaType

	found, err := readJSON(rr.root, visaTypesCollection, strings.ToUpper(code), &visaType)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, &persistence.ReferenceError{Op: "VisaTypeByCode", Key: code, Err: persistence.ErrVisaTypeNotFound}
	}

	return &visaType, nil
}

func (rr *ReferenceRepository) VisaTypes(_ context.Context) ([]*models.VisaType, error) {
	names, err := listNames(rr.root, visaTypesCollection)
	if err != nil {
		return nil, err
	}

	visaTypes := make([]*models.VisaType, 0, len(names))

	for _, name := range names {
		var visaType models.VisaType

		found, err := readJSON(rr.root, visaTypesCollection, name, &visaType)
		if err != nil {
			return nil, err
		}

		if found {
			visaTypes = append(visaTypes, &visaType)
		}
	}

	sort.Slice(visaTypes, func(i, j int) bool {
		return visaTypes[i].ID < visaTypes[j].ID
	})

	return visaTypes, nil
}

func (rr *ReferenceRepository) SaveVisaType(_ context.Context, visaType *models.VisaType) error {
	err := writeJSON(rr.root, visaTypesCollection, strings.ToUpper(visaType.Code), visaType)
	if err != nil {
		return fmt.Errorf("failed to save visa type %s: %w", visaType.Code, err)
	}

	return nil
}

func (rr *ReferenceRepository) MappingFor(_ context.Context, service, fromCountry string) (*models.CountryServiceMapping, error) {
	var mapping models.CountryServiceMapping

	found, err := readJSON(rr.root, mappingsCollection, mappingName(service, fromCountry), &mapping)
	if err != nil || !found {
		return nil, err
	}

	return &mapping, nil
}

func (rr *ReferenceRepository) SaveMapping(_ context.Context, mapping *models.CountryServiceMapping) error {
	err := writeJSON(rr.root, mappingsCollection, mappingName(mapping.Service, mapping.FromCountry), mapping)
	if err != nil {
		return fmt.Errorf("failed to save mapping %s/%s: %w", mapping.Service, mapping.FromCountry, err)
	}

	return nil
}

func (rr *ReferenceRepository) Reviewers(_ context.Context) ([]*models.Reviewer, error) {
	names, err := listNames(rr.root, reviewersCollection)
	if err != nil {
		return nil, err
	}

	reviewers := make([]*models.Reviewer, 0, len(names))

	for _, name := range names {
		var reviewer models.Reviewer

		found, err := readJSON(rr.root, reviewersCollection, name, &reviewer)
		if err != nil {
			return nil, err
		}

		if found {
			reviewers = append(reviewers, &reviewer)
		}
	}

	sort.Slice(reviewers, func(i, j int) bool {
		return reviewers[i].ID < reviewers[j].ID
	})

	return reviewers, nil
}

func (rr *ReferenceRepository) SaveReviewer(_ context.Context, reviewer *models.Reviewer) error {
	err := writeJSON(rr.root, reviewersCollection, reviewer.ID, reviewer)
	if err != nil {
		return fmt.Errorf("failed to save reviewer %s: %w", reviewer.ID, err)
	}

	return nil
}

// mappingName mirrors the unique (service, from country) key.
func mappingName(service, fromCountry string) string {
	return service + "_" + fromCountry
}
