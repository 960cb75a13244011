package country_test

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/dukex/visaflow/pkg/country"
	"github.com/dukex/visaflow/pkg/mocks"
	"github.com/dukex/visaflow/pkg/models"
	"github.com/dukex/visaflow/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestResolver_Resolve(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())
	refs := store.ReferenceRepository()

	require.NoError(t, refs.SaveMapping(t.Context(), &models.CountryServiceMapping{
		Service:     country.PanelPhysicianService,
		FromCountry: "AD",
		ToCountry:   "ES",
		Notes:       "Andorra is served by Spanish panel physicians",
	}))

	resolver := country.NewResolver(refs, testLogger())

	tests := []struct {
		name     string
		service  string
		origin   string
		expected string
	}{
		{"mapped origin", country.PanelPhysicianService, "AD", "ES"},
		{"lower case origin", country.PanelPhysicianService, "ad", "ES"},
		{"unmapped origin", country.PanelPhysicianService, "FR", "FR"},
		{"other service", "Embassy", "AD", "AD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, resolver.Resolve(t.Context(), tt.service, tt.origin))
		})
	}
}

func TestResolver_StoreErrorIsMiss(t *testing.T) {
	t.Parallel()

	refs := &mocks.MockReferenceRepository{}
	refs.On("MappingFor", mock.Anything, country.PanelPhysicianService, "AD").
		Return(nil, errors.New("connection refused"))

	resolver := country.NewResolver(refs, testLogger())

	assert.Equal(t, "AD", resolver.Resolve(t.Context(), country.PanelPhysicianService, "AD"))
	refs.AssertExpectations(t)
}
