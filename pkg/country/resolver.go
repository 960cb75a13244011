// Package country resolves the country whose services stand in for another.
package country

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dukex/visaflow/pkg/persistence"
)

// PanelPhysicianService is the mapping service used for medical examinations.
const PanelPhysicianService = "PanelPhysician"

type Resolver struct {
	references persistence.ReferenceRepository
	logger     *slog.Logger
}

func NewResolver(references persistence.ReferenceRepository, logger *slog.Logger) *Resolver {
	return &Resolver{
		references: references,
		logger:     logger.With("module", "country_resolver"),
	}
}

// Resolve returns the country serving origin for the given service, or origin itself when
// no mapping exists. Lookup failures are logged and treated as a miss.
func (r *Resolver) Resolve(ctx context.Context, service, origin string) string {
	origin = strings.ToUpper(origin)

	mapping, err := r.references.MappingFor(ctx, service, origin)
	if err != nil {
		r.logger.WarnContext(ctx, "Country mapping lookup failed, using origin",
			"service", service, "origin", origin, "error", err)

		return origin
	}

	if mapping == nil || mapping.ToCountry == "" {
		return origin
	}

	r.logger.DebugContext(ctx, "Country redirected", "service", service, "from", origin, "to", mapping.ToCountry)

	return strings.ToUpper(mapping.ToCountry)
}
