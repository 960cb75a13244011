package fetcher

import (
	"strings"
	"sync"
)

// Availability is a set of countries whose embassy sources must decline. One set can be
// shared by several sources so the live and fixture embassy tiers agree.
type Availability struct {
	mu          sync.RWMutex
	unavailable map[string]bool
}

func NewAvailability(unavailable ...string) *Availability {
	a := &Availability{unavailable: make(map[string]bool, len(unavailable))}

	for _, countryCode := range unavailable {
		a.SetUnavailable(countryCode)
	}

	return a
}

// SetUnavailable makes sources sharing this set decline every request for the country.
func (a *Availability) SetUnavailable(countryCode string) {
	countryCode = strings.ToUpper(strings.TrimSpace(countryCode))
	if countryCode == "" {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.unavailable[countryCode] = true
}

func (a *Availability) SetAvailable(countryCode string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.unavailable, strings.ToUpper(strings.TrimSpace(countryCode)))
}

func (a *Availability) IsUnavailable(countryCode string) bool {
	if a == nil {
		return false
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.unavailable[strings.ToUpper(countryCode)]
}
