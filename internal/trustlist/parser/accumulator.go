package parser

import "tlwatch/internal/trustlist/models"

// Accumulator collects providers and services, keeping the first record for each key.
// It is not safe for concurrent use; callers merging per-country results must feed
// it from a single goroutine in a fixed order.
type Accumulator struct {
	providers    []models.Provider
	services     []models.Service
	providerSeen map[string]struct{}
	serviceSeen  map[string]struct{}
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		providerSeen: make(map[string]struct{}),
		serviceSeen:  make(map[string]struct{}),
	}
}

func (a *Accumulator) AddProvider(p models.Provider) bool {
	if _, ok := a.providerSeen[p.ProviderKey]; ok {
		return false
	}
	a.providerSeen[p.ProviderKey] = struct{}{}
	a.providers = append(a.providers, p)
	return true
}

func (a *Accumulator) AddService(s models.Service) bool {
	if _, ok := a.serviceSeen[s.ServiceKey]; ok {
		return false
	}
	a.serviceSeen[s.ServiceKey] = struct{}{}
	a.services = append(a.services, s)
	return true
}

// Merge adds a parsed Trusted List.
func (a *Accumulator) Merge(tl *TrustedList) {
	for _, p := range tl.Providers {
		a.AddProvider(p)
	}
	for _, s := range tl.Services {
		a.AddService(s)
	}
}

// Result returns the deduplicated records in first-seen order.
func (a *Accumulator) Result() ([]models.Provider, []models.Service) {
	return a.providers, a.services
}
