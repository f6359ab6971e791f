package parser

import (
	"fmt"
	"io"
	"os"

	"tlwatch/internal/trustlist/keys"
	"tlwatch/internal/trustlist/models"
)

// Element names in the Trusted List schema.
const (
	elemTrustServiceProvider = "TrustServiceProvider"
	elemTSPName              = "TSPName"
	elemTSPInformationURI    = "TSPInformationURI"
	elemName                 = "Name"
	elemURI                  = "URI"
	elemTSPService           = "TSPService"
	elemServiceTypeID        = "ServiceTypeIdentifier"
	elemServiceName          = "ServiceName"
	elemServiceStatus        = "ServiceStatus"
	elemStatusStartingTime   = "StatusStartingTime"
)

// TrustedList is the normalized content of one country's Trusted List document.
type TrustedList struct {
	CountryCode string            `json:"country_code"`
	Providers   []models.Provider `json:"providers"`
	Services    []models.Service  `json:"services"`
}

// ParseTrustedList reads the Trusted List document at path for countryCode.
func ParseTrustedList(path, countryCode string) (*TrustedList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trusted list %s: %w", countryCode, err)
	}
	defer f.Close()
	return DecodeTrustedList(f, path, countryCode)
}

// DecodeTrustedList normalizes every provider and its nested services. Multilingual
// names and URIs are not merged: the first matching node in document order wins.
// Missing fields become empty strings. Duplicate keys keep the first record seen.
func DecodeTrustedList(r io.Reader, document, countryCode string) (*TrustedList, error) {
	root, line, err := decodeTree(r)
	if err != nil {
		return nil, &ParseError{Document: document, Line: line, Err: err}
	}

	tl := &TrustedList{CountryCode: countryCode}
	acc := NewAccumulator()
	for _, tsp := range root.descendants(elemTrustServiceProvider) {
		provider := models.Provider{
			CountryCode:    countryCode,
			Name:           tsp.firstText(elemTSPName, elemName),
			InformationURI: tsp.firstText(elemTSPInformationURI, elemURI),
		}
		provider.ProviderKey = keys.ProviderKey(countryCode, provider.Name, provider.InformationURI)
		acc.AddProvider(provider)

		for _, svc := range tsp.descendants(elemTSPService) {
			acc.AddService(normalizeService(svc, countryCode, provider.ProviderKey))
		}
	}
	tl.Providers, tl.Services = acc.Result()
	return tl, nil
}

func normalizeService(svc *element, countryCode, providerKey string) models.Service {
	service := models.Service{
		ProviderKey:           providerKey,
		CountryCode:           countryCode,
		ServiceTypeIdentifier: svc.firstText(elemServiceTypeID),
		ServiceName:           svc.firstText(elemServiceName, elemName),
		CurrentStatus:         svc.firstText(elemServiceStatus),
		StatusStartingTime:    svc.firstText(elemStatusStartingTime),
	}
	service.ServiceKey = keys.ServiceKey(countryCode, providerKey, service.ServiceTypeIdentifier, service.ServiceName)
	return service
}
