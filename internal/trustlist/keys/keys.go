// Package keys derives content-based surrogate identities for providers and services.
//
// Trusted List documents carry no stable numeric identifiers, so a provider or
// service is identified by a SHA-256 digest over its identifying fields. The key
// is stable across runs for as long as those fields are unchanged.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Separator joins the parts before hashing. It is not expected to occur in any input.
const Separator = "|"

// Hash joins parts with Separator and returns the hex SHA-256 of the UTF-8 bytes.
func Hash(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, Separator)))
	return hex.EncodeToString(sum[:])
}

// ProviderKey = Hash(country_code, provider_name, provider_info_uri).
func ProviderKey(countryCode, name, informationURI string) string {
	return Hash(countryCode, name, informationURI)
}

// ServiceKey = Hash(country_code, provider_key, service_type_identifier, service_name).
// Two services sharing all four fields collapse to one key.
func ServiceKey(countryCode, providerKey, serviceType, serviceName string) string {
	return Hash(countryCode, providerKey, serviceType, serviceName)
}
