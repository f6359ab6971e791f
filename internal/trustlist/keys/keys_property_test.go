package keys

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestKeyProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	field := gen.AlphaString().SuchThat(func(s string) bool { return !strings.Contains(s, Separator) })

	properties.Property("provider key is deterministic and 64 hex chars", prop.ForAll(
		func(cc, name, uri string) bool {
			k := ProviderKey(cc, name, uri)
			return k == ProviderKey(cc, name, uri) && len(k) == 64
		},
		field, field, field,
	))

	properties.Property("service key changes when the service name changes", prop.ForAll(
		func(cc, provider, typ, name string) bool {
			return ServiceKey(cc, provider, typ, name) != ServiceKey(cc, provider, typ, name+"x")
		},
		field, field, field, field,
	))

	properties.TestingRun(t)
}
