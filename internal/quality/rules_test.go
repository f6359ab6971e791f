package quality

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tlwatch/internal/trustlist/models"
)

func completeService(key string) models.Service {
	return models.Service{
		ServiceKey:            key,
		ProviderKey:           "p1",
		CountryCode:           "HR",
		ServiceTypeIdentifier: "http://uri.etsi.org/TrstSvc/Svctype/CA/QC",
		CurrentStatus:         "http://uri.etsi.org/TrstSvc/TrustedList/Svcstatus/granted",
	}
}

func resultFor(t *testing.T, results []models.DQResult, ruleID string) models.DQResult {
	t.Helper()
	for _, r := range results {
		if r.RuleID == ruleID {
			return r
		}
	}
	require.FailNow(t, "missing result", "rule %s", ruleID)
	return models.DQResult{}
}

func TestDefaultRules(t *testing.T) {
	rules := DefaultRules()
	require.Len(t, rules, 3)
	assert.Equal(t, []string{"R1", "R2", "R3"}, []string{rules[0].ID, rules[1].ID, rules[2].ID})
	assert.Equal(t, models.SeverityError, rules[0].Severity)
	assert.Equal(t, models.SeverityError, rules[1].Severity)
	assert.Equal(t, models.SeverityWarn, rules[2].Severity)
}

func TestEvaluate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("clean snapshot still yields one result per rule", func(t *testing.T) {
		results := Evaluate(4, []models.Service{completeService("a")}, DefaultRules(), now)
		require.Len(t, results, 3)
		for _, r := range results {
			assert.Equal(t, int64(4), r.RunID)
			assert.Zero(t, r.FailedCount)
			assert.Empty(t, r.SampleKeys)
			assert.Equal(t, now, r.CreatedAt)
		}
	})

	t.Run("empty service type fails R1", func(t *testing.T) {
		missing := completeService("b")
		missing.ServiceTypeIdentifier = ""

		results := Evaluate(4, []models.Service{completeService("a"), missing}, DefaultRules(), now)
		r1 := resultFor(t, results, "R1")
		assert.Equal(t, 1, r1.FailedCount)
		assert.Equal(t, []string{"b"}, r1.SampleKeys)
		assert.Equal(t, "ServiceTypeIdentifier must not be empty", r1.Description)
		assert.Zero(t, resultFor(t, results, "R2").FailedCount)
		assert.Zero(t, resultFor(t, results, "R3").FailedCount)
	})

	t.Run("rules are independent", func(t *testing.T) {
		bare := models.Service{ServiceKey: "c"}
		results := Evaluate(4, []models.Service{bare}, DefaultRules(), now)
		for _, id := range []string{"R1", "R2", "R3"} {
			assert.Equal(t, 1, resultFor(t, results, id).FailedCount, id)
		}
	})

	t.Run("sample keeps the first keys in row order", func(t *testing.T) {
		var services []models.Service
		for i := 0; i < 25; i++ {
			svc := completeService(fmt.Sprintf("k%02d", i))
			svc.CurrentStatus = ""
			services = append(services, svc)
		}

		r3 := resultFor(t, Evaluate(4, services, DefaultRules(), now), "R3")
		assert.Equal(t, 25, r3.FailedCount)
		require.Len(t, r3.SampleKeys, SampleSize)
		assert.Equal(t, "k00", r3.SampleKeys[0])
		assert.Equal(t, "k09", r3.SampleKeys[SampleSize-1])
	})

	t.Run("no services", func(t *testing.T) {
		results := Evaluate(4, nil, DefaultRules(), now)
		assert.Len(t, results, 3)
	})
}
