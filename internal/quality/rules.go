package quality

import (
	"time"

	"tlwatch/internal/trustlist/models"
)

// SampleSize bounds the failing keys kept per rule.
const SampleSize = 10

// Rule is one independent check over a single service row. Fails must not
// depend on any other rule or row.
type Rule struct {
	ID          string
	Description string
	Severity    models.Severity
	Fails       func(models.Service) bool
}

// DefaultRules returns the rule set applied to every run, in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "R1",
			Description: "ServiceTypeIdentifier must not be empty",
			Severity:    models.SeverityError,
			Fails:       func(s models.Service) bool { return s.ServiceTypeIdentifier == "" },
		},
		{
			ID:          "R2",
			Description: "provider_key must not be empty",
			Severity:    models.SeverityError,
			Fails:       func(s models.Service) bool { return s.ProviderKey == "" },
		},
		{
			ID:          "R3",
			Description: "ServiceStatus should not be empty",
			Severity:    models.SeverityWarn,
			Fails:       func(s models.Service) bool { return s.CurrentStatus == "" },
		},
	}
}

// Evaluate applies rules to one run's services. Every rule yields a result,
// including rules with no failures. Samples keep the first SampleSize failing
// keys in row order.
// This is pure domain logic - no I/O.
func Evaluate(runID int64, services []models.Service, rules []Rule, now time.Time) []models.DQResult {
	results := make([]models.DQResult, 0, len(rules))
	for _, rule := range rules {
		result := models.DQResult{
			RunID:       runID,
			RuleID:      rule.ID,
			Description: rule.Description,
			Severity:    rule.Severity,
			SampleKeys:  []string{},
			CreatedAt:   now,
		}
		for _, svc := range services {
			if !rule.Fails(svc) {
				continue
			}
			result.FailedCount++
			if len(result.SampleKeys) < SampleSize {
				result.SampleKeys = append(result.SampleKeys, svc.ServiceKey)
			}
		}
		results = append(results, result)
	}
	return results
}
