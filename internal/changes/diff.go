package changes

import (
	"sort"
	"time"

	"tlwatch/internal/trustlist/models"
)

// Partition splits the union of two snapshots' service keys by presence and
// status equality. Every key lands in exactly one set.
type Partition struct {
	Added     []string
	Removed   []string
	Changed   []string
	Unchanged []string
}

// index maps service keys to rows. A repeated key keeps the last row.
func index(services []models.Service) map[string]models.Service {
	idx := make(map[string]models.Service, len(services))
	for _, s := range services {
		idx[s.ServiceKey] = s
	}
	return idx
}

// Classify partitions the keys of prev and next. Statuses are compared verbatim,
// case included.
func Classify(prev, next []models.Service) Partition {
	return classify(index(prev), index(next))
}

func classify(prevIdx, nextIdx map[string]models.Service) Partition {
	var p Partition
	for key, n := range nextIdx {
		old, ok := prevIdx[key]
		switch {
		case !ok:
			p.Added = append(p.Added, key)
		case old.CurrentStatus != n.CurrentStatus:
			p.Changed = append(p.Changed, key)
		default:
			p.Unchanged = append(p.Unchanged, key)
		}
	}
	for key := range prevIdx {
		if _, ok := nextIdx[key]; !ok {
			p.Removed = append(p.Removed, key)
		}
	}
	sort.Strings(p.Added)
	sort.Strings(p.Removed)
	sort.Strings(p.Changed)
	sort.Strings(p.Unchanged)
	return p
}

// Diff computes the change records between two snapshots, all attributed to runID,
// the newer run. Added rows carry only a new value, removed rows only an old value.
func Diff(runID int64, prev, next []models.Service, detectedAt time.Time) []models.ChangeRecord {
	prevIdx, nextIdx := index(prev), index(next)
	p := classify(prevIdx, nextIdx)

	records := make([]models.ChangeRecord, 0, len(p.Added)+len(p.Removed)+len(p.Changed))
	for _, key := range p.Added {
		n := nextIdx[key]
		records = append(records, models.ChangeRecord{
			RunID:       runID,
			Kind:        models.ChangeServiceAdded,
			ServiceKey:  key,
			CountryCode: n.CountryCode,
			NewValue:    ptr(n.CurrentStatus),
			DetectedAt:  detectedAt,
		})
	}
	for _, key := range p.Removed {
		old := prevIdx[key]
		records = append(records, models.ChangeRecord{
			RunID:       runID,
			Kind:        models.ChangeServiceRemoved,
			ServiceKey:  key,
			CountryCode: old.CountryCode,
			OldValue:    ptr(old.CurrentStatus),
			DetectedAt:  detectedAt,
		})
	}
	for _, key := range p.Changed {
		old, n := prevIdx[key], nextIdx[key]
		records = append(records, models.ChangeRecord{
			RunID:       runID,
			Kind:        models.ChangeStatusChanged,
			ServiceKey:  key,
			CountryCode: n.CountryCode,
			OldValue:    ptr(old.CurrentStatus),
			NewValue:    ptr(n.CurrentStatus),
			DetectedAt:  detectedAt,
		})
	}
	return records
}

func ptr(s string) *string {
	return &s
}

// Summary counts records per change kind.
func Summary(records []models.ChangeRecord) map[models.ChangeKind]int {
	out := map[models.ChangeKind]int{
		models.ChangeServiceAdded:   0,
		models.ChangeServiceRemoved: 0,
		models.ChangeStatusChanged:  0,
	}
	for _, r := range records {
		out[r.Kind]++
	}
	return out
}
