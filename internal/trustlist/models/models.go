package models

import (
	"strings"
	"time"
)

// Pointer is a LOTL entry referencing one member state's Trusted List.
type Pointer struct {
	CountryCode string `json:"country_code"`
	TLURL       string `json:"tl_url"`
}

// Provider is a normalized Trust Service Provider within one snapshot.
type Provider struct {
	ProviderKey    string `json:"provider_key"`
	CountryCode    string `json:"country_code"`
	Name           string `json:"name"`
	InformationURI string `json:"information_uri"`
}

// Service is a normalized trust service within one snapshot.
type Service struct {
	ServiceKey            string `json:"service_key"`
	ProviderKey           string `json:"provider_key"`
	CountryCode           string `json:"country_code"`
	ServiceTypeIdentifier string `json:"service_type_identifier"`
	ServiceName           string `json:"service_name"`
	CurrentStatus         string `json:"current_status"`
	StatusStartingTime    string `json:"status_starting_time"`
}

// Snapshot is the set of rows tagged with one run.
type Snapshot struct {
	RunID     int64
	Providers []Provider
	Services  []Service
}

type RunStatus string

const (
	RunStatusOK     RunStatus = "ok"
	RunStatusFailed RunStatus = "failed"
)

func (s RunStatus) IsValid() bool {
	return s == RunStatusOK || s == RunStatusFailed
}

// Run is the bookkeeping row for one ingestion cycle.
type Run struct {
	RunID      int64      `json:"run_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     RunStatus  `json:"status"`
	Notes      string     `json:"notes,omitempty"`
}

// RunPair names the two most recent successful runs, oldest first.
type RunPair struct {
	Previous int64
	Current  int64
}

type SourceType string

const (
	SourceTypeLOTL SourceType = "lotl"
	SourceTypeTL   SourceType = "tl"
)

// Source records one downloaded document for a run.
type Source struct {
	RunID       int64      `json:"run_id"`
	SourceType  SourceType `json:"source_type"`
	CountryCode string     `json:"country_code,omitempty"`
	URL         string     `json:"url"`
	FetchedAt   time.Time  `json:"fetched_at"`
	SHA256      string     `json:"sha256"`
	Bytes       int64      `json:"bytes"`
	Path        string     `json:"-"`
}

type ChangeKind string

const (
	ChangeServiceAdded   ChangeKind = "service_added"
	ChangeServiceRemoved ChangeKind = "service_removed"
	ChangeStatusChanged  ChangeKind = "status_changed"
)

// ChangeRecord is one difference between two adjacent snapshots, attributed to the newer run.
// OldValue and NewValue are nil where the change kind has no value on that side.
type ChangeRecord struct {
	RunID       int64      `json:"run_id"`
	Kind        ChangeKind `json:"change_type"`
	ServiceKey  string     `json:"service_key"`
	CountryCode string     `json:"country_code"`
	OldValue    *string    `json:"old_value"`
	NewValue    *string    `json:"new_value"`
	DetectedAt  time.Time  `json:"detected_at"`
}

// NaturalKey identifies a change record for upserts.
func (c ChangeRecord) NaturalKey() string {
	return string(c.Kind) + "|" + c.ServiceKey
}

type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warn"
)

// DQResult is the outcome of one quality rule for one run.
type DQResult struct {
	RunID       int64     `json:"run_id"`
	RuleID      string    `json:"rule_id"`
	Description string    `json:"rule_description"`
	Severity    Severity  `json:"severity"`
	FailedCount int       `json:"failed_count"`
	SampleKeys  []string  `json:"sample_keys"`
	CreatedAt   time.Time `json:"created_at"`
}

const statusURIPrefix = "HTTP://URI.ETSI.ORG/TRSTSVC/TRUSTEDLIST/SVCSTATUS/"

var statusLabels = map[string]string{
	"DEPRECATEDATNATIONALLEVEL": "DEPRECATED_NL",
	"GRANTED":                   "GRANTED",
	"RECOGNISEDATNATIONALLEVEL": "RECOGNISED_NL",
	"WITHDRAWN":                 "WITHDRAWN",
}

// StatusLabel returns a short display label for a status URI. Unknown URIs are
// returned unchanged. Comparison never uses the label.
func StatusLabel(uri string) string {
	upper := strings.ToUpper(strings.TrimSpace(uri))
	if !strings.HasPrefix(upper, statusURIPrefix) {
		return uri
	}
	if label, ok := statusLabels[strings.TrimPrefix(upper, statusURIPrefix)]; ok {
		return label
	}
	return uri
}
