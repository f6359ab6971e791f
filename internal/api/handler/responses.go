package handler

import (
	"time"

	"tlwatch/internal/trustlist/models"
)

type RunResponse struct {
	RunID      int64      `json:"run_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     string     `json:"status"`
	Notes      string     `json:"notes,omitempty"`
}

type RunsResponse struct {
	Runs []RunResponse `json:"runs"`
}

// ServiceResponse adds a display label; current_status stays verbatim.
type ServiceResponse struct {
	ServiceKey            string `json:"service_key"`
	ProviderKey           string `json:"provider_key"`
	CountryCode           string `json:"country_code"`
	ServiceTypeIdentifier string `json:"service_type_identifier"`
	ServiceName           string `json:"service_name"`
	CurrentStatus         string `json:"current_status"`
	StatusLabel           string `json:"status_label"`
	StatusStartingTime    string `json:"status_starting_time"`
}

type ServicesResponse struct {
	RunID    int64             `json:"run_id"`
	Services []ServiceResponse `json:"services"`
}

type ChangeResponse struct {
	ChangeType     string    `json:"change_type"`
	ServiceKey     string    `json:"service_key"`
	CountryCode    string    `json:"country_code"`
	OldValue       *string   `json:"old_value"`
	NewValue       *string   `json:"new_value"`
	OldStatusLabel string    `json:"old_status_label,omitempty"`
	NewStatusLabel string    `json:"new_status_label,omitempty"`
	DetectedAt     time.Time `json:"detected_at"`
}

type ChangesResponse struct {
	RunID   int64            `json:"run_id"`
	Summary map[string]int   `json:"summary"`
	Changes []ChangeResponse `json:"changes"`
}

type DQResponse struct {
	RunID   int64             `json:"run_id"`
	Results []models.DQResult `json:"results"`
}

type SourcesResponse struct {
	RunID   int64           `json:"run_id"`
	Sources []models.Source `json:"sources"`
}

func FromRun(run models.Run) RunResponse {
	return RunResponse{
		RunID:      run.RunID,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Status:     string(run.Status),
		Notes:      run.Notes,
	}
}

func FromService(svc models.Service) ServiceResponse {
	return ServiceResponse{
		ServiceKey:            svc.ServiceKey,
		ProviderKey:           svc.ProviderKey,
		CountryCode:           svc.CountryCode,
		ServiceTypeIdentifier: svc.ServiceTypeIdentifier,
		ServiceName:           svc.ServiceName,
		CurrentStatus:         svc.CurrentStatus,
		StatusLabel:           models.StatusLabel(svc.CurrentStatus),
		StatusStartingTime:    svc.StatusStartingTime,
	}
}

func FromChange(rec models.ChangeRecord) ChangeResponse {
	return ChangeResponse{
		ChangeType:     string(rec.Kind),
		ServiceKey:     rec.ServiceKey,
		CountryCode:    rec.CountryCode,
		OldValue:       rec.OldValue,
		NewValue:       rec.NewValue,
		OldStatusLabel: label(rec.OldValue),
		NewStatusLabel: label(rec.NewValue),
		DetectedAt:     rec.DetectedAt,
	}
}

func label(v *string) string {
	if v == nil {
		return ""
	}
	return models.StatusLabel(*v)
}
