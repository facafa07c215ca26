package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/assetusers/internal/application"
	"github.com/ericfisherdev/assetusers/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// AssetUserResponse is the read view of a binding. It never carries secrets.
type AssetUserResponse struct {
	ID           string                `json:"id"`
	AssetID      string                `json:"asset_id"`
	Hostname     string                `json:"hostname"`
	IP           string                `json:"ip"`
	Platform     string                `json:"platform"`
	Port         int                   `json:"port"`
	Username     string                `json:"username"`
	CredentialID string                `json:"credential_id"`
	Name         string                `json:"name"`
	Kind         string                `json:"kind"`
	Origin       string                `json:"origin"`
	Priority     int                   `json:"priority,omitempty"`
	Version      int                   `json:"version,omitempty"`
	CreatedAt    string                `json:"created_at,omitempty"`
	Connectivity *ConnectivityResponse `json:"connectivity"`
}

// AssetUserAuthResponse is a binding with its decrypted secret, returned by
// the auth-info and export endpoints.
type AssetUserAuthResponse struct {
	AssetUserResponse
	Password             string `json:"password"`
	PrivateKey           string `json:"private_key"`
	PublicKeyFingerprint string `json:"public_key_fingerprint"`
}

// ConnectivityResponse is the JSON representation of one probe outcome.
type ConnectivityResponse struct {
	CredentialID string `json:"credential_id"`
	AssetID      string `json:"asset_id"`
	Username     string `json:"username"`
	Status       string `json:"status"`
	ErrorDetail  string `json:"error_detail"`
	TestedAs     string `json:"tested_as,omitempty"`
	DurationMS   int64  `json:"duration_ms"`
	CheckedAt    string `json:"checked_at,omitempty"`
}

// JobSummary counts job results by status.
type JobSummary struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Pending int `json:"pending"`
}

// JobResponse is the JSON representation of a probe job.
type JobResponse struct {
	ID         string                 `json:"id"`
	Status     string                 `json:"status"`
	CreatedAt  string                 `json:"created_at"`
	FinishedAt string                 `json:"finished_at,omitempty"`
	Summary    JobSummary             `json:"summary"`
	Results    []ConnectivityResponse `json:"results"`
}

// TaskResponse is returned when a connectivity test is submitted.
type TaskResponse struct {
	Task string `json:"task"`
}

// CreateAssetUserRequest is the JSON body for the create endpoint.
type CreateAssetUserRequest struct {
	AssetID    string `json:"asset_id"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	PrivateKey string `json:"private_key"`
	Comment    string `json:"comment"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// toAssetUserResponse converts a binding to its read view.
func toAssetUserResponse(b model.Binding, conn *model.ConnectivityResult) AssetUserResponse {
	resp := AssetUserResponse{
		ID:           b.ID(),
		AssetID:      b.AssetID,
		Hostname:     b.Hostname,
		IP:           b.Address,
		Platform:     string(b.Platform),
		Port:         b.Port,
		Username:     b.Username,
		CredentialID: b.CredentialID,
		Name:         b.CredentialName,
		Kind:         string(b.Kind),
		Origin:       string(b.Origin),
		Priority:     b.Priority,
		Version:      b.Version,
		CreatedAt:    formatTime(b.CreatedAt),
	}
	if conn != nil {
		c := toConnectivityResponse(*conn)
		resp.Connectivity = &c
	}
	return resp
}

func toAssetUserAuthResponse(a application.AssetUserAuth) AssetUserAuthResponse {
	return AssetUserAuthResponse{
		AssetUserResponse:    toAssetUserResponse(a.Binding, nil),
		Password:             a.Secret.Password,
		PrivateKey:           a.Secret.PrivateKey,
		PublicKeyFingerprint: a.PublicKeyFingerprint,
	}
}

func toConnectivityResponse(r model.ConnectivityResult) ConnectivityResponse {
	return ConnectivityResponse{
		CredentialID: r.CredentialID,
		AssetID:      r.AssetID,
		Username:     r.Username,
		Status:       string(r.Status),
		ErrorDetail:  r.ErrorDetail,
		TestedAs:     r.TestedAs,
		DurationMS:   r.Duration.Milliseconds(),
		CheckedAt:    formatTime(r.CheckedAt),
	}
}

// toJobResponse converts a job snapshot, keeping results in submission order.
func toJobResponse(job model.Job) JobResponse {
	success, failure, pending := job.Counts()

	results := make([]ConnectivityResponse, 0, len(job.Results))
	for _, r := range job.Results {
		results = append(results, toConnectivityResponse(r))
	}

	return JobResponse{
		ID:         job.ID,
		Status:     string(job.Status),
		CreatedAt:  formatTime(job.CreatedAt),
		FinishedAt: formatTime(job.FinishedAt),
		Summary:    JobSummary{Success: success, Failure: failure, Pending: pending},
		Results:    results,
	}
}
