package models_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trafficpulse/trafficpulse/internal/api/models"
)

func TestProblem_NewProblem(t *testing.T) {
	p := models.NewProblem(
		models.ProblemTypeValidation,
		"Validation error",
		http.StatusBadRequest,
		"req_test123",
	)

	assert.Equal(t, models.ProblemTypeValidation, p.Type)
	assert.Equal(t, "Validation error", p.Title)
	assert.Equal(t, http.StatusBadRequest, p.Status)
	assert.Equal(t, "req_test123", p.TraceID)
	assert.Equal(t, "Validation error", p.Error, "error falls back to the title")
	assert.Empty(t, p.Detail)
	assert.Nil(t, p.Errors)
}

func TestProblem_WithDetailSetsError(t *testing.T) {
	p := models.NewInternalError("req_1", "no routes computed")

	assert.Equal(t, "no routes computed", p.Detail)
	assert.Equal(t, "no routes computed", p.Error)
}

func TestProblem_Write(t *testing.T) {
	p := models.NewBadRequest("req_test123", "from and to are required, e.g. 41.0,29.0", []models.FieldError{
		{Field: "from", Message: "required", Code: "REQUIRED"},
	}).WithInstance("/api/commute")

	w := httptest.NewRecorder()
	p.Write(w)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "req_test123", w.Header().Get("X-Request-Id"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "from and to are required, e.g. 41.0,29.0", body["error"])
	assert.Equal(t, "/api/commute", body["instance"])
	assert.Equal(t, float64(400), body["status"])
	require.Len(t, body["errors"], 1)
}

func TestProblemConstructors(t *testing.T) {
	tests := []struct {
		name    string
		problem *models.Problem
		typ     string
		status  int
		title   string
	}{
		{"not found", models.NewNotFound("r", "x"), models.ProblemTypeNotFound, http.StatusNotFound, "Not found"},
		{"too many", models.NewTooManyRequests("r", "x"), models.ProblemTypeTooManyRequests, http.StatusTooManyRequests, "Too many requests"},
		{"internal", models.NewInternalError("r", "x"), models.ProblemTypeInternal, http.StatusInternalServerError, "Internal server error"},
		{"upstream", models.NewUpstreamError("r", "x"), models.ProblemTypeUpstream, http.StatusInternalServerError, "Upstream provider error"},
		{"unavailable", models.NewServiceUnavailable("r", "x"), models.ProblemTypeUnavailable, http.StatusServiceUnavailable, "Service unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.problem.Type)
			assert.Equal(t, tt.status, tt.problem.Status)
			assert.Equal(t, tt.title, tt.problem.Title)
			assert.Equal(t, "x", tt.problem.Error)
		})
	}
}

func TestHealthStatus_Worst(t *testing.T) {
	assert.Equal(t, models.HealthStatusOK, models.HealthStatusOK.Worst(models.HealthStatusOK))
	assert.Equal(t, models.HealthStatusDegraded, models.HealthStatusOK.Worst(models.HealthStatusDegraded))
	assert.Equal(t, models.HealthStatusFail, models.HealthStatusDegraded.Worst(models.HealthStatusFail))
	assert.Equal(t, models.HealthStatusFail, models.HealthStatusFail.Worst(models.HealthStatusOK))
}

func TestTimestamp_MarshalJSON(t *testing.T) {
	ts := models.Timestamp(time.Date(2025, 9, 1, 11, 0, 0, 0, time.FixedZone("+03", 3*3600)))
	b, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2025-09-01T08:00:00Z"`, string(b))
}
