package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/trafficpulse/trafficpulse/internal/api/models"
	"github.com/trafficpulse/trafficpulse/internal/api/response"
	"github.com/trafficpulse/trafficpulse/internal/provider/resilience"
)

const checkTimeout = 2 * time.Second

// Check probes an in-process dependency such as the events store.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// OpsConfig configures the OpsHandler.
type OpsConfig struct {
	Version   string
	BuildTime string
	Registry  *resilience.Registry
	Checks    []Check
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
	now func() time.Time
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg, now: time.Now}
}

// HealthCheck handles GET /api/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]any{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	})
}

// ReadinessCheck handles GET /api/ops/ready. It fails with 503 when any
// subsystem check fails.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.runChecks(r.Context())

	status := models.HealthStatusOK
	for _, s := range subsystems {
		status = status.Worst(s.Status)
	}

	code := http.StatusOK
	if status == models.HealthStatusFail {
		code = http.StatusServiceUnavailable
	}

	details := make(map[string]any, len(subsystems))
	for _, s := range subsystems {
		details[s.Name] = s.Status
	}

	response.JSON(w, r, code, models.Health{
		Status:  status,
		Time:    models.Timestamp(h.now()),
		Details: details,
	})
}

// SystemStatus handles GET /api/ops/status - subsystem checks plus the
// circuit breaker state of every registered provider.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(h.now()),
		Subsystems: h.runChecks(r.Context()),
		Providers:  h.providerStatuses(),
	}

	for _, s := range status.Subsystems {
		status.Status = status.Status.Worst(s.Status)
	}
	for _, p := range status.Providers {
		// An open circuit degrades the system; it does not take it down.
		if p.Status == models.HealthStatusFail {
			status.Status = status.Status.Worst(models.HealthStatusDegraded)
			continue
		}
		status.Status = status.Status.Worst(p.Status)
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) runChecks(ctx context.Context) []models.SubsystemStatus {
	out := make([]models.SubsystemStatus, 0, len(h.cfg.Checks))
	for _, c := range h.cfg.Checks {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := c.Probe(checkCtx)
		cancel()

		s := models.SubsystemStatus{Name: c.Name, Status: models.HealthStatusOK}
		if err != nil {
			msg := err.Error()
			s.Status = models.HealthStatusFail
			s.Detail = &msg
		}
		out = append(out, s)
	}
	return out
}

func (h *OpsHandler) providerStatuses() []models.ProviderStatus {
	if h.cfg.Registry == nil {
		return []models.ProviderStatus{}
	}

	all := h.cfg.Registry.GetAllHealth()
	out := make([]models.ProviderStatus, 0, len(all))
	for _, p := range all {
		ps := models.ProviderStatus{
			Provider:      p.Name,
			Status:        models.HealthStatus(p.Status()),
			CircuitState:  p.CircuitState.String(),
			LastSuccessAt: timestampPtr(p.LastSuccessAt),
			LastFailureAt: timestampPtr(p.LastFailureAt),
		}
		if p.LastError != "" {
			msg := p.LastError
			ps.Message = &msg
		}
		out = append(out, ps)
	}
	return out
}

func timestampPtr(t *time.Time) *models.Timestamp {
	if t == nil {
		return nil
	}
	ts := models.Timestamp(*t)
	return &ts
}
