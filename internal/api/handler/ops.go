// Package handler provides HTTP handlers for the Midway API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/meetmidway/midway/internal/api/models"
	"github.com/meetmidway/midway/internal/api/response"
	"github.com/meetmidway/midway/internal/provider/resilience"
)

// readinessTimeout bounds each readiness check.
const readinessTimeout = 2 * time.Second

// HealthCheck is a named dependency check used by the readiness and status endpoints.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
	checks    []HealthCheck
}

// NewOpsHandler creates a new OpsHandler. registry may be nil.
func NewOpsHandler(version, buildTime string, registry *resilience.Registry, checks ...HealthCheck) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		registry:  registry,
		checks:    checks,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
// Any failing dependency check makes the instance unready.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.runChecks(r.Context())

	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}
	status := http.StatusOK

	for _, s := range subsystems {
		if s.Status != models.HealthStatusFail {
			continue
		}
		if health.Details == nil {
			health.Details = make(map[string]interface{})
		}
		health.Details[s.Name] = *s.Detail
		health.Status = models.HealthStatusFail
		status = http.StatusServiceUnavailable
	}

	response.JSON(w, r, status, health)
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	subsystems := h.runChecks(r.Context())
	providers := h.providerStatuses()

	overall := models.HealthStatusOK
	for _, p := range providers {
		if p.Status != models.HealthStatusOK {
			overall = models.HealthStatusDegraded
		}
	}
	for _, s := range subsystems {
		if s.Status == models.HealthStatusFail {
			overall = models.HealthStatusFail
		}
	}

	response.JSON(w, r, http.StatusOK, models.SystemStatus{
		Status:     overall,
		Time:       models.Timestamp(time.Now()),
		Subsystems: subsystems,
		Providers:  providers,
	})
}

func (h *OpsHandler) runChecks(ctx context.Context) []models.SubsystemStatus {
	statuses := make([]models.SubsystemStatus, 0, len(h.checks))
	for _, c := range h.checks {
		checkCtx, cancel := context.WithTimeout(ctx, readinessTimeout)
		err := c.Check(checkCtx)
		cancel()

		s := models.SubsystemStatus{Name: c.Name, Status: models.HealthStatusOK}
		if err != nil {
			detail := err.Error()
			s.Status = models.HealthStatusFail
			s.Detail = &detail
		}
		statuses = append(statuses, s)
	}
	return statuses
}

// providerStatuses maps circuit breaker state to health: closed is OK,
// half-open is DEGRADED and open is FAIL.
func (h *OpsHandler) providerStatuses() []models.ProviderStatus {
	if h.registry == nil {
		return []models.ProviderStatus{}
	}

	all := h.registry.GetAllHealth()
	statuses := make([]models.ProviderStatus, 0, len(all))
	for _, p := range all {
		s := models.ProviderStatus{
			Provider:      p.Name,
			Status:        models.HealthStatusOK,
			CircuitState:  p.CircuitState.String(),
			Requests:      p.Counts.Requests,
			Failures:      p.Counts.ConsecutiveFailures,
			LastSuccessAt: timestampPtr(p.LastSuccessAt),
			LastFailureAt: timestampPtr(p.LastFailureAt),
		}
		switch {
		case p.IsUnhealthy():
			s.Status = models.HealthStatusFail
		case p.IsDegraded():
			s.Status = models.HealthStatusDegraded
		}
		if p.LastError != "" {
			msg := p.LastError
			s.Message = &msg
		}
		statuses = append(statuses, s)
	}
	return statuses
}

func timestampPtr(t *time.Time) *models.Timestamp {
	if t == nil {
		return nil
	}
	ts := models.Timestamp(*t)
	return &ts
}
