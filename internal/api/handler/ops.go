// Package handler provides HTTP handlers for the EcoTrail API.
package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/heyysiri/EcoTrail/internal/api/models"
	"github.com/heyysiri/EcoTrail/internal/api/response"
	"github.com/heyysiri/EcoTrail/internal/provider/resilience"
)

// readinessTimeout bounds each dependency check.
const readinessTimeout = 2 * time.Second

// ReadinessCheck reports whether a dependency is reachable.
type ReadinessCheck func(ctx context.Context) error

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
	checks    map[string]ReadinessCheck
	logger    zerolog.Logger
}

// OpsHandlerConfig configures an OpsHandler.
type OpsHandlerConfig struct {
	Version   string
	BuildTime string

	// Registry supplies upstream provider health. Optional.
	Registry *resilience.Registry

	// Checks are run by the readiness endpoint, keyed by subsystem name.
	Checks map[string]ReadinessCheck

	Logger zerolog.Logger
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsHandlerConfig) *OpsHandler {
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		registry:  cfg.Registry,
		checks:    cfg.Checks,
		logger:    cfg.Logger,
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
// Responds 503 when any subsystem check fails.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.runChecks(r.Context())

	status := models.HealthStatusOK
	details := make(map[string]interface{}, len(subsystems))
	for _, s := range subsystems {
		details[s.Name] = s.Status
		if s.Status != models.HealthStatusOK {
			status = models.HealthStatusFail
		}
	}

	health := models.Health{
		Status:  status,
		Time:    models.Timestamp(time.Now()),
		Details: details,
	}

	code := http.StatusOK
	if status != models.HealthStatusOK {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, r, code, health)
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	subsystems := h.runChecks(r.Context())
	providers := h.providerStatuses()

	status := models.HealthStatusOK
	for _, s := range subsystems {
		if s.Status != models.HealthStatusOK {
			status = models.HealthStatusFail
		}
	}
	if status == models.HealthStatusOK {
		for _, p := range providers {
			if p.Status != models.HealthStatusOK {
				status = models.HealthStatusDegraded
				break
			}
		}
	}

	response.JSON(w, r, http.StatusOK, models.SystemStatus{
		Status:     status,
		Time:       models.Timestamp(time.Now()),
		Subsystems: subsystems,
		Providers:  providers,
	})
}

func (h *OpsHandler) runChecks(ctx context.Context) []models.SubsystemStatus {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	statuses := make([]models.SubsystemStatus, 0, len(names))
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, readinessTimeout)
		err := h.checks[name](checkCtx)
		cancel()

		s := models.SubsystemStatus{Name: name, Status: models.HealthStatusOK}
		if err != nil {
			h.logger.Warn().Err(err).Str("subsystem", name).Msg("readiness check failed")
			detail := err.Error()
			s.Status = models.HealthStatusFail
			s.Detail = &detail
		}
		statuses = append(statuses, s)
	}
	return statuses
}

func (h *OpsHandler) providerStatuses() []models.ProviderStatus {
	if h.registry == nil {
		return []models.ProviderStatus{}
	}

	all := h.registry.Snapshot()
	statuses := make([]models.ProviderStatus, 0, len(all))
	for _, ph := range all {
		s := models.ProviderStatus{Provider: ph.Name, Status: providerHealthStatus(ph.Status())}
		if ph.LastSuccessAt != nil {
			t := models.Timestamp(*ph.LastSuccessAt)
			s.LastSuccessAt = &t
		}
		if ph.LastFailureAt != nil {
			t := models.Timestamp(*ph.LastFailureAt)
			s.LastFailureAt = &t
		}
		if ph.LastError != "" {
			msg := ph.LastError
			s.Message = &msg
		}
		statuses = append(statuses, s)
	}
	return statuses
}

func providerHealthStatus(s resilience.Status) models.HealthStatus {
	switch s {
	case resilience.StatusDown:
		return models.HealthStatusFail
	case resilience.StatusDegraded:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}
