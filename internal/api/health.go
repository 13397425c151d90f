package api

import (
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

var startedAt = time.Now()

// handleHealth reports process health plus the registered dependency
// probes. Any failing probe degrades the overall status to 503.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	httpStatus := http.StatusOK

	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(); err != nil {
			deps[name] = err.Error()
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	system := map[string]interface{}{}
	if vm, err := mem.VirtualMemory(); err == nil {
		system["memory_used_percent"] = vm.UsedPercent
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		system["cpu_percent"] = percents[0]
	}

	successResponse(w, httpStatus, map[string]interface{}{
		"status":         status,
		"uptime_seconds": int64(time.Since(startedAt).Seconds()),
		"dependencies":   deps,
		"system":         system,
	})
}
