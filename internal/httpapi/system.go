package httpapi

import (
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/tradeforge/controlplane/internal/platform/apierrors"
)

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeOK(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

type systemStatusResponse struct {
	UptimeSeconds uint64  `json:"uptimeSeconds"`
	CPUPercent    float64 `json:"cpuPercent"`
	MemUsedPct    float64 `json:"memUsedPercent"`
}

// systemStatus surfaces host-level resource pressure, independent of
// per-tenant application metrics exposed at /metrics.
func (h *handler) systemStatus(w http.ResponseWriter, r *http.Request) {
	info, err := host.InfoWithContext(r.Context())
	if err != nil {
		writeErr(w, r, apierrors.Internal("failed to read host info", err))
		return
	}
	vmem, err := mem.VirtualMemoryWithContext(r.Context())
	if err != nil {
		writeErr(w, r, apierrors.Internal("failed to read memory stats", err))
		return
	}
	percents, err := cpu.PercentWithContext(r.Context(), 200*time.Millisecond, false)
	if err != nil {
		writeErr(w, r, apierrors.Internal("failed to read cpu stats", err))
		return
	}
	var cpuPercent float64
	if len(percents) > 0 {
		cpuPercent = percents[0]
	}
	writeOK(w, r, http.StatusOK, systemStatusResponse{
		UptimeSeconds: info.Uptime,
		CPUPercent:    cpuPercent,
		MemUsedPct:    vmem.UsedPercent,
	})
}
