package handlers

import (
	"net/http"
	"time"

	"gamedash/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// APISystem reports host-level resource usage for the dashboard header.
func APISystem(c *gin.Context) {
	snap := models.SystemTelemetry{SampledAt: time.Now().UTC()}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		snap.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		snap.MemoryPercent = vm.UsedPercent
		snap.MemoryUsed = vm.Used
		snap.MemoryTotal = vm.Total
	}
	if du, err := disk.Usage("/"); err == nil {
		snap.DiskPercent = du.UsedPercent
		snap.DiskUsed = du.Used
		snap.DiskTotal = du.Total
	}

	c.JSON(http.StatusOK, snap)
}
