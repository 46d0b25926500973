package health

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"field-controller/internal/model"
)

// Probe samples host resources. At is stamped by the monitor, not the probe.
type Probe interface {
	Sample(ctx context.Context) (model.HealthSnapshot, error)
}

// HostProbe reads memory, disk and CPU temperature from the running host.
type HostProbe struct {
	path string
}

// NewHostProbe probes disk usage on the filesystem holding path.
func NewHostProbe(path string) *HostProbe {
	if path == "" {
		path = "/"
	}
	return &HostProbe{path: path}
}

func (p *HostProbe) Sample(ctx context.Context) (model.HealthSnapshot, error) {
	var snap model.HealthSnapshot
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return snap, fmt.Errorf("memory: %w", err)
	}
	snap.MemoryPct = vm.UsedPercent

	du, err := disk.UsageWithContext(ctx, p.path)
	if err != nil {
		return snap, fmt.Errorf("disk %s: %w", p.path, err)
	}
	snap.DiskPct = du.UsedPercent

	snap.CPUTemp = cpuTemperature(ctx)
	return snap, nil
}

// cpuTemperature tries the host sensor list first, then the Pi thermal zone.
// Zero means unknown; the monitor skips the CPU check in that case.
func cpuTemperature(ctx context.Context) float64 {
	if stats, err := host.SensorsTemperaturesWithContext(ctx); err == nil {
		for _, s := range stats {
			key := strings.ToLower(s.SensorKey)
			if !strings.Contains(key, "cpu") && !strings.Contains(key, "coretemp") && !strings.Contains(key, "soc") {
				continue
			}
			if s.Temperature > 0 {
				return s.Temperature
			}
		}
	}
	raw, err := os.ReadFile("/sys/class/thermal/thermal_zone0/temp")
	if err != nil {
		return 0
	}
	milli, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil {
		return 0
	}
	return milli / 1000
}
