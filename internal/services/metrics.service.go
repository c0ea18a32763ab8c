package services

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net"

	"github.com/high001/webpanel/internal/models"
)

// GetCPUStats returns overall CPU usage sampled over interval (0 compares
// against the previous call)
func GetCPUStats(interval time.Duration) (models.CPUStats, error) {
	percentage, err := cpu.Percent(interval, false)
	if err != nil {
		return models.CPUStats{}, err
	}
	coreCount, err := cpu.Counts(true)
	if err != nil {
		coreCount = 0
	}

	var usage float64
	if len(percentage) > 0 {
		usage = percentage[0]
	}
	return models.CPUStats{Percent: usage, Count: coreCount}, nil
}

// GetMemoryStats returns virtual memory usage
func GetMemoryStats() (models.MemoryStats, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return models.MemoryStats{}, err
	}
	return models.MemoryStats{
		Total:   vm.Total,
		Used:    vm.Used,
		Free:    vm.Free,
		Percent: vm.UsedPercent,
	}, nil
}

// GetDiskStats returns disk usage for a specific path
func GetDiskStats(path string) (models.DiskStats, error) {
	if path == "" {
		path = "/"
	}
	usage, err := disk.Usage(path)
	if err != nil {
		return models.DiskStats{}, err
	}

	percent := usage.UsedPercent
	if usage.Total > 0 {
		percent = float64(usage.Used) / float64(usage.Total) * 100
	}
	return models.DiskStats{
		Total:   usage.Total,
		Used:    usage.Used,
		Free:    usage.Free,
		Percent: percent,
	}, nil
}

// SplitUptime converts seconds since boot to days/hours/minutes
func SplitUptime(seconds uint64) models.Uptime {
	d := time.Duration(seconds) * time.Second
	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	return models.Uptime{Days: days, Hours: hours, Minutes: int(d / time.Minute)}
}

// primaryIP returns the first non-loopback IPv4 address of the host
func primaryIP() string {
	ifaces, err := gnet.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if isLoopback(iface.Flags) {
			continue
		}
		for _, addr := range iface.Addrs {
			ip, _, err := net.ParseCIDR(addr.Addr)
			if err != nil {
				continue
			}
			if v4 := ip.To4(); v4 != nil && !v4.IsLoopback() && !v4.IsLinkLocalUnicast() {
				return v4.String()
			}
		}
	}
	return ""
}

func isLoopback(flags []string) bool {
	for _, f := range flags {
		if f == "loopback" {
			return true
		}
	}
	return false
}

// CollectDashboardStats returns the complete metrics snapshot
func CollectDashboardStats() (*models.DashboardStats, error) {
	cpuStats, err := GetCPUStats(0)
	if err != nil {
		return nil, fmt.Errorf("failed to get CPU usage: %w", err)
	}

	memStats, err := GetMemoryStats()
	if err != nil {
		return nil, fmt.Errorf("failed to get memory usage: %w", err)
	}

	diskStats, err := GetDiskStats("/")
	if err != nil {
		return nil, fmt.Errorf("failed to get disk usage: %w", err)
	}

	stats := &models.DashboardStats{
		CPU:       cpuStats,
		Memory:    memStats,
		Disk:      diskStats,
		IPAddress: primaryIP(),
	}

	if info, err := host.Info(); err == nil {
		stats.Hostname = info.Hostname
		stats.Uptime = SplitUptime(info.Uptime)
	} else {
		stats.Hostname, _ = os.Hostname()
	}
	if stats.IPAddress == "" {
		stats.IPAddress = "127.0.0.1"
	}
	return stats, nil
}
