package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/host"
)

// Host holds human-readable facts about the machine for diagnostics output.
type Host struct {
	Hostname string `json:"hostname"`
	Platform string `json:"platform"` // e.g. "ubuntu", "darwin"
	Version  string `json:"version"`
	Kernel   string `json:"kernel"`
	Uptime   string `json:"uptime"`
}

// HostSummary gathers host facts via gopsutil. Failures are real errors;
// callers decide whether a missing summary is fatal (the doctor command
// treats it as a warning).
func HostSummary(ctx context.Context) (Host, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return Host{}, fmt.Errorf("read host info: %w", err)
	}

	uptime := time.Duration(info.Uptime) * time.Second
	return Host{
		Hostname: info.Hostname,
		Platform: info.Platform,
		Version:  info.PlatformVersion,
		Kernel:   info.KernelVersion,
		Uptime:   uptime.Truncate(time.Minute).String(),
	}, nil
}
