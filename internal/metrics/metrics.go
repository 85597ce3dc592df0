// Package metrics collects host statistics for the stats command and keeps
// the Prometheus counters exported by the bot.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
)

// Options configures a Collector.
type Options struct {
	DiskTargets    []string
	SampleInterval time.Duration
}

// Collector snapshots host and process statistics for the stats command.
type Collector struct {
	options Options
}

// NewCollector fills in a 1s sample interval and the root path when unset.
func NewCollector(opts Options) *Collector {
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = time.Second
	}
	if len(opts.DiskTargets) == 0 {
		opts.DiskTargets = []string{"/"}
	}

	return &Collector{options: opts}
}

// SampleInterval is the gap between the two network samples.
func (c *Collector) SampleInterval() time.Duration {
	return c.options.SampleInterval
}

// Stats is one snapshot of the host and the bot process.
type Stats struct {
	CPU      CPUStats
	Memory   MemoryStats
	Disks    []DiskUsage
	Network  NetworkStats
	Process  ProcessStats
	Host     HostStats
	Warnings []string
}

type CPUStats struct {
	Usage     float64
	Load1     float64
	Load5     float64
	Load15    float64
	Cores     int
	LoadRatio float64
}

type MemoryStats struct {
	Used        uint64
	Total       uint64
	UsedPercent float64
	SwapUsed    uint64
	SwapTotal   uint64
	SwapPercent float64
}

type DiskUsage struct {
	Mount       string
	Used        uint64
	Total       uint64
	UsedPercent float64
}

type NetworkStats struct {
	SentPerSec     uint64
	ReceivedPerSec uint64
}

type ProcessStats struct {
	RSS        uint64
	Goroutines int
}

type HostStats struct {
	Uptime time.Duration
}

// probe fills one section of a snapshot and leaves it untouched on error.
type probe struct {
	name string
	fill func(context.Context, *Stats) error
}

func (c *Collector) probes() []probe {
	return []probe{
		{"CPU", readCPU},
		{"Memory", readMemory},
		{"Disks", c.readDisks},
		{"Network", c.readNetwork},
		{"Process", readProcess},
		{"Host", readHost},
	}
}

// Collect takes a snapshot. A failing probe leaves its section zero and adds
// a warning instead of failing the call.
func (c *Collector) Collect(ctx context.Context) (Stats, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var stats Stats
	for _, p := range c.probes() {
		if err := ctx.Err(); err != nil {
			stats.Warnings = append(stats.Warnings, fmt.Sprintf("%s: %v", p.name, err))
			continue
		}
		if err := p.fill(ctx, &stats); err != nil {
			stats.Warnings = append(stats.Warnings, fmt.Sprintf("%s: %v", p.name, err))
		}
	}
	return stats, nil
}

func readCPU(ctx context.Context, s *Stats) error {
	busy, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return err
	}
	if len(busy) == 0 {
		return errors.New("no CPU data")
	}
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return err
	}
	cores, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return err
	}

	s.CPU = CPUStats{
		Usage:  busy[0],
		Load1:  avg.Load1,
		Load5:  avg.Load5,
		Load15: avg.Load15,
		Cores:  cores,
	}
	if cores > 0 {
		s.CPU.LoadRatio = avg.Load1 / float64(cores) * 100
	}
	return nil
}

func readMemory(ctx context.Context, s *Stats) error {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return err
	}
	sw, err := mem.SwapMemoryWithContext(ctx)
	if err != nil {
		return err
	}

	s.Memory = MemoryStats{
		Used:        vm.Used,
		Total:       vm.Total,
		UsedPercent: vm.UsedPercent,
		SwapUsed:    sw.Used,
		SwapTotal:   sw.Total,
		SwapPercent: sw.UsedPercent,
	}
	return nil
}

// readDisks reports usage for each configured path. Paths need not be mount
// points, so containers without a partition table still report.
func (c *Collector) readDisks(ctx context.Context, s *Stats) error {
	out := make([]DiskUsage, 0, len(c.options.DiskTargets))
	for _, path := range c.options.DiskTargets {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		u, err := disk.UsageWithContext(ctx, path)
		if err != nil {
			return fmt.Errorf("path %s: %w", path, err)
		}
		out = append(out, DiskUsage{Mount: path, Used: u.Used, Total: u.Total, UsedPercent: u.UsedPercent})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Mount < out[j].Mount })
	s.Disks = out
	return nil
}

// readNetwork samples the aggregate interface counters twice, SampleInterval apart.
func (c *Collector) readNetwork(ctx context.Context, s *Stats) error {
	before, err := totalIO(ctx)
	if err != nil {
		return err
	}

	timer := time.NewTimer(c.options.SampleInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	after, err := totalIO(ctx)
	if err != nil {
		return err
	}

	secs := c.options.SampleInterval.Seconds()
	s.Network = NetworkStats{
		SentPerSec:     uint64(float64(after.BytesSent-before.BytesSent) / secs),
		ReceivedPerSec: uint64(float64(after.BytesRecv-before.BytesRecv) / secs),
	}
	return nil
}

func totalIO(ctx context.Context) (net.IOCountersStat, error) {
	counters, err := net.IOCountersWithContext(ctx, false)
	if err != nil {
		return net.IOCountersStat{}, err
	}
	if len(counters) == 0 {
		return net.IOCountersStat{}, errors.New("no network data")
	}
	return counters[0], nil
}

func readProcess(ctx context.Context, s *Stats) error {
	self, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return err
	}
	rss, err := self.MemoryInfoWithContext(ctx)
	if err != nil {
		return err
	}
	s.Process = ProcessStats{RSS: rss.RSS, Goroutines: runtime.NumGoroutine()}
	return nil
}

func readHost(ctx context.Context, s *Stats) error {
	secs, err := host.UptimeWithContext(ctx)
	if err != nil {
		return err
	}
	s.Host = HostStats{Uptime: time.Duration(secs) * time.Second}
	return nil
}
