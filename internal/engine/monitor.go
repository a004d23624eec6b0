package engine

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

const DefaultMonitorInterval = time.Second

// maxTreeDepth bounds the child walk: nuitka -> python -> scons -> gcc -> cc1.
const maxTreeDepth = 6

type MemoryStats struct {
	CurrentRSSBytes uint64
	PeakRSSBytes    uint64
	Samples         int
}

// RSSSampler returns the resident memory of pid and its descendants.
type RSSSampler func(ctx context.Context, pid int32) (uint64, error)

// ProcessMonitor samples the resident memory of a running child.
type ProcessMonitor struct {
	interval time.Duration
	sample   RSSSampler

	mu    sync.RWMutex
	stats MemoryStats
}

func NewProcessMonitor(interval time.Duration, sampler RSSSampler) *ProcessMonitor {
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	if sampler == nil {
		sampler = TreeRSS
	}
	return &ProcessMonitor{interval: interval, sample: sampler}
}

// Run samples pid until ctx is done. A process that has gone away is not
// an error.
func (m *ProcessMonitor) Run(ctx context.Context, pid int) error {
	if pid <= 0 {
		return nil
	}
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.sampleOnce(ctx, int32(pid))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.sampleOnce(ctx, int32(pid))
		}
	}
}

func (m *ProcessMonitor) Stats() MemoryStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

func (m *ProcessMonitor) sampleOnce(ctx context.Context, pid int32) {
	rss, err := m.sample(ctx, pid)
	if err != nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Samples++
	m.stats.CurrentRSSBytes = rss
	if rss > m.stats.PeakRSSBytes {
		m.stats.PeakRSSBytes = rss
	}
}

// TreeRSS sums the RSS of pid and all of its descendants.
func TreeRSS(ctx context.Context, pid int32) (uint64, error) {
	root, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return 0, err
	}
	return treeRSS(ctx, root, 0), nil
}

func treeRSS(ctx context.Context, proc *process.Process, depth int) uint64 {
	var total uint64
	if info, err := proc.MemoryInfoWithContext(ctx); err == nil && info != nil {
		total += info.RSS
	}
	if depth >= maxTreeDepth {
		return total
	}
	children, err := proc.ChildrenWithContext(ctx)
	if err != nil {
		return total
	}
	for _, child := range children {
		total += treeRSS(ctx, child, depth+1)
	}
	return total
}

// descendants lists every process below pid, parents before children.
func descendants(ctx context.Context, pid int32) []*process.Process {
	root, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return nil
	}
	found := []*process.Process{}
	var walk func(proc *process.Process, depth int)
	walk = func(proc *process.Process, depth int) {
		if depth >= maxTreeDepth {
			return
		}
		children, err := proc.ChildrenWithContext(ctx)
		if err != nil {
			return
		}
		for _, child := range children {
			found = append(found, child)
			walk(child, depth+1)
		}
	}
	walk(root, 0)
	return found
}
