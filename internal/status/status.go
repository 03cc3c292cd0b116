// Package status inspects the artifacts of a deployment and the host it
// runs on.
package status

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"face-attendance/config"
	"face-attendance/internal/identity"
	"face-attendance/internal/samples"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	log "github.com/sirupsen/logrus"
)

var (
	lastCPUTime        time.Time
	lastCPUUsage       float64
	cpuUsageMutex      sync.Mutex
	cpuUsageSampleRate = 500 * time.Millisecond
)

// Artifact is a required file.
type Artifact struct {
	Description string
	Path        string
	Present     bool
}

// Directory is a storage directory and its file count.
type Directory struct {
	Description string
	Path        string
	Present     bool
	Files       int
}

// HostStats holds CPU and memory figures.
type HostStats struct {
	NumCPU        int
	CPUUsage      float64
	MemoryUsed    uint64
	MemoryTotal   uint64
	MemoryPercent float64
	MemoryAlloc   uint64 // Go heap
}

// Report is the full status of a deployment.
type Report struct {
	Artifacts          []Artifact
	Directories        []Directory
	TrainingImages     int
	TrainedIdentities  int // distinct ids among the training images
	EnrolledIdentities int // distinct ids in the identity store
	Host               *HostStats
	Timestamp          time.Time
}

// Collect inspects the configured storage locations. Host statistics are
// only gathered when withHost is set.
func Collect(cfg *config.Config, withHost bool) (*Report, error) {
	r := &Report{Timestamp: time.Now()}

	for _, a := range []struct{ path, desc string }{
		{cfg.Detector.CascadeFile, "Face detection model"},
		{cfg.Storage.ModelFile, "Trained recognition model"},
		{cfg.Storage.IdentityFile, "Identity store"},
	} {
		present, err := fileExists(a.path)
		if err != nil {
			return nil, err
		}
		r.Artifacts = append(r.Artifacts, Artifact{Description: a.desc, Path: a.path, Present: present})
	}

	for _, d := range []struct{ path, desc string }{
		{cfg.Storage.TrainingDir, "Training images storage"},
		{filepath.Dir(cfg.Storage.IdentityFile), "Identity database"},
		{cfg.Storage.AttendanceDir, "Attendance records"},
	} {
		dir, err := countFiles(d.path)
		if err != nil {
			return nil, err
		}
		dir.Description = d.desc
		r.Directories = append(r.Directories, dir)
	}

	files, ids, err := samples.NewRepository(cfg.Storage.TrainingDir, cfg.Storage.JPEGQuality).Summary()
	if err != nil {
		return nil, fmt.Errorf("failed to inspect training images: %w", err)
	}
	r.TrainingImages, r.TrainedIdentities = files, ids

	if dir, err := identity.NewStore(cfg.Storage.IdentityFile).Directory(); err == nil {
		r.EnrolledIdentities = dir.Len()
	}

	if withHost {
		r.Host = GetHostStats()
	}
	return r, nil
}

func fileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

func countFiles(path string) (Directory, error) {
	d := Directory{Path: path}
	entries, err := os.ReadDir(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return d, nil
		}
		return d, err
	}
	d.Present = true
	for _, e := range entries {
		if e.Type().IsRegular() {
			d.Files++
		}
	}
	return d, nil
}

// GetCPUUsage samples total CPU usage, cached for half a second.
func GetCPUUsage() float64 {
	cpuUsageMutex.Lock()
	defer cpuUsageMutex.Unlock()

	if time.Since(lastCPUTime) < cpuUsageSampleRate && lastCPUTime.Unix() > 0 {
		return lastCPUUsage
	}

	percentages, err := cpu.Percent(200*time.Millisecond, false)
	if err != nil {
		log.Warnf("Failed to measure CPU usage: %v", err)
		return 0.0
	}

	var usage float64
	if len(percentages) > 0 {
		usage = percentages[0] // all cores
	}

	lastCPUTime = time.Now()
	lastCPUUsage = usage
	return usage
}

// GetHostStats collects CPU and memory statistics.
func GetHostStats() *HostStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := &HostStats{
		NumCPU:      runtime.NumCPU(),
		CPUUsage:    GetCPUUsage(),
		MemoryAlloc: memStats.Alloc,
	}
	if vm, err := mem.VirtualMemory(); err != nil {
		log.Warnf("Failed to read memory statistics: %v", err)
	} else {
		stats.MemoryUsed = vm.Used
		stats.MemoryTotal = vm.Total
		stats.MemoryPercent = vm.UsedPercent
	}
	return stats
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(bytes uint64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d Bytes", bytes)
	}
}
