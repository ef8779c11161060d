package metrics

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// SysHealth is a point-in-time snapshot of the process and its data directory.
type SysHealth struct {
	AllocMB    uint64
	SysMB      uint64
	NumGC      uint32
	Goroutines int
	DataBytes  int64
	Uptime     time.Duration
}

var startedAt = time.Now()

// GetSysHealth collects real-time health data. dataDir is walked for the
// on-disk size of the store; a missing directory counts as empty.
func GetSysHealth(dataDir string) SysHealth {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SysHealth{
		AllocMB:    m.Alloc / 1024 / 1024,
		SysMB:      m.Sys / 1024 / 1024,
		NumGC:      m.NumGC,
		Goroutines: runtime.NumGoroutine(),
		DataBytes:  dirSize(dataDir),
		Uptime:     time.Since(startedAt).Truncate(time.Second),
	}
}

// Summary renders the snapshot as short plain-text lines.
func (h SysHealth) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Uptime: %s\n", h.Uptime)
	fmt.Fprintf(&b, "Memory: %d MB alloc, %d MB sys, %d GCs\n", h.AllocMB, h.SysMB, h.NumGC)
	fmt.Fprintf(&b, "Goroutines: %d\n", h.Goroutines)
	fmt.Fprintf(&b, "Data on disk: %s", FormatBytes(h.DataBytes))
	return b.String()
}

func dirSize(path string) int64 {
	var size int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	return size
}

// FormatBytes renders a byte count with a binary unit suffix.
func FormatBytes(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
