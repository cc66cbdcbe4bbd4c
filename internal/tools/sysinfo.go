package tools

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// SystemInfo answers get_system_info queries. Sections that the
// platform cannot provide report that instead of failing the tool.
func SystemInfo(ctx context.Context, infoType string) string {
	infoType = strings.ToLower(strings.TrimSpace(infoType))
	if infoType == "" {
		infoType = "all"
	}

	now := time.Now()
	sections := map[string]func() string{
		"time":    func() string { return "Time: " + now.Format("3:04 PM") },
		"date":    func() string { return "Date: " + now.Format("Monday, January 2, 2006") },
		"battery": func() string { return batteryInfo(ctx) },
		"memory":  func() string { return memoryInfo() },
		"cpu": func() string {
			return fmt.Sprintf("CPU: %d cores (%s/%s)", runtime.NumCPU(), runtime.GOOS, runtime.GOARCH)
		},
	}

	if infoType != "all" {
		fn, ok := sections[infoType]
		if !ok {
			return fmt.Sprintf("Unknown info type %q. Valid: time, date, battery, memory, cpu, all.", infoType)
		}
		return fn()
	}

	parts := make([]string, 0, len(sections))
	for _, key := range []string{"time", "date", "battery", "memory", "cpu"} {
		parts = append(parts, sections[key]())
	}
	return strings.Join(parts, "\n")
}

func batteryInfo(ctx context.Context) string {
	switch runtime.GOOS {
	case "linux":
		for _, supply := range []string{"BAT0", "BAT1"} {
			data, err := os.ReadFile("/sys/class/power_supply/" + supply + "/capacity")
			if err != nil {
				continue
			}
			return "Battery: " + strings.TrimSpace(string(data)) + "%"
		}
		return "Battery: not available"
	case "darwin":
		out, err := exec.CommandContext(ctx, "pmset", "-g", "batt").Output()
		if err != nil {
			return "Battery: not available"
		}
		for _, line := range strings.Split(string(out), "\n") {
			if idx := strings.Index(line, "%"); idx > 0 {
				start := strings.LastIndexByte(line[:idx], '\t')
				return "Battery: " + strings.TrimSpace(line[start+1:idx]) + "%"
			}
		}
		return "Battery: not available"
	default:
		return "Battery: not available on " + runtime.GOOS
	}
}

func memoryInfo() string {
	if runtime.GOOS == "linux" {
		data, err := os.ReadFile("/proc/meminfo")
		if err == nil {
			var total, avail int64
			for _, line := range strings.Split(string(data), "\n") {
				fields := strings.Fields(line)
				if len(fields) < 2 {
					continue
				}
				switch fields[0] {
				case "MemTotal:":
					fmt.Sscanf(fields[1], "%d", &total)
				case "MemAvailable:":
					fmt.Sscanf(fields[1], "%d", &avail)
				}
			}
			if total > 0 {
				return fmt.Sprintf("Memory: %.1f GB available of %.1f GB",
					float64(avail)/1024/1024, float64(total)/1024/1024)
			}
		}
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return fmt.Sprintf("Memory: process using %.1f MB", float64(m.Sys)/1024/1024)
}
