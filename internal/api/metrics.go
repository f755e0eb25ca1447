package api

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// ProcessStats состояние процесса для /health
type ProcessStats struct {
	Uptime        string  `json:"uptime"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	CPUPercent    float64 `json:"cpu_percent"` // -1, если недоступно
	AllocMB       float64 `json:"alloc_mb"`
	HeapSysMB     float64 `json:"heap_sys_mb"`
	SysMB         float64 `json:"sys_mb"`
	NumGC         uint32  `json:"num_gc"`
	Goroutines    int     `json:"goroutines"`
}

// ServerMetrics собирает метрики процесса сервиса границ
type ServerMetrics struct {
	startTime time.Time

	procOnce sync.Once
	proc     *process.Process
}

// NewServerMetrics создает новый экземпляр метрик
func NewServerMetrics() *ServerMetrics {
	return &ServerMetrics{startTime: time.Now()}
}

// Snapshot текущее состояние процесса
func (sm *ServerMetrics) Snapshot() ProcessStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(sm.startTime)
	cpuPercent, err := sm.cpuUsage()
	if err != nil {
		cpuPercent = -1
	}
	return ProcessStats{
		Uptime:        formatUptime(uptime),
		UptimeSeconds: int64(uptime.Seconds()),
		CPUPercent:    cpuPercent,
		AllocMB:       float64(m.Alloc) / 1024 / 1024,
		HeapSysMB:     float64(m.HeapSys) / 1024 / 1024,
		SysMB:         float64(m.Sys) / 1024 / 1024,
		NumGC:         m.NumGC,
		Goroutines:    runtime.NumGoroutine(),
	}
}

// cpuUsage загрузка CPU процессом; при ошибке берётся системная загрузка
func (sm *ServerMetrics) cpuUsage() (float64, error) {
	sm.procOnce.Do(func() {
		sm.proc, _ = process.NewProcess(int32(os.Getpid()))
	})
	if sm.proc != nil {
		if percent, err := sm.proc.CPUPercent(); err == nil {
			return percent, nil
		}
	}
	percents, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		return 0, err
	}
	if len(percents) == 0 {
		return 0, fmt.Errorf("cpu: нет данных")
	}
	return percents[0], nil
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dд %dч %dм %dс", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dч %dм %dс", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dм %dс", minutes, seconds)
	}
	return fmt.Sprintf("%dс", seconds)
}
