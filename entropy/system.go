package entropy

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"
)

// systemSource snapshots volatile host statistics (CPU times, memory
// counters, uptime). A weak but always-available diversity input.
type systemSource struct{}

func init() {
	registerSource(&systemSource{})
}

func (s *systemSource) Name() string {
	return "system"
}

func (s *systemSource) Local() bool {
	return true
}

func (s *systemSource) Fetch(ctx context.Context) ([]byte, error) {
	payload := make([]byte, 0, 256)

	appendUint := func(v uint64) {
		var chunk [8]byte
		binary.LittleEndian.PutUint64(chunk[:], v)
		payload = append(payload, chunk[:]...)
	}
	appendFloat := func(v float64) {
		appendUint(math.Float64bits(v))
	}

	cpuTimes, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("cpu times: %w", err)
	}
	for _, t := range cpuTimes {
		appendFloat(t.User)
		appendFloat(t.System)
		appendFloat(t.Idle)
		appendFloat(t.Iowait)
		appendFloat(t.Irq)
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("virtual memory: %w", err)
	}
	appendUint(vm.Available)
	appendUint(vm.Used)
	appendUint(vm.Free)
	appendUint(vm.Cached)

	uptime, err := host.UptimeWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("uptime: %w", err)
	}
	appendUint(uptime)
	appendUint(uint64(time.Now().UnixNano()))

	return payload, nil
}
