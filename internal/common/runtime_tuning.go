package common

import (
	"os"
	"runtime"
	"runtime/debug"

	"github.com/rs/zerolog/log"
)

const (
	// Small server: 2 vCPU (test/dev environment)
	smallServerGOGC     = 400
	smallServerMemLimit = 2 * 1024 * 1024 * 1024

	// Larger servers: 4+ vCPU
	defaultGOGC     = 600
	defaultMemLimit = 6 * 1024 * 1024 * 1024
)

// InitRuntime configures the Go runtime for a latency-sensitive quote path.
// Override with environment variables: GOGC, GOMAXPROCS, GOMEMLIMIT.
func InitRuntime() {
	gogc, memLimit := defaultGOGC, int64(defaultMemLimit)
	if runtime.NumCPU() <= 2 {
		gogc, memLimit = smallServerGOGC, smallServerMemLimit
	}

	// High GOGC keeps sync.Pool objects warm between quote bursts;
	// GOMEMLIMIT acts as the safety net against unbounded growth.
	if os.Getenv("GOGC") == "" {
		debug.SetGCPercent(gogc)
		log.Info().Int("GOGC", gogc).Msg("[runtime] set GOGC")
	}
	if os.Getenv("GOMEMLIMIT") == "" {
		debug.SetMemoryLimit(memLimit)
		log.Info().Int64("GOMEMLIMIT_bytes", memLimit).Msg("[runtime] set memory limit")
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	log.Info().
		Int("num_cpu", runtime.NumCPU()).
		Int("gomaxprocs", runtime.GOMAXPROCS(0)).
		Uint64("heap_alloc_mb", memStats.HeapAlloc/1024/1024).
		Str("go_version", runtime.Version()).
		Msg("[runtime] current runtime settings")
}
