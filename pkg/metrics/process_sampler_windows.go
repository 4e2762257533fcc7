//go:build windows

package metrics

// currentProcessCPUMicros has no portable getrusage(2) equivalent wired up
// for Windows; CPU-percentage sampling degrades to always-zero there rather
// than pulling in a platform-specific syscall shim for a single metric.
func currentProcessCPUMicros() (userMicros, systemMicros int64) {
	return 0, 0
}
