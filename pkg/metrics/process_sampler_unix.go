//go:build !windows

package metrics

import "syscall"

// currentProcessCPUMicros reads cumulative user/system CPU time for this
// process via getrusage(2), converted to microseconds.
func currentProcessCPUMicros() (userMicros, systemMicros int64) {
	var ru syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &ru); err != nil {
		return 0, 0
	}
	return timevalMicros(ru.Utime), timevalMicros(ru.Stime)
}

func timevalMicros(tv syscall.Timeval) int64 {
	return int64(tv.Sec)*1_000_000 + int64(tv.Usec)
}
