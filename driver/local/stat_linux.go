//go:build linux

package local

import (
	"syscall"
	"time"
)

// extractBirthTime returns zero: Stat_t has no birth time on Linux and
// reading it needs statx.
func extractBirthTime(*syscall.Stat_t) time.Time {
	return time.Time{}
}

func extractAccessTime(stat *syscall.Stat_t) time.Time {
	return time.Unix(stat.Atim.Unix())
}
