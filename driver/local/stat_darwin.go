//go:build darwin

package local

import (
	"syscall"
	"time"
)

func extractBirthTime(stat *syscall.Stat_t) time.Time {
	if stat.Birthtimespec.Sec == 0 {
		return time.Time{}
	}
	return time.Unix(stat.Birthtimespec.Unix())
}

func extractAccessTime(stat *syscall.Stat_t) time.Time {
	return time.Unix(stat.Atimespec.Unix())
}
