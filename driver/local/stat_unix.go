//go:build linux || darwin

package local

import (
	"os"
	"syscall"
	"time"
)

// platformTimes returns the creation and access times when the platform
// records them. Zero values mean unknown.
func platformTimes(info os.FileInfo) (created, accessed time.Time) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return time.Time{}, time.Time{}
	}
	return extractBirthTime(stat), extractAccessTime(stat)
}
