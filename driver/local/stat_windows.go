//go:build windows

package local

import (
	"os"
	"syscall"
	"time"
)

// platformTimes reads creation and access times from the Win32 attributes.
func platformTimes(info os.FileInfo) (created, accessed time.Time) {
	data, ok := info.Sys().(*syscall.Win32FileAttributeData)
	if !ok {
		return time.Time{}, time.Time{}
	}
	return time.Unix(0, data.CreationTime.Nanoseconds()), time.Unix(0, data.LastAccessTime.Nanoseconds())
}
