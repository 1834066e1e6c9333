//go:build unix

package capacity

import (
	"golang.org/x/sys/unix"
)

// freeBytes returns the space available to unprivileged users under dir.
func freeBytes(dir string) (int64, bool, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return 0, false, err
	}
	return int64(st.Bavail) * int64(st.Bsize), true, nil
}
