package eventlog

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Sweep deletes rotated log files older than retain, walking every
// subdirectory under dir. Only `*.jsonl.zst` files are touched. The file an
// active writer holds open is always younger than any sane retention
// window, so the writers need no coordination.
func Sweep(dir string, retain time.Duration) (int, error) {
	if dir == "" || retain <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-retain)
	removed := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A missing dir just means nothing was ever logged.
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".jsonl.zst") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}
