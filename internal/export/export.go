// Package export copies the config directory, including the session
// database, into a user-chosen backup location.
package export

import (
	"fmt"
	"os"
	"strings"

	"github.com/otiai10/copy"
	"github.com/sirupsen/logrus"

	"github.com/kotoba-dev/kotoba/internal/config"
)

// Export copies the config directory to destDir. SQLite journal files
// are skipped since they are only meaningful next to a live database.
func Export(cfg *config.Config, destDir string) error {
	src := cfg.ConfigDir()
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("reading config directory: %w", err)
	}

	opts := copy.Options{
		Skip: func(srcinfo os.FileInfo, src, dest string) (bool, error) {
			if srcinfo.IsDir() {
				return false, nil
			}
			return strings.HasSuffix(src, "-wal") || strings.HasSuffix(src, "-shm"), nil
		},
	}
	if err := copy.Copy(src, destDir, opts); err != nil {
		return fmt.Errorf("copying config directory: %w", err)
	}

	logrus.Infof("exported %s to %s", src, destDir)
	return nil
}
