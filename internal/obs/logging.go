// Package obs wires up logging and metrics for the service.
package obs

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kotoba-dev/kotoba/internal/config"
)

// SetupLogging configures the global logrus logger. When cfg.File is set
// log output also goes to a rotating file.
func SetupLogging(verbose bool, cfg config.Log) {
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}

	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if cfg.File == "" {
		return
	}

	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}
	maxBackups := cfg.MaxBackups
	if maxBackups <= 0 {
		maxBackups = 5
	}

	rotating := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     30,
		Compress:   true,
	}
	logrus.SetOutput(io.MultiWriter(os.Stderr, rotating))
}
