package app

import (
	"strings"

	"github.com/openbiolabs/noderepo/pkg/logger"
)

// ConfigureLogging initialises the process logger with the configured
// level. An empty level means info.
func ConfigureLogging(level string) error {
	level = strings.TrimSpace(level)
	if level == "" {
		level = "info"
	}
	return logger.Init(level)
}
