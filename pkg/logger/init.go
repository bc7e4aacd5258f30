package logger

import (
	"os"
)

// Init configures the global logger from LOG_LEVEL, LOG_FORMAT and LOG_FILE.
// Unset variables keep the defaults: info level, json to stdout.
func Init() {
	Configure(Options{
		Level:      os.Getenv("LOG_LEVEL"),
		Format:     os.Getenv("LOG_FORMAT"),
		File:       os.Getenv("LOG_FILE"),
		MaxSizeMB:  100,
		MaxBackups: 3,
		MaxAgeDays: 7,
		Stdout:     true,
	})
}
