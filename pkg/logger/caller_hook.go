package logger

import (
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

const pkgPath = "github.com/Rhinoquantify/Rhino-Gateway-Temp/pkg/logger."

// callerHook points entry.Caller at the first frame outside logrus and the
// wrappers in this package.
type callerHook struct{}

func (callerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (callerHook) Fire(entry *logrus.Entry) error {
	pcs := make([]uintptr, 24)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !skipFrame(frame) {
			entry.Caller = &frame
			return nil
		}
		if !more {
			return nil
		}
	}
}

func skipFrame(f runtime.Frame) bool {
	fn := f.Function
	switch {
	case strings.HasPrefix(fn, "runtime."):
		return true
	case strings.Contains(fn, "sirupsen/logrus"):
		return true
	case strings.HasPrefix(fn, pkgPath):
		// 本包测试文件里的调用点要保留
		return !strings.HasSuffix(f.File, "_test.go")
	}
	return false
}
