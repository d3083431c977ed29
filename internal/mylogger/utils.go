package mylogger

import (
	"path/filepath"
	"runtime"
	"sync"

	"github.com/google/uuid"
)

var (
	instanceOnce sync.Once
	instance     string
)

// instanceID identifies this process in every log line; stable for the process lifetime.
func instanceID() string {
	instanceOnce.Do(func() {
		instance = "startup-" + uuid.NewString()[:8]
	})
	return instance
}

// captureFrames collects stack trace frames
func captureFrames(skip, depth int) []stackFrame {
	pc := make([]uintptr, depth)
	n := runtime.Callers(skip, pc)
	frames := runtime.CallersFrames(pc[:n])

	var stack []stackFrame
	for {
		frame, more := frames.Next()
		stack = append(stack, stackFrame{
			Func:   filepath.Base(frame.Function),
			Source: filepath.Join(filepath.Base(filepath.Dir(frame.File)), filepath.Base(frame.File)),
			Line:   frame.Line,
		})
		if !more {
			break
		}
	}
	return stack
}

// stackFrame structure for capturing the stack trace
type stackFrame struct {
	Func   string `json:"func"`
	Source string `json:"source"`
	Line   int    `json:"line"`
}
