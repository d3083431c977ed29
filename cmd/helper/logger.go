package main

import "log"

// Logger prints one colored line per simulator step, tagged with the donor.
type Logger struct {
	donorID string
}

func NewLogger(donorID string) *Logger {
	return &Logger{donorID: donorID}
}

func (l *Logger) logf(color, tag, msg string, args ...interface{}) {
	log.Printf(color+"%-6s"+Reset+" donor=%s "+msg, append([]interface{}{tag, l.donorID}, args...)...)
}

func (l *Logger) Info(msg string, args ...interface{})      { l.logf(Green, "DONOR", msg, args...) }
func (l *Logger) Warn(msg string, args ...interface{})      { l.logf(Yellow, "HOLD", msg, args...) }
func (l *Logger) Error(msg string, args ...interface{})     { l.logf(Red, "FAIL", msg, args...) }
func (l *Logger) WebSocket(msg string, args ...interface{}) { l.logf(Cyan, "PUSH", msg, args...) }
func (l *Logger) HTTP(msg string, args ...interface{})      { l.logf(Gray, "API", msg, args...) }
