package logger

import "github.com/robfig/cron/v3"

type cronLogger struct {
	l *Logger
}

// Cron adapts l to the logger interface of robfig/cron. Cron's chatty
// info messages (schedule, wake, run) go to debug.
func (l *Logger) Cron() cron.Logger {
	return cronLogger{l: l}
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
