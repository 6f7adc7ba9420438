package common

import "log/slog"

// SlogResetLevel sets the default slog level and returns a func restoring
// the prior level. Intended for tests that exercise noisy warn paths:
//
//	defer common.SlogResetLevel(slog.LevelError)()
func SlogResetLevel(level slog.Level) (reset func()) {
	was := slog.SetLogLoggerLevel(level)
	return func() {
		slog.SetLogLoggerLevel(was)
	}
}
