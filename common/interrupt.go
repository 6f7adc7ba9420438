package common

import (
	"os"
	"os/signal"
	"syscall"
)

// Interrupted returns a channel receiving the signals that should stop a
// long-running command: interrupt, terminate, quit, and hangup.
func Interrupted() <-chan os.Signal {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt,
		os.Interrupt,
		syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP,
	)
	return interrupt
}
