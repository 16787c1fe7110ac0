package vm

import (
	"io"

	"github.com/rs/zerolog"
)

// NewLogger builds the structured logger every VM and loader call accepts
// as a collaborator. It mirrors the original C source's log_debug/
// log_info/log_warn/log_error call-site rhythm one level at a time: w is
// typically stderr or the file named by the CLI's -l flag, and trace
// enables the per-instruction debug-level fetch logging used by Step.
func NewLogger(w io.Writer, trace bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if trace {
		level = zerolog.DebugLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// NopLogger discards everything; used where a caller (tests, a library
// consumer embedding the VM) doesn't want the core's logging.
func NopLogger() zerolog.Logger {
	return zerolog.Nop()
}
