package types

// LogLevel controls logger verbosity.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// RunMode identifies what this process is deployed as.
type RunMode string

const (
	ModeLocal     RunMode = "local"
	ModeEvaluator RunMode = "evaluator"
)
