package logger

type nopLogger struct{}

// Nop returns a Logger that discards everything. Fatal still exits.
func Nop() Logger {
	return nopLogger{}
}

func (nopLogger) Debug(string, ...any) {}

func (nopLogger) Info(string, ...any) {}

func (nopLogger) Warn(string, ...any) {}

func (nopLogger) Error(string, ...any) {}

func (nopLogger) Fatal(string, ...any) { exit(1) }

func (n nopLogger) With(...any) Logger { return n }

func (nopLogger) Level() Level { return FatalLevel }

func (nopLogger) SetLevel(Level) {}
