// Fatal helpers log and exit(1); main uses FatalWithLogger for errors
// that happen after a *slog.Logger has been constructed (app.New,
// Application.Start failures), since those already carry a configured
// handler chain rather than the package default.
package logger

import (
	"fmt"
	"log/slog"
	"os"
)

func Fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}

func Fatalf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}

func FatalWithLogger(logger *slog.Logger, msg string, args ...any) {
	logger.Error(msg, args...)
	os.Exit(1)
}
