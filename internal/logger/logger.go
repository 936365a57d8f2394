package logger

import (
	"go.uber.org/zap"
)

// New builds the process-wide logger. Development mode uses the console
// encoder; anything else gets production JSON output.
func New(appEnv string) (*zap.Logger, error) {
	if appEnv == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
