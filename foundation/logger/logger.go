package logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New constructs a sugared logger that writes JSON lines to outputPaths,
// defaulting to stdout. Directories of file outputs are created on demand.
func New(service string, outputPaths ...string) (*zap.SugaredLogger, error) {
	if len(outputPaths) == 0 {
		outputPaths = []string{"stdout"}
	}

	for _, path := range outputPaths {
		if path == "stdout" || path == "stderr" {
			continue
		}

		dir := filepath.Dir(path)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, os.ModePerm); err != nil {
				return nil, err
			}
		}
	}

	config := zap.NewProductionConfig()
	config.OutputPaths = outputPaths
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = false
	config.InitialFields = map[string]interface{}{
		"service": service,
	}

	log, err := config.Build()
	if err != nil {
		return nil, err
	}

	return log.Sugar(), nil
}
