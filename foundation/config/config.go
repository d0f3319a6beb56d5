package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/conf/v3/yaml"
)

// FileEnv returns the environment variable naming the optional YAML file
// for prefix, for example PITCH_CONFIG_FILE.
func FileEnv(prefix string) string {
	return strings.ToUpper(prefix) + "_CONFIG_FILE"
}

// FileParsers returns the parsers for the YAML file at path. An empty path
// yields no parsers.
func FileParsers(path string) ([]conf.Parsers, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config file[%s]: %w", path, err)
	}

	return []conf.Parsers{yaml.WithData(data)}, nil
}

// Parse fills cfg from defaults, the optional YAML file named by FileEnv,
// environment variables and command line flags, in that order.
func Parse(prefix string, cfg interface{}) (string, error) {
	parsers, err := FileParsers(os.Getenv(FileEnv(prefix)))
	if err != nil {
		return "", err
	}

	return conf.Parse(prefix, cfg, parsers...)
}
