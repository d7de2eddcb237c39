package main

import (
	"fmt"
	"os"

	"projmap/internal/config"
	"projmap/internal/logging"
	"projmap/internal/project"
)

// projectEnv bundles what a command needs to operate on one project.
type projectEnv struct {
	info     *project.Info
	cfg      *config.Config
	resolver *config.Resolver
	logger   *logging.Logger
}

// getEnv resolves the target project from --project (or the working
// directory) and loads its configuration.
func getEnv(format string) (*projectEnv, error) {
	path := projectFlag
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		path = wd
	}

	info, err := project.Resolve(path)
	if err != nil {
		return nil, err
	}

	cfg := config.Load(info.Root, newLogger(format, "info"))
	logger := newLogger(format, cfg.Logging.Level)

	return &projectEnv{
		info:     info,
		cfg:      cfg,
		resolver: config.NewResolver(cfg, info.Root, logger),
		logger:   logger,
	}, nil
}

// mustGetEnv resolves the project or exits.
func mustGetEnv(format string) *projectEnv {
	env, err := getEnv(format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return env
}

// newLogger creates a logger whose format follows the output format,
// so json output comes with json logs on stderr.
func newLogger(format, level string) *logging.Logger {
	logFormat := logging.HumanFormat
	if format == "json" {
		logFormat = logging.JSONFormat
	}
	return logging.New(logging.Config{
		Format: logFormat,
		Level:  logging.ParseLevel(level),
	})
}
