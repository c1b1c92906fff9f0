package logging

import "log/slog"

// SetupServeMode initializes logging for the stdio MCP server. stdout
// carries JSON-RPC exclusively, so records go to the log file only.
func SetupServeMode(level string) (func(), error) {
	cfg := Config{
		Level:     level,
		FilePath:  DefaultLogPath(),
		MaxSizeMB: 10,
		MaxFiles:  5,
	}

	cleanup, err := SetupDefault(cfg)
	if err != nil {
		return nil, err
	}

	slog.Info("serve_logging_initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level))
	return cleanup, nil
}
