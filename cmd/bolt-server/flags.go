package main

import (
	"flag"
	"fmt"
	"os"
)

// version is injected at build time with -ldflags "-X main.version=...". Defaults to dev.
var version = "dev"

// cliConfig holds user supplied flag values prior to translation into server/config structs.
type cliConfig struct {
	listenAddr  string
	logLevel    string
	configPath  string
	showVersion bool
}

func parseFlags(args []string) (*cliConfig, error) {
	fs := flag.NewFlagSet("bolt-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &cliConfig{}

	fs.StringVar(&cfg.listenAddr, "listen", "", "TCP listen address (e.g. :7687), overrides config file")
	fs.StringVar(&cfg.logLevel, "log-level", "", "Log level: debug|info|warn|error, overrides config file")
	fs.StringVar(&cfg.configPath, "config", "", "Path to YAML config file (optional)")
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.logLevel != "" {
		switch cfg.logLevel {
		case "debug", "info", "warn", "error":
		default:
			return nil, fmt.Errorf("invalid log-level %q", cfg.logLevel)
		}
	}

	return cfg, nil
}
