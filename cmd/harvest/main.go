package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/joeycumines/harvest/internal/command"
	"github.com/joeycumines/harvest/internal/config"
)

const version = "0.1.0"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		// If config doesn't exist, create a new empty one
		cfg = config.NewConfig()
	}
	for _, w := range cfg.Warnings {
		_, _ = fmt.Fprintf(stderr, "Warning: config: %s\n", w)
	}

	registry := newRegistry(cfg)

	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		args = []string{"help"}
	}
	err = registry.Run(args, stdout, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	return err
}

func newRegistry(cfg *config.Config) *command.Registry {
	registry := command.NewRegistry()
	registry.Register(command.NewHelpCommand(registry))
	registry.Register(command.NewVersionCommand(version))
	registry.Register(command.NewConfigCommand(cfg, ""))
	registry.Register(command.NewInitCommand())
	registry.Register(command.NewPlanCommand(cfg))
	registry.Register(command.NewRunCommand(cfg))
	registry.Register(command.NewEpisodesCommand(cfg))
	registry.Register(command.NewScenarioCommand())
	return registry
}
