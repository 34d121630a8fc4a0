package command

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/joeycumines/harvest/internal/config"
)

// HelpCommand prints command help.
type HelpCommand struct {
	*BaseCommand
	registry *Registry
}

// NewHelpCommand returns the help command for registry.
func NewHelpCommand(registry *Registry) *HelpCommand {
	return &HelpCommand{
		BaseCommand: NewBaseCommand("help", "Display help information for commands", "help [command]"),
		registry:    registry,
	}
}

// Execute prints the command list, or the help of one command.
func (c *HelpCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stdout, "harvest - plan and dispatch gather-and-deposit workers")
		_, _ = fmt.Fprintln(stdout, "")
		_, _ = fmt.Fprintln(stdout, "Usage: harvest <command> [options] [args...]")
		_, _ = fmt.Fprintln(stdout, "")
		_, _ = fmt.Fprintln(stdout, "Available commands:")
		w := tabwriter.NewWriter(stdout, 0, 8, 2, ' ', 0)
		for _, name := range c.registry.List() {
			if cmd, err := c.registry.Get(name); err == nil {
				_, _ = fmt.Fprintf(w, "  %s\t%s\n", name, cmd.Description())
			}
		}
		_ = w.Flush()
		_, _ = fmt.Fprintln(stdout, "")
		_, _ = fmt.Fprintln(stdout, "Use 'harvest help <command>' for more information about a command.")
		return nil
	}

	cmd, err := c.registry.Get(args[0])
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		return err
	}
	_, _ = fmt.Fprintf(stdout, "Command: %s\n", cmd.Name())
	_, _ = fmt.Fprintf(stdout, "Description: %s\n", cmd.Description())
	_, _ = fmt.Fprintf(stdout, "Usage: harvest %s\n", cmd.Usage())

	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	var buf bytes.Buffer
	fs.SetOutput(&buf)
	cmd.SetupFlags(fs)
	fs.PrintDefaults()
	if buf.Len() > 0 {
		_, _ = fmt.Fprintln(stdout, "")
		_, _ = fmt.Fprintln(stdout, "Flags:")
		_, _ = fmt.Fprint(stdout, buf.String())
	}
	return nil
}

// VersionCommand prints the version.
type VersionCommand struct {
	*BaseCommand
	version string
}

// NewVersionCommand returns the version command.
func NewVersionCommand(version string) *VersionCommand {
	return &VersionCommand{
		BaseCommand: NewBaseCommand("version", "Display version information", "version"),
		version:     version,
	}
}

func (c *VersionCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return fmt.Errorf("unexpected arguments")
	}
	_, _ = fmt.Fprintf(stdout, "harvest version %s\n", c.version)
	return nil
}

// ConfigCommand reads and writes configuration options.
type ConfigCommand struct {
	*BaseCommand
	config     *config.Config
	configPath string
	section    string
	showAll    bool
}

// NewConfigCommand returns the config command. Values set through it are
// written to configPath, or to the default location if configPath is "".
func NewConfigCommand(cfg *config.Config, configPath string) *ConfigCommand {
	return &ConfigCommand{
		BaseCommand: NewBaseCommand("config", "Manage configuration settings", "config [options] [key] [value]"),
		config:      cfg,
		configPath:  configPath,
	}
}

func (c *ConfigCommand) SetupFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.showAll, "all", false, "Show all configuration (global and command-specific)")
	fs.StringVar(&c.section, "section", "", "Command section to read or write, instead of the global options")
}

// Execute shows, gets, sets or validates configuration.
func (c *ConfigCommand) Execute(args []string, stdout, stderr io.Writer) error {
	schema := config.DefaultSchema()
	if len(args) == 0 {
		if !c.showAll {
			_, _ = fmt.Fprintln(stdout, "Configuration management:")
			_, _ = fmt.Fprintln(stdout, "  config <key>             - Get the effective value of an option")
			_, _ = fmt.Fprintln(stdout, "  config <key> <value>     - Set an option")
			_, _ = fmt.Fprintln(stdout, "  config -section run ...  - Read or write a command section")
			_, _ = fmt.Fprintln(stdout, "  config -all              - Show all configuration")
			_, _ = fmt.Fprintln(stdout, "  config validate          - Validate configuration")
			_, _ = fmt.Fprintln(stdout, "  config schema            - Show every known option")
			return nil
		}
		_, _ = fmt.Fprintln(stdout, "Global configuration:")
		for _, key := range slices.Sorted(maps.Keys(c.config.Global)) {
			_, _ = fmt.Fprintf(stdout, "  %s: %s\n", key, c.config.Global[key])
		}
		for _, section := range slices.Sorted(maps.Keys(c.config.Commands)) {
			_, _ = fmt.Fprintf(stdout, "\n[%s]\n", section)
			opts := c.config.Commands[section]
			for _, key := range slices.Sorted(maps.Keys(opts)) {
				_, _ = fmt.Fprintf(stdout, "  %s: %s\n", key, opts[key])
			}
		}
		j := c.config.Journal
		_, _ = fmt.Fprintf(stdout, "\n[journal]\n  maxCount: %d\n  maxAgeDays: %d\n  autoPrune: %t\n", j.MaxCount, j.MaxAgeDays, j.AutoPrune)
		return nil
	}

	switch args[0] {
	case "validate":
		issues := config.ValidateConfig(c.config, schema)
		if len(issues) == 0 {
			_, _ = fmt.Fprintln(stdout, "Configuration is valid.")
			return nil
		}
		_, _ = fmt.Fprintf(stdout, "Configuration has %d issue(s):\n", len(issues))
		for _, issue := range issues {
			_, _ = fmt.Fprintf(stdout, "  - %s\n", issue)
		}
		return nil
	case "schema":
		_, _ = fmt.Fprint(stdout, schema.FormatHelp())
		return nil
	}

	switch len(args) {
	case 1:
		key := args[0]
		if !schema.IsKnown(c.section, key) {
			if _, ok := c.config.GetCommandOption(c.section, key); !ok {
				_, _ = fmt.Fprintf(stdout, "Configuration key '%s' not found\n", key)
				return nil
			}
		}
		_, _ = fmt.Fprintf(stdout, "%s: %s\n", key, schema.ResolveFor(c.config, c.section, key))
		return nil
	case 2:
		key, value := args[0], args[1]
		if c.section == "" {
			c.config.SetGlobalOption(key, value)
		} else {
			c.config.SetCommandOption(c.section, key, value)
		}
		path := c.configPath
		if path == "" {
			path, _ = config.GetConfigPath()
		}
		if path != "" {
			if err := config.SetKeyInFile(path, c.section, key, value); err != nil {
				_, _ = fmt.Fprintf(stderr, "Warning: failed to persist config to disk: %v\n", err)
			}
		}
		_, _ = fmt.Fprintf(stdout, "Set configuration: %s = %s\n", key, value)
		return nil
	}
	_, _ = fmt.Fprintln(stderr, "Invalid number of arguments")
	return fmt.Errorf("invalid arguments")
}

// InitCommand writes a starter configuration file.
type InitCommand struct {
	*BaseCommand
	force bool
}

// NewInitCommand returns the init command.
func NewInitCommand() *InitCommand {
	return &InitCommand{
		BaseCommand: NewBaseCommand("init", "Write a starter configuration file", "init [options]"),
	}
}

func (c *InitCommand) SetupFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.force, "force", false, "Overwrite an existing configuration")
}

const defaultConfigFile = `# harvest configuration file
# Format: optionName remainingLineIsTheValue
# Use [command] sections for command-specific options.
# Run 'harvest config schema' for every option.

planner.target-gold 200
planner.target-wood 200
planner.max-workforce 3
# planner.expand-when gold >= expandCost && workforce < 2
log.level info

[run]
max-ticks 5000
gather-ticks 2

[journal]
maxCount 100
maxAgeDays 30
`

// Execute writes the configuration file.
func (c *InitCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return fmt.Errorf("unexpected arguments")
	}
	configPath, err := config.GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	if _, err := os.Stat(configPath); err == nil && !c.force {
		_, _ = fmt.Fprintf(stdout, "Configuration already exists at: %s\n", configPath)
		_, _ = fmt.Fprintln(stdout, "Use -force to overwrite existing configuration")
		return nil
	}
	if err := config.EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(defaultConfigFile), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	loaded, err := config.LoadFromPath(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Warning: failed to load created config: %v\n", err)
	} else if len(loaded.Warnings) > 0 {
		_, _ = fmt.Fprintf(stderr, "Warning: created config has %d issue(s)\n", len(loaded.Warnings))
	}
	_, _ = fmt.Fprintf(stdout, "Initialized harvest configuration at: %s\n", configPath)
	return nil
}
