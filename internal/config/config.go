// Package config loads the harvest configuration file.
//
// The format is line oriented: "optionName the rest of the line is the
// value", "#" comments, and "[section]" headers. Options before the first
// header are global. A section named after a command holds overrides for
// that command; the [journal] section configures episode retention.
package config

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
)

// Config is a parsed configuration file.
type Config struct {
	// Global options.
	Global map[string]string
	// Commands holds per-command options, keyed by command name.
	Commands map[string]map[string]string
	// Journal controls episode retention.
	Journal JournalConfig
	// Warnings collected while loading.
	Warnings []string
}

// JournalConfig is the [journal] section.
type JournalConfig struct {
	// MaxCount keeps at most this many episodes; 0 keeps all.
	MaxCount int
	// MaxAgeDays drops episodes older than this; 0 keeps all.
	MaxAgeDays int
	// AutoPrune prunes after every recorded episode.
	AutoPrune bool
}

// NewConfig returns an empty configuration with default journal retention.
func NewConfig() *Config {
	return &Config{
		Global:   make(map[string]string),
		Commands: make(map[string]map[string]string),
		Journal: JournalConfig{
			MaxCount:   100,
			MaxAgeDays: 30,
			AutoPrune:  true,
		},
	}
}

// Load reads the file at GetConfigPath.
func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return LoadFromPath(configPath)
}

// LoadFromPath reads a configuration file. A missing file yields an empty
// configuration. Symlinks are rejected.
func LoadFromPath(path string) (*Config, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewConfig(), nil
		}
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("symlink not allowed in config path: %s", path)
	}

	file, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return LoadFromReader(file)
}

// LoadFromReader parses configuration from r. Unknown options and values
// of the wrong type are kept but reported as warnings.
func LoadFromReader(r io.Reader) (*Config, error) {
	config := NewConfig()
	scanner := bufio.NewScanner(r)

	var (
		section   string
		inJournal bool
		lineNo    int
	)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(strings.Trim(line, "[]"))
			inJournal = section == "journal"
			if !inJournal && config.Commands[section] == nil {
				config.Commands[section] = make(map[string]string)
			}
			continue
		}

		name, value, _ := strings.Cut(line, " ")
		value = strings.TrimSpace(value)

		switch {
		case inJournal:
			if err := parseJournalOption(&config.Journal, name, value); err != nil {
				return nil, fmt.Errorf("line %d: invalid journal option %q: %w", lineNo, name, err)
			}
		case section == "":
			config.Global[name] = value
		default:
			config.Commands[section][name] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	for _, issue := range ValidateConfig(config, DefaultSchema()) {
		config.addWarning("%s", issue)
	}
	return config, nil
}

func (c *Config) addWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.Warnings = append(c.Warnings, msg)
	slog.Warn("[config] " + msg)
}

func parseJournalOption(jc *JournalConfig, name, value string) error {
	switch name {
	case "maxCount", "maxAgeDays":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value %q: %w", value, err)
		}
		if n < 0 {
			return fmt.Errorf("%s cannot be negative: %d", name, n)
		}
		if name == "maxCount" {
			jc.MaxCount = n
		} else {
			jc.MaxAgeDays = n
		}
	case "autoPrune":
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		jc.AutoPrune = b
	default:
		return fmt.Errorf("unknown journal option: %s", name)
	}
	return nil
}

// parseBool accepts true/false, 1/0, yes/no and on/off, in any case.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value: %s", s)
	}
}

// GetGlobalOption returns a global option.
func (c *Config) GetGlobalOption(name string) (string, bool) {
	value, ok := c.Global[name]
	return value, ok
}

// GetCommandOption returns an option for command, falling back to the
// global value.
func (c *Config) GetCommandOption(command, name string) (string, bool) {
	if opts, ok := c.Commands[command]; ok {
		if value, ok := opts[name]; ok {
			return value, true
		}
	}
	return c.GetGlobalOption(name)
}

// SetGlobalOption sets a global option in memory.
func (c *Config) SetGlobalOption(name, value string) {
	c.Global[name] = value
}

// SetCommandOption sets a command option in memory.
func (c *Config) SetCommandOption(command, name, value string) {
	if c.Commands[command] == nil {
		c.Commands[command] = make(map[string]string)
	}
	c.Commands[command][name] = value
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := &Config{
		Global:   maps.Clone(c.Global),
		Commands: make(map[string]map[string]string, len(c.Commands)),
		Journal:  c.Journal,
		Warnings: slices.Clone(c.Warnings),
	}
	if out.Global == nil {
		out.Global = make(map[string]string)
	}
	for k, v := range c.Commands {
		out.Commands[k] = maps.Clone(v)
	}
	return out
}
