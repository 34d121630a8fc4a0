package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// OptionType is the expected type of an option value.
type OptionType string

const (
	TypeString   OptionType = "string"
	TypeBool     OptionType = "bool"
	TypeInt      OptionType = "int"
	TypeDuration OptionType = "duration"
)

// ConfigOption declares one option.
type ConfigOption struct {
	// Key as it appears in the file.
	Key  string
	Type OptionType
	// Default value, "" for none.
	Default     string
	Description string
	// Section is "" for global options, else a command name.
	Section string
	// EnvVar overrides the file value when set.
	EnvVar string
}

// ConfigSchema is the set of known options. It drives validation, help
// text, and resolution of effective values.
type ConfigSchema struct {
	options   []*ConfigOption
	byKey     map[string]*ConfigOption
	bySection map[string]map[string]*ConfigOption
}

// NewSchema returns an empty schema.
func NewSchema() *ConfigSchema {
	return &ConfigSchema{
		byKey:     make(map[string]*ConfigOption),
		bySection: make(map[string]map[string]*ConfigOption),
	}
}

// Register adds opt. A later registration of the same key and section wins.
func (s *ConfigSchema) Register(opt ConfigOption) {
	ref := &opt
	s.options = append(s.options, ref)
	if opt.Section == "" {
		s.byKey[opt.Key] = ref
		return
	}
	if s.bySection[opt.Section] == nil {
		s.bySection[opt.Section] = make(map[string]*ConfigOption)
	}
	s.bySection[opt.Section][opt.Key] = ref
}

// RegisterAll registers each of opts.
func (s *ConfigSchema) RegisterAll(opts []ConfigOption) {
	for _, opt := range opts {
		s.Register(opt)
	}
}

// Lookup returns the option for key in section, or nil.
func (s *ConfigSchema) Lookup(section, key string) *ConfigOption {
	if section == "" {
		return s.byKey[key]
	}
	return s.bySection[section][key]
}

// IsKnown reports whether key may appear in section. Global keys may appear
// in any command section.
func (s *ConfigSchema) IsKnown(section, key string) bool {
	if section != "" && s.bySection[section][key] != nil {
		return true
	}
	return s.byKey[key] != nil
}

// GlobalOptions returns the global options in registration order.
func (s *ConfigSchema) GlobalOptions() []ConfigOption {
	return s.SectionOptions("")
}

// SectionOptions returns the options of section in registration order.
func (s *ConfigSchema) SectionOptions(section string) []ConfigOption {
	var out []ConfigOption
	for _, o := range s.options {
		if o.Section == section {
			out = append(out, *o)
		}
	}
	return out
}

// Sections returns the non-global section names, sorted.
func (s *ConfigSchema) Sections() []string {
	return slices.Sorted(maps.Keys(s.bySection))
}

// Resolve returns the effective value of a global key: its environment
// variable, then the file, then the default.
func (s *ConfigSchema) Resolve(c *Config, key string) string {
	return s.ResolveFor(c, "", key)
}

// ResolveFor is Resolve for a command: the command's section is consulted
// before the global value.
func (s *ConfigSchema) ResolveFor(c *Config, command, key string) string {
	opt := s.Lookup(command, key)
	if opt == nil {
		opt = s.Lookup("", key)
	}
	if opt != nil && opt.EnvVar != "" {
		if v, ok := os.LookupEnv(opt.EnvVar); ok {
			return v
		}
	}
	if c != nil {
		if v, ok := c.GetCommandOption(command, key); ok {
			return v
		}
	}
	if opt != nil {
		return opt.Default
	}
	return ""
}

// ValidateConfig returns one message per unknown option or mistyped value,
// sorted.
func ValidateConfig(c *Config, s *ConfigSchema) []string {
	var issues []string
	for key, value := range c.Global {
		opt := s.Lookup("", key)
		if opt == nil {
			issues = append(issues, fmt.Sprintf("unknown global option: %q (value: %q)", key, value))
			continue
		}
		if err := validateType(opt.Type, value); err != nil {
			issues = append(issues, fmt.Sprintf("global option %q: %v", key, err))
		}
	}
	for section, opts := range c.Commands {
		for key, value := range opts {
			if !s.IsKnown(section, key) {
				issues = append(issues, fmt.Sprintf("unknown option for command %q: %q (value: %q)", section, key, value))
				continue
			}
			opt := s.Lookup(section, key)
			if opt == nil {
				opt = s.Lookup("", key)
			}
			if err := validateType(opt.Type, value); err != nil {
				issues = append(issues, fmt.Sprintf("option %q in [%s]: %v", key, section, err))
			}
		}
	}
	slices.Sort(issues)
	return issues
}

func validateType(t OptionType, value string) error {
	switch t {
	case TypeString, "":
		return nil
	case TypeBool:
		if _, err := parseBool(value); err != nil {
			return fmt.Errorf("expected bool, got %q", value)
		}
	case TypeInt:
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Errorf("expected int, got %q", value)
		}
	case TypeDuration:
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("expected duration, got %q", value)
		}
	default:
		return fmt.Errorf("unknown option type %q", t)
	}
	return nil
}

// FormatHelp renders every option, globals first, then by section.
func (s *ConfigSchema) FormatHelp() string {
	var b strings.Builder
	if globals := s.GlobalOptions(); len(globals) > 0 {
		b.WriteString("Global Options:\n")
		for _, o := range globals {
			writeOptionHelp(&b, o)
		}
	}
	for _, sec := range s.Sections() {
		fmt.Fprintf(&b, "\n[%s] Options:\n", sec)
		for _, o := range s.SectionOptions(sec) {
			writeOptionHelp(&b, o)
		}
	}
	return b.String()
}

func writeOptionHelp(b *strings.Builder, o ConfigOption) {
	fmt.Fprintf(b, "  %-28s %s", o.Key, o.Description)
	var parts []string
	if o.Type != "" && o.Type != TypeString {
		parts = append(parts, "type: "+string(o.Type))
	}
	if o.Default != "" {
		parts = append(parts, "default: "+o.Default)
	}
	if o.EnvVar != "" {
		parts = append(parts, "env: "+o.EnvVar)
	}
	if len(parts) > 0 {
		fmt.Fprintf(b, " (%s)", strings.Join(parts, ", "))
	}
	b.WriteString("\n")
}

// DefaultSchema declares every harvest option.
func DefaultSchema() *ConfigSchema {
	s := NewSchema()
	s.RegisterAll([]ConfigOption{
		{Key: "planner.gather-unit", Type: TypeInt, Default: "100", Description: "Amount collected per gather"},
		{Key: "planner.expand-cost", Type: TypeInt, Default: "400", Description: "Gold spent to add a worker"},
		{Key: "planner.max-workforce", Type: TypeInt, Default: "3", Description: "Workforce cap for expansion"},
		{Key: "planner.max-participants", Type: TypeInt, Default: "3", Description: "Most workers one operator may move"},
		{Key: "planner.target-gold", Type: TypeInt, Default: "200", Description: "Gold to stockpile", EnvVar: "HARVEST_TARGET_GOLD"},
		{Key: "planner.target-wood", Type: TypeInt, Default: "200", Description: "Wood to stockpile", EnvVar: "HARVEST_TARGET_WOOD"},
		{Key: "planner.expand-when", Type: TypeString, Default: "", Description: "Expression gating workforce expansion"},
		{Key: "planner.max-expansions", Type: TypeInt, Default: "100000", Description: "Search expansion budget, 0 for none"},
		{Key: "planner.timeout", Type: TypeDuration, Default: "10s", Description: "Search time budget, 0s for none"},

		{Key: "journal.dir", Type: TypeString, Default: "", Description: "Episode journal directory", EnvVar: "HARVEST_JOURNAL_DIR"},

		{Key: "log.file", Type: TypeString, Default: "", Description: "Log file path (JSON output)", EnvVar: "HARVEST_LOG_FILE"},
		{Key: "log.level", Type: TypeString, Default: "info", Description: "Log level: debug, info, warn, error", EnvVar: "HARVEST_LOG_LEVEL"},

		{Key: "tick-interval", Section: "run", Type: TypeDuration, Default: "0s", Description: "Delay between rounds"},
		{Key: "max-ticks", Section: "run", Type: TypeInt, Default: "5000", Description: "Rounds before giving up"},
		{Key: "gather-ticks", Section: "run", Type: TypeInt, Default: "2", Description: "Rounds a gather takes in the simulator"},
		{Key: "record", Section: "run", Type: TypeBool, Default: "true", Description: "Save episodes to the journal"},

		{Key: "trace", Section: "plan", Type: TypeString, Default: "", Description: "Write the plan trace to this file"},

		{Key: "limit", Section: "episodes", Type: TypeInt, Default: "20", Description: "Episodes to list"},

		{Key: "maxCount", Section: "journal", Type: TypeInt, Default: "100", Description: "Episodes to keep"},
		{Key: "maxAgeDays", Section: "journal", Type: TypeInt, Default: "30", Description: "Days to keep episodes"},
		{Key: "autoPrune", Section: "journal", Type: TypeBool, Default: "true", Description: "Prune after each recorded episode"},
	})
	return s
}

// Settings are the resolved planner and run options.
type Settings struct {
	GatherUnit      int
	ExpandCost      int
	MaxWorkforce    int
	MaxParticipants int
	TargetGold      int
	TargetWood      int
	ExpandWhen      string
	MaxExpansions   int
	Timeout         time.Duration

	TickInterval time.Duration
	MaxTicks     int
	GatherTicks  int
	Record       bool

	Trace        string
	EpisodeLimit int

	JournalDir string
}

// Settings resolves every planner and run option for command. Options of
// the [run], [plan] and [episodes] sections are always read from their own
// section. Values that do not
// parse are errors, unlike the warnings produced while loading.
func (s *ConfigSchema) Settings(c *Config, command string) (Settings, error) {
	r := resolver{schema: s, config: c, command: command}
	run := r.in("run")
	plan := r.in("plan")
	episodes := r.in("episodes")
	out := Settings{
		GatherUnit:      r.int("planner.gather-unit"),
		ExpandCost:      r.int("planner.expand-cost"),
		MaxWorkforce:    r.int("planner.max-workforce"),
		MaxParticipants: r.int("planner.max-participants"),
		TargetGold:      r.int("planner.target-gold"),
		TargetWood:      r.int("planner.target-wood"),
		ExpandWhen:      r.string("planner.expand-when"),
		MaxExpansions:   r.int("planner.max-expansions"),
		Timeout:         r.duration("planner.timeout"),
		TickInterval:    run.duration("tick-interval"),
		MaxTicks:        run.int("max-ticks"),
		GatherTicks:     run.int("gather-ticks"),
		Record:          run.bool("record"),
		Trace:           plan.string("trace"),
		EpisodeLimit:    episodes.int("limit"),
		JournalDir:      r.string("journal.dir"),
	}
	return out, errors.Join(r.err, run.err, plan.err, episodes.err)
}

type resolver struct {
	schema  *ConfigSchema
	config  *Config
	command string
	err     error
}

// in returns a resolver for options of another section.
func (r *resolver) in(section string) *resolver {
	return &resolver{schema: r.schema, config: r.config, command: section}
}

func (r *resolver) string(key string) string {
	return r.schema.ResolveFor(r.config, r.command, key)
}

func (r *resolver) fail(key, value, want string) {
	if r.err == nil {
		r.err = fmt.Errorf("option %s: expected %s, got %q", key, want, value)
	}
}

func (r *resolver) int(key string) int {
	v := r.string(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, "int")
	}
	return n
}

func (r *resolver) bool(key string) bool {
	v := r.string(key)
	if v == "" {
		return false
	}
	b, err := parseBool(v)
	if err != nil {
		r.fail(key, v, "bool")
	}
	return b
}

func (r *resolver) duration(key string) time.Duration {
	v := r.string(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, v, "duration")
	}
	return d
}
