// Package config layers command-line flags, environment variables and an
// optional config file into a Config.
package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/go-errors/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable except UserOutputEnv.
const EnvPrefix = "HELLOCHECK"

// UserOutputEnv carries output captured by a calling environment.
const UserOutputEnv = "USER_OUTPUT"

const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

type Config struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	Repeat    int           `mapstructure:"repeat"`
	Parallel  int           `mapstructure:"parallel"`
	LogLevel  slog.Level    `mapstructure:"log_level"`
	LogFormat string        `mapstructure:"log_format"`

	// Output is the injected output.  Only meaningful when HasOutput: an
	// empty injected output is still an output.
	Output     string `mapstructure:"output"`
	HasOutput  bool   `mapstructure:"-"`
	OutputFile string `mapstructure:"output_file"`
}

// New returns a viper instance with defaults and environment bindings.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("timeout", 10*time.Second)
	v.SetDefault("repeat", 1)
	v.SetDefault("parallel", 1)
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_format", LogFormatJSON)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.AllowEmptyEnv(true)
	// BindEnv only fails when called without a key.
	_ = v.BindEnv("output", UserOutputEnv, EnvPrefix+"_OUTPUT")
	return v
}

// AddFlags registers the flags shared by every command.
func AddFlags(flags *pflag.FlagSet) {
	flags.StringP("config", "c", "", "config file (toml, yaml or json by extension)")
	flags.Duration("timeout", 0, "time limit per program run, 0 for none (default 10s)")
	flags.Int("repeat", 0, "number of attempts that must agree (default 1)")
	flags.Int("parallel", 0, "attempts run at once (default 1)")
	flags.String("log-level", "", "debug, info, warn or error (default warn)")
	flags.String("log-format", "", "json or text (default json)")
}

// AddInjectFlags registers the flags naming an injected output.
func AddInjectFlags(flags *pflag.FlagSet) {
	flags.String("output", "", "injected output (default $"+UserOutputEnv+")")
	flags.String("output-file", "", "read the injected output from a file, - for stdin")
}

// Bind maps config keys to whichever registered flags are present in flags.
func Bind(v *viper.Viper, flags *pflag.FlagSet) error {
	for key, name := range map[string]string{
		"timeout":     "timeout",
		"repeat":      "repeat",
		"parallel":    "parallel",
		"log_level":   "log-level",
		"log_format":  "log-format",
		"output":      "output",
		"output_file": "output-file",
	} {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return errors.WrapPrefix(err, "binding flag "+name, 0)
		}
	}
	return nil
}

// Load reads the optional config file at path and decodes v.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Errorf("reading config file %v: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHooks)); err != nil {
		return nil, errors.Errorf("decoding config: %w", err)
	}
	cfg.HasOutput = v.IsSet("output")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return errors.Errorf("timeout must not be negative: %v", c.Timeout)
	}
	if c.Repeat < 1 {
		return errors.Errorf("repeat must be positive: %v", c.Repeat)
	}
	if c.Parallel < 1 {
		return errors.Errorf("parallel must be positive: %v", c.Parallel)
	}
	switch c.LogFormat {
	case LogFormatJSON, LogFormatText:
	default:
		return errors.Errorf("log_format must be %v or %v: %q", LogFormatJSON, LogFormatText, c.LogFormat)
	}
	return nil
}
